package redisx

import "fmt"

const ns = "stagekit:v1"

// KeyScene is the durable slot a scene is saved to.
func KeyScene(slot string) string {
	return fmt.Sprintf("%s:scene:%s", ns, slot)
}

// KeySceneCache is the read-through copy of a slot held in front of
// Postgres.
func KeySceneCache(slot string) string {
	return fmt.Sprintf("%s:scene:%s:cache", ns, slot)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeyIdempotency(sessionID, idemKey string) string {
	return fmt.Sprintf("%s:idem:%s:%s", ns, sessionID, idemKey)
}

func ChannelQuotations() string {
	return ns + ":quotations"
}
