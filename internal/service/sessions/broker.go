package sessions

import (
	"sync"

	"github.com/kirinyoku/stagekit/internal/domain"
)

const watchBuffer = 8

// Broker fans quotation updates out to local watchers of a session.
type Broker struct {
	mu       sync.Mutex
	watchers map[string]map[chan domain.Quotation]struct{}
}

func NewBroker() *Broker {
	return &Broker{watchers: make(map[string]map[chan domain.Quotation]struct{})}
}

// Watch registers a watcher for sessionID. The channel is closed by the
// returned cancel func or when the session closes, whichever comes first.
func (b *Broker) Watch(sessionID string) (<-chan domain.Quotation, func()) {
	ch := make(chan domain.Quotation, watchBuffer)

	b.mu.Lock()
	set, ok := b.watchers[sessionID]
	if !ok {
		set = make(map[chan domain.Quotation]struct{})
		b.watchers[sessionID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.watchers[sessionID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
				if len(set) == 0 {
					delete(b.watchers, sessionID)
				}
			}
		}
	}

	return ch, cancel
}

// Dispatch delivers q to every watcher of sessionID. Slow watchers miss
// updates rather than block the publisher.
func (b *Broker) Dispatch(sessionID string, q domain.Quotation) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.watchers[sessionID] {
		select {
		case ch <- q:
		default:
		}
	}
}

func (b *Broker) closeSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.watchers[sessionID] {
		close(ch)
	}
	delete(b.watchers, sessionID)
}
