package sessions

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many open sessions")
	ErrRateLimited     = errors.New("rate limited")
)

type SessionNotFoundError struct {
	ID string
}

func (e SessionNotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.ID)
}

func (e SessionNotFoundError) Is(target error) bool {
	return target == ErrSessionNotFound
}

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}
