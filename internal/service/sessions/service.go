// Package sessions hosts configurator instances, one per open hosting
// page, and serializes access to each.
package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/stagekit/internal/domain"
	redisrepo "github.com/kirinyoku/stagekit/internal/repository/redis"
	"github.com/kirinyoku/stagekit/internal/service/configurator"
	"github.com/kirinyoku/stagekit/internal/templates"
)

// Limiter throttles saves per caller.
type Limiter interface {
	Allow(ctx context.Context, id string) (redisrepo.Decision, error)
}

// Publisher carries quotation changes to every instance holding watchers.
type Publisher interface {
	PublishQuotation(ctx context.Context, sessionID string, q domain.Quotation) error
}

type Config struct {
	MaxSessions    int
	Slot           string
	Width          int
	Height         int
	PublishTimeout time.Duration
}

type Session struct {
	ID        string
	Template  string
	CreatedAt time.Time

	mu  sync.Mutex
	cfg *configurator.Configurator
}

type Service struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	slots     configurator.SlotStore
	limiter   Limiter
	publisher Publisher
	broker    *Broker
	logger    *slog.Logger
	cfg       Config
}

// New builds the service. limiter and publisher may be nil: saves are then
// not throttled and quotations go straight to local watchers.
func New(
	slots configurator.SlotStore,
	limiter Limiter,
	publisher Publisher,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 100
	}
	if cfg.Slot == "" {
		cfg.Slot = configurator.DefaultSlot
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		sessions:  make(map[string]*Session),
		slots:     slots,
		limiter:   limiter,
		publisher: publisher,
		broker:    NewBroker(),
		logger:    logger,
		cfg:       cfg,
	}
}

// Create opens a session, seeded from the named template when one is
// given.
//
// Parameters:
//   - template: template name, or "" for an empty scene.
//
// Returns ErrTooManySessions when the service is at capacity and
// templates.ErrTemplateNotFound for an unknown template.
func (s *Service) Create(template string) (*Session, error) {
	const op = "service.sessions.Create"

	var items []templates.Item
	if template != "" {
		tpl, err := templates.Get(template)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		items = tpl.Items
	}

	s.mu.Lock()
	if len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		return nil, fmt.Errorf("%s:%w", op, ErrTooManySessions)
	}
	id := uuid.NewString()
	sess := &Session{ID: id, Template: template, CreatedAt: time.Now().UTC()}
	sess.cfg = configurator.New(
		s.slots,
		s.logger.With("session_id", id),
		configurator.Config{Slot: s.cfg.Slot, Width: s.cfg.Width, Height: s.cfg.Height},
		s.publish(id),
	)
	s.sessions[id] = sess
	s.mu.Unlock()

	if len(items) > 0 {
		sess.mu.Lock()
		err := sess.cfg.Seed(items)
		sess.mu.Unlock()
		if err != nil {
			_ = s.Close(id)
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}

	s.logger.Info("session opened", "session_id", id, "template", template)
	return sess, nil
}

func (s *Service) get(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, SessionNotFoundError{ID: id}
	}

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, SessionNotFoundError{ID: id}
	}
	return sess, nil
}

// With runs fn against the session's configurator while holding the
// session lock.
func (s *Service) With(id string, fn func(c *configurator.Configurator) error) error {
	const op = "service.sessions.With"

	sess, err := s.get(id)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.cfg == nil {
		return fmt.Errorf("%s:%w", op, SessionNotFoundError{ID: id})
	}
	return fn(sess.cfg)
}

// Save persists the session's scene, throttled per rlKey.
func (s *Service) Save(ctx context.Context, id, rlKey string) error {
	const op = "service.sessions.Save"

	if s.limiter != nil {
		d, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			s.logger.Warn("rate limiter unavailable", "error", err)
		} else if !d.Allowed {
			return fmt.Errorf("%s:%w", op, RateLimitedError{RetryAfter: d.RetryAfter})
		}
	}

	return s.With(id, func(c *configurator.Configurator) error {
		if err := c.Save(ctx); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		return nil
	})
}

func (s *Service) Load(ctx context.Context, id string) error {
	const op = "service.sessions.Load"

	return s.With(id, func(c *configurator.Configurator) error {
		if err := c.Load(ctx); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		return nil
	})
}

// Close disposes the session's scene and render context and ends its
// watchers.
func (s *Service) Close(id string) error {
	const op = "service.sessions.Close"

	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s:%w", op, SessionNotFoundError{ID: id})
	}

	sess.mu.Lock()
	if sess.cfg != nil {
		sess.cfg.Close()
		sess.cfg = nil
	}
	sess.mu.Unlock()

	s.broker.closeSession(id)
	s.logger.Info("session closed", "session_id", id)
	return nil
}

// CloseAll closes every open session.
func (s *Service) CloseAll() {
	for _, id := range s.IDs() {
		_ = s.Close(id)
	}
}

// IDs lists open session ids in sorted order.
func (s *Service) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Watch streams quotation changes of an open session.
func (s *Service) Watch(id string) (<-chan domain.Quotation, func(), error) {
	const op = "service.sessions.Watch"

	if _, err := s.get(id); err != nil {
		return nil, nil, fmt.Errorf("%s:%w", op, err)
	}
	ch, cancel := s.broker.Watch(id)
	return ch, cancel, nil
}

// Dispatch hands a quotation received from the bus to local watchers.
func (s *Service) Dispatch(sessionID string, q domain.Quotation) {
	s.broker.Dispatch(sessionID, q)
}

func (s *Service) publish(id string) func(q domain.Quotation) {
	return func(q domain.Quotation) {
		if s.publisher == nil {
			s.broker.Dispatch(id, q)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PublishTimeout)
		defer cancel()

		if err := s.publisher.PublishQuotation(ctx, id, q); err != nil {
			s.logger.Warn("failed to publish quotation", "session_id", id, "error", err)
			s.broker.Dispatch(id, q)
		}
	}
}
