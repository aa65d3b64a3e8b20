package session

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"atmledger/internal/domain"
	"atmledger/internal/logger"

	"github.com/google/uuid"
)

const (
	DefaultIdleTimeout = 120 * time.Second
	DefaultWarnAfter   = 90 * time.Second
	DefaultFilterTTL   = 5 * time.Minute
)

// Session is an authenticated operator. Returned values are copies.
type Session struct {
	ID        string
	CSRFToken string
	Identity  domain.Identity
	CreatedAt time.Time
	LastSeen  time.Time
	// Warn is set when the session has been idle past the warning point.
	Warn bool

	filters   domain.OperationFilter
	filtersAt time.Time
}

// ExpiresAt is when the session dies unless it is touched again.
func (s Session) ExpiresAt(idle time.Duration) time.Time {
	return s.LastSeen.Add(idle)
}

type Config struct {
	IdleTimeout time.Duration
	WarnAfter   time.Duration
	FilterTTL   time.Duration
}

type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	cfg      Config
	now      func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(cfg Config, opts ...Option) *Store {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.WarnAfter <= 0 || cfg.WarnAfter >= cfg.IdleTimeout {
		cfg.WarnAfter = cfg.IdleTimeout * 3 / 4
	}
	if cfg.FilterTTL <= 0 {
		cfg.FilterTTL = DefaultFilterTTL
	}
	s := &Store{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) IdleTimeout() time.Duration { return s.cfg.IdleTimeout }

func (s *Store) Create(id domain.Identity) Session {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		CSRFToken: uuid.NewString(),
		Identity:  id,
		CreatedAt: now,
		LastSeen:  now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return *sess
}

// Touch validates the session and slides its idle deadline. An expired
// session is removed and reported as ErrSessionExpired.
func (s *Store) Touch(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, domain.ErrUnauthorized
	}
	now := s.now()
	idle := now.Sub(sess.LastSeen)
	if idle >= s.cfg.IdleTimeout {
		delete(s.sessions, id)
		return Session{}, domain.ErrSessionExpired
	}

	out := *sess
	out.Warn = idle >= s.cfg.WarnAfter
	sess.LastSeen = now
	out.LastSeen = now
	return out, nil
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Store) VerifyCSRF(id, token string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return domain.ErrUnauthorized
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(sess.CSRFToken), []byte(token)) != 1 {
		return domain.ErrInvalidCSRF
	}
	return nil
}

// SaveFilters remembers the last operations filter of a session.
func (s *Store) SaveFilters(id string, f domain.OperationFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.filters = f
		sess.filtersAt = s.now()
	}
}

// Filters returns the remembered filter if it is younger than the filter TTL.
func (s *Store) Filters(id string) (domain.OperationFilter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.filtersAt.IsZero() {
		return domain.OperationFilter{}, false
	}
	if s.now().Sub(sess.filtersAt) >= s.cfg.FilterTTL {
		sess.filters = domain.OperationFilter{}
		sess.filtersAt = time.Time{}
		return domain.OperationFilter{}, false
	}
	return sess.filters, true
}

// Sweep drops idle sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastSeen) >= s.cfg.IdleTimeout {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	log := logger.FromContext(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Debug().Int("expired", n).Msg("sessions swept")
			}
		}
	}
}
