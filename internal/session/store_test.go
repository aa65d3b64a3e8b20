package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"atmledger/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore() (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(Config{}, WithClock(clock.Now)), clock
}

var admin = domain.Identity{OperatorID: 1, Username: "admin", Role: "admin"}

func TestNewStore_Defaults(t *testing.T) {
	s := NewStore(Config{})
	assert.Equal(t, DefaultIdleTimeout, s.cfg.IdleTimeout)
	assert.Equal(t, DefaultWarnAfter, s.cfg.WarnAfter)
	assert.Equal(t, DefaultFilterTTL, s.cfg.FilterTTL)
}

func TestTouch_SlidesIdleDeadline(t *testing.T) {
	s, clock := newTestStore()
	sess := s.Create(admin)
	require.NotEmpty(t, sess.ID)
	require.NotEqual(t, sess.ID, sess.CSRFToken)

	clock.Advance(60 * time.Second)
	got, err := s.Touch(sess.ID)
	require.NoError(t, err)
	assert.False(t, got.Warn)
	assert.Equal(t, admin, got.Identity)

	clock.Advance(100 * time.Second)
	got, err = s.Touch(sess.ID)
	require.NoError(t, err)
	assert.True(t, got.Warn)
}

func TestTouch_Expired(t *testing.T) {
	s, clock := newTestStore()
	sess := s.Create(admin)

	clock.Advance(DefaultIdleTimeout)
	_, err := s.Touch(sess.ID)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)

	_, err = s.Touch(sess.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore()
	sess := s.Create(admin)

	s.Delete(sess.ID)

	_, err := s.Touch(sess.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestVerifyCSRF(t *testing.T) {
	s, _ := newTestStore()
	sess := s.Create(admin)

	assert.NoError(t, s.VerifyCSRF(sess.ID, sess.CSRFToken))
	assert.ErrorIs(t, s.VerifyCSRF(sess.ID, "forged"), domain.ErrInvalidCSRF)
	assert.ErrorIs(t, s.VerifyCSRF(sess.ID, ""), domain.ErrInvalidCSRF)
	assert.ErrorIs(t, s.VerifyCSRF("nope", sess.CSRFToken), domain.ErrUnauthorized)
}

func TestFilters_ExpireAfterTTL(t *testing.T) {
	s, clock := newTestStore()
	sess := s.Create(admin)

	_, ok := s.Filters(sess.ID)
	assert.False(t, ok)

	f := domain.OperationFilter{ATMID: 3}
	s.SaveFilters(sess.ID, f)

	clock.Advance(4 * time.Minute)
	got, ok := s.Filters(sess.ID)
	require.True(t, ok)
	assert.Equal(t, f, got)

	clock.Advance(time.Minute)
	_, ok = s.Filters(sess.ID)
	assert.False(t, ok)
}

func TestSweep(t *testing.T) {
	s, clock := newTestStore()
	old := s.Create(admin)
	clock.Advance(100 * time.Second)
	fresh := s.Create(admin)
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, s.Sweep())

	_, err := s.Touch(old.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = s.Touch(fresh.ID)
	assert.NoError(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	s, _ := newTestStore()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
