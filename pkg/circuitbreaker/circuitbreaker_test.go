package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time         { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker() (*CircuitBreaker, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Interval: time.Minute, Timeout: 5 * time.Second})
	cb.now = c.now
	return cb, c
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker()
	boom := errors.New("boom")

	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenTrial(t *testing.T) {
	cb, c := newTestBreaker()
	boom := errors.New("boom")
	_ = cb.Execute(func() error { return boom })
	_ = cb.Execute(func() error { return boom })

	c.advance(6 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	// a failed trial reopens immediately
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, StateOpen, cb.State())

	c.advance(6 * time.Second)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_IntervalClearsFailures(t *testing.T) {
	cb, c := newTestBreaker()
	boom := errors.New("boom")

	_ = cb.Execute(func() error { return boom })
	c.advance(2 * time.Minute)
	_ = cb.Execute(func() error { return boom })
	assert.Equal(t, StateClosed, cb.State())
}
