package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig("pharmacy.orders")
	cfg.Timeout = time.Hour
	cb := New(cfg, nil, nil)

	boom := errors.New("broker down")
	for i := 0; i < int(cfg.FailureThreshold); i++ {
		err := cb.Execute(context.Background(), func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.True(t, IsRejected(err))
	assert.False(t, called)
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	cb := New(DefaultConfig("pharmacy.shipments"), nil, nil)

	for i := 0; i < 10; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	}
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestSetReusesBreakers(t *testing.T) {
	s := NewSet(nil, nil, nil)
	a := s.For("pharmacy.orders")
	assert.Same(t, a, s.For("pharmacy.orders"))
	assert.Equal(t, "pharmacy.orders", a.Name())

	s.For("pharmacy.compliance")
	statuses := s.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "pharmacy.compliance", statuses[0].Name)
	assert.Equal(t, StateClosed, statuses[1].State)
}

func TestTripPolicySwitchesToRatio(t *testing.T) {
	cfg := DefaultConfig("pharmacy.orders")
	assert.True(t, cfg.shouldTrip(gobreaker.Counts{Requests: 3, ConsecutiveFailures: 3}))
	assert.False(t, cfg.shouldTrip(gobreaker.Counts{Requests: 20, TotalFailures: 5, ConsecutiveFailures: 3}))
	assert.True(t, cfg.shouldTrip(gobreaker.Counts{Requests: 20, TotalFailures: 10}))
}

func TestObserverSeesEveryOutcome(t *testing.T) {
	var seen []string
	cfg := DefaultConfig("pharmacy.orders")
	cfg.Timeout = time.Hour
	s := NewSet(func(string) Config { return cfg }, func(breaker, outcome string) {
		seen = append(seen, breaker+":"+outcome)
	}, nil)
	cb := s.For("pharmacy.orders")

	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
	for i := 0; i < int(cfg.FailureThreshold); i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error { return errors.New("broker down") })
	}
	_ = cb.Execute(context.Background(), func(context.Context) error { return nil })

	assert.Equal(t, []string{
		"pharmacy.orders:ok",
		"pharmacy.orders:failed",
		"pharmacy.orders:failed",
		"pharmacy.orders:failed",
		"pharmacy.orders:rejected",
	}, seen)
}
