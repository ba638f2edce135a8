// Package circuitbreaker guards calls to the event broker. Each topic gets
// its own sony/gobreaker instance so one unhealthy topic does not stall the
// others.
package circuitbreaker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// State is a breaker's position
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Call outcomes passed to a CallObserver
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// CallObserver is told the outcome of every call through a breaker.
type CallObserver func(breaker, outcome string)

// Config tunes one breaker.
type Config struct {
	Name string
	// Probes admitted while half-open.
	MaxRequests uint32
	// Closed-state counts reset every Interval.
	Interval time.Duration
	// Cool-down before an open breaker lets a probe through.
	Timeout time.Duration
	// Trip after this many consecutive failures while traffic is light.
	FailureThreshold uint32
	// Trip at this failure ratio once MinRequests calls have been seen.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultConfig suits a broker topic: trip fast so a dead broker does not
// pile retries into the publish queue.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 3,
		FailureRatio:     0.5,
		MinRequests:      10,
	}
}

func (c Config) shouldTrip(counts gobreaker.Counts) bool {
	if counts.Requests >= c.MinRequests {
		return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
	}
	return counts.ConsecutiveFailures >= c.FailureThreshold
}

// IsRejected reports whether err means the breaker refused the call.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Breaker is a traced, observed gobreaker.
type Breaker struct {
	name    string
	gb      *gobreaker.CircuitBreaker
	observe CallObserver
	tracer  trace.Tracer
	logger  *zap.Logger
}

// New builds a breaker from cfg. observe may be nil.
func New(cfg Config, observe CallObserver, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observe == nil {
		observe = func(string, string) {}
	}

	b := &Breaker{
		name:    cfg.Name,
		observe: observe,
		tracer:  otel.Tracer("pharmasim/circuitbreaker"),
		logger:  logger.With(zap.String("breaker", cfg.Name)),
	}
	b.gb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: cfg.shouldTrip,
		OnStateChange: func(_ string, from, to gobreaker.State) {
			b.logger.Warn("circuit breaker state changed",
				zap.String("from", string(fromGobreaker(from))),
				zap.String("to", string(fromGobreaker(to))))
		},
		// A caller giving up is not a broker failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return b
}

// Name returns the breaker's name
func (b *Breaker) Name() string { return b.name }

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, span := b.tracer.Start(ctx, "breaker.execute", trace.WithAttributes(
		attribute.String("breaker.name", b.name),
		attribute.String("breaker.state", string(b.GetState())),
	))
	defer span.End()

	_, err := b.gb.Execute(func() (any, error) { return nil, fn(ctx) })

	outcome := OutcomeOK
	switch {
	case err == nil:
	case IsRejected(err):
		outcome = OutcomeRejected
		span.RecordError(err)
	default:
		outcome = OutcomeFailed
		span.RecordError(err)
	}
	span.SetAttributes(attribute.String("breaker.outcome", outcome))
	b.observe(b.name, outcome)
	return err
}

// GetState returns the breaker's current position
func (b *Breaker) GetState() State {
	return fromGobreaker(b.gb.State())
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Status is a point-in-time view of one breaker
type Status struct {
	Name     string
	State    State
	Requests uint32
	Failures uint32
}

// Set hands out one breaker per topic, creating them on first use.
type Set struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	configFn func(name string) Config
	observe  CallObserver
	logger   *zap.Logger
}

// NewSet creates an empty set. configFn supplies the config for breakers
// created on demand; nil means DefaultConfig. observe is shared by every
// breaker in the set and may be nil.
func NewSet(configFn func(name string) Config, observe CallObserver, logger *zap.Logger) *Set {
	if configFn == nil {
		configFn = DefaultConfig
	}
	return &Set{
		breakers: make(map[string]*Breaker),
		configFn: configFn,
		observe:  observe,
		logger:   logger,
	}
}

// For returns the breaker named name.
func (s *Set) For(name string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.breakers[name]; ok {
		return b
	}
	cfg := s.configFn(name)
	cfg.Name = name
	b := New(cfg, s.observe, s.logger)
	s.breakers[name] = b
	return b
}

// Statuses lists every breaker in the set, sorted by name.
func (s *Set) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Status, 0, len(s.breakers))
	for name, b := range s.breakers {
		counts := b.gb.Counts()
		out = append(out, Status{
			Name:     name,
			State:    b.GetState(),
			Requests: counts.Requests,
			Failures: counts.TotalFailures,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
