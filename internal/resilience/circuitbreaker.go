// Package resilience guards calls into user-registered Method callbacks
// (the Call service, OPC UA Part 4) behind a circuit breaker keyed by method
// NodeId, so a single wedged callback trips its own breaker instead of
// stalling the dispatcher's worker pool for every caller.
package resilience

import (
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config tunes one method callback's breaker; zero values fall back to
// the gobreaker defaults.
type Config struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	MinRequests uint32
	FailureRate float64
}

// Registry hands out one gobreaker.CircuitBreaker per method, created
// lazily on first call, matching getCircuitBreaker's per-device lookup
// around a wedged callback.
type Registry struct {
	cfg      Config
	logger   *zap.Logger
	breakers sync.Map // map[string]*gobreaker.CircuitBreaker

	trips  metricCounter
	resets metricCounter
}

// metricCounter is satisfied by internal/metrics.Counter; kept as a small
// interface here so resilience doesn't import metrics directly.
type metricCounter interface {
	Inc()
}

func NewRegistry(cfg Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{cfg: cfg, logger: logger}
}

// SetCounters wires Prometheus counters for breaker state transitions;
// optional, no-op until called.
func (r *Registry) SetCounters(trips, resets metricCounter) {
	r.trips, r.resets = trips, resets
}

func (r *Registry) breakerFor(method string) *gobreaker.CircuitBreaker {
	if b, ok := r.breakers.Load(method); ok {
		return b.(*gobreaker.CircuitBreaker)
	}
	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("method-%s", method),
		MaxRequests: r.cfg.MaxRequests,
		Interval:    r.cfg.Interval,
		Timeout:     r.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < r.cfg.MinRequests {
				return false
			}
			failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRate >= r.cfg.FailureRate
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn("circuit breaker state changed",
				zap.String("method", method),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			switch to {
			case gobreaker.StateOpen:
				if r.trips != nil {
					r.trips.Inc()
				}
			case gobreaker.StateClosed:
				if r.resets != nil {
					r.resets.Inc()
				}
			}
		},
	}
	b := gobreaker.NewCircuitBreaker(settings)
	actual, _ := r.breakers.LoadOrStore(method, b)
	return actual.(*gobreaker.CircuitBreaker)
}

// Call executes fn through the breaker for the given method NodeId
// string form. Returns gobreaker.ErrOpenState / ErrTooManyRequests
// when the breaker rejects the call without invoking fn.
func (r *Registry) Call(method string, fn func() (interface{}, error)) (interface{}, error) {
	return r.breakerFor(method).Execute(fn)
}

// State reports a method's current breaker state for diagnostics.
func (r *Registry) State(method string) (gobreaker.State, bool) {
	b, ok := r.breakers.Load(method)
	if !ok {
		return gobreaker.StateClosed, false
	}
	return b.(*gobreaker.CircuitBreaker).State(), true
}
