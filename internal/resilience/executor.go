package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config configures an Executor.
type Config struct {
	// Name identifies the executor in logs and the health registry.
	Name string

	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration

	Breaker BreakerConfig

	// Permanent reports errors that are expected outcomes rather than backend
	// failures. They are returned immediately and do not count against the breaker.
	Permanent func(error) bool

	// Registry receives success and failure records. Optional.
	Registry *Registry
}

// DefaultConfig returns sensible defaults for a named executor.
func DefaultConfig(name string) Config {
	return Config{
		Name:            name,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Breaker:         DefaultBreakerConfig(),
	}
}

// Executor runs operations through a circuit breaker with exponential retry.
type Executor struct {
	cfg     Config
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewExecutor creates an Executor and registers it with cfg.Registry when set.
func NewExecutor(cfg Config) *Executor {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}
	if cfg.Permanent == nil {
		cfg.Permanent = func(error) bool { return false }
	}

	e := &Executor{cfg: cfg}
	e.breaker = newBreaker(cfg.Name, cfg.Breaker, func(err error) bool {
		return err == nil || cfg.Permanent(err) || errors.Is(err, context.Canceled)
	})

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, e)
	}
	return e
}

// Name returns the executor name.
func (e *Executor) Name() string {
	return e.cfg.Name
}

// Do runs op, retrying transient failures. Permanent errors and context
// cancellation end the retry loop and are returned unchanged.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.InitialInterval
	bo.MaxInterval = e.cfg.MaxInterval
	bo.MaxElapsedTime = 0 // bounded by WithMaxRetries

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, e.cfg.MaxRetries), ctx)

	operation := func() error {
		_, err := e.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, op(ctx)
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		case e.cfg.Permanent(err), ctx.Err() != nil:
			return backoff.Permanent(err)
		default:
			return err
		}
	}

	err := backoff.Retry(operation, policy)
	if e.cfg.Registry != nil {
		if err == nil || e.cfg.Permanent(err) {
			e.cfg.Registry.RecordSuccess(e.cfg.Name)
		} else {
			e.cfg.Registry.RecordFailure(e.cfg.Name, err)
		}
	}
	return err
}

// State returns the current breaker state.
func (e *Executor) State() gobreaker.State {
	return e.breaker.State()
}

// Counts returns the current breaker counts.
func (e *Executor) Counts() gobreaker.Counts {
	return e.breaker.Counts()
}
