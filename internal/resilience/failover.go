package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoBackend is returned when every backend in a [Failover] chain either
// failed or had an open breaker.
var ErrNoBackend = errors.New("resilience: every backend failed")

// FailoverConfig configures a [Failover] chain. Breaker is the per-backend
// breaker template; its Name field is replaced with each backend's name.
type FailoverConfig struct {
	Breaker BreakerConfig
	Logger  *slog.Logger
}

// backend pairs one chain entry with the breaker that guards it.
type backend[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Failover holds a ranked chain of interchangeable backends. Calls go to the
// first backend whose breaker admits them; a failure or an open breaker
// moves the call down the chain. The chain is fixed after setup, so no
// locking is needed around it; per-backend state lives in the breakers.
type Failover[T any] struct {
	chain []backend[T]
	cfg   FailoverConfig
	log   *slog.Logger
}

// NewFailover creates a chain with primary as its preferred backend. Further
// backends are appended with [Failover.Add] and tried in that order.
func NewFailover[T any](primaryName string, primary T, cfg FailoverConfig) *Failover[T] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	f := &Failover[T]{cfg: cfg, log: cfg.Logger}
	f.Add(primaryName, primary)
	return f
}

// Add appends a backend to the end of the chain.
func (f *Failover[T]) Add(name string, value T) {
	bc := f.cfg.Breaker
	bc.Name = name
	if bc.Logger == nil {
		bc.Logger = f.log
	}
	f.chain = append(f.chain, backend[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(bc),
	})
}

// Primary returns the first backend in the chain.
func (f *Failover[T]) Primary() T {
	return f.chain[0].value
}

// Do runs fn against the chain until one backend succeeds. It returns
// [ErrNoBackend] wrapped with the last error when the whole chain fails.
func (f *Failover[T]) Do(fn func(T) error) error {
	_, err := DoWith(f, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// DoWith runs fn against the chain until one backend succeeds, returning its
// result. It is a package-level function because Go methods cannot introduce
// type parameters.
func DoWith[T, R any](f *Failover[T], fn func(T) (R, error)) (R, error) {
	var lastErr error
	for i := range f.chain {
		b := &f.chain[i]

		var out R
		err := b.breaker.Do(func() error {
			var callErr error
			out, callErr = fn(b.value)
			return callErr
		})
		if err == nil {
			return out, nil
		}
		lastErr = err

		if errors.Is(err, ErrBreakerOpen) {
			f.log.Debug("backend skipped, breaker open", "backend", b.name)
		} else {
			f.log.Warn("backend failed, trying next",
				"backend", b.name, "error", err)
		}
	}

	var zero R
	return zero, fmt.Errorf("%w: %v", ErrNoBackend, lastErr)
}
