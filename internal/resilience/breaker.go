// Package resilience keeps the extraction stage answering while an LLM
// backend degrades. A [Breaker] shields each turn from a backend that keeps
// erroring or timing out, and a [Failover] chain routes the call to the
// first backend whose breaker admits it, so a provider outage costs latency
// rather than turns.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Do] while the breaker is refusing
// calls after repeated backend failures.
var ErrBreakerOpen = errors.New("resilience: breaker open")

// BreakerState is the operating mode of a [Breaker].
type BreakerState int

const (
	// BreakerClosed forwards every call.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects every call with [ErrBreakerOpen] until the
	// cooldown elapses.
	BreakerOpen

	// BreakerHalfOpen admits a small number of probe calls after the
	// cooldown. Consecutive probe successes close the breaker; a single
	// probe failure re-opens it.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes one [Breaker]. The zero value works: defaults are
// sized for extraction calls, where a user is waiting on the reply and a
// slow backend should be bypassed quickly.
type BreakerConfig struct {
	// Name labels the guarded backend in log output.
	Name string

	// FailureLimit is how many consecutive failures open the breaker.
	// Default: 3.
	FailureLimit int

	// Cooldown is how long an open breaker refuses calls before probing
	// the backend again. Default: 20s.
	Cooldown time.Duration

	// ProbeCount is how many consecutive probe successes close a
	// half-open breaker. Default: 2.
	ProbeCount int

	// Logger receives state-transition messages. Default: [slog.Default].
	Logger *slog.Logger
}

// Breaker is a three-state circuit breaker guarding one extraction backend.
type Breaker struct {
	name       string
	failLimit  int
	cooldown   time.Duration
	probeQuota int
	log        *slog.Logger

	mu         sync.Mutex
	state      BreakerState
	failStreak int
	openedAt   time.Time
	probesUsed int
	probeHits  int
}

// NewBreaker creates a [Breaker] from cfg, filling zero fields with the
// extraction-sized defaults documented on [BreakerConfig].
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureLimit <= 0 {
		cfg.FailureLimit = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 20 * time.Second
	}
	if cfg.ProbeCount <= 0 {
		cfg.ProbeCount = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Breaker{
		name:       cfg.Name,
		failLimit:  cfg.FailureLimit,
		cooldown:   cfg.Cooldown,
		probeQuota: cfg.ProbeCount,
		log:        cfg.Logger,
	}
}

// Do runs fn when the breaker admits the call and updates the breaker from
// its outcome. While open, Do returns [ErrBreakerOpen] without touching the
// backend; after the cooldown it lets a limited number of probes through.
func (b *Breaker) Do(fn func() error) error {
	probing, err := b.admit()
	if err != nil {
		return err
	}

	err = fn()
	b.settle(probing, err)
	return err
}

// admit decides whether the next call may proceed and reserves a probe slot
// when the breaker is half-open.
func (b *Breaker) admit() (probing bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if time.Since(b.openedAt) < b.cooldown {
			return false, ErrBreakerOpen
		}
		b.state = BreakerHalfOpen
		b.probesUsed = 0
		b.probeHits = 0
		b.log.Info("breaker probing backend", "backend", b.name)
	}

	if b.state == BreakerHalfOpen {
		if b.probesUsed >= b.probeQuota {
			// All probe slots are taken; their outcomes decide the state.
			return false, ErrBreakerOpen
		}
		b.probesUsed++
		return true, nil
	}
	return false, nil
}

// settle records the outcome of an admitted call.
func (b *Breaker) settle(probing bool, callErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if callErr == nil {
		if !probing {
			b.failStreak = 0
			return
		}
		b.probeHits++
		if b.probeHits >= b.probeQuota {
			b.state = BreakerClosed
			b.failStreak = 0
			b.log.Info("backend recovered, breaker closed", "backend", b.name)
		}
		return
	}

	if probing {
		// One failed probe is enough evidence the backend is still down.
		b.trip("probe failed")
		return
	}

	b.failStreak++
	if b.failStreak >= b.failLimit {
		b.trip("failure streak")
	}
}

// trip opens the breaker. Must be called with b.mu held.
func (b *Breaker) trip(reason string) {
	b.state = BreakerOpen
	b.openedAt = time.Now()
	b.failStreak = b.failLimit
	b.log.Warn("breaker opened, bypassing backend",
		"backend", b.name,
		"reason", reason,
		"cooldown", b.cooldown)
}

// State reports the current state. An open breaker whose cooldown has
// elapsed reports [BreakerHalfOpen]; the actual transition happens on the
// next [Breaker.Do].
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen && time.Since(b.openedAt) >= b.cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

// Reset forces the breaker back to [BreakerClosed] and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = BreakerClosed
	b.failStreak = 0
	b.probesUsed = 0
	b.probeHits = 0
	b.log.Info("breaker reset", "backend", b.name)
}
