// Package app wires all Sonde subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run blocks until shutdown is requested, and Shutdown tears
// everything down in order. Session jobs themselves are owned by the
// [SessionManager] registry.
//
// For testing, inject mock implementations via functional options
// (WithExtractor, WithStore, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sondelabs/sonde/internal/config"
	"github.com/sondelabs/sonde/internal/extract"
	"github.com/sondelabs/sonde/internal/health"
	"github.com/sondelabs/sonde/internal/observe"
	"github.com/sondelabs/sonde/internal/resilience"
	"github.com/sondelabs/sonde/internal/store"
)

// stopAllTimeout bounds the drain of running sessions during Run's exit.
const stopAllTimeout = 15 * time.Second

// App owns all subsystem lifetimes for the Sonde server.
type App struct {
	cfg *config.Config

	// Subsystems, initialised in New, torn down in Shutdown.
	metrics    *observe.Metrics
	extractor  extract.Extractor
	connector  RoomConnector
	interviews store.Store
	pg         *store.PostgresStore // non-nil only when New created the store
	sessions   *SessionManager

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithExtractor injects an extractor instead of creating one from config.
func WithExtractor(e extract.Extractor) Option {
	return func(a *App) { a.extractor = e }
}

// WithStore injects an interview store instead of connecting to Postgres.
func WithStore(s store.Store) Option {
	return func(a *App) { a.interviews = s }
}

// WithConnector injects a room connector instead of the websocket bridge.
func WithConnector(c RoomConnector) Option {
	return func(a *App) { a.connector = c }
}

// WithMetrics injects a metrics instance instead of the global default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. The registry supplies
// LLM provider constructors (populated by main). Use Option functions to
// inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, registry *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initExtractor(registry); err != nil {
		return nil, fmt.Errorf("app: init extractor: %w", err)
	}
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	if err := a.initConnector(); err != nil {
		return nil, fmt.Errorf("app: init room connector: %w", err)
	}

	sessions, err := NewSessionManager(SessionManagerConfig{
		Extractor: a.extractor,
		Connector: a.connector,
		Store:     a.interviews,
		Metrics:   a.metrics,
		Logger:    slog.Default(),
	})
	if err != nil {
		return nil, err
	}
	a.sessions = sessions

	return a, nil
}

// initExtractor builds the structured-extraction client from config unless
// one was injected.
func (a *App) initExtractor(registry *config.Registry) error {
	if a.extractor != nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("provider registry is required when no extractor is injected")
	}

	provider, err := registry.CreateLLM(a.cfg.Extraction.Provider)
	if err != nil {
		return err
	}

	// Optional failover chain: each fallback provider gets its own breaker
	// so a flaky primary degrades turns instead of losing them.
	if fallbacks := a.cfg.Extraction.Fallbacks; len(fallbacks) > 0 {
		chain := resilience.NewFailoverProvider(a.cfg.Extraction.Provider.Name, provider, resilience.FailoverConfig{})
		for _, entry := range fallbacks {
			fb, err := registry.CreateLLM(entry)
			if err != nil {
				return fmt.Errorf("fallback provider %q: %w", entry.Name, err)
			}
			chain.Add(entry.Name, fb)
		}
		provider = chain
	}

	var opts []extract.Option
	if a.cfg.Extraction.Temperature != 0 {
		opts = append(opts, extract.WithTemperature(a.cfg.Extraction.Temperature))
	}
	if a.cfg.Extraction.MaxTokens != 0 {
		opts = append(opts, extract.WithMaxTokens(a.cfg.Extraction.MaxTokens))
	}
	a.extractor = extract.New(provider, opts...)
	return nil
}

// initStore connects the Postgres interview store unless one was injected or
// persistence is disabled by an empty DSN.
func (a *App) initStore(ctx context.Context) error {
	if a.interviews != nil {
		return nil
	}
	dsn := a.cfg.Store.PostgresDSN
	if dsn == "" {
		slog.Warn("no interview store configured; finished interviews will not be persisted")
		return nil
	}

	pg, err := store.NewPostgresStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.pg = pg
	a.interviews = pg
	a.closers = append(a.closers, func() error {
		pg.Close()
		return nil
	})
	return nil
}

// initConnector builds the websocket room connector unless one was injected.
func (a *App) initConnector() error {
	if a.connector != nil {
		return nil
	}
	if a.cfg.Rooms.BaseURL == "" {
		return fmt.Errorf("rooms.base_url is required when no connector is injected")
	}

	connector, err := NewWebsocketConnector(a.cfg.Rooms.BaseURL, a.cfg.Rooms.AuthToken, slog.Default())
	if err != nil {
		return err
	}
	a.connector = connector
	return nil
}

// Sessions returns the session registry for the control server's handlers.
func (a *App) Sessions() *SessionManager {
	return a.sessions
}

// ReadyChecks returns the readiness checkers for this app's dependencies.
func (a *App) ReadyChecks() []health.Checker {
	var checks []health.Checker
	if a.pg != nil {
		checks = append(checks, health.Checker{
			Name:  "database",
			Check: a.pg.Ping,
		})
	}
	return checks
}

// Run blocks until ctx is cancelled, then drains all running sessions so
// their interviews are persisted before the process exits.
func (a *App) Run(ctx context.Context) error {
	slog.Info("app running")
	<-ctx.Done()

	drainCtx, cancel := context.WithTimeout(context.Background(), stopAllTimeout)
	defer cancel()
	if err := a.sessions.StopAll(drainCtx); err != nil {
		slog.Warn("session drain incomplete", "err", err)
	}

	return ctx.Err()
}

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
