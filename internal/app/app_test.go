package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sondelabs/sonde/internal/config"
	extractmock "github.com/sondelabs/sonde/internal/extract/mock"
	"github.com/sondelabs/sonde/internal/observe"
	storemock "github.com/sondelabs/sonde/internal/store/mock"
	"github.com/sondelabs/sonde/pkg/provider/llm"
	llmmock "github.com/sondelabs/sonde/pkg/provider/llm/mock"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func baseAppOptions(t *testing.T) []Option {
	t.Helper()
	return []Option{
		WithExtractor(&extractmock.Extractor{}),
		WithConnector(&fakeConnector{}),
		WithStore(&storemock.Store{}),
		WithMetrics(testMetrics(t)),
	}
}

func TestNew_WithInjectedDependencies(t *testing.T) {
	a, err := New(context.Background(), &config.Config{}, nil, baseAppOptions(t)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Sessions() == nil {
		t.Error("Sessions() returned nil")
	}
	if checks := a.ReadyChecks(); len(checks) != 0 {
		t.Errorf("ReadyChecks with injected store = %v, want none", checks)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestNew_RequiresRegistryWhenNoExtractor(t *testing.T) {
	_, err := New(context.Background(), &config.Config{}, nil,
		WithConnector(&fakeConnector{}),
		WithStore(&storemock.Store{}),
		WithMetrics(testMetrics(t)),
	)
	if err == nil {
		t.Fatal("expected error when neither extractor nor registry is given")
	}
}

func TestNew_BuildsExtractorFromRegistry(t *testing.T) {
	registry := config.NewRegistry()
	var seen config.ProviderEntry
	registry.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		seen = entry
		return &llmmock.Provider{}, nil
	})

	cfg := &config.Config{}
	cfg.Extraction.Provider = config.ProviderEntry{Name: "openai", Model: "gpt-4o-mini"}
	cfg.Extraction.Temperature = 0.2

	a, err := New(context.Background(), cfg, registry,
		WithConnector(&fakeConnector{}),
		WithStore(&storemock.Store{}),
		WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if seen.Model != "gpt-4o-mini" {
		t.Errorf("registry factory saw entry %+v", seen)
	}
	_ = a.Shutdown(context.Background())
}

func TestNew_BuildsFallbackChain(t *testing.T) {
	registry := config.NewRegistry()
	var created []string
	factory := func(name string) func(config.ProviderEntry) (llm.Provider, error) {
		return func(config.ProviderEntry) (llm.Provider, error) {
			created = append(created, name)
			return &llmmock.Provider{}, nil
		}
	}
	registry.RegisterLLM("openai", factory("openai"))
	registry.RegisterLLM("ollama", factory("ollama"))

	cfg := &config.Config{}
	cfg.Extraction.Provider = config.ProviderEntry{Name: "openai", Model: "gpt-4o-mini"}
	cfg.Extraction.Fallbacks = []config.ProviderEntry{{Name: "ollama", Model: "llama3.1"}}

	a, err := New(context.Background(), cfg, registry,
		WithConnector(&fakeConnector{}),
		WithStore(&storemock.Store{}),
		WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(created) != 2 || created[0] != "openai" || created[1] != "ollama" {
		t.Errorf("providers created = %v, want [openai ollama]", created)
	}
	_ = a.Shutdown(context.Background())
}

func TestNew_RegistryFailurePropagates(t *testing.T) {
	registry := config.NewRegistry()
	registry.RegisterLLM("openai", func(config.ProviderEntry) (llm.Provider, error) {
		return nil, errors.New("missing api key")
	})

	cfg := &config.Config{}
	cfg.Extraction.Provider = config.ProviderEntry{Name: "openai"}

	_, err := New(context.Background(), cfg, registry,
		WithConnector(&fakeConnector{}),
		WithStore(&storemock.Store{}),
		WithMetrics(testMetrics(t)),
	)
	if err == nil {
		t.Fatal("expected provider construction error")
	}
}

func TestNew_ConnectorRequiresRoomsBaseURL(t *testing.T) {
	_, err := New(context.Background(), &config.Config{}, nil,
		WithExtractor(&extractmock.Extractor{}),
		WithStore(&storemock.Store{}),
		WithMetrics(testMetrics(t)),
	)
	if err == nil {
		t.Fatal("expected error when rooms.base_url is empty and no connector is injected")
	}
}

func TestRun_DrainsSessionsOnCancel(t *testing.T) {
	connector := &fakeConnector{}
	store := &storemock.Store{}
	a, err := New(context.Background(), &config.Config{}, nil,
		WithExtractor(&extractmock.Extractor{}),
		WithConnector(connector),
		WithStore(store),
		WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := a.Sessions().Start(context.Background(), startRequest()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if got := len(a.Sessions().Active()); got != 0 {
		t.Errorf("active sessions after Run exit = %d, want 0", got)
	}
	if got := len(store.Saved); got != 1 {
		t.Errorf("saved interviews = %d, want 1", got)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	a, err := New(context.Background(), &config.Config{}, nil, baseAppOptions(t)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}
