package anyllm

import (
	"testing"

	"github.com/sondelabs/sonde/pkg/provider/llm"
	"github.com/sondelabs/sonde/pkg/types"
)

// ── New ───────────────────────────────────────────────────────────────────────

// TestNew_EmptyProviderName checks that an empty provider name is rejected.
func TestNew_EmptyProviderName(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Fatal("expected error for empty provider name")
	}
}

// TestNew_EmptyModel checks that an empty model is rejected.
func TestNew_EmptyModel(t *testing.T) {
	if _, err := New("openai", ""); err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_UnsupportedProvider checks that unknown provider names are rejected.
func TestNew_UnsupportedProvider(t *testing.T) {
	if _, err := New("skynet", "t-800"); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

// ── buildParams ───────────────────────────────────────────────────────────────

// TestBuildParams_SystemPromptFirst checks that the system prompt is injected
// as the leading system-role message.
func TestBuildParams_SystemPromptFirst(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You extract structured notes.",
		Messages: []types.Message{
			{Role: "user", Content: "We spoke with Acme."},
		},
	})
	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].Content != "You extract structured notes." {
		t.Errorf("first message should be the system prompt, got %q", params.Messages[0].Content)
	}
	if params.Messages[1].Role != "user" {
		t.Errorf("expected user role, got %q", params.Messages[1].Role)
	}
}

// TestBuildParams_TemperatureAndMaxTokens checks optional parameter forwarding.
func TestBuildParams_TemperatureAndMaxTokens(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}
	params := p.buildParams(llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: "hi"}},
		Temperature: 0.1,
		MaxTokens:   512,
	})
	if params.Temperature == nil || *params.Temperature != 0.1 {
		t.Errorf("temperature not forwarded: %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 512 {
		t.Errorf("max tokens not forwarded: %v", params.MaxTokens)
	}
}

// TestBuildParams_ZeroesOmitted checks that zero temperature and max tokens are
// left to the provider defaults.
func TestBuildParams_ZeroesOmitted(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}
	params := p.buildParams(llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: "hi"}},
	})
	if params.Temperature != nil {
		t.Error("zero temperature should not be forwarded")
	}
	if params.MaxTokens != nil {
		t.Error("zero max tokens should not be forwarded")
	}
}

// ── CountTokens ───────────────────────────────────────────────────────────────

// TestCountTokens_Approximation checks the chars/4 heuristic with per-message overhead.
func TestCountTokens_Approximation(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}
	got, err := p.CountTokens([]types.Message{
		{Role: "user", Content: "12345678"}, // 2 tokens + 4 overhead
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 6 {
		t.Errorf("expected 6 tokens, got %d", got)
	}
}

// ── modelCapabilities ─────────────────────────────────────────────────────────

// TestModelCapabilities checks context windows across model families.
func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model       string
		wantContext int
	}{
		{"gpt-4o-mini", 128_000},
		{"gpt-4", 8_192},
		{"claude-3-5-sonnet-latest", 200_000},
		{"gemini-1.5-pro", 2_097_152},
		{"gemini-2.0-flash", 1_048_576},
		{"mystery-model", 128_000},
	}
	for _, tc := range tests {
		t.Run(tc.model, func(t *testing.T) {
			caps := modelCapabilities(tc.model)
			if caps.ContextWindow != tc.wantContext {
				t.Errorf("context window: want %d, got %d", tc.wantContext, caps.ContextWindow)
			}
		})
	}
}
