package openai

import (
	"testing"

	"github.com/sondelabs/sonde/pkg/provider/llm"
	"github.com/sondelabs/sonde/pkg/types"
)

func llmRequest() llm.CompletionRequest {
	return llm.CompletionRequest{
		SystemPrompt: "You are a structured note taker.",
		Temperature:  0.1,
		Messages: []types.Message{
			{Role: "user", Content: "We spoke with Acme."},
			{Role: "assistant", Content: "Got it."},
		},
	}
}

// TestConvertMessage_System checks that system role is converted correctly.
func TestConvertMessage_System(t *testing.T) {
	msg := types.Message{Role: "system", Content: "You are helpful."}
	param, err := convertMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfSystem == nil {
		t.Fatal("expected OfSystem to be set")
	}
}

// TestConvertMessage_User checks that user role is converted correctly.
func TestConvertMessage_User(t *testing.T) {
	msg := types.Message{Role: "user", Content: "Hello!"}
	param, err := convertMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfUser == nil {
		t.Fatal("expected OfUser to be set")
	}
}

// TestConvertMessage_Assistant checks that assistant role is converted.
func TestConvertMessage_Assistant(t *testing.T) {
	msg := types.Message{Role: "assistant", Content: "Hi there!"}
	param, err := convertMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfAssistant == nil {
		t.Fatal("expected OfAssistant to be set")
	}
}

// TestConvertMessage_UnknownRole checks that unrecognised roles are rejected.
func TestConvertMessage_UnknownRole(t *testing.T) {
	msg := types.Message{Role: "narrator", Content: "Meanwhile..."}
	if _, err := convertMessage(msg); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

// TestNew_Validation checks constructor argument validation.
func TestNew_Validation(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Fatal("expected error for empty apiKey")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestModelCapabilities checks context windows for known model prefixes.
func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model       string
		wantContext int
	}{
		{"gpt-4o-mini", 128_000},
		{"gpt-4o", 128_000},
		{"gpt-4", 8_192},
		{"gpt-3.5-turbo", 16_385},
		{"o1", 200_000},
		{"some-future-model", 128_000},
	}
	for _, tc := range tests {
		t.Run(tc.model, func(t *testing.T) {
			caps := modelCapabilities(tc.model)
			if caps.ContextWindow != tc.wantContext {
				t.Errorf("context window: want %d, got %d", tc.wantContext, caps.ContextWindow)
			}
			if !caps.SupportsStreaming {
				t.Error("all OpenAI chat models support streaming")
			}
		})
	}
}

// TestBuildParams checks request conversion including system prompt injection.
func TestBuildParams(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}
	req := llmRequest()
	params, err := p.buildParams(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// System prompt + two history messages.
	if len(params.Messages) != 3 {
		t.Fatalf("want 3 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Fatal("first message should be the system prompt")
	}
	if !params.Temperature.Valid() || params.Temperature.Value != 0.1 {
		t.Fatalf("temperature not forwarded: %+v", params.Temperature)
	}
}
