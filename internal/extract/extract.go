// Package extract turns free-form conversational text into partial updates
// against the session's field schema.
//
// The [LLMExtractor] sends the conversation history, the latest utterance, and
// the current structured-state snapshot to an [llm.Provider] along with a
// required-fields reminder. The model is instructed (via a conservative system
// prompt) to return a structured JSON response containing a spoken reply, an
// optional follow-up question, an optional mode-matching delta, and an
// optional completion signal.
//
// Malformed responses fail closed: the extractor returns (nil, nil) — nothing
// usable — and the turn proceeds with no state change. Only transport-level
// failures (network, provider, context cancellation) surface as errors.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sondelabs/sonde/internal/session"
	"github.com/sondelabs/sonde/pkg/forms"
	"github.com/sondelabs/sonde/pkg/provider/llm"
	"github.com/sondelabs/sonde/pkg/types"
)

const (
	defaultTemperature = 0.1

	// defaultMaxTokens bounds the extraction completion. The response is a
	// short reply plus a sparse delta; anything longer is model rambling.
	defaultMaxTokens = 1024
)

// systemPromptTemplate is the base system prompt. The required-fields
// reminder and the current-state snapshot are appended at call time so each
// request carries the live session context.
const systemPromptTemplate = `You are the structured note taker behind a live voice assistant conducting a business conversation.

Your task: from the conversation so far and the user's latest utterance, extract any new structured data and produce the assistant's next spoken reply.

Rules:
- Extract only information the user actually stated. Never invent field values.
- Return values for the %s shape only.
- Previously captured values are listed below; include a field in your delta only when the user added or corrected something.
- Set "completed" to true only when the user clearly wants to end the conversation or all data is confirmed.
- Keep "response" short and conversational; it will be spoken aloud.
- Use "followup" for a single concise question targeting a missing field, when appropriate.

%s

Current captured state:
%s

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "response": "<next spoken reply>",
  "followup": "<optional single follow-up question>",
  "%s": { ...partial delta with only changed fields... },
  "completed": <optional boolean>
}`

// Request carries everything the extraction model needs for one turn.
type Request struct {
	// History is the full conversation so far, excluding Latest.
	History []types.Message

	// Latest is the user's finalized utterance driving this turn.
	Latest string

	// Mode selects which delta shape the model may return.
	Mode forms.Mode

	// RequiredFields is the textual reminder of what must be collected,
	// from forms.RequiredFieldsDescription.
	RequiredFields string

	// Snapshot is the current mode-specific form data, JSON-encoded into the
	// system prompt so the model only reports changes.
	Snapshot any
}

// Result is one usable extraction outcome.
type Result struct {
	// Response is the assistant's next spoken reply. Always non-empty in a
	// usable result.
	Response string

	// Followup is an optional single follow-up question. When non-empty it
	// is preferred over Response as the spoken reply.
	Followup string

	// Update is the decoded partial delta plus completion signal. May be
	// zero when the turn carried no new data.
	Update session.StructuredUpdate
}

// Reply returns the text to speak: Followup when non-empty, else Response.
func (r *Result) Reply() string {
	if strings.TrimSpace(r.Followup) != "" {
		return r.Followup
	}
	return r.Response
}

// Extractor is the structured-extraction boundary of the turn orchestrator.
//
// A nil Result with a nil error means the model produced nothing usable; the
// caller must treat this as a recoverable no-op, not a failure.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*Result, error)
}

// LLMExtractor implements [Extractor] on top of an [llm.Provider].
// It is safe for concurrent use.
type LLMExtractor struct {
	llm         llm.Provider
	temperature float64
	maxTokens   int
}

// Compile-time check that *LLMExtractor satisfies [Extractor].
var _ Extractor = (*LLMExtractor)(nil)

// Option is a functional option for configuring an [LLMExtractor].
type Option func(*LLMExtractor)

// WithTemperature sets the LLM sampling temperature. Lower values produce
// more deterministic extraction. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(e *LLMExtractor) { e.temperature = temp }
}

// WithMaxTokens caps the extraction completion length. Default: 1024.
func WithMaxTokens(n int) Option {
	return func(e *LLMExtractor) { e.maxTokens = n }
}

// New returns an [LLMExtractor] backed by the given provider.
func New(provider llm.Provider, opts ...Option) *LLMExtractor {
	e := &LLMExtractor{
		llm:         provider,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract implements [Extractor].
//
// Transport errors (network, provider, cancellation) are returned as non-nil
// errors. A response that cannot be parsed, that lacks a spoken reply, or
// whose delta fails type validation yields (nil, nil): the turn proceeds with
// no state change. A delta addressed to the other mode is stripped from the
// result while the reply survives.
func (e *LLMExtractor) Extract(ctx context.Context, req Request) (*Result, error) {
	sysPrompt, err := buildSystemPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("extract: build prompt: %w", err)
	}

	messages := make([]types.Message, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, types.Message{Role: "user", Content: req.Latest})

	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: sysPrompt,
		Temperature:  e.temperature,
		MaxTokens:    e.maxTokens,
		Messages:     messages,
	})
	if err != nil {
		return nil, fmt.Errorf("extract: complete: %w", err)
	}
	if resp == nil {
		return nil, nil
	}

	return parseResponse(resp.Content, req.Mode), nil
}

// deltaKey returns the JSON key the model must use for its delta.
func deltaKey(mode forms.Mode) string {
	if mode == forms.ModePostSales {
		return "postSales"
	}
	return "discovery"
}

// buildSystemPrompt renders the system prompt with the required-fields
// reminder and the JSON-encoded state snapshot.
func buildSystemPrompt(req Request) (string, error) {
	snapshot, err := json.Marshal(req.Snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	key := deltaKey(req.Mode)
	return fmt.Sprintf(systemPromptTemplate, key, req.RequiredFields, snapshot, key), nil
}

// responseWire is the expected JSON envelope returned by the model. The delta
// portion is re-decoded through session.DecodeUpdate so type validation is
// shared with the merge layer.
type responseWire struct {
	Response string `json:"response"`
	Followup string `json:"followup"`
}

// parseResponse attempts to decode the model output. Bad JSON, a missing
// reply, or a type-mismatched delta yields nil. A delta for the wrong mode is
// dropped on its own; the spoken reply is still usable.
func parseResponse(content string, mode forms.Mode) *Result {
	cleaned := stripMarkdown(content)
	if cleaned == "" {
		return nil
	}

	var w responseWire
	if err := json.Unmarshal([]byte(cleaned), &w); err != nil {
		return nil
	}
	if strings.TrimSpace(w.Response) == "" {
		return nil
	}

	update, err := session.DecodeUpdate(json.RawMessage(cleaned))
	if err != nil {
		return nil
	}

	// A delta for the wrong mode never reaches the session. Only the delta
	// is discarded; the turn keeps its reply.
	switch mode {
	case forms.ModeDiscovery:
		update.PostSales = nil
	case forms.ModePostSales:
		update.Discovery = nil
	}

	return &Result{
		Response: w.Response,
		Followup: w.Followup,
		Update:   update,
	}
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models prepend and append to JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
