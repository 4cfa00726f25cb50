// Package types defines the shared types used across all Sonde packages.
//
// These types form the lingua franca between the transcription boundary, the
// turn orchestrator, and the LLM providers. They are intentionally minimal —
// each package defines its own domain types, but cross-cutting data structures
// live here to avoid circular imports.
package types

import "time"

// Transcript represents a speech-to-text result delivered by the upstream
// transcriber. Both partial (interim) and final transcripts use this type;
// only final transcripts with non-empty trimmed text trigger a turn.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or partial
	// (live, possibly-revised) transcript.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). May be zero if
	// the transcriber does not report confidence.
	Confidence float64

	// Timestamp marks when the utterance started, relative to session start.
	Timestamp time.Duration
}

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsJSONOutput indicates the model honours a JSON-object response
	// format request. The extraction stage relies on this.
	SupportsJSONOutput bool

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool
}
