// Package events defines the one-way message channel from the session core to
// the room UI.
//
// Events are a tagged union discriminated by the Type field. The wire field
// names are a compatibility contract with the client UI and must not change:
// downstream consumers render events incrementally in arrival order, so
// publishers must also preserve the emission order chosen by the turn
// orchestrator.
package events

import "time"

// Event type discriminators.
const (
	// TypeTurn echoes a finalized user utterance or an assistant reply.
	TypeTurn = "turn"

	// TypeFormUpdate carries the merged mode-specific form data after an
	// extraction delta was integrated.
	TypeFormUpdate = "form_update"

	// TypeSummary carries the completion flag and the recomputed
	// missing-field list after each turn.
	TypeSummary = "summary"

	// TypeSession announces the interview this session is attached to.
	TypeSession = "session"
)

// Event is the interface implemented by all outbound messages.
type Event interface {
	// EventType returns the Type discriminator of the message.
	EventType() string
}

// TurnEvent echoes one transcript entry to the room.
type TurnEvent struct {
	Type      string    `json:"type"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurnEvent builds a TurnEvent stamped with now.
func NewTurnEvent(role, text string, now time.Time) TurnEvent {
	return TurnEvent{Type: TypeTurn, Role: role, Text: text, Timestamp: now}
}

func (e TurnEvent) EventType() string { return TypeTurn }

// FormUpdateEvent carries the full merged form data for the session mode.
// Data is the mode-specific struct (forms.DiscoveryData or forms.PostSalesData).
type FormUpdateEvent struct {
	Type string `json:"type"`
	Mode string `json:"mode"`
	Data any    `json:"data"`
}

// NewFormUpdateEvent builds a FormUpdateEvent for the given mode and data.
func NewFormUpdateEvent(mode string, data any) FormUpdateEvent {
	return FormUpdateEvent{Type: TypeFormUpdate, Mode: mode, Data: data}
}

func (e FormUpdateEvent) EventType() string { return TypeFormUpdate }

// SummaryEvent carries the completion flag and missing-field list.
type SummaryEvent struct {
	Type          string   `json:"type"`
	Completed     bool     `json:"completed"`
	MissingFields []string `json:"missingFields"`
}

// NewSummaryEvent builds a SummaryEvent. missing must never be nil so the
// wire form is always a JSON array.
func NewSummaryEvent(completed bool, missing []string) SummaryEvent {
	if missing == nil {
		missing = []string{}
	}
	return SummaryEvent{Type: TypeSummary, Completed: completed, MissingFields: missing}
}

func (e SummaryEvent) EventType() string { return TypeSummary }

// SessionEvent announces the interview id a session is recording into.
type SessionEvent struct {
	Type        string `json:"type"`
	InterviewID string `json:"interviewId"`
}

// NewSessionEvent builds a SessionEvent for the given interview id.
func NewSessionEvent(interviewID string) SessionEvent {
	return SessionEvent{Type: TypeSession, InterviewID: interviewID}
}

func (e SessionEvent) EventType() string { return TypeSession }
