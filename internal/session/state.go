// Package session owns the per-conversation aggregate of a Sonde voice
// session: the structured form data accumulated so far, the append-only
// conversation transcript, and the completion flag.
//
// A [State] is created once at conversation start, mutated exclusively through
// [State.AppendTurn] and [State.Integrate] by the single turn-processing flow
// that owns it, and discarded when the session ends. It is never shared across
// sessions, so it carries no locking; isolation comes from per-session
// ownership.
package session

import (
	"fmt"
	"strings"

	"github.com/sondelabs/sonde/pkg/forms"
)

// Turn roles for transcript entries.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one transcript entry: a user utterance or an assistant reply.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// State is the aggregate root for one live conversation.
type State struct {
	mode      forms.Mode
	discovery forms.DiscoveryData
	postSales forms.PostSalesData
	turns     []Turn
	completed bool
}

// New creates a State for the given mode with empty field sets.
// The mode is immutable for the session lifetime.
func New(mode forms.Mode) (*State, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("session: invalid mode %q", mode)
	}
	return &State{
		mode:      mode,
		discovery: forms.NewDiscoveryData(),
		postSales: forms.NewPostSalesData(),
	}, nil
}

// Mode returns the session mode.
func (s *State) Mode() forms.Mode {
	return s.mode
}

// Completed reports whether the extraction step has explicitly signalled the
// conversation is done. It is never inferred from field population: the model
// may want to confirm ambiguous answers even when everything looks filled.
func (s *State) Completed() bool {
	return s.completed
}

// AppendTurn appends a transcript entry. Callers are responsible for only
// appending finalized transcripts; empty or whitespace-only text is rejected.
func (s *State) AppendTurn(role, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("session: refusing to append empty %s turn", role)
	}
	s.turns = append(s.turns, Turn{Role: role, Text: text})
	return nil
}

// Turns returns a copy of the conversation transcript in order.
func (s *State) Turns() []Turn {
	return append([]Turn{}, s.turns...)
}

// Discovery returns a deep copy of the current discovery data.
func (s *State) Discovery() forms.DiscoveryData {
	return s.discovery.Clone()
}

// PostSales returns a deep copy of the current post-sales data.
func (s *State) PostSales() forms.PostSalesData {
	return s.postSales.Clone()
}

// ApplyDiscovery merges a partial discovery delta into the session data.
func (s *State) ApplyDiscovery(delta forms.DiscoveryData) {
	forms.MergeDiscovery(&s.discovery, delta)
}

// ApplyPostSales merges a partial post-sales delta into the session data.
func (s *State) ApplyPostSales(delta forms.PostSalesData) {
	forms.MergePostSales(&s.postSales, delta)
}

// MissingFields returns the required fields still unset for the session mode,
// in declaration order.
func (s *State) MissingFields() []string {
	return forms.MissingFields(s.mode, s.discovery, s.postSales)
}
