package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sondelabs/sonde/pkg/forms"
)

// ErrModeMismatch is returned by [State.Integrate] when an update carries a
// delta for the shape that does not match the session mode.
var ErrModeMismatch = errors.New("session: update delta does not match session mode")

// StructuredUpdate is a transient partial delta produced by one extraction
// call. At most one of Discovery and PostSales is expected to be set; the
// update is consumed immediately by [State.Integrate] and never persisted.
type StructuredUpdate struct {
	Discovery *forms.DiscoveryData
	PostSales *forms.PostSalesData
	Completed *bool
}

// IsZero reports whether the update carries nothing to apply.
func (u StructuredUpdate) IsZero() bool {
	return u.Discovery == nil && u.PostSales == nil && u.Completed == nil
}

// updateWire mirrors StructuredUpdate on the wire. Decoding through the typed
// struct is the validation: a wrong-typed value for any known field fails the
// whole decode, so nothing partial ever reaches the merge layer. Unknown
// fields are ignored — updates are cumulative and only known fields matter.
type updateWire struct {
	Discovery *forms.DiscoveryData `json:"discovery"`
	PostSales *forms.PostSalesData `json:"postSales"`
	Completed *bool                `json:"completed"`
}

// DecodeUpdate parses raw JSON into a [StructuredUpdate], failing closed on
// any type mismatch.
func DecodeUpdate(raw json.RawMessage) (StructuredUpdate, error) {
	var w updateWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return StructuredUpdate{}, fmt.Errorf("session: decode update: %w", err)
	}
	return StructuredUpdate{
		Discovery: w.Discovery,
		PostSales: w.PostSales,
		Completed: w.Completed,
	}, nil
}

// Integrate applies an extraction delta to the session state. It is the single
// entry point the turn orchestrator calls after an extraction.
//
// Integration is atomic: validation happens before any field is written, so a
// rejected update leaves discovery, postSales, and completed untouched. A delta
// for the wrong mode is a validation failure ([ErrModeMismatch]), not a silent
// drop — the extraction layer is expected to have filtered it already.
//
// Completed is set only when the update carries an explicit true; it is never
// derived from field population, and a later update cannot un-complete the
// session.
func (s *State) Integrate(update StructuredUpdate) error {
	switch s.mode {
	case forms.ModeDiscovery:
		if update.PostSales != nil {
			return ErrModeMismatch
		}
	case forms.ModePostSales:
		if update.Discovery != nil {
			return ErrModeMismatch
		}
	}

	if update.Discovery != nil {
		forms.MergeDiscovery(&s.discovery, *update.Discovery)
	}
	if update.PostSales != nil {
		forms.MergePostSales(&s.postSales, *update.PostSales)
	}
	if update.Completed != nil && *update.Completed {
		s.completed = true
	}
	return nil
}
