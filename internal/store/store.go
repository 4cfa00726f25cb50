// Package store persists finished interviews: the structured form data a
// session accumulated, its transcript, and the completion flag.
//
// The conversation core itself stays persistence-free; the session job saves
// an [Interview] once at teardown.
package store

import (
	"context"
	"time"

	"github.com/sondelabs/sonde/internal/session"
	"github.com/sondelabs/sonde/pkg/forms"
)

// Interview is the durable record of one finished voice session.
type Interview struct {
	// ID is the interview's UUID. Left empty, Save assigns one.
	ID string

	// SessionID is the control-server session this interview ran under.
	SessionID string

	// Mode is the session mode the forms were collected in.
	Mode forms.Mode

	// AccountID, ProjectID, and UserID come from the session bootstrap
	// payload and scope the interview to its tenant.
	AccountID string
	ProjectID string
	UserID    string

	// Data is the final mode-specific form struct
	// (forms.DiscoveryData or forms.PostSalesData).
	Data any

	// Transcript is the full ordered conversation.
	Transcript []session.Turn

	// Completed reports whether the conversation reached its explicit
	// completion signal.
	Completed bool

	// StartedAt and EndedAt bound the conversation.
	StartedAt time.Time
	EndedAt   time.Time
}

// Store persists interviews. Implementations must be safe for concurrent use.
type Store interface {
	// Save writes the interview and returns its id, assigning a fresh UUID
	// when iv.ID is empty.
	Save(ctx context.Context, iv Interview) (string, error)

	// Get loads one interview by id.
	Get(ctx context.Context, id string) (*Interview, error)
}
