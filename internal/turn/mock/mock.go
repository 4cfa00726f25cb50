// Package mock provides hand-rolled test doubles for the turn package's sink
// interfaces.
package mock

import (
	"context"
	"sync"
)

// Speaker is a recording implementation of [turn.Speaker].
type Speaker struct {
	mu sync.Mutex

	// Err, when non-nil, is returned by every Speak call.
	Err error

	// Spoken records the text of every Speak call in order.
	Spoken []string
}

// Speak records text and returns the configured error.
func (s *Speaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Spoken = append(s.Spoken, text)
	return s.Err
}

// Texts returns a copy of everything spoken so far.
func (s *Speaker) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Spoken))
	copy(out, s.Spoken)
	return out
}

// Instructor is a recording implementation of [turn.Instructor].
type Instructor struct {
	mu sync.Mutex

	// Err, when non-nil, is returned by every UpdateInstructions call.
	Err error

	// Updates records every pushed instruction string in order.
	Updates []string
}

// UpdateInstructions records instructions and returns the configured error.
func (i *Instructor) UpdateInstructions(_ context.Context, instructions string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Updates = append(i.Updates, instructions)
	return i.Err
}

// Last returns the most recently pushed instruction string, or "" when no
// update has arrived yet.
func (i *Instructor) Last() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.Updates) == 0 {
		return ""
	}
	return i.Updates[len(i.Updates)-1]
}
