// Package mock provides a test double for the extract.Extractor interface.
package mock

import (
	"context"
	"sync"

	"github.com/sondelabs/sonde/internal/extract"
)

// Call records a single invocation of Extract.
type Call struct {
	// Req is the request passed to Extract.
	Req extract.Request
}

// Extractor is a mock implementation of extract.Extractor.
// Results are consumed in order; once exhausted, Extract returns (nil, nil).
// Set Err to make every call fail instead.
type Extractor struct {
	mu sync.Mutex

	// Results is the queue of results returned by successive Extract calls.
	Results []*extract.Result

	// Err, if non-nil, is returned from every Extract call.
	Err error

	// Calls records every invocation in order.
	Calls []Call

	next int
}

// Compile-time check that *Extractor satisfies [extract.Extractor].
var _ extract.Extractor = (*Extractor)(nil)

// Extract implements extract.Extractor.
func (e *Extractor) Extract(_ context.Context, req extract.Request) (*extract.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls = append(e.Calls, Call{Req: req})
	if e.Err != nil {
		return nil, e.Err
	}
	if e.next >= len(e.Results) {
		return nil, nil
	}
	r := e.Results[e.next]
	e.next++
	return r, nil
}
