package turn

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sondelabs/sonde/pkg/types"
)

// Runner serializes turn handling for one session. It consumes transcription
// events and runs each finalized, non-empty utterance through the
// orchestrator to completion before looking at the next event, so at most one
// turn is ever in flight per session.
type Runner struct {
	orch *Orchestrator
	log  *slog.Logger
}

// NewRunner creates a Runner for the given orchestrator. A nil logger falls
// back to [slog.Default].
func NewRunner(orch *Orchestrator, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{orch: orch, log: log}
}

// Run consumes transcripts until the channel closes or ctx is cancelled.
// Partial transcripts and utterances that trim to empty are skipped without
// touching session state. A failed turn is logged and the loop continues;
// only cancellation or channel close end the run.
func (r *Runner) Run(ctx context.Context, transcripts <-chan types.Transcript) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tr, ok := <-transcripts:
			if !ok {
				return nil
			}
			if !tr.IsFinal {
				continue
			}
			text := strings.TrimSpace(tr.Text)
			if text == "" {
				continue
			}
			if err := r.orch.HandleFinal(ctx, text); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.log.LogAttrs(ctx, slog.LevelError, "turn failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
