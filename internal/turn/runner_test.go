package turn

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/sondelabs/sonde/internal/extract"
	"github.com/sondelabs/sonde/pkg/forms"
	"github.com/sondelabs/sonde/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunner_SkipsPartialAndEmptyTranscripts(t *testing.T) {
	f := newFixture(t, forms.ModeDiscovery)
	f.extractor.Results = []*extract.Result{{Response: "noted"}}
	runner := NewRunner(f.orch, discardLogger())

	transcripts := make(chan types.Transcript, 4)
	transcripts <- types.Transcript{Text: "partial gue", IsFinal: false}
	transcripts <- types.Transcript{Text: "   ", IsFinal: true}
	transcripts <- types.Transcript{Text: "the real utterance", IsFinal: true}
	close(transcripts)

	if err := runner.Run(context.Background(), transcripts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Only the final, non-empty transcript became a turn.
	if len(f.extractor.Calls) != 1 {
		t.Fatalf("extract calls = %d, want 1", len(f.extractor.Calls))
	}
	if got := f.extractor.Calls[0].Req.Latest; got != "the real utterance" {
		t.Errorf("latest = %q", got)
	}
}

func TestRunner_SerializesTurns(t *testing.T) {
	f := newFixture(t, forms.ModeDiscovery)
	f.extractor.Results = []*extract.Result{
		{Response: "first reply"},
		{Response: "second reply"},
	}
	runner := NewRunner(f.orch, discardLogger())

	transcripts := make(chan types.Transcript, 2)
	transcripts <- types.Transcript{Text: "first", IsFinal: true}
	transcripts <- types.Transcript{Text: "second", IsFinal: true}
	close(transcripts)

	if err := runner.Run(context.Background(), transcripts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	turns := f.state.Turns()
	wantTexts := []string{"first", "first reply", "second", "second reply"}
	gotTexts := make([]string, len(turns))
	for i, tr := range turns {
		gotTexts[i] = tr.Text
	}
	if !reflect.DeepEqual(gotTexts, wantTexts) {
		t.Errorf("transcript = %v, want %v", gotTexts, wantTexts)
	}
}

func TestRunner_ContinuesAfterFailedTurn(t *testing.T) {
	f := newFixture(t, forms.ModeDiscovery)
	// First turn fails at the publish boundary, second succeeds.
	f.publisher.Err = errors.New("socket gone")
	runner := NewRunner(f.orch, discardLogger())

	transcripts := make(chan types.Transcript, 1)
	transcripts <- types.Transcript{Text: "doomed turn", IsFinal: true}
	close(transcripts)

	if err := runner.Run(context.Background(), transcripts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	f.publisher.Err = nil
	f.extractor.Results = []*extract.Result{{Response: "back on track"}}
	transcripts = make(chan types.Transcript, 1)
	transcripts <- types.Transcript{Text: "second attempt", IsFinal: true}
	close(transcripts)

	if err := runner.Run(context.Background(), transcripts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.speaker.Spoken) != 1 || f.speaker.Spoken[0] != "back on track" {
		t.Errorf("spoken = %v", f.speaker.Spoken)
	}
}

func TestRunner_StopsOnCancel(t *testing.T) {
	f := newFixture(t, forms.ModeDiscovery)
	runner := NewRunner(f.orch, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	transcripts := make(chan types.Transcript)

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx, transcripts) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
