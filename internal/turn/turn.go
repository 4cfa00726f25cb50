// Package turn drives the per-utterance conversation loop of a Sonde
// session: it records finalized user utterances, runs structured extraction,
// integrates the resulting delta into session state, emits the outbound wire
// events in their contractual order, and pushes refreshed instructions to the
// live speech model.
//
// One [Orchestrator] owns exactly one [session.State]; turns for the same
// session are serialized by [Runner], so the orchestrator performs no locking
// of its own.
package turn

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sondelabs/sonde/internal/events"
	"github.com/sondelabs/sonde/internal/extract"
	"github.com/sondelabs/sonde/internal/observe"
	"github.com/sondelabs/sonde/internal/prompt"
	"github.com/sondelabs/sonde/internal/session"
	"github.com/sondelabs/sonde/pkg/forms"
	"github.com/sondelabs/sonde/pkg/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Turn outcome labels recorded to [observe.Metrics.TurnsProcessed].
const (
	outcomeCompleted = "completed"
	outcomeNoop      = "noop"
	outcomeAbandoned = "abandoned"
)

// Speaker vocalizes the assistant's selected reply through the live speech
// pipeline.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Instructor receives the refreshed system instruction for the live speech
// model after each turn, so the next generation is grounded in the latest
// form state.
type Instructor interface {
	UpdateInstructions(ctx context.Context, instructions string) error
}

// Orchestrator handles one finalized user utterance at a time for a single
// session. It is not safe for concurrent use; drive it through a [Runner].
type Orchestrator struct {
	state      *session.State
	extractor  extract.Extractor
	publisher  events.Publisher
	speaker    Speaker
	instructor Instructor

	metrics *observe.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// Option configures an [Orchestrator] during construction.
type Option func(*Orchestrator)

// WithLogger sets the structured logger. The default is [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithMetrics sets the metrics instance. The default is
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides the time source used for turn-event timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator for the given session state and collaborators.
// All five are required.
func New(state *session.State, ex extract.Extractor, pub events.Publisher, sp Speaker, in Instructor, opts ...Option) (*Orchestrator, error) {
	if state == nil {
		return nil, fmt.Errorf("turn: session state is required")
	}
	if ex == nil {
		return nil, fmt.Errorf("turn: extractor is required")
	}
	if pub == nil {
		return nil, fmt.Errorf("turn: event publisher is required")
	}
	if sp == nil {
		return nil, fmt.Errorf("turn: speaker is required")
	}
	if in == nil {
		return nil, fmt.Errorf("turn: instructor is required")
	}

	o := &Orchestrator{
		state:      state,
		extractor:  ex,
		publisher:  pub,
		speaker:    sp,
		instructor: in,
		log:        slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o, nil
}

// HandleFinal processes one finalized user utterance end to end:
//
//  1. Append the utterance to the transcript.
//  2. Emit a "turn" event echoing it.
//  3. Build the extraction request from history, mode, required fields, and
//     the current form snapshot.
//  4. Run structured extraction.
//  5. Nothing usable → the turn ends with no state change and no reply.
//  6. Integrate the delta; emit "form_update" (when a delta was present) then
//     "summary".
//  7. Speak the selected reply and echo it as an assistant "turn" event.
//  8. Push a refreshed system instruction to the speech model.
//
// Extraction failures and integration rejections abandon the turn: they are
// logged, the state keeps only the already-recorded user turn, and no reply
// is produced. The session stays usable for the next utterance. Context
// cancellation after the extraction call suppresses all mutation and
// emission, since the room may already be gone.
func (o *Orchestrator) HandleFinal(ctx context.Context, text string) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("turn: %w", err)
	}

	ctx, span := observe.StartSpan(ctx, "turn.handle_final",
		trace.WithAttributes(attribute.String("session.mode", string(o.state.Mode()))),
	)
	defer span.End()

	log := o.log
	if cid := observe.CorrelationID(ctx); cid != "" {
		log = log.With(slog.String("trace_id", cid))
	}

	start := o.now()
	outcome := outcomeAbandoned
	defer func() {
		span.SetAttributes(attribute.String("turn.outcome", outcome))
		o.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
		o.metrics.RecordTurn(ctx, outcome)
	}()

	// History must not include the utterance driving this turn.
	history := historyMessages(o.state.Turns())

	// 1. Record the user's utterance.
	if err := o.state.AppendTurn(session.RoleUser, text); err != nil {
		return fmt.Errorf("turn: record user turn: %w", err)
	}

	// 2. Echo it to the room.
	if err := o.publish(ctx, events.NewTurnEvent(session.RoleUser, text, start)); err != nil {
		return err
	}

	// 3+4. Structured extraction.
	res, err := o.runExtraction(ctx, history, text)
	if err != nil {
		// Room teardown mid-flight: discard whatever extraction produced.
		if ctx.Err() != nil {
			return fmt.Errorf("turn: %w", ctx.Err())
		}
		log.LogAttrs(ctx, slog.LevelWarn, "extraction failed, abandoning turn",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("turn: %w", ctxErr)
	}

	// 5. Nothing usable is a recoverable no-op.
	if res == nil {
		log.LogAttrs(ctx, slog.LevelDebug, "extraction produced nothing usable")
		outcome = outcomeNoop
		return nil
	}

	// 6. Integrate the delta, then form_update before summary.
	hadDelta := res.Update.Discovery != nil || res.Update.PostSales != nil
	if err := o.state.Integrate(res.Update); err != nil {
		log.LogAttrs(ctx, slog.LevelWarn, "update rejected, abandoning turn",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if hadDelta {
		if err := o.publish(ctx, events.NewFormUpdateEvent(string(o.state.Mode()), o.formData())); err != nil {
			return err
		}
	}
	if err := o.publish(ctx, events.NewSummaryEvent(o.state.Completed(), o.state.MissingFields())); err != nil {
		return err
	}

	// 7. Speak the reply and echo it.
	if reply := strings.TrimSpace(res.Reply()); reply != "" {
		if err := o.state.AppendTurn(session.RoleAssistant, reply); err != nil {
			return fmt.Errorf("turn: record assistant turn: %w", err)
		}
		if err := o.publish(ctx, events.NewTurnEvent(session.RoleAssistant, reply, o.now())); err != nil {
			return err
		}
		if err := o.speaker.Speak(ctx, reply); err != nil {
			return fmt.Errorf("turn: speak reply: %w", err)
		}
	}

	// 8. Refresh the live system instruction.
	instructions := prompt.Build(o.state.Mode(), o.state.Discovery(), o.state.PostSales(), o.state.MissingFields())
	if err := o.instructor.UpdateInstructions(ctx, instructions); err != nil {
		return fmt.Errorf("turn: update instructions: %w", err)
	}

	outcome = outcomeCompleted
	return nil
}

// runExtraction issues the extraction call and records its latency.
func (o *Orchestrator) runExtraction(ctx context.Context, history []types.Message, latest string) (*extract.Result, error) {
	req := extract.Request{
		History:        history,
		Latest:         latest,
		Mode:           o.state.Mode(),
		RequiredFields: forms.RequiredFieldsDescription(o.state.Mode()),
		Snapshot:       o.formData(),
	}

	start := time.Now()
	res, err := o.extractor.Extract(ctx, req)
	o.metrics.ExtractionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		o.metrics.RecordExtractionError(ctx, "llm")
		return nil, err
	}
	return res, nil
}

// publish sends one event and counts it.
func (o *Orchestrator) publish(ctx context.Context, ev events.Event) error {
	if err := o.publisher.Publish(ctx, ev); err != nil {
		return fmt.Errorf("turn: publish %s event: %w", ev.EventType(), err)
	}
	o.metrics.RecordEventPublished(ctx, ev.EventType())
	return nil
}

// formData returns the mode-specific form snapshot.
func (o *Orchestrator) formData() any {
	if o.state.Mode() == forms.ModeDiscovery {
		return o.state.Discovery()
	}
	return o.state.PostSales()
}

// historyMessages converts transcript turns into provider messages.
func historyMessages(turns []session.Turn) []types.Message {
	if len(turns) == 0 {
		return nil
	}
	msgs := make([]types.Message, len(turns))
	for i, t := range turns {
		msgs[i] = types.Message{Role: t.Role, Content: t.Text}
	}
	return msgs
}
