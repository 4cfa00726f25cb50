package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sondelabs/sonde/internal/events"
	"github.com/sondelabs/sonde/internal/extract"
	"github.com/sondelabs/sonde/internal/observe"
	"github.com/sondelabs/sonde/internal/prompt"
	"github.com/sondelabs/sonde/internal/session"
	"github.com/sondelabs/sonde/internal/store"
	"github.com/sondelabs/sonde/internal/turn"
	"github.com/sondelabs/sonde/pkg/forms"
)

// saveTimeout bounds the interview save at session teardown, which runs on a
// background context because the job's own context is already cancelled.
const saveTimeout = 10 * time.Second

// StartRequest is the session bootstrap payload received by the control
// server.
type StartRequest struct {
	SessionID   string
	RoomName    string
	Mode        forms.Mode
	AccountID   string
	ProjectID   string
	UserID      string
	InterviewID string
}

// SessionInfo holds metadata about an active session.
type SessionInfo struct {
	// SessionID is the unique identifier for this session.
	SessionID string

	// RoomName is the media room the session is attached to.
	RoomName string

	// Mode is the session's conversation mode.
	Mode forms.Mode

	// InterviewID is the interview record this session writes into.
	InterviewID string

	// StartedAt is when the session was started.
	StartedAt time.Time
}

// job is one running session: its state, its cancel handle, a ready channel
// closed once the launch has settled either way, and a done channel closed
// after teardown (including the interview save) finishes. cancel stays nil
// while the room dial is in flight and is guarded by SessionManager.mu.
type job struct {
	info   SessionInfo
	state  *session.State
	cancel context.CancelFunc
	ready  chan struct{}
	done   chan struct{}
}

// SessionManager owns the registry of running session jobs, keyed by session
// id. Entries are inserted on Start and removed when the job's run loop
// finishes, whether by room disconnect or an explicit Stop.
// All exported methods are safe for concurrent use.
type SessionManager struct {
	mu   sync.Mutex
	jobs map[string]*job

	// Dependencies injected at construction.
	extractor extract.Extractor
	connector RoomConnector
	store     store.Store // nil disables persistence
	metrics   *observe.Metrics
	log       *slog.Logger
}

// SessionManagerConfig holds all dependencies for a [SessionManager].
// Extractor and Connector are required; Store may be nil to disable
// persistence.
type SessionManagerConfig struct {
	Extractor extract.Extractor
	Connector RoomConnector
	Store     store.Store
	Metrics   *observe.Metrics
	Logger    *slog.Logger
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) (*SessionManager, error) {
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("app: session manager needs an extractor")
	}
	if cfg.Connector == nil {
		return nil, fmt.Errorf("app: session manager needs a room connector")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SessionManager{
		jobs:      make(map[string]*job),
		extractor: cfg.Extractor,
		connector: cfg.Connector,
		store:     cfg.Store,
		metrics:   cfg.Metrics,
		log:       cfg.Logger,
	}, nil
}

// Start launches a session job for req: it creates the session state,
// attaches to the media room, announces the interview id, pushes the initial
// system instruction, and begins consuming transcripts in a background
// goroutine. Returns an error if req is invalid, a session with the same id
// is already running, or the room cannot be reached.
func (sm *SessionManager) Start(ctx context.Context, req StartRequest) (SessionInfo, error) {
	if req.SessionID == "" {
		return SessionInfo{}, fmt.Errorf("app: session id is required")
	}
	if req.RoomName == "" {
		return SessionInfo{}, fmt.Errorf("app: room name is required")
	}

	state, err := session.New(req.Mode)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("app: %w", err)
	}

	sm.mu.Lock()
	if _, exists := sm.jobs[req.SessionID]; exists {
		sm.mu.Unlock()
		return SessionInfo{}, fmt.Errorf("app: session %q is already running", req.SessionID)
	}
	// Reserve the id while the room dial happens outside the lock.
	placeholder := &job{ready: make(chan struct{}), done: make(chan struct{})}
	sm.jobs[req.SessionID] = placeholder
	sm.mu.Unlock()

	info, err := sm.launch(ctx, req, state, placeholder)
	if err != nil {
		sm.mu.Lock()
		placeholder.cancel = nil
		sm.mu.Unlock()
		close(placeholder.ready)
		sm.remove(req.SessionID)
		close(placeholder.done)
		return SessionInfo{}, err
	}
	close(placeholder.ready)
	return info, nil
}

// launch does the room attachment and goroutine spawn for Start.
func (sm *SessionManager) launch(ctx context.Context, req StartRequest, state *session.State, j *job) (SessionInfo, error) {
	room, err := sm.connector.Connect(ctx, req.RoomName)
	if err != nil {
		return SessionInfo{}, err
	}

	interviewID := req.InterviewID
	if interviewID == "" {
		interviewID = uuid.NewString()
	}

	jobCtx, cancel := context.WithCancel(context.Background())

	sm.mu.Lock()
	j.info = SessionInfo{
		SessionID:   req.SessionID,
		RoomName:    req.RoomName,
		Mode:        req.Mode,
		InterviewID: interviewID,
		StartedAt:   time.Now().UTC(),
	}
	j.state = state
	j.cancel = cancel
	sm.mu.Unlock()

	log := sm.log.With(
		slog.String("session_id", req.SessionID),
		slog.String("room", req.RoomName),
		slog.String("mode", string(req.Mode)),
	)

	orch, err := turn.New(state, sm.extractor, room.Publisher, room.Speaker, room.Instructor,
		turn.WithMetrics(sm.metrics),
		turn.WithLogger(log),
	)
	if err != nil {
		cancel()
		_ = room.Close()
		return SessionInfo{}, err
	}

	// Announce the interview and ground the speech model before the first
	// utterance arrives.
	if err := room.Publisher.Publish(ctx, events.NewSessionEvent(interviewID)); err != nil {
		cancel()
		_ = room.Close()
		return SessionInfo{}, fmt.Errorf("app: announce session: %w", err)
	}
	initial := prompt.Build(req.Mode, state.Discovery(), state.PostSales(), state.MissingFields())
	if err := room.Instructor.UpdateInstructions(ctx, initial); err != nil {
		cancel()
		_ = room.Close()
		return SessionInfo{}, fmt.Errorf("app: push initial instructions: %w", err)
	}

	sm.metrics.ActiveSessions.Add(jobCtx, 1)
	log.Info("session started", "interview_id", interviewID)

	go sm.run(jobCtx, j, req, room, turn.NewRunner(orch, log), log)

	return j.info, nil
}

// run is the session job goroutine: it drives the turn runner until the room
// disconnects or the job is stopped, then persists the interview and removes
// the registry entry.
func (sm *SessionManager) run(ctx context.Context, j *job, req StartRequest, room *Room, runner *turn.Runner, log *slog.Logger) {
	defer close(j.done)
	defer sm.remove(req.SessionID)

	err := runner.Run(ctx, room.Transcripts)
	if err != nil && ctx.Err() == nil {
		log.Error("session run loop failed", "error", err)
	}

	if closeErr := room.Close(); closeErr != nil {
		log.Warn("room close failed", "error", closeErr)
	}

	sm.metrics.ActiveSessions.Add(context.Background(), -1)
	sm.persist(j, req, log)
	log.Info("session finished", "completed", j.state.Completed())
}

// persist saves the finished interview when a store is configured.
func (sm *SessionManager) persist(j *job, req StartRequest, log *slog.Logger) {
	if sm.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	var data any
	if req.Mode == forms.ModeDiscovery {
		data = j.state.Discovery()
	} else {
		data = j.state.PostSales()
	}

	id, err := sm.store.Save(ctx, store.Interview{
		ID:         j.info.InterviewID,
		SessionID:  req.SessionID,
		Mode:       req.Mode,
		AccountID:  req.AccountID,
		ProjectID:  req.ProjectID,
		UserID:     req.UserID,
		Data:       data,
		Transcript: j.state.Turns(),
		Completed:  j.state.Completed(),
		StartedAt:  j.info.StartedAt,
		EndedAt:    time.Now().UTC(),
	})
	if err != nil {
		log.Error("failed to persist interview", "error", err)
		return
	}
	log.Info("interview persisted", "interview_id", id)
}

// Stop cancels the session job with the given id and waits for its teardown
// (including the interview save) to finish or ctx to expire. A session whose
// launch is still in flight counts as found: Stop waits for the launch to
// settle first, so a stop racing a slow room dial cannot miss the session.
// Returns false only when no such session exists or its launch failed.
func (sm *SessionManager) Stop(ctx context.Context, sessionID string) (bool, error) {
	sm.mu.Lock()
	j, ok := sm.jobs[sessionID]
	sm.mu.Unlock()
	if !ok {
		return false, nil
	}

	select {
	case <-j.ready:
	case <-ctx.Done():
		return true, fmt.Errorf("app: stop session %q: %w", sessionID, ctx.Err())
	}

	sm.mu.Lock()
	cancel := j.cancel
	sm.mu.Unlock()
	if cancel == nil {
		// Launch failed after the lookup; the job never ran.
		return false, nil
	}

	cancel()
	select {
	case <-j.done:
		return true, nil
	case <-ctx.Done():
		return true, fmt.Errorf("app: stop session %q: %w", sessionID, ctx.Err())
	}
}

// StopAll cancels every running session and waits for their teardown.
// Used during server shutdown.
func (sm *SessionManager) StopAll(ctx context.Context) error {
	sm.mu.Lock()
	jobs := make([]*job, 0, len(sm.jobs))
	for _, j := range sm.jobs {
		jobs = append(jobs, j)
	}
	sm.mu.Unlock()

	for _, j := range jobs {
		select {
		case <-j.ready:
		case <-ctx.Done():
			return fmt.Errorf("app: stop all sessions: %w", ctx.Err())
		}
		sm.mu.Lock()
		cancel := j.cancel
		sm.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}
	for _, j := range jobs {
		select {
		case <-j.done:
		case <-ctx.Done():
			return fmt.Errorf("app: stop all sessions: %w", ctx.Err())
		}
	}
	return nil
}

// Active returns metadata for all running sessions, ordered by session id.
func (sm *SessionManager) Active() []SessionInfo {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	out := make([]SessionInfo, 0, len(sm.jobs))
	for _, j := range sm.jobs {
		if j.cancel == nil {
			continue // still launching
		}
		out = append(out, j.info)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].SessionID < out[b].SessionID })
	return out
}

// remove deletes the registry entry for sessionID.
func (sm *SessionManager) remove(sessionID string) {
	sm.mu.Lock()
	delete(sm.jobs, sessionID)
	sm.mu.Unlock()
}
