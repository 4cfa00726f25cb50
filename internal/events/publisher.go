package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coder/websocket"
)

// Publisher delivers events to the room's data channel.
//
// Implementations must preserve call order: the turn orchestrator relies on
// the room seeing user-turn echoes before form updates, form updates before
// summaries, and summaries before assistant-turn echoes.
type Publisher interface {
	// Publish sends one event. Implementations should return promptly when
	// ctx is cancelled.
	Publish(ctx context.Context, ev Event) error
}

// WebsocketPublisher sends JSON-encoded events over a WebSocket connection to
// the room. Writes are serialised by an internal mutex so interleaved turns
// from reconnect races cannot corrupt frame ordering.
type WebsocketPublisher struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Compile-time check that *WebsocketPublisher satisfies [Publisher].
var _ Publisher = (*WebsocketPublisher)(nil)

// Dial connects to the room data channel at wsURL and returns a publisher
// bound to that connection.
func Dial(ctx context.Context, wsURL string) (*WebsocketPublisher, error) {
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("events: dial %q: %w", wsURL, err)
	}
	return &WebsocketPublisher{conn: conn}, nil
}

// NewWebsocketPublisher wraps an already established connection, e.g. one
// accepted by the control server.
func NewWebsocketPublisher(conn *websocket.Conn) *WebsocketPublisher {
	return &WebsocketPublisher{conn: conn}
}

// Publish implements [Publisher].
func (p *WebsocketPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal %s event: %w", ev.EventType(), err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("events: write %s event: %w", ev.EventType(), err)
	}
	return nil
}

// Send marshals v and writes it as a text frame under the same write lock as
// Publish. Used for non-event control frames (speak, instruction updates)
// that must not interleave with event frames on the shared connection.
func (p *WebsocketPublisher) Send(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("events: marshal frame: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("events: write frame: %w", err)
	}
	return nil
}

// Close closes the underlying connection with a normal-closure status.
func (p *WebsocketPublisher) Close() error {
	return p.conn.Close(websocket.StatusNormalClosure, "session closed")
}
