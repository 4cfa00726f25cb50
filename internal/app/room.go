package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"

	"github.com/sondelabs/sonde/internal/events"
	"github.com/sondelabs/sonde/internal/turn"
	"github.com/sondelabs/sonde/pkg/types"
)

// transcriptBuffer bounds the inbound transcript channel so a stalled turn
// does not block the websocket read loop indefinitely.
const transcriptBuffer = 16

// Room bundles the live collaborators a session job needs from one attached
// media room: the outbound event channel, the synthesis and instruction
// sinks, and the inbound finalized-transcript stream.
type Room struct {
	Publisher   events.Publisher
	Speaker     turn.Speaker
	Instructor  turn.Instructor
	Transcripts <-chan types.Transcript

	close func() error
}

// Close detaches from the room and releases its connection.
func (r *Room) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// RoomConnector attaches to the realtime media room for a session.
type RoomConnector interface {
	Connect(ctx context.Context, roomName string) (*Room, error)
}

// WebsocketConnector attaches to rooms over a single websocket per session,
// speaking the media bridge's JSON frame protocol: outbound event frames plus
// "speak" and "instructions" control frames, inbound "transcript" frames.
type WebsocketConnector struct {
	baseURL   string
	authToken string
	log       *slog.Logger
}

// Compile-time check that *WebsocketConnector satisfies [RoomConnector].
var _ RoomConnector = (*WebsocketConnector)(nil)

// NewWebsocketConnector creates a connector for the media bridge at baseURL
// (a ws:// or wss:// endpoint). authToken, when non-empty, is sent as a
// Bearer token on every dial.
func NewWebsocketConnector(baseURL, authToken string, log *slog.Logger) (*WebsocketConnector, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("app: parse rooms base url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("app: rooms base url %q: scheme must be ws or wss", baseURL)
	}
	if log == nil {
		log = slog.Default()
	}
	return &WebsocketConnector{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		log:       log,
	}, nil
}

// Connect implements [RoomConnector]. It dials the room's endpoint, starts
// the transcript read loop, and returns the assembled [Room].
func (c *WebsocketConnector) Connect(ctx context.Context, roomName string) (*Room, error) {
	if roomName == "" {
		return nil, errors.New("app: room name is required")
	}

	var opts *websocket.DialOptions
	if c.authToken != "" {
		header := http.Header{}
		header.Set("Authorization", "Bearer "+c.authToken)
		opts = &websocket.DialOptions{HTTPHeader: header}
	}

	wsURL := c.baseURL + "/" + url.PathEscape(roomName)
	conn, _, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		return nil, fmt.Errorf("app: dial room %q: %w", roomName, err)
	}

	pub := events.NewWebsocketPublisher(conn)
	transcripts := make(chan types.Transcript, transcriptBuffer)

	readCtx, cancelRead := context.WithCancel(context.Background())
	go c.readLoop(readCtx, conn, roomName, transcripts)

	return &Room{
		Publisher:   pub,
		Speaker:     &roomSpeaker{pub: pub},
		Instructor:  &roomInstructor{pub: pub},
		Transcripts: transcripts,
		close: func() error {
			cancelRead()
			return pub.Close()
		},
	}, nil
}

// transcriptFrame is the inbound frame shape delivered by the media bridge
// whenever the transcriber produces output.
type transcriptFrame struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	IsFinal    bool    `json:"isFinal"`
	Confidence float64 `json:"confidence"`
}

// readLoop reads frames until the connection drops or ctx is cancelled,
// forwarding transcript frames into out. The channel is closed on exit so the
// session's turn runner drains and finishes.
func (c *WebsocketConnector) readLoop(ctx context.Context, conn *websocket.Conn, roomName string, out chan<- types.Transcript) {
	defer close(out)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				c.log.LogAttrs(ctx, slog.LevelWarn, "room read loop ended",
					slog.String("room", roomName),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var frame transcriptFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.LogAttrs(ctx, slog.LevelDebug, "dropping unparseable room frame",
				slog.String("room", roomName),
			)
			continue
		}
		if frame.Type != "transcript" {
			continue
		}

		select {
		case out <- types.Transcript{Text: frame.Text, IsFinal: frame.IsFinal, Confidence: frame.Confidence}:
		case <-ctx.Done():
			return
		}
	}
}

// speakFrame asks the media bridge to vocalize text in the room.
type speakFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// instructionsFrame pushes a refreshed system instruction to the live speech
// model behind the bridge.
type instructionsFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// roomSpeaker implements [turn.Speaker] over the shared room connection.
type roomSpeaker struct {
	pub *events.WebsocketPublisher
}

func (s *roomSpeaker) Speak(ctx context.Context, text string) error {
	if err := s.pub.Send(ctx, speakFrame{Type: "speak", Text: text}); err != nil {
		return fmt.Errorf("app: speak: %w", err)
	}
	return nil
}

// roomInstructor implements [turn.Instructor] over the shared room connection.
type roomInstructor struct {
	pub *events.WebsocketPublisher
}

func (i *roomInstructor) UpdateInstructions(ctx context.Context, instructions string) error {
	if err := i.pub.Send(ctx, instructionsFrame{Type: "instructions", Text: instructions}); err != nil {
		return fmt.Errorf("app: update instructions: %w", err)
	}
	return nil
}
