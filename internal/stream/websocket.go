package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fraudlens/fraudlens-client/internal/investigation"
	"github.com/fraudlens/fraudlens-client/internal/metrics"
)

// WebSocketTransport carries the stream over a WebSocket upgrade of the
// same endpoint. Each frame holds one named event in a small envelope.
type WebSocketTransport struct {
	dialer *websocket.Dialer
}

// wsEnvelope is the wire frame: the event name plus its raw payload.
type wsEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func NewWebSocketTransport(handshakeTimeout time.Duration) *WebSocketTransport {
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultHandshakeTimeout
	}
	return &WebSocketTransport{
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

func (t *WebSocketTransport) Name() string { return "websocket" }

// Run dials the upgraded endpoint and delivers decoded frames. onOpen
// fires once the handshake succeeds.
func (t *WebSocketTransport) Run(ctx context.Context, streamURL string, onOpen func(), deliver func(investigation.Event)) error {
	wsURL, err := httpToWS(streamURL)
	if err != nil {
		return err
	}

	conn, resp, err := t.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		if resp != nil {
			return fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	defer conn.Close()
	onOpen()

	// ReadMessage has no context support; closing the connection unblocks
	// the read loop when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("failed to read frame: %w", err)
		}

		var env wsEnvelope
		if err := json.Unmarshal(frame, &env); err != nil {
			metrics.EventsDropped.WithLabelValues("malformed").Inc()
			continue
		}

		ev, err := investigation.DecodeEvent(env.Event, env.Data)
		if err != nil {
			metrics.EventsDropped.WithLabelValues("malformed").Inc()
			continue
		}
		if ev == nil {
			metrics.EventsDropped.WithLabelValues("unrecognized").Inc()
			continue
		}
		deliver(ev)
	}
}

// httpToWS rewrites the endpoint scheme for the WebSocket upgrade.
func httpToWS(streamURL string) (string, error) {
	u, err := url.Parse(streamURL)
	if err != nil {
		return "", fmt.Errorf("invalid stream URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}
