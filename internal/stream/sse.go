package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fraudlens/fraudlens-client/internal/investigation"
	"github.com/fraudlens/fraudlens-client/internal/metrics"
)

// DefaultHandshakeTimeout bounds how long the transport waits for the
// server to accept the stream. The stream itself has no deadline.
const DefaultHandshakeTimeout = 30 * time.Second

// maxEventSize caps a single SSE event payload. Network evidence for a
// heavily connected account can run to hundreds of kilobytes.
const maxEventSize = 1024 * 1024

// SSETransport consumes the backend's text/event-stream endpoint.
type SSETransport struct {
	client *http.Client
}

// NewSSETransport creates an SSE transport. handshakeTimeout bounds the
// wait for response headers only; pass 0 for the default.
func NewSSETransport(handshakeTimeout time.Duration) *SSETransport {
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultHandshakeTimeout
	}
	return &SSETransport{
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: handshakeTimeout,
			},
		},
	}
}

func (t *SSETransport) Name() string { return "sse" }

// Run attaches to streamURL and delivers decoded events until the server
// closes the stream or ctx is cancelled. onOpen fires once the server has
// accepted the stream. Comment lines (heartbeats) are ignored;
// unrecognized event names and malformed payloads are dropped without
// touching delivery order.
func (t *SSETransport) Run(ctx context.Context, streamURL string, onOpen func(), deliver func(investigation.Event)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("stream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("stream endpoint error (status %d): %s", resp.StatusCode, string(body))
	}
	onOpen()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)

	var (
		eventName string
		data      strings.Builder
	)

	dispatch := func() {
		defer func() {
			eventName = ""
			data.Reset()
		}()
		if data.Len() == 0 {
			return
		}

		ev, err := investigation.DecodeEvent(eventName, []byte(data.String()))
		if err != nil {
			metrics.EventsDropped.WithLabelValues("malformed").Inc()
			return
		}
		if ev == nil {
			metrics.EventsDropped.WithLabelValues("unrecognized").Inc()
			return
		}
		deliver(ev)
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			dispatch()
		case strings.HasPrefix(line, ":"):
			// Heartbeat comment, keepalive only.
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	// Deliver a final event that arrived without a trailing blank line.
	dispatch()

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}
	return nil
}
