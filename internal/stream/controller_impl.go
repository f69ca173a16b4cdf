package stream

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fraudlens/fraudlens-client/internal/audit"
	"github.com/fraudlens/fraudlens-client/internal/investigation"
	"github.com/fraudlens/fraudlens-client/internal/metrics"
)

// Options configures a stream controller.
type Options struct {
	// BaseURL is the backend root, e.g. "http://localhost:8000".
	BaseURL string

	// Transport carries the stream. Defaults to SSE.
	Transport Transport

	// AuditLog receives lifecycle audit events. Optional.
	AuditLog audit.Logger

	// Recorder persists finished runs. Optional.
	Recorder Recorder

	Logger *zap.Logger
}

type streamController struct {
	baseURL   string
	transport Transport
	auditLog  audit.Logger
	recorder  Recorder
	logger    *zap.Logger

	mu        sync.RWMutex
	state     investigation.State
	gen       uint64
	cancel    context.CancelFunc
	startedAt time.Time
	subs      []chan investigation.State
}

// NewController creates a controller in the idle state.
func NewController(opts Options) (Controller, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	transport := opts.Transport
	if transport == nil {
		transport = NewSSETransport(DefaultHandshakeTimeout)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &streamController{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		transport: transport,
		auditLog:  opts.AuditLog,
		recorder:  opts.Recorder,
		logger:    logger,
		state:     investigation.NewState(),
	}, nil
}

func (c *streamController) Start(ctx context.Context, userID, investigationID string) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}

	streamURL := c.streamURL(userID, investigationID)

	c.mu.Lock()
	c.teardownLocked()

	c.gen++
	gen := c.gen

	next := investigation.NewState()
	next.Status = investigation.StatusConnecting
	next.UserID = userID
	next.InvestigationID = investigationID
	c.state = next
	c.startedAt = time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.notifyLocked()
	c.mu.Unlock()

	if c.auditLog != nil {
		c.auditLog.LogInvestigationStarted(ctx, investigationID, userID)
	}
	metrics.StreamActive.Inc()
	c.logger.Info("attaching to investigation stream",
		zap.String("user_id", userID),
		zap.String("transport", c.transport.Name()),
	)

	go c.run(runCtx, gen, streamURL)
	return nil
}

// run drives one attachment. It owns the transport call and synthesizes
// the disconnect event when the transport returns.
func (c *streamController) run(ctx context.Context, gen uint64, streamURL string) {
	defer metrics.StreamActive.Dec()

	err := c.transport.Run(ctx, streamURL,
		func() { c.transportOpen(ctx, gen) },
		func(ev investigation.Event) { c.apply(ctx, gen, ev) },
	)

	reason := "closed"
	if err != nil && ctx.Err() == nil {
		reason = "transport_error"
		metrics.StreamConnects.WithLabelValues(c.transport.Name(), "failure").Inc()
		c.logger.Warn("investigation stream failed", zap.Error(err))
	}
	metrics.StreamDisconnects.WithLabelValues(reason).Inc()

	if c.auditLog != nil {
		ev := audit.NewEvent(audit.EventStreamDisconnected).
			WithResult(audit.ResultSuccess).
			WithMetadata("reason", reason).
			WithDescription("investigation stream detached")
		if reason == "transport_error" {
			ev = ev.WithError(err, "stream_transport")
		}
		c.auditLog.Log(context.WithoutCancel(ctx), ev)
	}

	// The channel is gone either way. If the run already completed the
	// reducer keeps it completed; otherwise this surfaces as an error.
	c.apply(context.WithoutCancel(ctx), gen, investigation.DisconnectEvent{})
}

// transportOpen advances connecting to running when the transport reports
// the channel is established, before the first event arrives.
func (c *streamController) transportOpen(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state.Status != investigation.StatusConnecting {
		c.mu.Unlock()
		return
	}
	c.state.Status = investigation.StatusRunning
	st := c.state
	c.notifyLocked()
	c.mu.Unlock()

	metrics.StreamConnects.WithLabelValues(c.transport.Name(), "success").Inc()
	if c.auditLog != nil {
		c.auditLog.Log(ctx, audit.NewEvent(audit.EventStreamConnected).
			WithResult(audit.ResultSuccess).
			WithUser(st.UserID).
			WithInvestigation(st.InvestigationID).
			WithDescription("investigation stream open"))
	}
	c.logger.Debug("investigation stream open", zap.String("transport", c.transport.Name()))
}

// apply folds one event into state, unless the event belongs to a
// generation that has since been torn down.
func (c *streamController) apply(ctx context.Context, gen uint64, ev investigation.Event) {
	c.mu.Lock()

	if gen != c.gen {
		c.mu.Unlock()
		metrics.EventsDropped.WithLabelValues("stale_channel").Inc()
		if _, internal := ev.(investigation.DisconnectEvent); !internal && c.auditLog != nil {
			c.auditLog.Log(ctx, audit.NewEvent(audit.EventStreamEventDropped).
				WithResult(audit.ResultSuccess).
				WithMetadata("reason", "stale_channel").
				WithMetadata("event", eventLabel(ev)))
		}
		return
	}

	prev := c.state.Status
	c.state = investigation.Reduce(c.state, ev)
	now := c.state.Status
	final := c.state
	elapsed := time.Since(c.startedAt)

	// The complete event ends the channel; the server has nothing more to
	// say for this run.
	if now == investigation.StatusCompleted && prev != now {
		c.teardownLocked()
	}

	c.notifyLocked()
	c.mu.Unlock()

	if _, ok := ev.(investigation.DisconnectEvent); !ok {
		metrics.EventsReceived.WithLabelValues(eventLabel(ev)).Inc()
	}

	if prev == now {
		return
	}

	switch now {
	case investigation.StatusRunning:
		metrics.StreamConnects.WithLabelValues(c.transport.Name(), "success").Inc()

	case investigation.StatusCompleted:
		// teardownLocked above cancelled the run context; the terminal
		// bookkeeping must not be cancelled with it.
		ctx := context.WithoutCancel(ctx)
		metrics.InvestigationsTotal.WithLabelValues("completed").Inc()
		metrics.InvestigationDuration.Observe(elapsed.Seconds())
		if c.auditLog != nil {
			c.auditLog.LogInvestigationCompleted(ctx, final.InvestigationID, elapsed)
		}
		c.record(ctx, final)

	case investigation.StatusError:
		metrics.InvestigationsTotal.WithLabelValues("error").Inc()
		if c.auditLog != nil {
			c.auditLog.LogInvestigationFailed(ctx, final.InvestigationID, fmt.Errorf("%s", final.Error))
		}
		c.record(ctx, final)
	}
}

func (c *streamController) record(ctx context.Context, st investigation.State) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordRun(ctx, st); err != nil {
		c.logger.Warn("failed to journal investigation run",
			zap.String("investigation_id", st.InvestigationID),
			zap.Error(err),
		)
	}
}

func (c *streamController) Stop() {
	c.mu.Lock()
	c.teardownLocked()
	// A completed run stays completed; anything else returns to idle.
	if c.state.Status != investigation.StatusCompleted && c.state.Status != investigation.StatusIdle {
		c.state.Status = investigation.StatusIdle
		c.notifyLocked()
	}
	c.mu.Unlock()
}

func (c *streamController) Reset() {
	c.mu.Lock()
	c.teardownLocked()
	c.state = investigation.NewState()
	c.notifyLocked()
	c.mu.Unlock()

	if c.auditLog != nil {
		c.auditLog.Log(context.Background(), audit.NewEvent(audit.EventInvestigationReset).
			WithResult(audit.ResultSuccess).
			WithDescription("Investigation state reset"))
	}
}

func (c *streamController) Resume(ctx context.Context, st investigation.State) {
	c.mu.Lock()
	c.teardownLocked()
	c.state = st
	c.notifyLocked()
	c.mu.Unlock()

	if c.auditLog != nil {
		c.auditLog.LogInvestigationResumed(ctx, st.InvestigationID, st.UserID)
	}
}

func (c *streamController) State() investigation.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *streamController) Subscribe(ctx context.Context) <-chan investigation.State {
	ch := make(chan investigation.State, 16)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.unsubscribe(ch)
	}()
	return ch
}

// unsubscribe removes ch from the fan-out set, then closes it. Removal
// happens under the mutex notifyLocked holds, so no send can race the
// close.
func (c *streamController) unsubscribe(ch chan investigation.State) {
	c.mu.Lock()
	for i, sub := range c.subs {
		if sub == ch {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	close(ch)
}

// teardownLocked invalidates the active generation and cancels its
// transport. Events still in flight from that generation fail the
// generation check in apply and are dropped.
func (c *streamController) teardownLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// notifyLocked pushes the current snapshot to every subscriber without
// blocking. Full buffers skip the snapshot.
func (c *streamController) notifyLocked() {
	for _, ch := range c.subs {
		select {
		case ch <- c.state:
		default:
		}
	}
}

func (c *streamController) streamURL(userID, investigationID string) string {
	u := fmt.Sprintf("%s/investigation/%s/stream", c.baseURL, url.PathEscape(userID))
	if investigationID != "" {
		u += "?investigation_id=" + url.QueryEscape(investigationID)
	}
	return u
}

func eventLabel(ev investigation.Event) string {
	switch ev.(type) {
	case investigation.StartEvent:
		return investigation.EventNameStart
	case investigation.TraceEvent:
		return investigation.EventNameTrace
	case investigation.ProgressEvent:
		return investigation.EventNameProgress
	case investigation.CompleteEvent:
		return investigation.EventNameComplete
	case investigation.ErrorEvent:
		return investigation.EventNameError
	default:
		return "unknown"
	}
}
