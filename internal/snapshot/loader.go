// Package snapshot reconstructs a terminal investigation state from the
// backend's persisted record, so a finished run can be shown without
// replaying its stream.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fraudlens/fraudlens-client/internal/audit"
	"github.com/fraudlens/fraudlens-client/internal/investigation"
	"github.com/fraudlens/fraudlens-client/internal/metrics"
)

// Loader fetches the latest persisted investigation for a user.
type Loader interface {
	// LoadLatest returns the reconstructed state and whether a persisted
	// run exists. A transport or decode failure returns an error; callers
	// on the resume path treat that the same as a miss.
	LoadLatest(ctx context.Context, userID string) (investigation.State, bool, error)
}

type httpLoader struct {
	baseURL  string
	client   *http.Client
	auditLog audit.Logger
	logger   *zap.Logger
}

// Options configures a snapshot loader.
type Options struct {
	BaseURL  string
	Timeout  time.Duration
	AuditLog audit.Logger
	Logger   *zap.Logger
}

// NewLoader creates a loader against the backend's REST surface.
func NewLoader(opts Options) (Loader, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &httpLoader{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		auditLog: opts.AuditLog,
		logger:   logger,
	}, nil
}

// latestResponse is the backend's snapshot envelope.
type latestResponse struct {
	Found         bool            `json:"found"`
	Investigation *snapshotRecord `json:"investigation"`
}

// snapshotRecord is the persisted run. Every field past the identifiers
// is optional; older backend versions persist less.
type snapshotRecord struct {
	InvestigationID string                         `json:"investigation_id"`
	UserID          string                         `json:"user_id"`
	CompletedSteps  []string                       `json:"completed_steps"`
	InitialEvidence map[string]interface{}         `json:"initial_evidence"`
	FinalAssessment *investigation.FinalAssessment `json:"final_assessment"`
	ToolCalls       []investigation.ToolCall       `json:"tool_calls"`
	ReportMarkdown  string                         `json:"report_markdown"`
	AgentIterations int                            `json:"agent_iterations"`
}

func (l *httpLoader) LoadLatest(ctx context.Context, userID string) (investigation.State, bool, error) {
	empty := investigation.NewState()
	if userID == "" {
		return empty, false, fmt.Errorf("user ID is required")
	}

	endpoint := fmt.Sprintf("%s/api/investigation/user/%s/latest", l.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return empty, false, fmt.Errorf("failed to create snapshot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		metrics.SnapshotLoads.WithLabelValues("error").Inc()
		return empty, false, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		metrics.SnapshotLoads.WithLabelValues("error").Inc()
		return empty, false, fmt.Errorf("snapshot endpoint error (status %d): %s", resp.StatusCode, string(body))
	}

	var payload latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		metrics.SnapshotLoads.WithLabelValues("error").Inc()
		return empty, false, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	if !payload.Found || payload.Investigation == nil {
		metrics.SnapshotLoads.WithLabelValues("not_found").Inc()
		if l.auditLog != nil {
			l.auditLog.Log(ctx, audit.NewEvent(audit.EventSnapshotMissed).
				WithUser(userID).
				WithResult(audit.ResultSuccess).
				WithDescription("No persisted investigation for user"))
		}
		return empty, false, nil
	}

	st := reconstruct(userID, payload.Investigation)

	metrics.SnapshotLoads.WithLabelValues("found").Inc()
	if l.auditLog != nil {
		l.auditLog.Log(ctx, audit.NewEvent(audit.EventSnapshotLoaded).
			WithUser(userID).
			WithInvestigation(st.InvestigationID).
			WithResult(audit.ResultSuccess).
			WithDescription("Reconstructed terminal state from snapshot"))
	}
	l.logger.Info("loaded investigation snapshot",
		zap.String("user_id", userID),
		zap.String("investigation_id", st.InvestigationID),
	)
	return st, true, nil
}

// reconstruct synthesizes the terminal state a live run would have
// reached. The trace log is not persisted, so it stays empty; progress
// derives from the completed steps as usual.
func reconstruct(userID string, rec *snapshotRecord) investigation.State {
	st := investigation.NewState()
	st.Status = investigation.StatusCompleted
	st.InvestigationID = rec.InvestigationID
	st.UserID = rec.UserID
	if st.UserID == "" {
		st.UserID = userID
	}
	st.CurrentNode = investigation.TerminalNode
	st.CurrentPhase = investigation.TerminalPhase
	st.Steps = investigation.CanonicalSteps()

	// An older record without step bookkeeping was still a finished run.
	if len(rec.CompletedSteps) > 0 {
		st.CompletedSteps = rec.CompletedSteps
	} else {
		st.CompletedSteps = investigation.CanonicalStepIDs()
	}

	st.InitialEvidence = rec.InitialEvidence
	st.FinalAssessment = rec.FinalAssessment
	st.ToolCalls = rec.ToolCalls
	st.Report = rec.ReportMarkdown
	st.AgentIterations = rec.AgentIterations
	return st
}
