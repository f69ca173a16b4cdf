// Package app wires the fraudlens client together: configuration, logging,
// the audit trail, the local journal, the snapshot loader, and the stream
// controller.
//
// Responsibilities:
//   - Load and validate configuration from YAML and environment variables
//   - Build the structured logger and audit trail
//   - Open the local run journal when enabled
//   - Expose the watch / resume / history operations to the CLI
//   - Serve Prometheus metrics when enabled
//   - Shut down cleanly, flushing audit buffers
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fraudlens/fraudlens-client/internal/audit"
	"github.com/fraudlens/fraudlens-client/internal/config"
	"github.com/fraudlens/fraudlens-client/internal/investigation"
	"github.com/fraudlens/fraudlens-client/internal/journal"
	"github.com/fraudlens/fraudlens-client/internal/snapshot"
	"github.com/fraudlens/fraudlens-client/internal/stream"
)

// App is the assembled client.
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	auditLog   audit.Logger
	journal    journal.Store
	loader     snapshot.Loader
	controller stream.Controller
	metricsSrv *http.Server
}

// New loads configuration from configPath (empty means the default search
// path) and assembles the client.
func New(ctx context.Context, configPath string) (*App, error) {
	var (
		mgr config.ConfigManager
		err error
	)
	if configPath != "" {
		mgr, err = config.NewConfigManager(configPath)
	} else {
		mgr, err = config.NewConfigManagerWithDefaults()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	if err := mgr.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := mgr.Validate(ctx); err != nil {
		return nil, err
	}
	cfg := mgr.Get(ctx)

	logger, err := buildLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	auditLog, err := audit.NewLogger(&audit.Config{
		AuditLogPath: cfg.Logging.AuditLogPath,
		AppLogPath:   cfg.Logging.AppLogPath,
		MaxSize:      cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAge:       cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		LogLevel:     cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create audit logger: %w", err)
	}

	auditLog.Log(ctx, audit.NewEvent(audit.EventConfigLoaded).
		WithResult(audit.ResultSuccess).
		WithDescription(fmt.Sprintf("configuration loaded (backend %s, transport %s)",
			cfg.Backend.BaseURL, cfg.Backend.StreamTransport)))

	// Configuration changes on disk are audited but not applied; the
	// assembled client keeps the configuration it started with.
	go func() {
		for range mgr.Watch(ctx) {
			auditLog.Log(ctx, audit.NewEvent(audit.EventConfigChanged).
				WithResult(audit.ResultSuccess).
				WithDescription("configuration file changed on disk, restart to apply"))
			logger.Info("configuration file changed, restart to apply")
		}
	}()

	var store journal.Store
	if cfg.Journal.Enabled {
		store, err = journal.NewSQLiteStore(cfg.Journal.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
	}

	loader, err := snapshot.NewLoader(snapshot.Options{
		BaseURL:  cfg.Backend.BaseURL,
		Timeout:  time.Duration(cfg.Backend.Timeout) * time.Second,
		AuditLog: auditLog,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot loader: %w", err)
	}

	var transport stream.Transport
	switch strings.ToLower(cfg.Backend.StreamTransport) {
	case "websocket":
		transport = stream.NewWebSocketTransport(time.Duration(cfg.Backend.Timeout) * time.Second)
	default:
		transport = stream.NewSSETransport(time.Duration(cfg.Backend.Timeout) * time.Second)
	}

	var recorder stream.Recorder
	if store != nil {
		recorder = store
	}
	controller, err := stream.NewController(stream.Options{
		BaseURL:   cfg.Backend.BaseURL,
		Transport: transport,
		AuditLog:  auditLog,
		Recorder:  recorder,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create stream controller: %w", err)
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		auditLog:   auditLog,
		journal:    store,
		loader:     loader,
		controller: controller,
	}

	if cfg.Metrics.Enabled {
		a.startMetrics(cfg.Metrics.Listen)
	}

	auditLog.Log(ctx, audit.NewEvent(audit.EventClientStarted).
		WithResult(audit.ResultSuccess).
		WithDescription("fraudlens client started"))

	return a, nil
}

// Watch attaches to the live stream for userID and renders updates until
// the run reaches a terminal state or ctx is cancelled.
func (a *App) Watch(ctx context.Context, userID, investigationID string) error {
	updates := a.controller.Subscribe(ctx)
	if err := a.controller.Start(ctx, userID, investigationID); err != nil {
		return err
	}
	defer a.controller.Stop()

	return a.render(ctx, updates)
}

// Resume reconstructs the latest persisted run for userID. When follow is
// set and no snapshot exists, it falls through to watching a live run.
func (a *App) Resume(ctx context.Context, userID string, follow bool) error {
	st, found, err := a.loader.LoadLatest(ctx, userID)
	if err != nil {
		// The resume path treats a failed lookup the same as a miss.
		a.logger.Warn("snapshot lookup failed", zap.Error(err))
		found = false
	}

	if found {
		a.controller.Resume(ctx, st)
		printSummary(st)
		return nil
	}

	fmt.Printf("No persisted investigation for user %s\n", userID)
	if follow {
		return a.Watch(ctx, userID, "")
	}
	return nil
}

// History lists journaled runs for userID (all users when empty).
func (a *App) History(ctx context.Context, userID string, limit int) error {
	if a.journal == nil {
		return fmt.Errorf("journal is disabled in configuration")
	}

	runs, err := a.journal.ListRuns(ctx, userID, limit, 0)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No journaled investigations")
		return nil
	}

	for _, run := range runs {
		verdict := "-"
		if run.FinalAssessment != nil {
			verdict = fmt.Sprintf("%s/%s", run.FinalAssessment.Typology, run.FinalAssessment.Decision)
		}
		fmt.Printf("%-28s  %-12s  %-10s  %2d steps  %2d iterations  %s\n",
			run.InvestigationID, run.UserID, run.Status,
			len(run.CompletedSteps), run.AgentIterations, verdict)
	}
	return nil
}

// render consumes state snapshots until a terminal status arrives.
func (a *App) render(ctx context.Context, updates <-chan investigation.State) error {
	var lastStatus investigation.Status
	printedSteps := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case st, ok := <-updates:
			if !ok {
				return ctx.Err()
			}
			if st.Status != lastStatus {
				lastStatus = st.Status
				fmt.Printf("status: %s\n", st.Status)
			}
			for ; printedSteps < len(st.CompletedSteps); printedSteps++ {
				fmt.Printf("[%3d%%] completed %s\n", st.Progress(), stepName(st, st.CompletedSteps[printedSteps]))
			}

			switch st.Status {
			case investigation.StatusCompleted:
				printSummary(st)
				return nil
			case investigation.StatusError:
				return fmt.Errorf("investigation failed: %s", st.Error)
			}
		}
	}
}

func stepName(st investigation.State, stepID string) string {
	for _, s := range st.Steps {
		if s.ID == stepID && s.Name != "" {
			return s.Name
		}
	}
	return stepID
}

func printSummary(st investigation.State) {
	fmt.Printf("\ninvestigation %s for user %s: %s (%d%%)\n",
		st.InvestigationID, st.UserID, st.Status, st.Progress())
	if st.FinalAssessment != nil {
		fa := st.FinalAssessment
		fmt.Printf("verdict: %s risk=%s (%.2f) decision=%s after %d iterations\n",
			fa.Typology, fa.RiskLevel, fa.RiskScore, fa.Decision, fa.Iteration)
	}
	if st.Report != "" {
		fmt.Printf("\n%s\n", st.Report)
	}
}

func (a *App) startMetrics(listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metricsSrv = &http.Server{Addr: listen, Handler: mux}

	go func() {
		if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Warn("metrics listener stopped", zap.Error(err))
		}
	}()
	a.logger.Info("serving metrics", zap.String("listen", listen))
}

// Close shuts the client down, flushing audit buffers.
func (a *App) Close() error {
	a.controller.Stop()

	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metricsSrv.Shutdown(ctx)
	}

	if a.journal != nil {
		_ = a.journal.Close()
	}

	a.auditLog.Log(context.Background(), audit.NewEvent(audit.EventClientShutdown).
		WithResult(audit.ResultSuccess).
		WithDescription("fraudlens client shutting down"))
	_ = a.auditLog.Close()
	_ = a.logger.Sync()
	return nil
}

// buildLogger constructs the zap logger per the logging section.
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	if strings.EqualFold(cfg.Logging.Format, "text") {
		zcfg.Encoding = "console"
	}
	return zcfg.Build()
}
