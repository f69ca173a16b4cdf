// Package journal persists finished investigation runs locally, so past
// verdicts survive backend restarts and can be listed without a network
// round trip.
//
// Responsibilities:
//   - Record the terminal state of each run, including its trace log
//   - List and fetch past runs for a user
//   - Track schema versions and apply migrations on open
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)

	"github.com/fraudlens/fraudlens-client/internal/investigation"
)

// migrations defines the journal schema. Version is tracked in the
// schema_versions table.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_versions (
    version     INTEGER PRIMARY KEY,
    applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS runs (
    investigation_id  TEXT PRIMARY KEY,
    user_id           TEXT NOT NULL,
    status            TEXT NOT NULL,
    completed_steps   TEXT NOT NULL DEFAULT '[]',
    agent_iterations  INTEGER NOT NULL DEFAULT 0,
    tool_call_count   INTEGER NOT NULL DEFAULT 0,
    final_assessment  TEXT NOT NULL DEFAULT '',
    report            TEXT NOT NULL DEFAULT '',
    error             TEXT NOT NULL DEFAULT '',
    recorded_at       DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_user ON runs(user_id, recorded_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_recorded_at ON runs(recorded_at DESC);

CREATE TABLE IF NOT EXISTS run_trace_events (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    investigation_id  TEXT NOT NULL REFERENCES runs(investigation_id) ON DELETE CASCADE,
    seq               INTEGER NOT NULL,
    type              TEXT NOT NULL DEFAULT '',
    node              TEXT NOT NULL DEFAULT '',
    timestamp         TEXT NOT NULL DEFAULT '',
    data              TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_trace_run ON run_trace_events(investigation_id, seq ASC);
`,
	},
}

// RunRecord is one journaled run as stored.
type RunRecord struct {
	InvestigationID string
	UserID          string
	Status          string
	CompletedSteps  []string
	AgentIterations int
	ToolCallCount   int
	FinalAssessment *investigation.FinalAssessment
	Report          string
	Error           string
	RecordedAt      time.Time
}

// Store is the journal persistence interface.
type Store interface {
	// RecordRun journals the terminal state of a run, replacing any
	// earlier record for the same investigation.
	RecordRun(ctx context.Context, st investigation.State) error

	// GetRun fetches one journaled run by investigation id.
	GetRun(ctx context.Context, investigationID string) (*RunRecord, error)

	// ListRuns returns journaled runs, newest first. userID filters when
	// non-empty.
	ListRuns(ctx context.Context, userID string, limit, offset int) ([]*RunRecord, error)

	// TraceEvents returns the persisted trace log of one run in delivery
	// order.
	TraceEvents(ctx context.Context, investigationID string) ([]investigation.TraceEvent, error)

	Ping(ctx context.Context) error
	Close() error
}

type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite journal at the given path
// and runs all pending schema migrations. Pass ":memory:" for an
// in-memory store.
func NewSQLiteStore(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// Enable WAL mode for better concurrency and performance.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	// Enable foreign-key constraints.
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &sqliteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate applies any unapplied migrations in order.
func (s *sqliteStore) migrate() error {
	// Ensure schema_versions table exists before reading from it.
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue // already applied
		}

		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}

		if _, err := s.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ─── Runs ─────────────────────────────────────────────────────────────────────

func (s *sqliteStore) RecordRun(ctx context.Context, st investigation.State) error {
	if st.InvestigationID == "" {
		return fmt.Errorf("investigation id is required")
	}

	steps, err := json.Marshal(st.CompletedSteps)
	if err != nil {
		return fmt.Errorf("encode completed steps: %w", err)
	}

	assessment := ""
	if st.FinalAssessment != nil {
		b, err := json.Marshal(st.FinalAssessment)
		if err != nil {
			return fmt.Errorf("encode final assessment: %w", err)
		}
		assessment = string(b)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO runs(investigation_id, user_id, status, completed_steps,
                         agent_iterations, tool_call_count, final_assessment,
                         report, error, recorded_at)
        VALUES(?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(investigation_id) DO UPDATE SET
            status           = excluded.status,
            completed_steps  = excluded.completed_steps,
            agent_iterations = excluded.agent_iterations,
            tool_call_count  = excluded.tool_call_count,
            final_assessment = excluded.final_assessment,
            report           = excluded.report,
            error            = excluded.error,
            recorded_at      = excluded.recorded_at
    `,
		st.InvestigationID, st.UserID, string(st.Status), string(steps),
		st.AgentIterations, len(st.ToolCalls), assessment,
		st.Report, st.Error, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	// Re-recording replaces the trace log wholesale.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM run_trace_events WHERE investigation_id = ?`, st.InvestigationID); err != nil {
		return fmt.Errorf("clear trace events: %w", err)
	}

	for i, ev := range st.TraceEvents {
		data := "{}"
		if ev.Data != nil {
			b, err := json.Marshal(ev.Data)
			if err != nil {
				return fmt.Errorf("encode trace event %d: %w", i, err)
			}
			data = string(b)
		}
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO run_trace_events(investigation_id, seq, type, node, timestamp, data)
            VALUES(?,?,?,?,?,?)
        `, st.InvestigationID, i, ev.Type, ev.Node, ev.Timestamp, data); err != nil {
			return fmt.Errorf("save trace event %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (s *sqliteStore) GetRun(ctx context.Context, investigationID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT investigation_id, user_id, status, completed_steps,
               agent_iterations, tool_call_count, final_assessment,
               report, error, recorded_at
        FROM runs WHERE investigation_id = ?
    `, investigationID)

	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", investigationID)
	}
	return rec, err
}

func (s *sqliteStore) ListRuns(ctx context.Context, userID string, limit, offset int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
        SELECT investigation_id, user_id, status, completed_steps,
               agent_iterations, tool_call_count, final_assessment,
               report, error, recorded_at
        FROM runs
    `
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY recorded_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var recs []*RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *sqliteStore) TraceEvents(ctx context.Context, investigationID string) ([]investigation.TraceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT type, node, timestamp, data
        FROM run_trace_events
        WHERE investigation_id = ?
        ORDER BY seq ASC
    `, investigationID)
	if err != nil {
		return nil, fmt.Errorf("query trace events: %w", err)
	}
	defer rows.Close()

	var events []investigation.TraceEvent
	for rows.Next() {
		var ev investigation.TraceEvent
		var data string
		if err := rows.Scan(&ev.Type, &ev.Node, &ev.Timestamp, &data); err != nil {
			return nil, err
		}
		if data != "" && data != "{}" {
			if err := json.Unmarshal([]byte(data), &ev.Data); err != nil {
				return nil, fmt.Errorf("decode trace event data: %w", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	rec := &RunRecord{}
	var steps, assessment, recordedAt string
	err := row.Scan(&rec.InvestigationID, &rec.UserID, &rec.Status, &steps,
		&rec.AgentIterations, &rec.ToolCallCount, &assessment,
		&rec.Report, &rec.Error, &recordedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(steps), &rec.CompletedSteps); err != nil {
		return nil, fmt.Errorf("decode completed steps: %w", err)
	}
	if assessment != "" {
		rec.FinalAssessment = &investigation.FinalAssessment{}
		if err := json.Unmarshal([]byte(assessment), rec.FinalAssessment); err != nil {
			return nil, fmt.Errorf("decode final assessment: %w", err)
		}
	}
	rec.RecordedAt, _ = parseTime(recordedAt)
	return rec, nil
}

func parseTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}
