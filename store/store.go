package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/tpgarc/arc-conformance-tests/conformance"
)

// FileName is the name of the database file inside the results directory.
const FileName = "arc-conformance.db"

// Fixed-width so that stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store records conformance runs in a SQLite database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// RunSummary is one recorded run.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Domains    int
	Policies   int
	Results    int
	Failures   int
	Skipped    bool

	// Errors are the run's own failures, apart from policy results.
	Errors []string
}

// OK is true if the run had no errors and no failed policies.
func (r RunSummary) OK() bool {
	return len(r.Errors) == 0 && r.Failures == 0
}

// ResultRecord is one recorded policy result.
type ResultRecord struct {
	RunID      string
	AssetID    int
	AssetURL   string
	Policy     string
	Assertion  string
	Count      int
	Target     int
	Conforming bool
}

// Open opens or creates the results database in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	dbPath := filepath.Join(dir, FileName)

	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open results database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)

	s := &Store{db: db, dbPath: dbPath}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		domains INTEGER NOT NULL,
		policies INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		errors TEXT NOT NULL DEFAULT '' -- JSON array of strings, empty if none
	);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		asset_id INTEGER NOT NULL,
		asset_url TEXT NOT NULL,
		policy TEXT NOT NULL,
		assertion TEXT NOT NULL,
		count INTEGER NOT NULL,
		target INTEGER NOT NULL,
		conforming INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	if _, err := s.db.ExecContext(context.Background(), schema); err != nil {
		return err
	}
	return s.ensureRunsSchema()
}

// ensureRunsSchema adds columns that databases written by older versions lack.
func (s *Store) ensureRunsSchema() error {
	rows, err := s.db.Query(`PRAGMA table_info(runs)`)
	if err != nil {
		return fmt.Errorf("runs pragma: %w", err)
	}
	cols := make(map[string]bool)
	for rows.Next() {
		var cid, notNull, pk int
		var name, ctype string
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan runs pragma: %w", err)
		}
		cols[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	if !cols["errors"] {
		if _, err := s.db.Exec(`ALTER TABLE runs ADD COLUMN errors TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("add runs.errors: %w", err)
		}
	}
	return nil
}

// SaveRun records a run and all of its results in one transaction.
func (s *Store) SaveRun(ctx context.Context, report *conformance.RunReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	errs := ""
	if len(report.Errors) > 0 {
		data, err := json.Marshal(report.Errors)
		if err != nil {
			return fmt.Errorf("failed to encode run errors: %w", err)
		}
		errs = string(data)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, finished_at, domains, policies, skipped, errors) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		report.StartedAt.UTC().Format(timeFormat),
		report.FinishedAt.UTC().Format(timeFormat),
		len(report.Domains),
		report.Policies,
		report.Skipped,
		errs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, r := range report.Results {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO results (run_id, asset_id, asset_url, policy, assertion, count, target, conforming)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			report.RunID, r.AssetID, r.AssetURL, r.Policy.Name(), r.Policy.Assertion, r.Count, r.Target, r.Conforming,
		)
		if err != nil {
			return fmt.Errorf("failed to insert result: %w", err)
		}
	}
	return tx.Commit()
}

const runSummaryQuery = `
	SELECT r.run_id, r.started_at, r.finished_at, r.domains, r.policies, r.skipped, r.errors,
		COUNT(res.id), COALESCE(SUM(CASE WHEN res.conforming = 0 THEN 1 ELSE 0 END), 0)
	FROM runs r
	LEFT JOIN results res ON res.run_id = r.run_id`

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	return s.queryRuns(ctx, runSummaryQuery+`
	GROUP BY r.run_id
	ORDER BY r.started_at DESC
	LIMIT ?`, limit)
}

// Run returns one recorded run, or nil if there is no run with that ID.
func (s *Store) Run(ctx context.Context, runID string) (*RunSummary, error) {
	runs, err := s.queryRuns(ctx, runSummaryQuery+`
	WHERE r.run_id = ?
	GROUP BY r.run_id`, runID)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ret []RunSummary
	for rows.Next() {
		var rs RunSummary
		var started, finished, errs string
		if err := rows.Scan(&rs.RunID, &started, &finished, &rs.Domains, &rs.Policies, &rs.Skipped, &errs,
			&rs.Results, &rs.Failures); err != nil {
			return nil, fmt.Errorf("failed to read run: %w", err)
		}
		rs.StartedAt, _ = time.Parse(timeFormat, started)
		rs.FinishedAt, _ = time.Parse(timeFormat, finished)
		if errs != "" {
			if err := json.Unmarshal([]byte(errs), &rs.Errors); err != nil {
				return nil, fmt.Errorf("failed to decode errors of run %s: %w", rs.RunID, err)
			}
		}
		ret = append(ret, rs)
	}
	return ret, rows.Err()
}

// RunResults returns the recorded policy results of one run, in the order they were evaluated.
func (s *Store) RunResults(ctx context.Context, runID string) ([]ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT run_id, asset_id, asset_url, policy, assertion, count, target, conforming
	FROM results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ret []ResultRecord
	for rows.Next() {
		var r ResultRecord
		if err := rows.Scan(&r.RunID, &r.AssetID, &r.AssetURL, &r.Policy, &r.Assertion,
			&r.Count, &r.Target, &r.Conforming); err != nil {
			return nil, fmt.Errorf("failed to read result: %w", err)
		}
		ret = append(ret, r)
	}
	return ret, rows.Err()
}
