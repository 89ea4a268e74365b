// Package history records finished chain searches in a local sqlite file.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/latebit/wikichain/internal/chain"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Run is one recorded search.
type Run struct {
	ID          int64
	SessionID   string
	Timestamp   time.Time
	Source      string
	Target      string
	Chain       []string
	Found       bool
	Stopped     bool
	Attempts    int
	Expanded    int
	Blacklisted int
	Elapsed     time.Duration
}

// FromOutcome converts a finished search into a Run stamped with now.
func FromOutcome(o *chain.Outcome) Run {
	return Run{
		SessionID:   o.SessionID,
		Timestamp:   time.Now().UTC(),
		Source:      o.Source,
		Target:      o.Target,
		Chain:       o.Chain,
		Found:       o.Found,
		Stopped:     o.Stopped,
		Attempts:    o.Attempts,
		Expanded:    o.Expanded,
		Blacklisted: len(o.Blacklisted),
		Elapsed:     o.Elapsed,
	}
}

// Store is a sqlite-backed run log.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}
	if dir := filepath.Dir(cleanPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}
	return &Store{path: cleanPath, db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Save inserts r and returns its row id. Saving the same session twice
// replaces the earlier row.
func (s *Store) Save(ctx context.Context, r Run) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.SessionID == "" {
		return 0, fmt.Errorf("save run: session id must not be empty")
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	chainJSON, err := json.Marshal(nonNil(r.Chain))
	if err != nil {
		return 0, fmt.Errorf("encode chain: %w", err)
	}

	const query = `
INSERT INTO runs (session_id, ts_utc, source, target, chain_json, found, stopped, attempts, expanded, blacklisted, elapsed_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
  ts_utc=excluded.ts_utc,
  source=excluded.source,
  target=excluded.target,
  chain_json=excluded.chain_json,
  found=excluded.found,
  stopped=excluded.stopped,
  attempts=excluded.attempts,
  expanded=excluded.expanded,
  blacklisted=excluded.blacklisted,
  elapsed_ms=excluded.elapsed_ms
`
	var id int64
	err = s.withRetry("save run", func() error {
		if _, err := s.db.ExecContext(ctx, query,
			r.SessionID,
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			r.Source,
			r.Target,
			string(chainJSON),
			r.Found,
			r.Stopped,
			r.Attempts,
			r.Expanded,
			r.Blacklisted,
			r.Elapsed.Milliseconds(),
		); err != nil {
			return err
		}
		return s.db.QueryRowContext(ctx, `SELECT id FROM runs WHERE session_id = ?`, r.SessionID).Scan(&id)
	})
	return id, err
}

// List returns up to limit runs, newest first. A limit ≤ 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT id, session_id, ts_utc, source, target, chain_json, found, stopped, attempts, expanded, blacklisted, elapsed_ms
FROM runs
ORDER BY ts_utc DESC, id DESC
`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows *sql.Rows
	err := s.withRetry("list runs", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			r         Run
			tsRaw     string
			chainRaw  string
			elapsedMS int64
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &tsRaw, &r.Source, &r.Target, &chainRaw,
			&r.Found, &r.Stopped, &r.Attempts, &r.Expanded, &r.Blacklisted, &elapsedMS); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", tsRaw, err)
		}
		r.Timestamp = ts.UTC()
		if err := json.Unmarshal([]byte(chainRaw), &r.Chain); err != nil {
			return nil, fmt.Errorf("decode chain of run %d: %w", r.ID, err)
		}
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
