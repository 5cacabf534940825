// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/keytest/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNotFound is returned when a session id does not exist.
var ErrNotFound = errors.New("session not found")

// Store wraps SQLite access for keyboard test results.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			status TEXT NOT NULL,
			layout TEXT NOT NULL,
			total_keys INTEGER NOT NULL,
			failed_count INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS session_failed_keys (
			session_id INTEGER NOT NULL,
			key TEXT NOT NULL,
			PRIMARY KEY (session_id, key)
		);`,
		`CREATE TABLE IF NOT EXISTS session_devices (
			session_id INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			path TEXT NOT NULL,
			internal INTEGER NOT NULL,
			accepted INTEGER NOT NULL,
			rejected INTEGER NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_session_failed_keys_key ON session_failed_keys(key);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertResult stores a finished session with its failed keys and devices.
func (s *Store) InsertResult(ctx context.Context, r model.Result) (id int64, err error) {
	if !r.Status.Valid() {
		return 0, fmt.Errorf("invalid status %q", r.Status)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (started_at, ended_at, status, layout, total_keys, failed_count, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.EndedAt.UTC().Format(time.RFC3339Nano),
		string(r.Status),
		r.Layout,
		r.TotalKeys,
		len(r.FailedKeys),
		r.Duration().Milliseconds(),
		r.Error,
	)
	if err != nil {
		return 0, err
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(r.FailedKeys) > 0 {
		if err = s.insertFailedKeys(ctx, tx, id, r.FailedKeys); err != nil {
			return 0, err
		}
	}
	if len(r.Devices) > 0 {
		if err = s.insertDevices(ctx, tx, id, r.Devices); err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) insertFailedKeys(ctx context.Context, tx *sql.Tx, id int64, keys []string) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO session_failed_keys (session_id, key) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for _, key := range keys {
		if _, err := stmt.ExecContext(ctx, id, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertDevices(ctx context.Context, tx *sql.Tx, id int64, devices []model.DeviceStats) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO session_devices (session_id, seq, path, internal, accepted, rejected)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for i, d := range devices {
		if _, err := stmt.ExecContext(ctx, id, i, d.Path, d.Internal, d.Accepted, d.Rejected); err != nil {
			return err
		}
	}
	return nil
}

// GetResult loads one stored session.
func (s *Store) GetResult(ctx context.Context, id int64) (model.Result, error) {
	var (
		r          model.Result
		started    string
		ended      string
		status     string
		durationMs int64
		failed     int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, ended_at, status, layout, total_keys, failed_count, duration_ms, error
		 FROM sessions WHERE id = ?`, id,
	).Scan(&r.ID, &started, &ended, &status, &r.Layout, &r.TotalKeys, &failed, &durationMs, &r.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Result{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return model.Result{}, err
	}
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return model.Result{}, err
	}
	if r.EndedAt, err = time.Parse(time.RFC3339Nano, ended); err != nil {
		return model.Result{}, err
	}
	r.Status = model.Status(status)

	if r.FailedKeys, err = s.failedKeys(ctx, id); err != nil {
		return model.Result{}, err
	}
	if r.Devices, err = s.devices(ctx, id); err != nil {
		return model.Result{}, err
	}
	return r, nil
}

func (s *Store) failedKeys(ctx context.Context, id int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM session_failed_keys WHERE session_id = ? ORDER BY key`, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *Store) devices(ctx context.Context, id int64) ([]model.DeviceStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, internal, accepted, rejected FROM session_devices WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var out []model.DeviceStats
	for rows.Next() {
		var d model.DeviceStats
		if err := rows.Scan(&d.Path, &d.Internal, &d.Accepted, &d.Rejected); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListSessions returns session aggregates filtered by history config, oldest
// first. Last keeps only the most recent sessions.
func (s *Store) ListSessions(ctx context.Context, cfg model.HistoryConfig) ([]model.SessionAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(cfg.Status))
	}
	if cfg.Layout != "" {
		clauses = append(clauses, "layout = ?")
		args = append(args, cfg.Layout)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, cfg.Since.UTC().Format(time.RFC3339Nano))
	}
	limit := -1
	if cfg.Last > 0 {
		limit = cfg.Last
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT id, ended_at, status, layout, total_keys, failed_count, duration_ms FROM (
			SELECT * FROM sessions
			WHERE %s
			ORDER BY ended_at DESC, id DESC
			LIMIT ?
		) ORDER BY ended_at ASC, id ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.SessionAggregate
	for rows.Next() {
		var agg model.SessionAggregate
		var endedAt, status string
		if err := rows.Scan(&agg.SessionID, &endedAt, &status, &agg.Layout, &agg.TotalKeys, &agg.FailedCount, &agg.DurationMs); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		agg.EndedAt = parsed
		agg.Status = model.Status(status)
		sessions = append(sessions, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListKeyAggregates counts, per key, the sessions that left it unpressed.
// Sessions is the number of given sessions.
func (s *Store) ListKeyAggregates(ctx context.Context, sessionIDs []int64) ([]model.KeyAggregate, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(sessionIDs))
	args := make([]any, len(sessionIDs))
	for i, id := range sessionIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT key, COUNT(*) AS failed
		FROM session_failed_keys
		WHERE session_id IN (%s)
		GROUP BY key
		ORDER BY failed DESC, key ASC`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.KeyAggregate
	for rows.Next() {
		agg := model.KeyAggregate{Sessions: len(sessionIDs)}
		if err := rows.Scan(&agg.Key, &agg.Failed); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
