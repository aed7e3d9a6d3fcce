package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mirrorhop/mirrorhop/pkg/scanner"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS scans (
  id           TEXT PRIMARY KEY,
  started_at   DATETIME NOT NULL,
  duration_ms  INTEGER NOT NULL,
  window_days  INTEGER NOT NULL,
  selected_url TEXT NOT NULL DEFAULT '',
  accepted     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_scans_time ON scans(started_at);
CREATE TABLE IF NOT EXISTS probe_outcomes (
  id          INTEGER PRIMARY KEY,
  scan_id     TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
  position    INTEGER NOT NULL,
  url         TEXT NOT NULL,
  kind        TEXT NOT NULL CHECK (kind IN ('accepted','rejected_status','rejected_size','errored')),
  status_code INTEGER NOT NULL DEFAULT 0,
  bytes_read  INTEGER NOT NULL DEFAULT 0,
  stage       TEXT NOT NULL DEFAULT '',
  error       TEXT NOT NULL DEFAULT '',
  title       TEXT NOT NULL DEFAULT '',
  elapsed_ms  INTEGER NOT NULL DEFAULT 0,
  UNIQUE(scan_id, position)
);
CREATE INDEX IF NOT EXISTS idx_outcomes_scan ON probe_outcomes(scan_id, position);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// RecordScan stores a scan and its outcomes. Cached results carry no probe
// data and are skipped.
func (d *DB) RecordScan(ctx context.Context, res scanner.Result) (err error) {
	if res.Cached {
		return nil
	}
	if res.ID == "" {
		return errors.New("scan result has no id")
	}

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO scans(id, started_at, duration_ms, window_days, selected_url, accepted) VALUES(?,?,?,?,?,?)`,
		res.ID, res.StartedAt.UTC(), res.Duration.Milliseconds(), len(res.Candidates), res.Selected, res.Accepted())
	if err != nil {
		return err
	}

	for i, o := range res.Outcomes {
		_, err = tx.ExecContext(ctx, `INSERT INTO probe_outcomes(scan_id, position, url, kind, status_code, bytes_read, stage, error, title, elapsed_ms) VALUES(?,?,?,?,?,?,?,?,?,?)`,
			res.ID, i, o.URL, string(o.Kind), o.StatusCode, o.BytesRead, string(o.Stage), o.ErrorString(), o.Title, o.Elapsed.Milliseconds())
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListScans returns up to limit scans, newest first. limit <= 0 means all.
func (d *DB) ListScans(ctx context.Context, limit int) ([]Scan, error) {
	q := `SELECT id, started_at, duration_ms, window_days, selected_url, accepted FROM scans ORDER BY started_at DESC, rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Scan
	for rows.Next() {
		var (
			s  Scan
			ms int64
		)
		if err := rows.Scan(&s.ID, &s.StartedAt, &ms, &s.WindowDays, &s.SelectedURL, &s.Accepted); err != nil {
			return nil, err
		}
		s.Duration = msToDuration(ms)
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListOutcomes returns the outcomes of one scan in candidate order.
func (d *DB) ListOutcomes(ctx context.Context, scanID string) ([]Outcome, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT scan_id, position, url, kind, status_code, bytes_read, stage, error, title, elapsed_ms FROM probe_outcomes WHERE scan_id = ? ORDER BY position`, scanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var (
			o  Outcome
			ms int64
		)
		if err := rows.Scan(&o.ScanID, &o.Position, &o.URL, &o.Kind, &o.StatusCode, &o.BytesRead, &o.Stage, &o.Error, &o.Title, &ms); err != nil {
			return nil, err
		}
		o.Elapsed = msToDuration(ms)
		out = append(out, o)
	}
	return out, rows.Err()
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
