// Package rankdb persists ranking-run snapshots so trends can be
// computed across runs. The indexer itself stays memory-resident; this
// store is an analytics sidecar, not a cache tier.
package rankdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database holding ranking snapshots and job cursors.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS snapshots (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  ts INTEGER NOT NULL,
	  subject INTEGER NOT NULL,
	  kind TEXT NOT NULL,
	  payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_subject_ts ON snapshots(subject, kind, ts);
	CREATE TABLE IF NOT EXISTS cursors (
	  key TEXT PRIMARY KEY,
	  value TEXT NOT NULL
	);
	`)
	return err
}

// Snapshot is one stored ranking run.
type Snapshot struct {
	TS      time.Time
	Subject uint64
	Kind    string
	Payload string
}

// PutSnapshot stores a ranking result (payload is JSON-marshaled).
func (d *DB) PutSnapshot(ctx context.Context, ts time.Time, subject uint64, kind string, payload any) error {
	pb, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx, `INSERT INTO snapshots(ts, subject, kind, payload) VALUES(?,?,?,?)`,
		ts.Unix(), int64(subject), kind, string(pb))
	return err
}

// LoadSnapshotsRange returns snapshots for subject/kind in [start, end).
func (d *DB) LoadSnapshotsRange(ctx context.Context, subject uint64, kind string, start, end time.Time) ([]Snapshot, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT ts, subject, kind, payload FROM snapshots WHERE subject=? AND kind=? AND ts>=? AND ts<? ORDER BY ts`,
		int64(subject), kind, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Snapshot
	for rows.Next() {
		var ts, subj int64
		var s Snapshot
		if err := rows.Scan(&ts, &subj, &s.Kind, &s.Payload); err != nil {
			return nil, err
		}
		s.TS = time.Unix(ts, 0).UTC()
		s.Subject = uint64(subj)
		out = append(out, s)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the most recent snapshot for subject/kind, or
// ok=false when none exists.
func (d *DB) LatestSnapshot(ctx context.Context, subject uint64, kind string) (Snapshot, bool, error) {
	row := d.sql.QueryRowContext(ctx,
		`SELECT ts, subject, kind, payload FROM snapshots WHERE subject=? AND kind=? ORDER BY ts DESC LIMIT 1`,
		int64(subject), kind)
	var ts, subj int64
	var s Snapshot
	if err := row.Scan(&ts, &subj, &s.Kind, &s.Payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}
	s.TS = time.Unix(ts, 0).UTC()
	s.Subject = uint64(subj)
	return s, true, nil
}

// SaveCursor stores an opaque job cursor under key.
func (d *DB) SaveCursor(ctx context.Context, key, value string) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO cursors(key, value) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

// LoadCursor returns the stored cursor for key, empty when unset.
func (d *DB) LoadCursor(ctx context.Context, key string) (string, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT value FROM cursors WHERE key=?`, key)
	var v string
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}
