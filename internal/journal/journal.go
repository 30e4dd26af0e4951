// Package journal records every applied simulation action in SQLite for the
// session. With the default ":memory:" path nothing outlives the process.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database behind the action journal.
type DB struct{ sql *sql.DB }

// Open opens (or creates) the journal at path. ":memory:" keeps the journal
// session-scoped.
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
	CREATE TABLE IF NOT EXISTS actions (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  ts INTEGER NOT NULL,
	  type TEXT NOT NULL,
	  actor TEXT NOT NULL,
	  detail TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_actions_ts ON actions(ts);
	CREATE INDEX IF NOT EXISTS idx_actions_type ON actions(type);
	`)
	return err
}

// Action is one applied mutation.
type Action struct {
	TS     time.Time
	Type   string
	Actor  string
	Detail string
}

// PutAction records an applied action.
func (d *DB) PutAction(ctx context.Context, ts time.Time, typ, actor string, detail any) error {
	var ds string
	if detail != nil {
		b, _ := json.Marshal(detail)
		ds = string(b)
	}
	_, err := d.sql.ExecContext(ctx, `INSERT INTO actions(ts, type, actor, detail) VALUES(?,?,?,?)`,
		ts.Unix(), typ, actor, ds)
	return err
}

// CountActions returns how many actions of the given type exist; an empty
// type counts everything.
func (d *DB) CountActions(ctx context.Context, typ string) (int, error) {
	var n int
	var err error
	if typ == "" {
		err = d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM actions`).Scan(&n)
	} else {
		err = d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM actions WHERE type=?`, typ).Scan(&n)
	}
	return n, err
}

// LoadActionsRange returns actions in [start, end), oldest first, optionally
// filtered by type.
func (d *DB) LoadActionsRange(ctx context.Context, start, end time.Time, typ string) ([]Action, error) {
	var rows *sql.Rows
	var err error
	if typ == "" {
		rows, err = d.sql.QueryContext(ctx, `SELECT ts, type, actor, COALESCE(detail,'') FROM actions WHERE ts>=? AND ts<? ORDER BY ts`, start.Unix(), end.Unix())
	} else {
		rows, err = d.sql.QueryContext(ctx, `SELECT ts, type, actor, COALESCE(detail,'') FROM actions WHERE ts>=? AND ts<? AND type=? ORDER BY ts`, start.Unix(), end.Unix(), typ)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Action
	for rows.Next() {
		var ts int64
		var a Action
		if err := rows.Scan(&ts, &a.Type, &a.Actor, &a.Detail); err != nil {
			return nil, err
		}
		a.TS = time.Unix(ts, 0).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}
