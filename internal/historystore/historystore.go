// Package historystore persists an optional lifecycle/event history to a
// local SQLite database, enabled by the --history-db flag. This is a
// supplemental feature: the original implementation's supervisor emits
// state-transition log lines but never keeps them queryable after the
// process log has rotated away; this package gives operators a durable,
// queryable record of the same transitions. Grounded in the teacher's
// preference for a single struct owning a *sql.DB plus small, focused
// query methods (internal/config's FileConfig load/save shape), using
// modernc.org/sqlite — the pure-Go driver the rest of the example corpus
// favors over cgo-based drivers.
package historystore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
)

// Store owns a SQLite-backed event log.
type Store struct {
	db *sql.DB
}

// Event is one recorded lifecycle transition.
type Event struct {
	ID       int64     `json:"id"`
	Time     time.Time `json:"time"`
	ConfigID string    `json:"config_id"`
	AppID    string    `json:"app_id"`
	Kind     string    `json:"kind"`
	Detail   string    `json:"detail,omitempty"`
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	ts        TEXT NOT NULL,
	config_id TEXT NOT NULL,
	app_id    TEXT NOT NULL,
	kind      TEXT NOT NULL,
	detail    TEXT
);
CREATE INDEX IF NOT EXISTS events_by_app ON events(config_id, app_id, ts);
`

// Open creates (if needed) and opens the SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY churn
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Record inserts one lifecycle event. kind is a short tag such as
// "started", "stopped", "restarted", "crashed", "build_failed".
func (s *Store) Record(ctx context.Context, configID, appID, kind, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (ts, config_id, app_id, kind, detail) VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), configID, appID, kind, detail)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// RecordStatus is a convenience wrapper that records a status snapshot's
// state as the event kind, used by the Process Manager for each application
// after a group start or stop.
func (s *Store) RecordStatus(ctx context.Context, configID string, st appmodel.ApplicationStatus) error {
	detail := st.ErrorMessage
	return s.Record(ctx, configID, st.AppID, string(st.State), detail)
}

// Recent returns up to limit events for (configID, appID), newest first. An
// empty appID matches every application in configID.
func (s *Store) Recent(ctx context.Context, configID, appID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if appID == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, ts, config_id, app_id, kind, detail FROM events WHERE config_id = ? ORDER BY id DESC LIMIT ?`,
			configID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, ts, config_id, app_id, kind, detail FROM events WHERE config_id = ? AND app_id = ? ORDER BY id DESC LIMIT ?`,
			configID, appID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var e Event
		var ts string
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.ConfigID, &e.AppID, &e.Kind, &detail); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Time = t
		}
		e.Detail = detail.String
		out = append(out, e)
	}
	return out, rows.Err()
}
