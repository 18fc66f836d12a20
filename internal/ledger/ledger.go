// Package ledger is the shared SQLite staging store. The voice poller owns
// the voice_last_poll cursor and inserts one captures row per accepted file;
// downstream collaborators own all later status transitions.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrDuplicateCapture is returned when an insert collides with the unique
// (channel, channel_native_id) index.
var ErrDuplicateCapture = errors.New("capture already staged for this channel-native id")

// storeNow is the store-side UTC instant in the cursor wire format,
// YYYY-MM-DDTHH:MM:SSZ. Using the store's clock keeps the watermark immune
// to skew between the application host and the database file's host.
const storeNow = `strftime('%Y-%m-%dT%H:%M:%SZ','now')`

const schema = `
CREATE TABLE IF NOT EXISTS captures (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL,
	raw_content TEXT NOT NULL DEFAULT '',
	meta_json   TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_captures_channel_native
	ON captures (json_extract(meta_json, '$.channel'), json_extract(meta_json, '$.channel_native_id'));
CREATE TABLE IF NOT EXISTS sync_state (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// Capture is one staged row in the captures table.
type Capture struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	Status     string `json:"status"`
	RawContent string `json:"raw_content"`
	MetaJSON   string `json:"meta_json"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// Ledger wraps the SQLite connection.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path and ensures
// the schema exists.
func Open(path string) (*Ledger, error) {
	u := &url.URL{Scheme: "file", Path: path, RawQuery: "_pragma=busy_timeout(5000)"}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the underlying connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// GetSyncState reads one cursor value. The second return is false when the
// key has never been written.
func (l *Ledger) GetSyncState(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := l.db.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading sync_state %s: %w", key, err)
	}
	return value, true, nil
}

// PutSyncState upserts an explicit cursor value.
func (l *Ledger) PutSyncState(ctx context.Context, key, value string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sync_state (key, value, updated_at) VALUES (?, ?, `+storeNow+`)`,
		key, value)
	if err != nil {
		return fmt.Errorf("writing sync_state %s: %w", key, err)
	}
	return nil
}

// TouchSyncState upserts the cursor with the store's current UTC instant.
func (l *Ledger) TouchSyncState(ctx context.Context, key string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sync_state (key, value, updated_at) VALUES (?, `+storeNow+`, `+storeNow+`)`,
		key)
	if err != nil {
		return fmt.Errorf("touching sync_state %s: %w", key, err)
	}
	return nil
}

// ParseCursor converts a stored cursor string into an instant. Unparseable
// or missing cursors behave like a first run.
func ParseCursor(value string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

const captureColumns = `id, source, status, raw_content, meta_json, created_at, updated_at`

func scanCapture(row interface{ Scan(...any) error }) (*Capture, error) {
	var c Capture
	err := row.Scan(&c.ID, &c.Source, &c.Status, &c.RawContent, &c.MetaJSON, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindCaptureByNativeID looks up a staged capture by its channel and
// channel-native id via JSON extraction on meta_json. Returns nil when no
// row matches.
func (l *Ledger) FindCaptureByNativeID(ctx context.Context, channel, nativeID string) (*Capture, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+captureColumns+` FROM captures
		 WHERE json_extract(meta_json, '$.channel') = ?
		   AND json_extract(meta_json, '$.channel_native_id') = ?`,
		channel, nativeID)

	c, err := scanCapture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying capture by native id: %w", err)
	}
	return c, nil
}

// GetCapture fetches one capture by id. Returns nil when absent.
func (l *Ledger) GetCapture(ctx context.Context, id string) (*Capture, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+captureColumns+` FROM captures WHERE id = ?`, id)

	c, err := scanCapture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying capture %s: %w", id, err)
	}
	return c, nil
}

// InsertCapture stages one row. Timestamps come from the store's clock.
// A collision on (channel, channel_native_id) yields ErrDuplicateCapture.
func (l *Ledger) InsertCapture(ctx context.Context, id, source, status, rawContent, metaJSON string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO captures (id, source, status, raw_content, meta_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, `+storeNow+`, `+storeNow+`)`,
		id, source, status, rawContent, metaJSON)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateCapture
		}
		return fmt.Errorf("inserting capture %s: %w", id, err)
	}
	return nil
}

// UpdateCaptureStatus moves a capture to a new status, refreshing
// updated_at from the store's clock.
func (l *Ledger) UpdateCaptureStatus(ctx context.Context, id, status string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE captures SET status = ?, updated_at = `+storeNow+` WHERE id = ?`,
		status, id)
	if err != nil {
		return fmt.Errorf("updating capture %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("capture %s not found", id)
	}
	return nil
}

// RecentCaptures returns up to limit captures, newest first. Capture ids are
// time-sortable, so ordering by id is ordering by stage time.
func (l *Ledger) RecentCaptures(ctx context.Context, limit int) ([]Capture, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+captureColumns+` FROM captures ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent captures: %w", err)
	}
	defer rows.Close()

	captures := make([]Capture, 0, limit)
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		captures = append(captures, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return captures, nil
}
