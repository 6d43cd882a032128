// Package journal records every bridge message in a SQLite database so a
// session can be inspected after the fact.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"pkt.systems/hamsterbridge/internal/transport"
	"pkt.systems/hamsterbridge/schema"
	"pkt.systems/pslog"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 200

const createSQL = `
CREATE TABLE IF NOT EXISTS messages (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	conn_id TEXT NOT NULL,
	direction TEXT NOT NULL CHECK(direction IN ('in','out')),
	command TEXT NOT NULL,
	payload TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_command ON messages(command);
`

// Entry is one recorded message.
type Entry struct {
	Seq        int64               `json:"seq"`
	ConnID     string              `json:"conn_id"`
	Direction  transport.Direction `json:"direction"`
	Command    schema.Command      `json:"command"`
	Payload    json.RawMessage     `json:"payload"`
	RecordedAt time.Time           `json:"recorded_at"`
}

// Store is a SQLite backed message journal.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the journal at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends one message and returns its sequence number.
func (s *Store) Record(ctx context.Context, connID string, dir transport.Direction, msg schema.Message) (int64, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("encode message: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO messages(conn_id, direction, command, payload, recorded_at)
VALUES (?, ?, ?, ?, ?)
`, connID, string(dir), string(msg.Command()), string(payload), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	return res.LastInsertId()
}

// Observe records msg and logs failures. It satisfies transport.Observer.
func (s *Store) Observe(ctx context.Context, connID string, dir transport.Direction, msg schema.Message) {
	// The connection context may already be ending; the write must still land.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if _, err := s.Record(writeCtx, connID, dir, msg); err != nil {
		pslog.Ctx(ctx).Warn("journal record failed", "command", msg.Command(), "err", err)
	}
}

// List returns entries with seq greater than after, oldest first.
func (s *Store) List(ctx context.Context, after int64, limit int) ([]Entry, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT seq, conn_id, direction, command, payload, recorded_at
FROM messages
WHERE seq > ?
ORDER BY seq
LIMIT ?
`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Entry
	for rows.Next() {
		var (
			entry    Entry
			dir      string
			command  string
			payload  string
			recorded string
		)
		if err := rows.Scan(&entry.Seq, &entry.ConnID, &dir, &command, &payload, &recorded); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		entry.Direction = transport.Direction(dir)
		entry.Command = schema.Command(command)
		entry.Payload = json.RawMessage(payload)
		if entry.RecordedAt, err = time.Parse(time.RFC3339Nano, recorded); err != nil {
			return nil, fmt.Errorf("parse recorded_at: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
