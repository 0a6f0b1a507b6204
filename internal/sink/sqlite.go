package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pkg/errors"

	"github.com/you/eternalmod/internal/core"
	"github.com/you/eternalmod/internal/httpapi"
)

const schema = `CREATE TABLE IF NOT EXISTS events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  owner_id INTEGER NOT NULL,
  event_type TEXT NOT NULL,
  author TEXT NOT NULL,
  content TEXT NOT NULL,
  old_content TEXT NULL,
  timestamp INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS seen_bots (
  bot_id TEXT PRIMARY KEY,
  first_seen_at INTEGER NOT NULL,
  first_seen_chat INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS scam_bots (
  bot_id TEXT PRIMARY KEY,
  reason TEXT NOT NULL DEFAULT '',
  added_by INTEGER NOT NULL DEFAULT 0,
  added_at INTEGER NOT NULL
);`

// SQLiteSink is the durable store for dashboard events and the bot ledgers.
type SQLiteSink struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// one writer keeps modernc from returning SQLITE_BUSY between goroutines
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	if _, err := db.Exec(`PRAGMA journal_mode=wal;`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "set WAL")
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Close() error { return s.db.Close() }

// DB exposes the handle for migrations.
func (s *SQLiteSink) DB() *sql.DB { return s.db }

func (s *SQLiteSink) Ping() error {
	return s.db.Ping()
}

func (s *SQLiteSink) String() string {
	return fmt.Sprintf("SQLiteSink{%p}", s.db)
}

// InsertEvent appends ev and returns its row id.
func (s *SQLiteSink) InsertEvent(ctx context.Context, ev core.Event) (int64, error) {
	const q = `INSERT INTO events (owner_id, event_type, author, content, old_content, timestamp)
VALUES (?, ?, ?, ?, ?, ?);`
	var old any
	if ev.OldContent != nil {
		old = *ev.OldContent
	}
	res, err := s.db.ExecContext(ctx, q, ev.OwnerID, string(ev.Type), ev.Author, ev.Content, old, ev.Timestamp)
	if err != nil {
		return 0, errors.Wrap(err, "insert event")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "event id")
	}
	return id, nil
}

// CountEvents returns how many events match filters for owner, ignoring the limit.
func (s *SQLiteSink) CountEvents(ctx context.Context, ownerID int64, filters httpapi.Filters) (int64, error) {
	query, args := buildEventQuery(ownerID, filters, true)
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return n, nil
}

// ListEvents returns owner's events newest first.
func (s *SQLiteSink) ListEvents(ctx context.Context, ownerID int64, filters httpapi.Filters) ([]core.Event, error) {
	query, args := buildEventQuery(ownerID, filters, false)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list events")
	}
	defer rows.Close()

	out := make([]core.Event, 0)
	for rows.Next() {
		var (
			ev  core.Event
			typ string
			old sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.OwnerID, &typ, &ev.Author, &ev.Content, &old, &ev.Timestamp); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		ev.Type = core.EventType(typ)
		if old.Valid {
			value := old.String
			ev.OldContent = &value
		}
		out = append(out, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate events")
	}
	return out, nil
}

func buildEventQuery(ownerID int64, filters httpapi.Filters, count bool) (string, []any) {
	var builder strings.Builder
	if count {
		builder.WriteString("SELECT COUNT(*) FROM events")
	} else {
		builder.WriteString("SELECT id, owner_id, event_type, author, content, old_content, timestamp FROM events")
	}

	conditions := []string{"owner_id = ?"}
	args := []any{ownerID}

	if len(filters.Types) > 0 {
		placeholders := make([]string, 0, len(filters.Types))
		for _, typ := range filters.Types {
			placeholders = append(placeholders, "?")
			args = append(args, string(typ))
		}
		conditions = append(conditions, fmt.Sprintf("event_type IN (%s)", strings.Join(placeholders, ",")))
	}

	if filters.Since != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filters.Since.Unix())
	}

	builder.WriteString(" WHERE ")
	builder.WriteString(strings.Join(conditions, " AND "))

	if !count {
		builder.WriteString(" ORDER BY timestamp DESC, id DESC LIMIT ?")
		args = append(args, filters.EffectiveLimit())
	}

	builder.WriteString(";")
	return builder.String(), args
}

// MarkBotSeen records the first sighting of botID. It reports true only when
// this call inserted the row.
func (s *SQLiteSink) MarkBotSeen(ctx context.Context, botID string, chatID int64, at time.Time) (bool, error) {
	const q = `INSERT INTO seen_bots (bot_id, first_seen_at, first_seen_chat)
VALUES (?, ?, ?)
ON CONFLICT(bot_id) DO NOTHING;`
	res, err := s.db.ExecContext(ctx, q, botID, at.Unix(), chatID)
	if err != nil {
		return false, errors.Wrap(err, "insert seen bot")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "seen bot rows")
	}
	return n == 1, nil
}

// ForgetBot removes botID from the sighting ledger.
func (s *SQLiteSink) ForgetBot(ctx context.Context, botID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM seen_bots WHERE bot_id = ?;`, botID)
	return errors.Wrap(err, "delete seen bot")
}

// MarkScam adds botID to the scam registry, replacing an earlier verdict.
func (s *SQLiteSink) MarkScam(ctx context.Context, botID, reason string, addedBy int64, at time.Time) error {
	const q = `INSERT INTO scam_bots (bot_id, reason, added_by, added_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(bot_id) DO UPDATE SET reason = excluded.reason, added_by = excluded.added_by, added_at = excluded.added_at;`
	_, err := s.db.ExecContext(ctx, q, botID, reason, addedBy, at.Unix())
	return errors.Wrap(err, "insert scam bot")
}

// IsScam reports whether botID was marked as a scam.
func (s *SQLiteSink) IsScam(ctx context.Context, botID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scam_bots WHERE bot_id = ?;`, botID).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "lookup scam bot")
	}
	return n > 0, nil
}
