package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
)

const schemaVersion = 1

type sqliteColumn struct {
	Name        string
	Type        string
	NotNull     bool
	DefaultText string
}

// migrateSQLite upgrades databases written by older builds: it backfills
// old_content for rows that predate the column, adds the owner/time index
// used by the dashboard query and stamps user_version.
func migrateSQLite(ctx context.Context, db *sql.DB) error {
	path := sqlitePath(ctx, db)
	userVersion, err := sqliteUserVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("sqlite: user_version: %w", err)
	}

	log.Printf("eternalmod: sqlite: path=%s user_version=%d", path, userVersion)

	columns, err := sqliteTableInfo(ctx, db, "events")
	if err != nil {
		return fmt.Errorf("sqlite: describe events: %w", err)
	}
	if len(columns) == 0 {
		log.Printf("eternalmod: sqlite: events table missing; skipping migration")
		return nil
	}

	if _, ok := columns["old_content"]; !ok {
		if _, err := db.ExecContext(ctx, `ALTER TABLE events ADD COLUMN old_content TEXT NULL;`); err != nil {
			return fmt.Errorf("sqlite: ensure old_content column: %w", err)
		}
		log.Printf("eternalmod: sqlite: added old_content column to events")
	}

	res, err := db.ExecContext(ctx, `UPDATE events SET author='' WHERE author IS NULL;`)
	if err != nil {
		return fmt.Errorf("sqlite: normalize author: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Printf("eternalmod: sqlite: normalized author nulls=%d", n)
	}

	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS events_owner_ts
        ON events(owner_id, timestamp);`); err != nil {
		return fmt.Errorf("sqlite: ensure events_owner_ts: %w", err)
	}

	hasIndex, err := sqliteHasIndex(ctx, db, "events", "events_owner_ts")
	if err != nil {
		return fmt.Errorf("sqlite: inspect indices: %w", err)
	}

	if userVersion < schemaVersion {
		if _, err := db.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version=%d;`, schemaVersion)); err != nil {
			return fmt.Errorf("sqlite: set user_version: %w", err)
		}
	}

	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events;`).Scan(&total); err != nil {
		return fmt.Errorf("sqlite: count events: %w", err)
	}

	log.Printf("eternalmod: sqlite: events=%d events_owner_ts=%v schema_version=%d", total, hasIndex, schemaVersion)
	return nil
}

func sqlitePath(ctx context.Context, db *sql.DB) string {
	rows, err := db.QueryContext(ctx, `PRAGMA database_list;`)
	if err != nil {
		return "(unknown)"
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq  int
			name string
			file sql.NullString
		)
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return "(unknown)"
		}
		if strings.EqualFold(strings.TrimSpace(name), "main") {
			if file.Valid && strings.TrimSpace(file.String) != "" {
				return file.String
			}
			return "(memory)"
		}
	}
	return "(unknown)"
}

func sqliteUserVersion(ctx context.Context, db *sql.DB) (int, error) {
	var userVersion int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&userVersion); err != nil {
		return 0, err
	}
	return userVersion, nil
}

func sqliteTableInfo(ctx context.Context, db *sql.DB, table string) (map[string]sqliteColumn, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s);`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]sqliteColumn)
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		out[strings.ToLower(strings.TrimSpace(name))] = sqliteColumn{
			Name:        name,
			Type:        strings.TrimSpace(colType),
			NotNull:     notNull == 1,
			DefaultText: strings.TrimSpace(defaultVal.String),
		}
	}
	return out, rows.Err()
}

func sqliteHasIndex(ctx context.Context, db *sql.DB, table, index string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA index_list('%s');`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return false, err
		}
		if strings.EqualFold(strings.TrimSpace(name), index) {
			return true, nil
		}
	}
	return false, rows.Err()
}
