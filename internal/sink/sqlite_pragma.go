package sink

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/pkg/errors"
)

// tuningPragmas trade a little durability for write latency. The bot writes
// one row per edit or delete, so checkpoints stay small.
var tuningPragmas = []string{
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA busy_timeout=5000;",
	"PRAGMA wal_autocheckpoint=1000;",
	"PRAGMA temp_store=MEMORY;",
	"PRAGMA mmap_size=268435456;",
}

// PragmaResult is the outcome of one tuning statement.
type PragmaResult struct {
	Pragma string
	Value  any
	Err    error
}

// Tune applies the tuning pragmas. A failing pragma is reported and the rest
// still run.
func (s *SQLiteSink) Tune(ctx context.Context) []PragmaResult {
	out := make([]PragmaResult, 0, len(tuningPragmas))
	for _, pragma := range tuningPragmas {
		value, err := applyPragma(ctx, s.db, pragma)
		if err != nil {
			slog.Warn("sqlite: pragma failed", "pragma", pragma, "err", err)
		} else {
			slog.Info("sqlite: pragma", "pragma", pragma, "value", value)
		}
		out = append(out, PragmaResult{Pragma: pragma, Value: value, Err: err})
	}
	return out
}

// Setting pragmas return no row; reading ones return the new value.
func applyPragma(ctx context.Context, db *sql.DB, pragma string) (any, error) {
	var value any
	err := db.QueryRowContext(ctx, pragma).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			return nil, errors.Wrap(execErr, "exec pragma")
		}
		return "ok", nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query pragma")
	}
	return value, nil
}
