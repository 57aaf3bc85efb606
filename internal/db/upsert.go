package db

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes a bulk merge into one table.
type UpsertConfig struct {
	Table        string   // target table, optionally schema-qualified
	Columns      []string // columns present in every row
	ConflictKeys []string // columns forming the unique constraint
	UpdateCols   []string // columns overwritten on conflict; nil = every non-key column
}

// BulkUpsert loads rows into a temp table with COPY, then merges them into
// the target with INSERT ... ON CONFLICT, all in one transaction. Running it
// twice with the same rows leaves the table unchanged.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return 0, eris.New("db: upsert: no conflict keys specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	temp := tempTableName(cfg.Table)
	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{temp}.Sanitize(), sanitizeTable(cfg.Table),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create temp table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{temp}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY into temp table for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, mergeSQL(cfg, temp))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", cfg.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

func tempTableName(table string) string {
	return "_tmp_upsert_" + strings.ReplaceAll(table, ".", "_")
}

// mergeSQL builds the INSERT ... SELECT ... ON CONFLICT statement. When no
// column is left to update the conflict is ignored.
func mergeSQL(cfg UpsertConfig, temp string) string {
	update := cfg.UpdateCols
	if update == nil {
		for _, c := range cfg.Columns {
			if !slices.Contains(cfg.ConflictKeys, c) {
				update = append(update, c)
			}
		}
	}

	cols := quoteAndJoin(cfg.Columns)
	action := "DO NOTHING"
	if len(update) > 0 {
		sets := make([]string, 0, len(update))
		for _, c := range update {
			q := pgx.Identifier{c}.Sanitize()
			sets = append(sets, q+" = EXCLUDED."+q)
		}
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		sanitizeTable(cfg.Table), cols, cols, pgx.Identifier{temp}.Sanitize(),
		quoteAndJoin(cfg.ConflictKeys), action,
	)
}

// sanitizeTable quotes a table name, splitting an optional schema prefix.
func sanitizeTable(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
