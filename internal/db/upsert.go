package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Upsert describes a bulk insert-or-update against one table. Rows are
// staged through a session temp table with COPY, then folded into the
// target with a single INSERT ... ON CONFLICT.
type Upsert struct {
	Table        string   // target table, optionally schema-qualified
	Columns      []string // column order for every row
	ConflictKeys []string // unique constraint columns
	UpdateCols   []string // overwritten on conflict; nil means every non-key column
}

// Run stages rows and executes the upsert inside one transaction,
// returning the number of rows written to the target table.
func (u Upsert) Run(ctx context.Context, pool Pool, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(u.Columns) == 0 {
		return 0, eris.New("db: upsert: no columns specified")
	}
	if len(u.ConflictKeys) == 0 {
		return 0, eris.New("db: upsert: no conflict keys specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx)

	staging := "_stage_" + strings.ReplaceAll(u.Table, ".", "_")
	create := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{staging}.Sanitize(),
		sanitizeTable(u.Table),
	)
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: stage table for %s", u.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{staging}, u.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: copy into stage for %s", u.Table)
	}

	cols := quoteAndJoin(u.Columns)
	merge := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		sanitizeTable(u.Table),
		cols,
		cols,
		pgx.Identifier{staging}.Sanitize(),
		quoteAndJoin(u.ConflictKeys),
		u.setClause(),
	)
	tag, err := tx.Exec(ctx, merge)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", u.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

// setClause renders the DO UPDATE assignments. With UpdateCols unset,
// every column outside the conflict key is overwritten from EXCLUDED.
func (u Upsert) setClause() string {
	cols := u.UpdateCols
	if cols == nil {
		keys := make(map[string]bool, len(u.ConflictKeys))
		for _, k := range u.ConflictKeys {
			keys[k] = true
		}
		for _, c := range u.Columns {
			if !keys[c] {
				cols = append(cols, c)
			}
		}
	}

	assign := make([]string, len(cols))
	for i, c := range cols {
		q := pgx.Identifier{c}.Sanitize()
		assign[i] = q + " = EXCLUDED." + q
	}
	return strings.Join(assign, ", ")
}

// sanitizeTable quotes a table name, splitting an "outreach.businesses"
// style schema qualifier into two identifiers.
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
