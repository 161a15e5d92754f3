package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingDefaultChat is returned by backfills that must assign existing rows
// to a chat when no default group chat id is configured.
var ErrMissingDefaultChat = errors.New("migration.default_group_chat_id is required to backfill existing rows")

// Options carries deployment values consumed by backfills.
type Options struct {
	DefaultGroupChatID string
}

// Scope is the handle a step works through. It wraps the step's transaction.
type Scope struct {
	tx   *sql.Tx
	opts Options
}

// Exec runs a raw statement inside the step's transaction.
func (s *Scope) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := s.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exec %q: %w", firstLine(query), err)
	}
	return res, nil
}

// ExecAll runs statements in order, stopping at the first failure.
func (s *Scope) ExecAll(ctx context.Context, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := s.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Query runs a query inside the step's transaction. Callers must close the rows
// before issuing the next statement.
func (s *Scope) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", firstLine(query), err)
	}
	return rows, nil
}

// QueryRow runs a single-row query inside the step's transaction.
func (s *Scope) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.tx.QueryRowContext(ctx, query, args...)
}

// AddColumn adds a column. def is the full column definition after the name.
func (s *Scope) AddColumn(ctx context.Context, table, column, def string) error {
	_, err := s.Exec(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, def))
	return err
}

// DropColumn drops a column if present.
func (s *Scope) DropColumn(ctx context.Context, table, column string) error {
	_, err := s.Exec(ctx, fmt.Sprintf(`ALTER TABLE %s DROP COLUMN IF EXISTS %s`, table, column))
	return err
}

// RenameColumn renames a column in place.
func (s *Scope) RenameColumn(ctx context.Context, table, from, to string) error {
	_, err := s.Exec(ctx, fmt.Sprintf(`ALTER TABLE %s RENAME COLUMN %s TO %s`, table, from, to))
	return err
}

// RenameTable renames a table.
func (s *Scope) RenameTable(ctx context.Context, from, to string) error {
	_, err := s.Exec(ctx, fmt.Sprintf(`ALTER TABLE %s RENAME TO %s`, from, to))
	return err
}

// DropTableIfExists drops a table and anything depending on it.
func (s *Scope) DropTableIfExists(ctx context.Context, table string) error {
	_, err := s.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s CASCADE`, table))
	return err
}

// CreateIndex creates an index if it does not exist.
func (s *Scope) CreateIndex(ctx context.Context, name, table string, columns ...string) error {
	_, err := s.Exec(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`,
		name, table, strings.Join(columns, ", ")))
	return err
}

// CreateUniqueIndex creates a unique index if it does not exist.
func (s *Scope) CreateUniqueIndex(ctx context.Context, name, table string, columns ...string) error {
	_, err := s.Exec(ctx, fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)`,
		name, table, strings.Join(columns, ", ")))
	return err
}

// DropIndex drops an index if it exists.
func (s *Scope) DropIndex(ctx context.Context, name string) error {
	_, err := s.Exec(ctx, fmt.Sprintf(`DROP INDEX IF EXISTS %s`, name))
	return err
}

// RowCount returns the number of rows in table matching the optional where clause.
func (s *Scope) RowCount(ctx context.Context, table, where string, args ...any) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)
	if where != "" {
		query += " WHERE " + where
	}
	var n int64
	if err := s.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// ColumnExists reports whether table has column in the current schema.
func (s *Scope) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
		)`
	var exists bool
	if err := s.QueryRow(ctx, query, table, column).Scan(&exists); err != nil {
		return false, fmt.Errorf("check column %s.%s: %w", table, column, err)
	}
	return exists, nil
}

// DefaultChatFor returns the configured default group chat id when table has
// rows matching where. When no rows would be affected it returns "" and no
// error, so fresh databases migrate without the setting.
func (s *Scope) DefaultChatFor(ctx context.Context, table, where string, args ...any) (string, error) {
	n, err := s.RowCount(ctx, table, where, args...)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	if s.opts.DefaultGroupChatID == "" {
		return "", fmt.Errorf("%w: %d rows in %s", ErrMissingDefaultChat, n, table)
	}
	return s.opts.DefaultGroupChatID, nil
}

// Rebuild describes a table rebuilt through a shadow copy.
type Rebuild struct {
	// Table is the table being replaced.
	Table string
	// Columns is the new column list, one definition per entry.
	Columns []string
	// PrimaryKey lists the new key columns; empty for none.
	PrimaryKey []string
	// Insert lists the shadow columns filled by Select.
	Insert []string
	// Select produces the shadow rows from the original table. Positional
	// arguments are passed through from Args.
	Select string
	Args   []any
	// Indexes are statements run after the shadow is renamed into place.
	Indexes []string
}

// RebuildTable replaces a table with a new shape: drop any leftover shadow,
// create the shadow, copy-transform rows, drop the original, rename the shadow
// into place and recreate indexes. The primary key constraint is renamed to
// <table>_pkey so a later rebuild of the same table does not collide.
func (s *Scope) RebuildTable(ctx context.Context, r Rebuild) error {
	shadow := "_" + r.Table + "_new"

	defs := append([]string{}, r.Columns...)
	if len(r.PrimaryKey) > 0 {
		defs = append(defs, fmt.Sprintf("CONSTRAINT %s_pkey PRIMARY KEY (%s)", shadow, strings.Join(r.PrimaryKey, ", ")))
	}

	if err := s.DropTableIfExists(ctx, shadow); err != nil {
		return err
	}
	if _, err := s.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", shadow, strings.Join(defs, ",\n\t"))); err != nil {
		return err
	}
	if _, err := s.Exec(ctx, fmt.Sprintf("INSERT INTO %s (%s)\n%s", shadow, strings.Join(r.Insert, ", "), r.Select), r.Args...); err != nil {
		return err
	}
	if _, err := s.Exec(ctx, fmt.Sprintf(`DROP TABLE %s`, r.Table)); err != nil {
		return err
	}
	if err := s.RenameTable(ctx, shadow, r.Table); err != nil {
		return err
	}
	if len(r.PrimaryKey) > 0 {
		if _, err := s.Exec(ctx, fmt.Sprintf(`ALTER TABLE %s RENAME CONSTRAINT %s_pkey TO %s_pkey`, r.Table, shadow, r.Table)); err != nil {
			return err
		}
	}
	return s.ExecAll(ctx, r.Indexes...)
}

func firstLine(q string) string {
	q = strings.TrimSpace(q)
	if i := strings.IndexByte(q, '\n'); i >= 0 {
		return q[:i] + " ..."
	}
	return q
}
