package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// SQL is a Store backed by database/sql. Placeholders follow the driver:
// "?" for sqlite3 and "$n" for postgres.
type SQL struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and creates any missing tables.
func Open(driver, dsn string) (*SQL, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQL{db: db, driver: driver}
	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *SQL) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *SQL) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging %s: %w", s.driver, err)
	}
	return nil
}

func (s *SQL) placeholder(n int) string {
	if s.driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// buildSelect renders q as SQL with its arguments.
func (s *SQL) buildSelect(q Query) (string, []any, error) {
	if err := validIdent(q.Table); err != nil {
		return "", nil, err
	}
	cols := "*"
	if len(q.Columns) > 0 {
		if err := validIdent(q.Columns...); err != nil {
			return "", nil, err
		}
		cols = strings.Join(q.Columns, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, q.Table)

	var args []any
	for i, f := range q.Filters {
		if err := validIdent(f.Column); err != nil {
			return "", nil, err
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		if f.Op == OpIn {
			vs := inValues(f.Value)
			if len(vs) == 0 {
				b.WriteString("1 = 0")
				continue
			}
			marks := make([]string, len(vs))
			for j, v := range vs {
				args = append(args, v)
				marks[j] = s.placeholder(len(args))
			}
			fmt.Fprintf(&b, "%s IN (%s)", f.Column, strings.Join(marks, ", "))
			continue
		}
		args = append(args, normalize(f.Value))
		fmt.Fprintf(&b, "%s %s %s", f.Column, opSQL[f.Op], s.placeholder(len(args)))
	}

	if q.OrderBy != "" {
		if err := validIdent(q.OrderBy); err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&b, " ORDER BY %s", q.OrderBy)
		if q.Desc {
			b.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), args, nil
}

var opSQL = map[Op]string{
	OpEq:  "=",
	OpNeq: "<>",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
}

// Select runs q and returns every row.
func (s *SQL) Select(ctx context.Context, q Query) ([]Row, error) {
	query, args, err := s.buildSelect(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading %s columns: %w", q.Table, err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", q.Table, err)
		}
		r := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				r[c] = string(b)
			} else {
				r[c] = values[i]
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// buildUpsert renders one multi-row INSERT ... ON CONFLICT DO UPDATE.
// Columns are the sorted union of every row's keys; absent values are NULL.
func (s *SQL) buildUpsert(table string, rows []Row, conflict []string) (string, []any, error) {
	if err := validIdent(table); err != nil {
		return "", nil, err
	}
	if err := validIdent(conflict...); err != nil {
		return "", nil, err
	}

	seen := make(map[string]bool)
	var cols []string
	for _, r := range rows {
		for c := range r {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	sort.Strings(cols)
	if err := validIdent(cols...); err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, strings.Join(cols, ", "))

	args := make([]any, 0, len(rows)*len(cols))
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		marks := make([]string, len(cols))
		for j, c := range cols {
			args = append(args, normalize(r[c]))
			marks[j] = s.placeholder(len(args))
		}
		fmt.Fprintf(&b, "(%s)", strings.Join(marks, ", "))
	}

	if len(conflict) > 0 {
		isKey := make(map[string]bool, len(conflict))
		for _, c := range conflict {
			isKey[c] = true
		}
		var sets []string
		for _, c := range cols {
			if !isKey[c] {
				sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
			}
		}
		fmt.Fprintf(&b, " ON CONFLICT (%s)", strings.Join(conflict, ", "))
		if len(sets) == 0 {
			b.WriteString(" DO NOTHING")
		} else {
			fmt.Fprintf(&b, " DO UPDATE SET %s", strings.Join(sets, ", "))
		}
	}
	return b.String(), args, nil
}

// Upsert writes rows in a single transaction.
func (s *SQL) Upsert(ctx context.Context, table string, rows []Row, conflict []string) error {
	rows = dedupe(rows, conflict)
	if len(rows) == 0 {
		return nil
	}
	query, args, err := s.buildUpsert(table, rows, conflict)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert into %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		tx.Rollback()
		return fmt.Errorf("upserting %d rows into %s: %w", len(rows), table, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert into %s: %w", table, err)
	}
	return nil
}
