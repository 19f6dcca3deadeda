// Package store is the generic query interface the engine reads and writes
// through: filtered selects and upserts keyed on conflict columns, with no
// assumed SQL dialect.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidIdentifier is returned for table or column names outside [a-z0-9_].
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Row is one record keyed by column name.
type Row map[string]any

// Op is a filter comparison.
type Op int

const (
	OpEq Op = iota
	OpNeq
	OpGt
	OpGte
	OpLt
	OpIn
)

// Filter restricts a select to rows where Column Op Value holds.
// For OpIn, Value is a []string, []any or []int.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

func Eq(col string, v any) Filter  { return Filter{Column: col, Op: OpEq, Value: v} }
func Neq(col string, v any) Filter { return Filter{Column: col, Op: OpNeq, Value: v} }
func Gt(col string, v any) Filter  { return Filter{Column: col, Op: OpGt, Value: v} }
func Gte(col string, v any) Filter { return Filter{Column: col, Op: OpGte, Value: v} }
func Lt(col string, v any) Filter  { return Filter{Column: col, Op: OpLt, Value: v} }

// In matches any of values.
func In[T any](col string, values []T) Filter {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Filter{Column: col, Op: OpIn, Value: vs}
}

// Query describes a select. Empty Columns selects every column; Limit 0 means
// no limit.
type Query struct {
	Table   string
	Columns []string
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Store is implemented by SQL and Memory.
type Store interface {
	Select(ctx context.Context, q Query) ([]Row, error)
	// Upsert inserts rows, replacing any existing row that matches on the
	// conflict columns. Within one call the last row for a key wins.
	Upsert(ctx context.Context, table string, rows []Row, conflict []string) error
	Ping(ctx context.Context) error
	Close() error
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validIdent(names ...string) error {
	for _, n := range names {
		if !identRe.MatchString(n) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, n)
		}
	}
	return nil
}

// inValues flattens the value of an OpIn filter.
func inValues(v any) []any {
	switch vs := v.(type) {
	case []any:
		return vs
	case []string:
		out := make([]any, len(vs))
		for i, s := range vs {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(vs))
		for i, n := range vs {
			out[i] = n
		}
		return out
	}
	return []any{v}
}

// dedupe keeps the last row per conflict key, in first-seen key order.
func dedupe(rows []Row, conflict []string) []Row {
	if len(conflict) == 0 {
		return rows
	}
	idx := make(map[string]int, len(rows))
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		k := rowKey(r, conflict)
		if i, ok := idx[k]; ok {
			out[i] = r
			continue
		}
		idx[k] = len(out)
		out = append(out, r)
	}
	return out
}
