package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store for tests and dry runs. Values compare
// numerically when both sides are numbers and as text otherwise.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]Row
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string][]Row)}
}

// Insert appends rows without conflict handling.
func (m *Memory) Insert(table string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.tables[table] = append(m.tables[table], copyRow(r))
	}
}

// Select runs q against the table. Unknown tables are empty.
func (m *Memory) Select(ctx context.Context, q Query) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validIdent(q.Table); err != nil {
		return nil, err
	}

	m.mu.RLock()
	var out []Row
	for _, r := range m.tables[q.Table] {
		if matches(r, q.Filters) {
			out = append(out, copyRow(r))
		}
	}
	m.mu.RUnlock()

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := compare(out[i][q.OrderBy], out[j][q.OrderBy])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	if len(q.Columns) > 0 {
		for i, r := range out {
			projected := make(Row, len(q.Columns))
			for _, c := range q.Columns {
				projected[c] = r[c]
			}
			out[i] = projected
		}
	}
	return out, nil
}

// Upsert replaces rows matching on the conflict columns and appends the rest.
// Stored rows are replaced whole.
func (m *Memory) Upsert(ctx context.Context, table string, rows []Row, conflict []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validIdent(table); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	existing := m.tables[table]
	idx := make(map[string]int, len(existing))
	if len(conflict) > 0 {
		for i, r := range existing {
			idx[rowKey(r, conflict)] = i
		}
	}
	for _, r := range dedupe(rows, conflict) {
		r = copyRow(r)
		if len(conflict) > 0 {
			k := rowKey(r, conflict)
			if i, ok := idx[k]; ok {
				existing[i] = r
				continue
			}
			idx[k] = len(existing)
		}
		existing = append(existing, r)
	}
	m.tables[table] = existing
	return nil
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// Count returns the number of rows stored in table.
func (m *Memory) Count(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[table])
}

func copyRow(r Row) Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = normalize(v)
	}
	return c
}

func matches(r Row, filters []Filter) bool {
	for _, f := range filters {
		v := r[f.Column]
		switch f.Op {
		case OpIn:
			found := false
			for _, want := range inValues(f.Value) {
				if v != nil && compare(v, want) == 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		}

		// SQL comparisons with NULL never hold.
		want := normalize(f.Value)
		if v == nil || want == nil {
			return false
		}
		c := compare(v, want)
		switch f.Op {
		case OpEq:
			if c != 0 {
				return false
			}
		case OpNeq:
			if c == 0 {
				return false
			}
		case OpGt:
			if c <= 0 {
				return false
			}
		case OpGte:
			if c < 0 {
				return false
			}
		case OpLt:
			if c >= 0 {
				return false
			}
		}
	}
	return true
}

// compare orders nil first, then numbers and bools by value, then text.
func compare(a, b any) int {
	a, b = normalize(a), normalize(b)
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(keyPart(a), keyPart(b))
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
