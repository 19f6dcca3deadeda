package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// String returns the column as a string, or "" when null. Timestamps come
// back as RFC 3339 in UTC; a value at midnight UTC is rendered as a bare
// date, which is how lib/pq hands back date columns.
func (r Row) String(col string) string {
	switch v := normalize(r[col]).(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return formatTime(v)
	default:
		return fmt.Sprint(v)
	}
}

// Float returns the column as a float, or nil when null or not numeric.
func (r Row) Float(col string) *float64 {
	var f float64
	switch v := normalize(r[col]).(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int64:
		f = float64(v)
	case int:
		f = float64(v)
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		f = p
	case []byte:
		p, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
		if err != nil {
			return nil
		}
		f = p
	default:
		return nil
	}
	return &f
}

// Int returns the column as an int, or nil when null or not numeric.
// Floats are truncated.
func (r Row) Int(col string) *int {
	fp := r.Float(col)
	if fp == nil {
		return nil
	}
	n := int(*fp)
	return &n
}

// Bool returns the column as a bool, or nil when null. Integers are true when
// non-zero, matching how sqlite stores booleans.
func (r Row) Bool(col string) *bool {
	var b bool
	switch v := normalize(r[col]).(type) {
	case bool:
		b = v
	case int64:
		b = v != 0
	case int:
		b = v != 0
	case float64:
		b = v != 0
	case string:
		p, err := strconv.ParseBool(v)
		if err != nil {
			return nil
		}
		b = p
	default:
		return nil
	}
	return &b
}

// normalize dereferences the pointer types rows are built from.
func normalize(v any) any {
	switch p := v.(type) {
	case *string:
		if p == nil {
			return nil
		}
		return *p
	case *float64:
		if p == nil {
			return nil
		}
		return *p
	case *int:
		if p == nil {
			return nil
		}
		return *p
	case *bool:
		if p == nil {
			return nil
		}
		return *p
	case *time.Time:
		if p == nil {
			return nil
		}
		return *p
	}
	return v
}

func formatTime(t time.Time) string {
	t = t.UTC()
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339Nano)
}

func rowKey(r Row, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = keyPart(normalize(r[c]))
	}
	return strings.Join(parts, "\x00")
}

// keyPart renders numbers so that 24.5 and int 24 vs 24.0 compare by value.
func keyPart(v any) string {
	switch n := v.(type) {
	case nil:
		return "\x01null"
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'g', -1, 64)
	case int:
		return strconv.FormatFloat(float64(n), 'g', -1, 64)
	case int64:
		return strconv.FormatFloat(float64(n), 'g', -1, 64)
	case []byte:
		return string(n)
	case time.Time:
		return formatTime(n)
	}
	return fmt.Sprint(v)
}
