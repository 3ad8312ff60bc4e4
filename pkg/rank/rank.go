// Package rank orders harvested records for display.
package rank

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Sternrassler/rest-harvester/pkg/pagination"
	"github.com/goccy/go-json"
)

// Entry is a record with the value it was ranked by.
type Entry struct {
	Position int
	Value    float64
	Present  bool
	Record   pagination.Record
}

// TopN returns the n records with the highest numeric value at field,
// highest first. field may be a dotted path into nested objects
// ("owner.id"). Records without a numeric value at field sort after all
// others; ties keep their input order. n <= 0 ranks every record.
func TopN(records []pagination.Record, field string, n int) []Entry {
	entries := make([]Entry, len(records))
	for i, r := range records {
		v, ok := Number(r, field)
		entries[i] = Entry{Value: v, Present: ok, Record: r}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Present != b.Present {
			return a.Present
		}
		return a.Value > b.Value
	})

	if n > 0 && n < len(entries) {
		entries = entries[:n]
	}
	for i := range entries {
		entries[i].Position = i + 1
	}
	return entries
}

// Lookup resolves a dotted path inside r.
func Lookup(r pagination.Record, path string) (any, bool) {
	var cur any = map[string]any(r)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Number resolves path inside r and converts the value to a float64.
// Numeric strings are accepted.
func Number(r pagination.Record, path string) (float64, bool) {
	v, ok := Lookup(r, path)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Table projects ranked entries into rows of display strings. The first
// column is the position; missing fields render as "-".
func Table(entries []Entry, fields []string) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		row := make([]string, 0, len(fields)+1)
		row = append(row, strconv.Itoa(e.Position))
		for _, f := range fields {
			row = append(row, format(e.Record, f))
		}
		rows = append(rows, row)
	}
	return rows
}

func format(r pagination.Record, path string) string {
	v, ok := Lookup(r, path)
	if !ok || v == nil {
		return "-"
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case map[string]any, []any:
		data, err := json.Marshal(t)
		if err != nil {
			return "?"
		}
		return string(data)
	default:
		return fmt.Sprint(t)
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case pagination.Record:
		return m, true
	default:
		return nil, false
	}
}
