package database

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"
)

// Result is a tabular query result: column names plus rows of driver values.
// Byte slices are converted to strings when scanned.
type Result struct {
	Columns      []string `json:"columns"`
	Rows         [][]any  `json:"rows"`
	RowsAffected int64    `json:"rowsAffected,omitempty"`
}

// Len returns the number of rows.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Column returns every value of the named column.
func (r *Result) Column(name string) ([]any, bool) {
	idx := -1
	for i, c := range r.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}

	values := make([]any, len(r.Rows))
	for i, row := range r.Rows {
		values[i] = row[idx]
	}
	return values, true
}

// Records returns one map per row keyed by column name.
func (r *Result) Records() []map[string]any {
	records := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		rec := make(map[string]any, len(r.Columns))
		for j, c := range r.Columns {
			rec[c] = row[j]
		}
		records[i] = rec
	}
	return records
}

// MarshalJSON implements json.Marshaler so nil rows render as an empty list.
func (r Result) MarshalJSON() ([]byte, error) {
	type Alias Result
	a := Alias(r)
	if a.Rows == nil {
		a.Rows = [][]any{}
	}
	if a.Columns == nil {
		a.Columns = []string{}
	}
	return json.Marshal(a)
}

// WriteCSV writes a header row followed by every data row. NULL becomes an
// empty field and timestamps use RFC 3339.
func (r *Result) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(r.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(r.Columns))
	for _, row := range r.Rows {
		for i, v := range row {
			record[i] = formatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(val)
	}
}

// scanResult drains rows into a Result.
func scanResult(rows *sql.Rows) (*Result, error) {
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	res := &Result{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return res, nil
}
