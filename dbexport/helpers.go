package dbexport

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb"
)

// BlobMode selects how raw byte values are written to JSON.
type BlobMode int

const (
	// BlobBase64 writes byte values as base64 strings.
	BlobBase64 BlobMode = iota
	// BlobText writes byte values as plain strings when they are valid UTF-8.
	BlobText
)

func (m BlobMode) String() string {
	if m == BlobText {
		return "text"
	}
	return "base64"
}

// ParseBlobMode parses "base64" or "text".
func ParseBlobMode(s string) (BlobMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "base64":
		return BlobBase64, nil
	case "text":
		return BlobText, nil
	default:
		return BlobBase64, fmt.Errorf("unknown blob mode %q (expected base64 or text)", s)
	}
}

// ScanRow scans the current record of rows into a Row, pairing the column
// name at position i with the value at position i.
func ScanRow(rows Rows, cols []string) (Row, error) {
	return scanRow(rows, cols, nil)
}

func scanRow(rows Rows, cols, typeNames []string) (Row, error) {
	columns := make([]interface{}, len(cols))
	columnPointers := make([]interface{}, len(cols))
	for i := range columns {
		columnPointers[i] = &columns[i]
	}
	if err := rows.Scan(columnPointers...); err != nil {
		return Row{}, fmt.Errorf("error scanning row: %w", err)
	}
	row := NewRow(len(cols))
	for i, colName := range cols {
		v := columns[i]
		if i < len(typeNames) {
			v = decodeColumn(typeNames[i], v)
		}
		row.Set(colName, v)
	}
	return row, nil
}

// decodeColumn replaces driver representations that only make sense together
// with the column type. DuckDB hands UUIDs over as 16 raw bytes, and DATE and
// TIME columns arrive as time.Time.
func decodeColumn(typeName string, v interface{}) interface{} {
	switch typeName {
	case "UUID":
		if b, ok := v.([]byte); ok {
			if id, err := uuid.FromBytes(b); err == nil {
				return id.String()
			}
		}
	case "DATE":
		if t, ok := v.(time.Time); ok {
			return t.Format(time.DateOnly)
		}
	case "TIME":
		if t, ok := v.(time.Time); ok {
			return t.Format("15:04:05.999999999")
		}
	}
	return v
}

// normalizeValue prepares a driver value for JSON encoding. The second return
// reports whether the value, or a value nested in it, had no JSON form and was
// replaced by null.
func normalizeValue(v interface{}, blob BlobMode) (interface{}, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339Nano), false
	case []byte:
		if blob == BlobText && utf8.Valid(t) {
			return string(t), false
		}
		return t, false
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, true
		}
	case float32:
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
			return nil, true
		}
	case duckdb.Decimal:
		return json.Number(t.String()), false
	case duckdb.Interval:
		return formatInterval(t), false
	case duckdb.Map:
		obj := make(map[string]interface{}, len(t))
		dropped := false
		for k, val := range t {
			nv, d := normalizeValue(val, blob)
			obj[fmt.Sprint(k)] = nv
			dropped = dropped || d
		}
		return obj, dropped
	case map[string]interface{}:
		obj := make(map[string]interface{}, len(t))
		dropped := false
		for k, val := range t {
			nv, d := normalizeValue(val, blob)
			obj[k] = nv
			dropped = dropped || d
		}
		return obj, dropped
	case []interface{}:
		list := make([]interface{}, len(t))
		dropped := false
		for i, val := range t {
			nv, d := normalizeValue(val, blob)
			list[i] = nv
			dropped = dropped || d
		}
		return list, dropped
	}
	return v, false
}

// formatInterval writes an interval as an ISO 8601 duration such as
// P1Y2M3DT4H5M6.5S.
func formatInterval(iv duckdb.Interval) string {
	var b strings.Builder
	b.WriteByte('P')
	if years := iv.Months / 12; years != 0 {
		fmt.Fprintf(&b, "%dY", years)
	}
	if months := iv.Months % 12; months != 0 {
		fmt.Fprintf(&b, "%dM", months)
	}
	if iv.Days != 0 {
		fmt.Fprintf(&b, "%dD", iv.Days)
	}
	if iv.Micros != 0 {
		b.WriteByte('T')
		hours := iv.Micros / 3600_000_000
		rest := iv.Micros % 3600_000_000
		minutes := rest / 60_000_000
		rest %= 60_000_000
		if hours != 0 {
			fmt.Fprintf(&b, "%dH", hours)
		}
		if minutes != 0 {
			fmt.Fprintf(&b, "%dM", minutes)
		}
		if rest != 0 {
			b.WriteString(strconv.FormatFloat(float64(rest)/1e6, 'f', -1, 64) + "S")
		}
	}
	if b.Len() == 1 {
		return "P0D"
	}
	return b.String()
}

// normalizeRows rewrites every value of rows in place and returns how many
// values were replaced by null.
func normalizeRows(rows []Row, blob BlobMode) int {
	replaced := 0
	for _, row := range rows {
		for i, v := range row.values {
			nv, dropped := normalizeValue(v, blob)
			if dropped {
				replaced++
			}
			row.values[i] = nv
		}
	}
	return replaced
}
