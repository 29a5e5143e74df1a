package dbexport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Row is one record keyed by column name. Keys keep the order in which they
// were first set, which is the result-set column order for scanned rows.
type Row struct {
	columns []string
	values  []interface{}
	index   map[string]int
}

// NewRow returns an empty row with room for n columns.
func NewRow(n int) Row {
	return Row{
		columns: make([]string, 0, n),
		values:  make([]interface{}, 0, n),
		index:   make(map[string]int, n),
	}
}

// Set stores value under column. Setting an existing column replaces its
// value but keeps its original position.
func (r *Row) Set(column string, value interface{}) {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if i, ok := r.index[column]; ok {
		r.values[i] = value
		return
	}
	r.index[column] = len(r.columns)
	r.columns = append(r.columns, column)
	r.values = append(r.values, value)
}

// Get returns the value stored under column.
func (r Row) Get(column string) (interface{}, bool) {
	i, ok := r.index[column]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// Columns returns the column names in order.
func (r Row) Columns() []string { return r.columns }

// Values returns the values in column order.
func (r Row) Values() []interface{} { return r.values }

// Len returns the number of columns.
func (r Row) Len() int { return len(r.columns) }

// MarshalJSON encodes the row as a JSON object in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalValue(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := marshalValue(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("error marshaling column '%s': %w", col, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping its key order. Numbers are kept
// as json.Number so that re-encoding reproduces them exactly.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object for row, got %v", tok)
	}
	row := NewRow(0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("error decoding column '%s': %w", key, err)
		}
		row.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after row object")
	}
	*r = row
	return nil
}

// marshalValue encodes v without escaping HTML characters.
func marshalValue(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
