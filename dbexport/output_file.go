package dbexport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// OutputPath returns the file a table is written to: <dir>/<table>.json.
func OutputPath(dir, table string) (string, error) {
	filename := table + ".json"
	if strings.ContainsAny(table, `/\`) || strings.ContainsRune(table, 0) {
		return "", &IOError{Path: filepath.Join(dir, filename), Err: ErrUnsafeFileName}
	}
	return filepath.Join(dir, filename), nil
}

// EncodeRows serializes rows as a JSON array of objects. An empty slice
// encodes as []. With indent the array is pretty-printed with two spaces.
func EncodeRows(rows []Row, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		encBuf, err := row.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("error marshaling row %d: %w", i, err)
		}
		buf.Write(encBuf)
	}
	buf.WriteByte(']')
	if !indent {
		return buf.Bytes(), nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("error indenting JSON: %w", err)
	}
	return out.Bytes(), nil
}

// WriteFileOutput writes data to path, replacing any existing file.
func WriteFileOutput(path string, data []byte) error {
	if err := writeFile(path, data, 0o644); err != nil {
		return &IOError{Path: path, Err: fmt.Errorf("error creating output file: %w", err)}
	}
	return nil
}
