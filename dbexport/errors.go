package dbexport

import (
	"errors"
	"fmt"
)

var (
	// ErrTableNotInCatalog is returned when a requested table is not listed in the catalog.
	ErrTableNotInCatalog = errors.New("table not found in catalog")
	// ErrUnsafeFileName is returned when a table name cannot be used as an output file name.
	ErrUnsafeFileName = errors.New("table name cannot be used as a file name")
)

// ConnectionError reports a database that could not be opened or whose
// catalog could not be read. It aborts the whole run.
type ConnectionError struct {
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("error opening database %s: %v", e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError reports a table that could not be scanned.
type QueryError struct {
	Table string
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("error reading table '%s': %v", e.Table, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// EncodeError reports rows that could not be serialized to JSON.
type EncodeError struct {
	Table string
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("error encoding table '%s': %v", e.Table, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// IOError reports an output file that could not be created or written.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("error writing %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
