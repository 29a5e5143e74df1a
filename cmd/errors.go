package cmd

import (
	"errors"
	"fmt"
	"strings"

	"sqlite2json/dbexport"
)

// isInvalidTableError reports whether err is a query error caused by a
// missing or misspelled table.
func isInvalidTableError(err error) bool {
	if errors.Is(err, dbexport.ErrTableNotInCatalog) {
		return true
	}
	var qerr *dbexport.QueryError
	if !errors.As(err, &qerr) {
		return false
	}
	var patterns = []string{
		"no such table",
		"does not exist",
		"invalid object name",
		"is not a valid object name",
		"table with name",
	}
	errStr := strings.ToLower(err.Error())
	for _, pat := range patterns {
		if strings.Contains(errStr, pat) {
			return true
		}
	}
	return false
}

// withTableHint adds a pointer to the tables command to missing-table errors.
func withTableHint(err error) error {
	if !isInvalidTableError(err) {
		return err
	}
	return fmt.Errorf("%w.\n\nverify that the table exists in the database and is spelled correctly; run 'sqlite2json tables' to list them", err)
}
