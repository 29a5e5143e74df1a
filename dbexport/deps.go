package dbexport

import (
	"database/sql"
	"os"
)

var openDB = func(driver, dsn string) (*sql.DB, error) {
	return sql.Open(driver, dsn)
}

// openDialect opens path through the dialect's connector when it has one and
// through its DSN otherwise.
func openDialect(dialect Dialect, path string) (*sql.DB, error) {
	if cd, ok := dialect.(connectorDialect); ok {
		connector, err := cd.Connector(path)
		if err != nil {
			return nil, err
		}
		return sql.OpenDB(connector), nil
	}
	return openDB(dialect.DriverName(), dialect.DSN(path))
}

var statFile = os.Stat
var writeFile = os.WriteFile
