package cmd

import (
	"fmt"
	"os"
	"strings"

	"sqlite2json/dbexport"

	"github.com/joho/godotenv"
)

// Environment variables read when the matching flag is not given. A .env
// file in the working directory is loaded first.
const (
	envDatabase = "SQLITE2JSON_DATABASE"
	envOutput   = "SQLITE2JSON_OUTPUT"
	envEngine   = "SQLITE2JSON_ENGINE"
)

var loadDotenv = func() { _ = godotenv.Load() }

// source is a resolved database location.
type source struct {
	Path    string
	Dialect dbexport.Dialect
}

// get prefers the flag value and falls back to the environment.
func get(flagVal, envVar string) string {
	if strings.TrimSpace(flagVal) != "" {
		return flagVal
	}
	return strings.TrimSpace(os.Getenv(envVar))
}

// resolveSource works out which database to open and with which engine.
func resolveSource(opts *rootOptions) (source, error) {
	loadDotenv()
	var src source
	if engine := get(opts.Engine, envEngine); engine != "" {
		dialect, err := dbexport.DialectByName(engine)
		if err != nil {
			return src, &usageError{msg: err.Error()}
		}
		src.Dialect = dialect
	}
	src.Path = get(opts.Database, envDatabase)
	if src.Path == "" && src.Dialect != nil && src.Dialect.Name() == dbexport.SQLServer.Name() {
		dsn, err := sqlServerDSNFromEnv()
		if err != nil {
			return src, err
		}
		src.Path = dsn
	}
	if src.Path == "" {
		return src, newUsageError("please provide the path to the database using the -d or --database option")
	}
	if src.Dialect == nil {
		src.Dialect = dbexport.DetectDialect(src.Path)
	}
	return src, nil
}

// resolveOutput returns the output folder.
func resolveOutput(opts *rootOptions) (string, error) {
	output := get(opts.Output, envOutput)
	if output == "" {
		return "", newUsageError("please provide the output folder using the -o or --output option")
	}
	return output, nil
}

// sqlServerDSNFromEnv builds a SQL Server connection string from the MSSQL_*
// variables, reporting every missing one at once.
func sqlServerDSNFromEnv() (string, error) {
	server := os.Getenv("MSSQL_SERVER")
	port := os.Getenv("MSSQL_PORT")
	user := os.Getenv("MSSQL_USER")
	password := os.Getenv("MSSQL_PASSWORD")
	database := os.Getenv("MSSQL_DATABASE")
	missing := []string{}
	if server == "" {
		missing = append(missing, "MSSQL_SERVER")
	}
	if port == "" {
		missing = append(missing, "MSSQL_PORT")
	}
	if user == "" {
		missing = append(missing, "MSSQL_USER")
	}
	if password == "" {
		missing = append(missing, "MSSQL_PASSWORD")
	}
	if database == "" {
		missing = append(missing, "MSSQL_DATABASE")
	}
	if len(missing) > 0 {
		return "", newUsageError("missing required connection parameters: %s (or pass a connection string with --database)", strings.Join(missing, ", "))
	}
	return fmt.Sprintf("server=%s;user id=%s;password=%s;port=%s;database=%s;encrypt=disable", server, user, password, port, database), nil
}
