// sqlite2json exports every table of a database to one JSON file per table.
//
// Usage:
//
//	sqlite2json -d <database> -o <output_folder>
//	  Write <output_folder>/<table>.json for every table in the database
//	sqlite2json tables -d <database>
//	  List all tables in the database
//	sqlite2json fields -d <database> <table_name>
//	  List all fields in the specified table
//
// SQLite is the default engine. DuckDB files (.duckdb, .ddb) and SQL Server
// connection strings are selected with --engine or detected from the path.
package main

import (
	"sqlite2json/cmd"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/marcboeker/go-duckdb"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	cmd.Execute()
}
