// Package duckdb is the analytical store adapter. The build side loads raw
// CSVs into a file-backed DuckDB database, cleans and deduplicates them into
// the canonical requests table, and exports parquet artifacts. The read side
// hands out short-lived in-memory handles that query those parquet files
// directly, so nothing ever loads the full dataset into process memory.
package duckdb

import (
	"database/sql"
	"fmt"
	"strings"

	// Registers the "duckdb" database/sql driver.
	_ "github.com/duckdb/duckdb-go/v2"
)

// OpenMemory opens a fresh in-memory DuckDB handle. Callers own the handle and
// must close it; the query layer opens one per query and closes it before
// returning results.
func OpenMemory() (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open in-memory duckdb: %w", err)
	}
	return db, nil
}

// OpenFile opens a file-backed DuckDB database, creating it if needed.
// Only the builder uses file-backed databases.
func OpenFile(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", path, err)
	}
	return db, nil
}

// PathLiteral quotes a filesystem path as a SQL string literal. DuckDB takes
// parquet and CSV paths as literals, not bind parameters.
func PathLiteral(path string) string {
	return "'" + strings.ReplaceAll(path, "'", "''") + "'"
}
