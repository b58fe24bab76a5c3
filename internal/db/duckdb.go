// Package db opens the DuckDB database panels can query frames from.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/marcboeker/go-duckdb"

	"github.com/joeblew999/plat-geomap/internal/frame"
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Open opens (or creates) the DuckDB file under DataDir/duckdb. An empty
// DataDir opens an in-memory database.
func Open(cfg Config) (*sql.DB, error) {
	dsn := ""
	if cfg.DataDir != "" {
		dir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		dsn = filepath.Join(dir, cfg.DBName+".duckdb")
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	// spatial gives ST_X/ST_Y for geometry columns; it is optional.
	if _, err := conn.Exec("INSTALL spatial; LOAD spatial;"); err != nil {
		log.Printf("[db] spatial extension unavailable: %v", err)
	}
	return conn, nil
}

// Tables lists the tables in the database.
func Tables(ctx context.Context, conn *sql.DB) ([]string, error) {
	rows, err := conn.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Query runs a query and returns its column names and rows with values
// normalized to types a frame understands.
func Query(ctx context.Context, conn *sql.DB, query string, args ...any) ([]string, [][]any, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("query columns: %w", err)
	}

	result := [][]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			values[i] = normalize(v)
		}
		result = append(result, values)
	}
	return columns, result, rows.Err()
}

// QueryFrame runs a query and returns the result as a frame named name.
func QueryFrame(ctx context.Context, conn *sql.DB, name, query string, args ...any) (frame.Frame, error) {
	columns, rows, err := Query(ctx, conn, query, args...)
	if err != nil {
		return frame.Frame{}, err
	}
	return frame.FromRows(name, columns, rows), nil
}

func normalize(v any) any {
	switch n := v.(type) {
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case duckdb.Decimal:
		return n.Float64()
	case []byte:
		return string(n)
	}
	return v
}
