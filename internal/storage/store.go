// Package storage provides the DuckDB-backed football analytics store
package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver

	"github.com/sqlball/sqlball/internal/config"
	"github.com/sqlball/sqlball/internal/errors"
	"github.com/sqlball/sqlball/internal/schema"
)

// Result is the outcome of executing a query. Truncated is set when the
// row cap cut the result short; that is never an error.
type Result struct {
	Columns   []string                 `json:"columns"`
	Rows      []map[string]interface{} `json:"rows"`
	Truncated bool                     `json:"truncated"`
	ElapsedMs int64                    `json:"elapsed_ms"`
}

// Store is a DuckDB-backed store for football match and player data
type Store struct {
	db           *sql.DB
	path         string
	maxRows      int
	queryTimeout time.Duration
}

// NewStore opens (or creates) the database at the configured path. An
// empty path opens an in-memory database.
func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	path := cfg.Path

	if path != "" && path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	if path == ":memory:" {
		path = ""
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to open database")
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if lifetime, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
		db.SetConnMaxLifetime(lifetime)
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to ping database")
	}

	timeout := cfg.QueryTimeoutDuration()

	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = 10000
	}

	return &Store{
		db:           db,
		path:         path,
		maxRows:      maxRows,
		queryTimeout: timeout,
	}, nil
}

// Initialize creates the football schema using migrations
func (s *Store) Initialize(ctx context.Context) error {
	return NewMigrationManager(s.db).MigrateUp(ctx)
}

// Execute runs a SQL query and returns up to rowCap rows. A rowCap of
// zero or less uses the store's configured maximum. The configured query
// timeout bounds execution regardless of the caller's context.
func (s *Store) Execute(ctx context.Context, sqlQuery string, rowCap int) (*Result, error) {
	if rowCap <= 0 || rowCap > s.maxRows {
		rowCap = s.maxRows
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	start := time.Now()

	rows, err := s.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Wrap(err, errors.ErrTypeTimeout, "query exceeded execution timeout")
		}

		return nil, errors.Wrap(err, errors.ErrTypeExecution, "query execution failed")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeExecution, "failed to get columns")
	}

	result := &Result{
		Columns: columns,
		Rows:    make([]map[string]interface{}, 0),
	}

	for rows.Next() {
		if len(result.Rows) >= rowCap {
			result.Truncated = true
			break
		}

		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))

		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, errors.Wrap(err, errors.ErrTypeExecution, "failed to scan row")
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}

		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Wrap(err, errors.ErrTypeTimeout, "query exceeded execution timeout")
		}

		return nil, errors.Wrap(err, errors.ErrTypeExecution, "query execution failed")
	}

	result.ElapsedMs = time.Since(start).Milliseconds()

	return result, nil
}

// normalizeValue converts driver types into JSON-friendly values
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return v
	}
}

// CurrentSchema reports the live table structure as annotated schema
// documents together with a version fingerprint. It implements
// schema.MetadataProvider.
func (s *Store) CurrentSchema(ctx context.Context) ([]schema.Document, string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'main'
		ORDER BY table_name, ordinal_position
	`)
	if err != nil {
		return nil, "", errors.Wrap(err, errors.ErrTypeDatabase, "failed to read schema catalog")
	}
	defer rows.Close()

	type column struct {
		table, name, dataType string
	}

	var columns []column

	for rows.Next() {
		var c column
		if err := rows.Scan(&c.table, &c.name, &c.dataType); err != nil {
			return nil, "", errors.Wrap(err, errors.ErrTypeDatabase, "failed to scan schema row")
		}

		columns = append(columns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, "", errors.Wrap(err, errors.ErrTypeDatabase, "failed to read schema catalog")
	}

	hasher := sha256.New()
	seen := make(map[string]bool)

	var docs []schema.Document

	for _, c := range columns {
		fmt.Fprintf(hasher, "%s.%s:%s\n", c.table, c.name, c.dataType)

		if !seen[c.table] {
			seen[c.table] = true

			docs = append(docs, tableDocument(c.table))
		}

		docs = append(docs, columnDocument(c.table, c.name, c.dataType))
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].ID() < docs[j].ID() })

	version := hex.EncodeToString(hasher.Sum(nil))[:16]

	return docs, version, nil
}

// Stats summarizes store contents
type Stats struct {
	Teams   int `json:"teams"`
	Players int `json:"players"`
	Matches int `json:"matches"`
}

// GetStats returns row counts for the core tables
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		table string
		dest  *int
	}{
		{"teams", &stats.Teams},
		{"players", &stats.Players},
		{"matches", &stats.Matches},
	}

	for _, c := range counts {
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrTypeDatabase, "failed to count %s", c.table)
		}
	}

	return stats, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
