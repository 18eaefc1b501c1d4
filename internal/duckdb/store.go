// Package duckdb stores scoring runs, their ranked genes and fitted pairs in DuckDB.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding run results.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file, or "" for an in-memory database.
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id VARCHAR PRIMARY KEY,
			seq BIGINT,
			created_at TIMESTAMP,
			config_path VARCHAR,
			reference_species VARCHAR,
			"offset" DOUBLE,
			method VARCHAR,
			scored BIGINT,
			ineligible BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS run_inputs (
			run_id VARCHAR,
			path VARCHAR,
			size BIGINT,
			mod_time TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS scores (
			run_id VARCHAR,
			gene_rank BIGINT,
			gene_key VARCHAR,
			label VARCHAR,
			f1 DOUBLE,
			f2 DOUBLE,
			f3 DOUBLE,
			score DOUBLE,
			PRIMARY KEY (run_id, gene_key)
		)`,
		`CREATE TABLE IF NOT EXISTS fits (
			run_id VARCHAR,
			label VARCHAR,
			predictor VARCHAR,
			response VARCHAR,
			samples BIGINT,
			intercept DOUBLE,
			slope DOUBLE,
			iterations BIGINT,
			undefined BIGINT,
			error VARCHAR
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
