// Package usagedb provides SQLite-backed persistence for usage records, so
// past runs can be summarized without re-parsing tracking files.
package usagedb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store provides access to the usage database.
type Store struct {
	db *sql.DB
}

// Record mirrors one successful conversion.
type Record struct {
	ID          string
	Filename    string
	UnitCount   int
	ProcessedAt time.Time
	Cost        float64
	OutputPath  string
	Model       string
}

// Summary aggregates all records in the store.
type Summary struct {
	Records    int
	TotalUnits int
	TotalCost  float64
}

// Open creates a Store and runs migrations.
func Open(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_records (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		unit_count INTEGER NOT NULL,
		processed_at DATETIME NOT NULL,
		cost_usd REAL NOT NULL,
		output_path TEXT NOT NULL,
		model TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_usage_records_processed_at ON usage_records(processed_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Append inserts a new usage record and returns it with its generated ID.
func (s *Store) Append(rec Record) (*Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO usage_records (id, filename, unit_count, processed_at, cost_usd, output_path, model) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Filename, rec.UnitCount, rec.ProcessedAt, rec.Cost, rec.OutputPath, rec.Model,
	)
	if err != nil {
		return nil, fmt.Errorf("insert usage record: %w", err)
	}
	return &rec, nil
}

// List returns the most recent records, newest first. limit <= 0 means all.
func (s *Store) List(limit int) ([]Record, error) {
	query := `SELECT id, filename, unit_count, processed_at, cost_usd, output_path, model FROM usage_records ORDER BY processed_at DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var model sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.UnitCount, &rec.ProcessedAt, &rec.Cost, &rec.OutputPath, &model); err != nil {
			return nil, fmt.Errorf("scan usage record: %w", err)
		}
		if model.Valid {
			rec.Model = model.String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Summarize aggregates record count, billed units, and total cost.
func (s *Store) Summarize() (*Summary, error) {
	var sum Summary
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(unit_count), 0), COALESCE(SUM(cost_usd), 0) FROM usage_records`,
	).Scan(&sum.Records, &sum.TotalUnits, &sum.TotalCost)
	if err != nil {
		return nil, fmt.Errorf("summarize usage: %w", err)
	}
	return &sum, nil
}
