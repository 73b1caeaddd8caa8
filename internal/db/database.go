package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// MemoryPath keeps the database inside the process
const MemoryPath = ":memory:"

// Open opens the SQLite database at dbPath and creates the tables.
// With MemoryPath nothing is written to disk.
func Open(dbPath string, logger *zap.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := dbPath
	if dbPath != MemoryPath {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?_busy_timeout=5000"
	}

	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every pooled connection to :memory: would see its own empty database
	database.SetMaxOpenConns(1)

	// Test connection
	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createTables(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info("Database initialized", zap.String("path", dbPath))
	return database, nil
}

// createTables creates all necessary tables
func createTables(database *sql.DB) error {
	createAttemptsTable := `
	CREATE TABLE IF NOT EXISTS login_attempts (
		id TEXT PRIMARY KEY,
		login_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		attempted_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := database.Exec(createAttemptsTable); err != nil {
		return fmt.Errorf("failed to create login_attempts table: %w", err)
	}

	createIndex := `CREATE INDEX IF NOT EXISTS idx_attempted_at ON login_attempts(attempted_at);`
	if _, err := database.Exec(createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	createLoginIndex := `CREATE INDEX IF NOT EXISTS idx_login_id ON login_attempts(login_id);`
	if _, err := database.Exec(createLoginIndex); err != nil {
		return fmt.Errorf("failed to create login_id index: %w", err)
	}

	return nil
}
