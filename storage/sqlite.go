package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStorage keeps input records in a single SQLite table.
type SQLiteStorage struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and creates the schema.
// Creates the parent directory if it does not exist.
func OpenSQLite(path string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; the coordinator serializes access anyway.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStorage{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS inputs (
	idx          INTEGER PRIMARY KEY,
	request_type TEXT NOT NULL,
	status       TEXT NOT NULL,
	data         TEXT NOT NULL,
	updated_at   TEXT NOT NULL
)`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create inputs table: %w", err)
	}
	return nil
}

// SaveInput inserts or replaces the record for its index.
func (s *SQLiteStorage) SaveInput(ctx context.Context, record *InputRecord) error {
	data, err := marshalRecord(record)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO inputs (idx, request_type, status, data, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(idx) DO UPDATE SET
	request_type = excluded.request_type,
	status       = excluded.status,
	data         = excluded.data,
	updated_at   = excluded.updated_at`,
		record.Index, string(record.RequestType), string(record.Status), string(data),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save input %d: %w", record.Index, err)
	}
	return nil
}

// LoadInput retrieves a single record.
func (s *SQLiteStorage) LoadInput(ctx context.Context, index int) (*InputRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM inputs WHERE idx = ?`, index).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load input %d: %w", index, err)
	}
	return unmarshalRecord([]byte(data))
}

// RestoreAllInputs loads every stored record.
func (s *SQLiteStorage) RestoreAllInputs(ctx context.Context) (map[int]*InputRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT idx, data FROM inputs ORDER BY idx`)
	if err != nil {
		return nil, fmt.Errorf("query inputs: %w", err)
	}
	defer rows.Close()

	records := make(map[int]*InputRecord)
	for rows.Next() {
		var (
			index int
			data  string
		)
		if err := rows.Scan(&index, &data); err != nil {
			return nil, fmt.Errorf("scan input: %w", err)
		}
		record, err := unmarshalRecord([]byte(data))
		if err != nil {
			return nil, err
		}
		records[index] = record
	}
	return records, rows.Err()
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
