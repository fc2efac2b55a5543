package record

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteService persists boats to SQLite.
// It is suitable for single-process use.
type SQLiteService struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// Compile-time interface checks.
var (
	_ Service = (*SQLiteService)(nil)
	_ Seeder  = (*SQLiteService)(nil)
)

// NewSQLiteService opens (creating if needed) a boat database.
// The path should be a file path (e.g., "./boats.db") or ":memory:" for testing.
func NewSQLiteService(path string) (*SQLiteService, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and
	// serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS boats (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			boat_type_id TEXT NOT NULL DEFAULT '',
			length REAL NOT NULL DEFAULT 0,
			price REAL NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT ''
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_boats_type
		ON boats(boat_type_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteService{db: db}, nil
}

// ListRecords implements Service.
func (s *SQLiteService) ListRecords(ctx context.Context, filter Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	var (
		where []string
		args  []any
	)
	if filter.BoatTypeID != "" {
		where = append(where, "boat_type_id = ?")
		args = append(args, filter.BoatTypeID)
	}
	if filter.RecordID != "" {
		where = append(where, "id = ?")
		args = append(args, filter.RecordID)
	}

	query := "SELECT id, name, boat_type_id, length, price, description FROM boats"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list boats: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Name, &r.BoatTypeID, &r.Length, &r.Price, &r.Description); err != nil {
			return nil, fmt.Errorf("scan boat: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boats: %w", err)
	}
	return records, nil
}

// ApplyEdits implements Service. All edits commit in one transaction.
func (s *SQLiteService) ApplyEdits(ctx context.Context, set EditSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if set.IsEmpty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	current := make(map[string]Record)
	for _, id := range set.RecordIDs() {
		var r Record
		err := tx.QueryRowContext(ctx, `
			SELECT id, name, boat_type_id, length, price, description
			FROM boats WHERE id = ?
		`, id).Scan(&r.ID, &r.Name, &r.BoatTypeID, &r.Length, &r.Price, &r.Description)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("load boat %s: %w", id, err)
		}
		current[id] = r
	}

	changed, err := applyEdits(current, set)
	if err != nil {
		return err
	}

	for _, r := range changed {
		if _, err := tx.ExecContext(ctx, `
			UPDATE boats
			SET name = ?, length = ?, price = ?, description = ?
			WHERE id = ?
		`, r.Name, r.Length, r.Price, r.Description, r.ID); err != nil {
			return fmt.Errorf("update boat %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit edits: %w", err)
	}
	return nil
}

// Put implements Seeder.
func (s *SQLiteService) Put(ctx context.Context, records ...Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, r := range records {
		if r.ID == "" {
			return ErrMissingID
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO boats (id, name, boat_type_id, length, price, description)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				boat_type_id = excluded.boat_type_id,
				length = excluded.length,
				price = excluded.price,
				description = excluded.description
		`, r.ID, r.Name, r.BoatTypeID, r.Length, r.Price, r.Description); err != nil {
			return fmt.Errorf("put boat %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit boats: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *SQLiteService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
