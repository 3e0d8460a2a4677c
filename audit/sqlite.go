// Package audit provides sinks for the event log of a service manager.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"go.tickamp.dev/servicegraph"
)

var _ servicegraph.AuditSink = (*SQLiteStore)(nil)

// SQLiteStore records audit entries in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates the event log at path. Use ":memory:" for an
// in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// An in-memory database lives as long as its connection.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cascade_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		event TEXT NOT NULL,
		service_id TEXT NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_cascade ON audit(cascade_id);
	CREATE INDEX IF NOT EXISTS idx_audit_service ON audit(service_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends an entry to the event log.
func (s *SQLiteStore) Record(ctx context.Context,
	entry servicegraph.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO audit (cascade_id, seq, event, service_id, from_status, to_status, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)",
		entry.CascadeID, entry.Seq, entry.Event.String(), entry.ServiceID,
		entry.From.String(), entry.To.String(), entry.Time.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ByCascade returns the entries of a cascade in processing order.
func (s *SQLiteStore) ByCascade(ctx context.Context,
	cascadeID string) ([]servicegraph.AuditEntry, error) {
	return s.query(ctx, "WHERE cascade_id = ? ORDER BY id", cascadeID)
}

// ByService returns the entries of a service, oldest first.
func (s *SQLiteStore) ByService(ctx context.Context,
	serviceID string) ([]servicegraph.AuditEntry, error) {
	return s.query(ctx, "WHERE service_id = ? ORDER BY id", serviceID)
}

func (s *SQLiteStore) query(ctx context.Context, clause string,
	args ...interface{}) ([]servicegraph.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT cascade_id, seq, event, service_id, from_status, to_status, timestamp FROM audit "+clause,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []servicegraph.AuditEntry
	for rows.Next() {
		var e servicegraph.AuditEntry
		var event, from, to string
		var timestamp int64
		err := rows.Scan(&e.CascadeID, &e.Seq, &event, &e.ServiceID, &from,
			&to, &timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if e.Event, err = servicegraph.ParseEventKind(event); err != nil {
			return nil, err
		}
		if e.From, err = servicegraph.ParseStatus(from); err != nil {
			return nil, err
		}
		if e.To, err = servicegraph.ParseStatus(to); err != nil {
			return nil, err
		}
		e.Time = time.Unix(0, timestamp)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entries, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
