package history

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

// Delivery is one served (or refused) image request.
type Delivery struct {
	ID            int64
	ServedAt      time.Time
	RequestID     string
	RemoteAddr    string
	Format        string
	Outcome       string
	Status        int
	Bytes         int64
	Duration      time.Duration
	ArtifactMTime time.Time
	Error         string
}

// Store persists deliveries in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history: database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends d. A zero ServedAt is replaced with the current time.
func (s *Store) Record(ctx context.Context, d Delivery) (int64, error) {
	if d.ServedAt.IsZero() {
		d.ServedAt = time.Now()
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO deliveries (
            served_at, request_id, remote_addr, format, outcome, status,
            bytes, duration_ms, artifact_mtime, error_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ServedAt.UTC().Format(time.RFC3339Nano),
		nullableString(d.RequestID),
		nullableString(d.RemoteAddr),
		d.Format,
		d.Outcome,
		d.Status,
		d.Bytes,
		d.Duration.Milliseconds(),
		nullableTime(d.ArtifactMTime),
		nullableString(d.Error),
	)
	if err != nil {
		return 0, fmt.Errorf("insert delivery: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// List returns up to limit deliveries, newest first. A limit <= 0 returns all rows.
func (s *Store) List(ctx context.Context, limit int) ([]Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Count returns the number of stored deliveries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM deliveries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count deliveries: %w", err)
	}
	return n, nil
}

// Prune keeps the newest retain rows and deletes the rest. A retain <= 0 keeps everything.
func (s *Store) Prune(ctx context.Context, retain int) (int64, error) {
	if retain <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM deliveries WHERE id NOT IN (SELECT id FROM deliveries ORDER BY id DESC LIMIT ?)`,
		retain,
	)
	if err != nil {
		return 0, fmt.Errorf("prune deliveries: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every delivery.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM deliveries`)
	if err != nil {
		return 0, fmt.Errorf("clear deliveries: %w", err)
	}
	return res.RowsAffected()
}

const deliveryColumns = "id, served_at, request_id, remote_addr, format, outcome, status, bytes, duration_ms, artifact_mtime, error_message"

func scanDelivery(scanner interface{ Scan(dest ...any) error }) (Delivery, error) {
	var (
		d          Delivery
		servedRaw  string
		requestID  sql.NullString
		remoteAddr sql.NullString
		durationMS int64
		mtimeRaw   sql.NullString
		errMessage sql.NullString
	)
	if err := scanner.Scan(
		&d.ID,
		&servedRaw,
		&requestID,
		&remoteAddr,
		&d.Format,
		&d.Outcome,
		&d.Status,
		&d.Bytes,
		&durationMS,
		&mtimeRaw,
		&errMessage,
	); err != nil {
		return Delivery{}, fmt.Errorf("scan delivery: %w", err)
	}
	d.RequestID = requestID.String
	d.RemoteAddr = remoteAddr.String
	d.Error = errMessage.String
	d.Duration = time.Duration(durationMS) * time.Millisecond
	if t, err := time.Parse(time.RFC3339Nano, servedRaw); err == nil {
		d.ServedAt = t
	}
	if mtimeRaw.Valid {
		if t, err := time.Parse(time.RFC3339Nano, mtimeRaw.String); err == nil {
			d.ArtifactMTime = t
		}
	}
	return d, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}
