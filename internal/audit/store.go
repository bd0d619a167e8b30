// Package audit persists AuthVerdict and training-run records for
// later review, asynchronously so the hot path of authenticate/train
// never blocks on a database round trip. Methods are nil-safe no-ops
// when the store is unavailable; writes are serialised by a single
// background goroutine draining a buffered channel.
package audit

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store persists audit rows to PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to a PostgreSQL audit database at connStr and applies
// any pending migrations.
func Open(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ping: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS audit_schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), -1) FROM audit_schema_version`).Scan(&current); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for i := current + 1; i < len(entries); i++ {
		data, err := migrationFS.ReadFile("migrations/" + entries[i].Name())
		if err != nil {
			return fmt.Errorf("read migration %d: %w", i, err)
		}
		if _, err := db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO audit_schema_version (version) VALUES ($1)`, i); err != nil {
			return fmt.Errorf("migration %d record: %w", i, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// AuthAttempt is one persisted authentication decision.
type AuthAttempt struct {
	ID             string
	ClaimedID      string
	PredictedID    int32
	Granted        bool
	Confidence     float64
	TextSimilarity float64
	IDMatch        bool
	ElapsedMs      float64
	CreatedAt      time.Time
}

func (s *Store) insertAuthAttempt(a AuthAttempt) error {
	_, err := s.db.Exec(
		`INSERT INTO auth_attempts (id, claimed_id, predicted_id, granted, confidence, text_similarity, id_match, elapsed_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.ClaimedID, a.PredictedID, a.Granted, a.Confidence, a.TextSimilarity, a.IDMatch, a.ElapsedMs, a.CreatedAt,
	)
	return err
}

// TrainingRun is one persisted training event (full or incremental).
type TrainingRun struct {
	ID         string
	Kind       string
	ClassID    *int32
	Epochs     int
	Degenerate bool
	ElapsedMs  float64
	CreatedAt  time.Time
}

func (s *Store) insertTrainingRun(r TrainingRun) error {
	_, err := s.db.Exec(
		`INSERT INTO training_runs (id, kind, class_id, epochs, degenerate, elapsed_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.Kind, r.ClassID, r.Epochs, r.Degenerate, r.ElapsedMs, r.CreatedAt,
	)
	return err
}
