// Package phrasestore implements the external PhraseStore
// collaborator: get_phrase_by_id and pick_random_active_phrase, which
// atomically increments uses_count and disables the phrase once its
// limit is reached. Connection and migration plumbing uses the pgx
// "database/sql" driver with go:embed migrations applied in
// sequential-version order. The random-pick-with-atomic-increment
// query avoids the use-counter race via SELECT ... FOR UPDATE SKIP
// LOCKED rather than serializing through any in-process writer.
package phrasestore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/example/voicebio/internal/apperr"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Phrase is one enrolment/verification challenge phrase.
type Phrase struct {
	ID        int32
	Text      string
	UsesCount int
	UsesLimit int
	State     string
}

// Store persists phrases to PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to a PostgreSQL phrase database at connStr and applies
// any pending migrations.
func Open(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindExternalUnavailable, err, "phrasestore: open")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.KindExternalUnavailable, err, "phrasestore: ping")
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.KindExternalUnavailable, err, "phrasestore: migrate")
	}
	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS phrasestore_schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), -1) FROM phrasestore_schema_version`).Scan(&current); err != nil {
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
		if _, err := db.ExecContext(ctx, `INSERT INTO phrasestore_schema_version (version) VALUES ($1)`, i); err != nil {
			return fmt.Errorf("migration %d record: %w", i, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetByID looks up a phrase by id.
func (s *Store) GetByID(ctx context.Context, id int32) (Phrase, error) {
	var p Phrase
	err := s.db.QueryRowContext(ctx,
		`SELECT id, text, uses_count, uses_limit, state FROM phrases WHERE id = $1`, id,
	).Scan(&p.ID, &p.Text, &p.UsesCount, &p.UsesLimit, &p.State)
	if err == sql.ErrNoRows {
		return Phrase{}, apperr.New(apperr.KindInputMalformed, "phrasestore: phrase not found", "id", id)
	}
	if err != nil {
		return Phrase{}, apperr.Wrap(apperr.KindExternalUnavailable, err, "phrasestore: get_phrase_by_id")
	}
	return p, nil
}

// PickRandomActive selects one active phrase at random, increments its
// use counter, and disables it once the limit is reached — all inside
// one transaction with SELECT ... FOR UPDATE SKIP LOCKED so concurrent
// callers never race on the same row's counter.
func (s *Store) PickRandomActive(ctx context.Context) (Phrase, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Phrase{}, apperr.Wrap(apperr.KindExternalUnavailable, err, "phrasestore: begin tx")
	}
	defer tx.Rollback()

	var p Phrase
	err = tx.QueryRowContext(ctx,
		`SELECT id, text, uses_count, uses_limit, state FROM phrases
		 WHERE state = 'active'
		 ORDER BY random()
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
	).Scan(&p.ID, &p.Text, &p.UsesCount, &p.UsesLimit, &p.State)
	if err == sql.ErrNoRows {
		return Phrase{}, apperr.New(apperr.KindExternalUnavailable, "phrasestore: no active phrase available")
	}
	if err != nil {
		return Phrase{}, apperr.Wrap(apperr.KindExternalUnavailable, err, "phrasestore: pick_random_active_phrase")
	}

	p.UsesCount++
	nextState := p.State
	if p.UsesCount >= p.UsesLimit {
		nextState = "disabled"
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE phrases SET uses_count = $1, state = $2 WHERE id = $3`, p.UsesCount, nextState, p.ID,
	); err != nil {
		return Phrase{}, apperr.Wrap(apperr.KindExternalUnavailable, err, "phrasestore: update use counter")
	}

	if err := tx.Commit(); err != nil {
		return Phrase{}, apperr.Wrap(apperr.KindExternalUnavailable, err, "phrasestore: commit")
	}

	p.State = nextState
	return p, nil
}
