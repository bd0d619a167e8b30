// Package userdirectory implements the external User Directory
// collaborator: lookup_user and register_biometric_credential, backed
// by modernc.org/sqlite with WAL pragmas applied at Open and the users
// table created at Open if it does not exist.
package userdirectory

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/example/voicebio/internal/apperr"
)

// UserRecord is one directory entry.
type UserRecord struct {
	ID           string
	Identifier   string
	HasVoiceCred bool
}

// Store is a SQLite-backed reference implementation of the external
// user directory.
type Store struct {
	db *sql.DB
}

// Open connects to (and creates, if absent) a SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("userdirectory: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("userdirectory: apply pragma %q: %w", pragma, err)
		}
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id              TEXT PRIMARY KEY,
			identifier      TEXT NOT NULL UNIQUE,
			has_voice_cred  INTEGER NOT NULL DEFAULT 0
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser provisions a new directory entry with no voice credential
// yet registered. Used by the reference directory's own seeding path;
// the core itself only ever reads via Lookup and writes via
// RegisterBiometricCredential.
func (s *Store) CreateUser(ctx context.Context, id, identifier string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, identifier, has_voice_cred) VALUES (?, ?, 0)`, id, identifier,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindExternalUnavailable, err, "userdirectory: create_user")
	}
	return nil
}

// Lookup resolves identifier to a UserRecord, or (nil, nil) if absent.
func (s *Store) Lookup(ctx context.Context, identifier string) (*UserRecord, error) {
	var rec UserRecord
	var hasCred int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, identifier, has_voice_cred FROM users WHERE identifier = ?`, identifier,
	).Scan(&rec.ID, &rec.Identifier, &hasCred)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindExternalUnavailable, err, "userdirectory: lookup_user")
	}
	rec.HasVoiceCred = hasCred != 0
	return &rec, nil
}

// RegisterBiometricCredential marks userID as having a voice
// credential. Returns DuplicateCredential if one is already
// registered.
func (s *Store) RegisterBiometricCredential(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET has_voice_cred = 1 WHERE id = ? AND has_voice_cred = 0`, userID,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindExternalUnavailable, err, "userdirectory: register_biometric_credential")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.KindExternalUnavailable, err, "userdirectory: rows affected")
	}
	if rows == 0 {
		return apperr.New(apperr.KindDuplicateCredential, "userdirectory: user already has a voice credential", "user_id", userID)
	}
	return nil
}
