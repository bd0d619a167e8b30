package userdirectory_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/voicebio/internal/apperr"
	"github.com/example/voicebio/internal/userdirectory"
)

func openStore(t *testing.T) *userdirectory.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.db")
	store, err := userdirectory.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLookupReturnsNilForUnknownIdentifier(t *testing.T) {
	store := openStore(t)
	rec, err := store.Lookup(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record for unknown identifier, got %#v", rec)
	}
}

func TestRegisterBiometricCredentialThenDuplicateFails(t *testing.T) {
	store := openStore(t)
	if err := store.CreateUser(context.Background(), "u1", "alice"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if err := store.RegisterBiometricCredential(context.Background(), "u1"); err != nil {
		t.Fatalf("first RegisterBiometricCredential() error = %v", err)
	}

	rec, err := store.Lookup(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if rec == nil || !rec.HasVoiceCred {
		t.Fatalf("expected has_voice_cred=true after registration, got %#v", rec)
	}

	err = store.RegisterBiometricCredential(context.Background(), "u1")
	if !apperr.Is(err, apperr.KindDuplicateCredential) {
		t.Fatalf("expected DuplicateCredential on re-registration, got %v", err)
	}
}
