package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/voicebio/internal/audit"
	"github.com/example/voicebio/internal/config"
	"github.com/example/voicebio/internal/phrasestore"
	"github.com/example/voicebio/internal/transcriber"
	"github.com/example/voicebio/internal/userdirectory"
)

// openAuditLogger opens the Postgres-backed audit store and wraps it
// in the async Logger. The audit trail is a reporting side-channel, not
// a correctness dependency, so an unreachable store degrades to a
// nil-safe no-op logger with a warning rather than failing the
// command.
func openAuditLogger(ctx context.Context, cfg config.Config) (*audit.Logger, func()) {
	store, err := audit.Open(ctx, cfg.Runtime.AuditDSN)
	if err != nil {
		slog.Warn("audit store unavailable, continuing without audit logging", "error", err)
		return nil, func() {}
	}
	logger := audit.NewLogger(store)
	return logger, func() {
		logger.Close()
		store.Close()
	}
}

func openUserDirectory(cfg config.Config) (*userdirectory.Store, error) {
	return userdirectory.Open(cfg.Runtime.UserDirectoryPath)
}

func openPhraseStore(ctx context.Context, cfg config.Config) (*phrasestore.Store, error) {
	return phrasestore.Open(ctx, cfg.Runtime.PhraseStoreDSN)
}

func newTranscriberClient(cfg config.Config) *transcriber.Client {
	timeout := time.Duration(cfg.Auth.TranscriberTimeoutS * float64(time.Second))
	return transcriber.New(cfg.Runtime.TranscriberURL, cfg.Runtime.TranscriberLanguage, cfg.Runtime.TranscriberPoolSize, timeout)
}
