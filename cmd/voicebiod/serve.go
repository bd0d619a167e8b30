package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/example/voicebio/internal/apperr"
	"github.com/example/voicebio/internal/audiodecode"
	"github.com/example/voicebio/internal/audit"
	"github.com/example/voicebio/internal/auth"
	"github.com/example/voicebio/internal/dataset"
	"github.com/example/voicebio/internal/enroll"
	"github.com/example/voicebio/internal/modelstore"
	"github.com/example/voicebio/internal/pipeline"
	"github.com/example/voicebio/internal/userdirectory"
)

// newServeCmd runs a thin demo HTTP surface over /authenticate and
// /enroll — an ambient entrypoint so the engine is runnable end to end,
// not a designed wire protocol.
func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a thin demo HTTP server over authenticate/enroll",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			users, err := openUserDirectory(cfg)
			if err != nil {
				return err
			}
			defer users.Close()

			auditLog, closeAudit := openAuditLogger(cmd.Context(), cfg)
			defer closeAudit()

			ds := dataset.Open(cfg.Runtime.DatasetPath)
			ms := modelstore.Open(cfg.Runtime.ModelDir)
			enroller := enroll.New(cfg, ds, ms, users, auditLog)
			extractor := pipeline.New(cfg)
			authenticator := auth.New(cfg.Auth, newTranscriberClient(cfg))

			mux := http.NewServeMux()
			mux.Handle("GET /metrics", promhttp.Handler())
			mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("ok"))
			})
			mux.HandleFunc("POST /authenticate", handleAuthenticate(ms, extractor, authenticator, users, auditLog))
			mux.HandleFunc("POST /enroll", handleEnroll(enroller))

			srv := &http.Server{Addr: addr, Handler: mux}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			slog.Info("voicebiod serving", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			slog.Info("voicebiod stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8088", "HTTP listen address")
	return cmd
}

type authenticateRequest struct {
	AudioPath      string `json:"audio_path"`
	ClaimedID      string `json:"claimed_id"`
	ExpectedPhrase string `json:"expected_phrase"`
}

func handleAuthenticate(ms *modelstore.Store, extractor *pipeline.Extractor, authenticator *auth.Authenticator, users *userdirectory.Store, auditLog *audit.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authenticateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperr.New(apperr.KindInputMalformed, "decode request body"))
			return
		}

		rec, err := users.Lookup(r.Context(), req.ClaimedID)
		if err != nil {
			writeError(w, err)
			return
		}
		if rec == nil {
			writeError(w, apperr.New(apperr.KindIdentityRejected, "claimed id not in user directory"))
			return
		}

		model, err := ms.Load()
		if err != nil {
			writeError(w, err)
			return
		}

		v, err := extractor.ExtractFile(req.AudioPath, audiodecode.CodecWAV, 16000)
		if err != nil {
			writeError(w, err)
			return
		}

		verdict := authenticator.Decide(r.Context(), v, model, req.ClaimedID, req.ExpectedPhrase, req.AudioPath)
		auditLog.RecordAuthAttempt(req.ClaimedID, verdict)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(verdict)
	}
}

type enrollRequest struct {
	UserID     string   `json:"user_id"`
	ClassID    int32    `json:"class_id"`
	AudioPaths []string `json:"audio_paths"`
}

func handleEnroll(enroller *enroll.Enroller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req enrollRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperr.New(apperr.KindInputMalformed, "decode request body"))
			return
		}

		result, err := enroller.Enroll(r.Context(), req.UserID, req.ClassID, req.AudioPaths, audiodecode.CodecWAV, 16000)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperr.Is(err, apperr.KindInputMalformed), apperr.Is(err, apperr.KindDimensionMismatch):
		status = http.StatusBadRequest
	case apperr.Is(err, apperr.KindIdentityRejected):
		status = http.StatusUnauthorized
	case apperr.Is(err, apperr.KindDuplicateCredential):
		status = http.StatusConflict
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, fmt.Sprintf(`{"error":%q}`, err.Error()))
}
