package audit

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/voicebio/internal/auth"
	"github.com/example/voicebio/internal/svm"
)

const logChannelBuffer = 64

type logMsg struct {
	kind    string // "auth_attempt", "training_run"
	attempt AuthAttempt
	run     TrainingRun
}

// Logger writes audit rows asynchronously via a buffered channel so
// authenticate/train never block on the audit database. All methods
// are nil-safe (no-op on nil receiver).
type Logger struct {
	store *Store
	ch    chan logMsg
	done  chan struct{}
}

// NewLogger launches a background goroutine (drain) that writes audit
// rows to store sequentially. Callers MUST call Close() to flush
// pending writes and stop the goroutine.
func NewLogger(store *Store) *Logger {
	l := &Logger{
		store: store,
		ch:    make(chan logMsg, logChannelBuffer),
		done:  make(chan struct{}),
	}
	go l.drain()
	return l
}

func (l *Logger) drain() {
	defer close(l.done)
	for msg := range l.ch {
		l.handle(msg)
	}
}

func (l *Logger) handle(m logMsg) {
	var err error
	switch m.kind {
	case "auth_attempt":
		err = l.store.insertAuthAttempt(m.attempt)
	case "training_run":
		err = l.store.insertTrainingRun(m.run)
	}
	if err != nil {
		slog.Warn("audit write failed", "kind", m.kind, "error", err)
	}
}

// RecordAuthAttempt enqueues a persisted copy of an authentication
// decision, keyed by the claimed identity (verdict.PredictedID carries
// the classifier's guess; claimedID is what the caller asserted).
func (l *Logger) RecordAuthAttempt(claimedID string, v auth.Verdict) {
	if l == nil {
		return
	}
	l.ch <- logMsg{
		kind: "auth_attempt",
		attempt: AuthAttempt{
			ID:             uuid.NewString(),
			ClaimedID:      claimedID,
			PredictedID:    v.PredictedID,
			Granted:        v.Granted,
			Confidence:     v.Confidence,
			TextSimilarity: v.TextSimilarity,
			IDMatch:        v.IDMatch,
			ElapsedMs:      float64(v.Elapsed.Microseconds()) / 1000.0,
			CreatedAt:      time.Now().UTC(),
		},
	}
}

// RecordTrainingRun enqueues a persisted copy of a training outcome.
// classID is the class the run was started for; callers pass it for
// both full and incremental runs, and nil records a run not tied to a
// class.
func (l *Logger) RecordTrainingRun(kind string, classID *int32, result svm.Result, elapsed time.Duration) {
	if l == nil {
		return
	}
	l.ch <- logMsg{
		kind: "training_run",
		run: TrainingRun{
			ID:         uuid.NewString(),
			Kind:       kind,
			ClassID:    classID,
			Epochs:     result.Epochs,
			Degenerate: result.Degenerate,
			ElapsedMs:  float64(elapsed.Microseconds()) / 1000.0,
			CreatedAt:  time.Now().UTC(),
		},
	}
}

// Close drains pending writes and shuts down the background goroutine.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	close(l.ch)
	<-l.done
}
