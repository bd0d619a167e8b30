package transcriber

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTranscribeReturnsServerText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("server: parse multipart form: %v", err)
		}
		if lang := r.FormValue("language"); lang != "es" {
			t.Errorf("expected language=es, got %q", lang)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(transcriptionResponse{Text: "hola mundo"})
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "probe.wav")
	if err := os.WriteFile(path, []byte("fake-wav-bytes"), 0o644); err != nil {
		t.Fatalf("write probe file: %v", err)
	}

	c := New(srv.URL, "es", 4, 5*time.Second)
	text, err := c.Transcribe(context.Background(), path)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "hola mundo" {
		t.Fatalf("Transcribe() = %q, want %q", text, "hola mundo")
	}
}

func TestTranscribeSurfacesNon200AsExternalUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "probe.wav")
	os.WriteFile(path, []byte("fake-wav-bytes"), 0o644)

	c := New(srv.URL, "es", 4, 5*time.Second)
	_, err := c.Transcribe(context.Background(), path)
	if err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}
