// Package transcriber implements the external Transcriber
// collaborator: transcribe(audio_path) -> text, Spanish by default,
// timing out at 15s. It uploads the recording at the given path as
// multipart form data over a pooled *http.Client, since the core
// passes audio paths rather than decoded buffers across this boundary.
package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/example/voicebio/internal/apperr"
)

// Client calls a remote speech-to-text HTTP endpoint.
type Client struct {
	url      string
	language string
	http     *http.Client
}

// New creates a Client pointing at a transcription server URL. The
// language code (e.g. "es" for Spanish, the core's default) is sent as
// a form field on every request.
func New(url, language string, poolSize int, timeout time.Duration) *Client {
	return &Client{
		url:      url,
		language: language,
		http:     newPooledHTTPClient(poolSize, timeout),
	}
}

func newPooledHTTPClient(poolSize int, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:          poolSize,
			MaxIdleConnsPerHost:   poolSize,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: timeout,
			ForceAttemptHTTP2:     true,
		},
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the audio file at audioPath and returns its
// transcription. Callers are expected to scope ctx to the 15-second
// deadline; a timeout or non-200 response surfaces as
// ExternalUnavailable.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInputMalformed, err, "transcriber: open audio file", "path", audioPath)
	}
	defer f.Close()

	body, contentType, err := buildMultipart(f, audioPath, c.language)
	if err != nil {
		return "", fmt.Errorf("transcriber: build request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/transcribe", body)
	if err != nil {
		return "", fmt.Errorf("transcriber: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindExternalUnavailable, err, "transcriber: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", apperr.New(apperr.KindExternalUnavailable, "transcriber: non-200 response",
			"status", resp.StatusCode, "body", string(respBody))
	}

	var parsed transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("transcriber: decode response: %w", err)
	}
	return parsed.Text, nil
}

func buildMultipart(r io.Reader, filename, language string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("language", language); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}
