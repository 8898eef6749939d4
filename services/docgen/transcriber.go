package docgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrEmptyTranscript means the audio produced no recognized speech.
var ErrEmptyTranscript = errors.New("docgen: no speech recognized in recording")

// Transcriber converts an encoded audio recording to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType string) (string, error)
}

const (
	defaultSTTBaseURL = "https://api.deepgram.com"
	defaultSTTModel   = "nova-2"
)

// HTTPTranscriber calls a Deepgram-compatible speech-to-text endpoint.
type HTTPTranscriber struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	httpClient *http.Client
}

// TranscriberOption configures an HTTPTranscriber.
type TranscriberOption func(*HTTPTranscriber)

// WithAPIKey sets the API key.
func WithAPIKey(key string) TranscriberOption {
	return func(t *HTTPTranscriber) {
		t.apiKey = key
	}
}

// WithBaseURL sets the endpoint base URL.
func WithBaseURL(base string) TranscriberOption {
	return func(t *HTTPTranscriber) {
		t.baseURL = strings.TrimSuffix(base, "/")
	}
}

// WithModel sets the recognition model.
func WithModel(model string) TranscriberOption {
	return func(t *HTTPTranscriber) {
		t.model = model
	}
}

// WithLanguage sets the recognition language.
func WithLanguage(lang string) TranscriberOption {
	return func(t *HTTPTranscriber) {
		t.language = lang
	}
}

// WithTranscriberHTTPClient sets the HTTP client.
func WithTranscriberHTTPClient(client *http.Client) TranscriberOption {
	return func(t *HTTPTranscriber) {
		t.httpClient = client
	}
}

// NewHTTPTranscriber creates a transcription client.
func NewHTTPTranscriber(opts ...TranscriberOption) *HTTPTranscriber {
	t := &HTTPTranscriber{
		baseURL:    defaultSTTBaseURL,
		model:      defaultSTTModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type sttResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

type sttError struct {
	ErrCode string `json:"err_code"`
	ErrMsg  string `json:"err_msg"`
}

// Transcribe implements Transcriber.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("docgen: audio is required")
	}

	params := url.Values{}
	params.Set("model", t.model)
	params.Set("smart_format", "true")
	params.Set("punctuate", "true")
	if t.language != "" {
		params.Set("language", t.language)
	}

	reqURL := fmt.Sprintf("%s/v1/listen?%s", t.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("docgen: create transcription request: %w", err)
	}
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Token "+t.apiKey)
	}
	if contentType == "" {
		contentType = "audio/webm"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("docgen: transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("docgen: read transcription response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp sttError
		if json.Unmarshal(body, &errResp) == nil && errResp.ErrMsg != "" {
			return "", fmt.Errorf("docgen: transcription rejected: %s (code: %s)", errResp.ErrMsg, errResp.ErrCode)
		}
		return "", fmt.Errorf("docgen: transcription rejected: unexpected status %d", resp.StatusCode)
	}

	var parsed sttResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("docgen: parse transcription response: %w", err)
	}

	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", ErrEmptyTranscript
	}
	transcript := strings.TrimSpace(parsed.Results.Channels[0].Alternatives[0].Transcript)
	if transcript == "" {
		return "", ErrEmptyTranscript
	}
	return transcript, nil
}
