package capture

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

	"scribed/services/handoff"
)

// Client uploads recordings to the hand-off service on behalf of the sending
// device. Transport failures surface to the caller after the server marks the
// session errored; nothing is retried automatically, the user re-records.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates an upload client for the given service base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base url is required")
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Target is a parsed hand-off link: where to upload and for which session.
type Target struct {
	BaseURL   string
	SessionID string
	OwnerID   string
}

// ParseTarget resolves a scanned hand-off URL into an upload target.
func ParseTarget(scanURL string) (Target, error) {
	sessionID, ownerID, err := handoff.ParseScanURL(scanURL)
	if err != nil {
		return Target{}, err
	}

	u, err := url.Parse(scanURL)
	if err != nil {
		return Target{}, fmt.Errorf("parse hand-off url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Target{}, fmt.Errorf("hand-off url %q must be absolute", scanURL)
	}

	base := &url.URL{Scheme: u.Scheme, Host: u.Host}
	return Target{BaseURL: base.String(), SessionID: sessionID, OwnerID: ownerID}, nil
}

// Upload delivers the recording against the session id and returns the stored
// artifact reference.
func (c *Client) Upload(ctx context.Context, sessionID string, rec Recording) (handoff.ArtifactRef, error) {
	if sessionID == "" {
		return handoff.ArtifactRef{}, errors.New("session id is required")
	}
	if len(rec.Bytes) == 0 {
		return handoff.ArtifactRef{}, ErrEmptyCapture
	}

	endpoint := fmt.Sprintf("%s/v1/handoff/sessions/%s/recording", c.baseURL, url.PathEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(rec.Bytes))
	if err != nil {
		return handoff.ArtifactRef{}, fmt.Errorf("build upload request: %w", err)
	}
	contentType := rec.ContentType
	if contentType == "" {
		contentType = "audio/webm"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return handoff.ArtifactRef{}, fmt.Errorf("upload recording: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return handoff.ArtifactRef{}, fmt.Errorf("read upload response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return handoff.ArtifactRef{}, fmt.Errorf("upload rejected: %s", errResp.Error)
		}
		return handoff.ArtifactRef{}, fmt.Errorf("upload rejected: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Artifact handoff.ArtifactRef `json:"artifact"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return handoff.ArtifactRef{}, fmt.Errorf("decode upload response: %w", err)
	}
	return out.Artifact, nil
}

// ReportError flags the session as failed after an unrecoverable local error.
func (c *Client) ReportError(ctx context.Context, sessionID string) error {
	endpoint := fmt.Sprintf("%s/v1/handoff/sessions/%s/error", c.baseURL, url.PathEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build error report: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("report error: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("report error: unexpected status %d", resp.StatusCode)
	}
	return nil
}
