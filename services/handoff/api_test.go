package handoff

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scribed/pkg/render"
)

func newTestAPI(t *testing.T) (*API, *FileStore) {
	t.Helper()

	dir := t.TempDir()
	sessions, err := NewFileStore(filepath.Join(dir, "sessions.json"), 10*time.Minute, nil)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	blobs, err := NewDirBlobStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("NewDirBlobStore() error = %v", err)
	}
	renderer, err := render.New()
	if err != nil {
		t.Fatalf("render.New() error = %v", err)
	}

	api, err := New(Deps{Sessions: sessions, Blobs: blobs, Renderer: renderer}, Config{
		PublicBase:     "https://scribe.example.com",
		MinUploadBytes: 16,
		PollInterval:   5 * time.Millisecond,
		MaxPolls:       20,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return api, sessions
}

func createSession(t *testing.T, handler http.Handler, ownerID string) string {
	t.Helper()

	body := "{}"
	if ownerID != "" {
		body = `{"owner_id":"` + ownerID + `"}`
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/handoff/sessions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		SessionID string `json:"session_id"`
		ScanURL   string `json:"scan_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if resp.SessionID == "" || !strings.Contains(resp.ScanURL, "sessionId="+resp.SessionID) {
		t.Fatalf("create response incomplete: %+v", resp)
	}
	return resp.SessionID
}

func TestUploadAndConsumeRoundTrip(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	id := createSession(t, handler, "dr-lee")
	audio := bytes.Repeat([]byte("a"), 64)

	req := httptest.NewRequest(http.MethodPost, "/v1/handoff/sessions/"+id+"/recording", bytes.NewReader(audio))
	req.Header.Set("Content-Type", "audio/mp4")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}

	readyReq := httptest.NewRequest(http.MethodGet, "/v1/handoff/sessions/"+id+"/ready?owner_id=dr-lee", nil)
	readyRec := httptest.NewRecorder()
	handler.ServeHTTP(readyRec, readyReq)
	var ready struct {
		Ready bool `json:"ready"`
	}
	if err := json.Unmarshal(readyRec.Body.Bytes(), &ready); err != nil || !ready.Ready {
		t.Fatalf("ready = %s, err %v, want true", readyRec.Body.String(), err)
	}

	consumeReq := httptest.NewRequest(http.MethodGet, "/v1/handoff/sessions/"+id+"/artifact", nil)
	consumeRec := httptest.NewRecorder()
	handler.ServeHTTP(consumeRec, consumeReq)
	if consumeRec.Code != http.StatusOK {
		t.Fatalf("consume status = %d, body %s", consumeRec.Code, consumeRec.Body.String())
	}
	if ct := consumeRec.Header().Get("Content-Type"); ct != "audio/mp4" {
		t.Fatalf("consume content type = %q, want audio/mp4", ct)
	}
	if !bytes.Equal(consumeRec.Body.Bytes(), audio) {
		t.Fatal("consumed bytes differ from the uploaded recording")
	}

	// A second consume finds nothing.
	againRec := httptest.NewRecorder()
	handler.ServeHTTP(againRec, httptest.NewRequest(http.MethodGet, "/v1/handoff/sessions/"+id+"/artifact", nil))
	if againRec.Code != http.StatusNotFound {
		t.Fatalf("second consume status = %d, want 404", againRec.Code)
	}
}

func TestAwaitArtifactLongPoll(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	id := createSession(t, handler, "dr-lee")
	audio := bytes.Repeat([]byte("a"), 64)

	upload := httptest.NewRequest(http.MethodPost, "/v1/handoff/sessions/"+id+"/recording", bytes.NewReader(audio))
	upload.Header.Set("Content-Type", "audio/webm")
	uploadRec := httptest.NewRecorder()
	handler.ServeHTTP(uploadRec, upload)
	if uploadRec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", uploadRec.Code, uploadRec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/handoff/sessions/"+id+"/await?owner_id=dr-lee", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("await status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/webm" {
		t.Fatalf("await content type = %q, want audio/webm", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), audio) {
		t.Fatal("awaited bytes differ from the uploaded recording")
	}

	// The await consumed the session.
	again := httptest.NewRecorder()
	handler.ServeHTTP(again, httptest.NewRequest(http.MethodGet, "/v1/handoff/sessions/"+id+"/artifact", nil))
	if again.Code != http.StatusNotFound {
		t.Fatalf("consume after await status = %d, want 404", again.Code)
	}
}

func TestAwaitArtifactTimesOut(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	id := createSession(t, handler, "")

	req := httptest.NewRequest(http.MethodGet, "/v1/handoff/sessions/"+id+"/await", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestTimeout {
		t.Fatalf("await status = %d, want 408", rec.Code)
	}

	unknown := httptest.NewRecorder()
	handler.ServeHTTP(unknown, httptest.NewRequest(http.MethodGet, "/v1/handoff/sessions/nope/await", nil))
	if unknown.Code != http.StatusNotFound {
		t.Fatalf("await unknown session status = %d, want 404", unknown.Code)
	}
}

func TestUploadRejectsTinyRecording(t *testing.T) {
	api, sessions := newTestAPI(t)
	handler := api.Handler()

	id := createSession(t, handler, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/handoff/sessions/"+id+"/recording", strings.NewReader("tiny"))
	req.Header.Set("Content-Type", "audio/webm")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("tiny upload status = %d, want 400", rec.Code)
	}

	s, err := sessions.GetSession(req.Context(), id)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if s.Status != StatusError {
		t.Fatalf("session status = %q, want %q after rejected upload", s.Status, StatusError)
	}
}

func TestMobileRecordPage(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	id := createSession(t, handler, "dr-lee")

	req := httptest.NewRequest(http.MethodGet, "/mobile-record?sessionId="+id+"&userId=dr-lee", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("mobile-record status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), id) {
		t.Fatal("mobile-record page should embed the session id")
	}

	// Owner mismatch hides the session.
	mismatch := httptest.NewRecorder()
	handler.ServeHTTP(mismatch, httptest.NewRequest(http.MethodGet, "/mobile-record?sessionId="+id+"&userId=other", nil))
	if mismatch.Code != http.StatusNotFound {
		t.Fatalf("mismatched owner status = %d, want 404", mismatch.Code)
	}

	// Missing sessionId is a bad request.
	missing := httptest.NewRecorder()
	handler.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/mobile-record", nil))
	if missing.Code != http.StatusBadRequest {
		t.Fatalf("missing sessionId status = %d, want 400", missing.Code)
	}
}

func TestSessionQRServed(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	id := createSession(t, handler, "")

	req := httptest.NewRequest(http.MethodGet, "/v1/handoff/sessions/"+id+"/qr.png", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("qr status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("qr content type = %q, want image/png", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatal("qr body is not a PNG")
	}
}
