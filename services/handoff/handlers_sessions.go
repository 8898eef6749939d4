package handoff

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"scribed/pkg/bus"
)

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID string `json:"owner_id"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
	}
	req.OwnerID = strings.TrimSpace(req.OwnerID)

	sessionID, err := a.deps.Sessions.CreateSession(r.Context(), req.OwnerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	scanURL, err := BuildScanURL(a.config.PublicBase, sessionID, req.OwnerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	sessionsCreated.Inc()
	a.publishEvent(r, bus.SubjectSessionCreated, sessionID, req.OwnerID, nil)

	respondJSON(w, http.StatusCreated, map[string]any{
		"session_id": sessionID,
		"scan_url":   scanURL,
		"expires_in": a.config.ExpiryWindow.String(),
	})
}

func (a *API) handleSessionQR(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := a.deps.Sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		respondError(w, sessionStatusCode(err), err)
		return
	}

	scanURL, err := BuildScanURL(a.config.PublicBase, session.ID, session.OwnerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	png, err := EncodeQR(scanURL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (a *API) handleSessionReady(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))

	respondJSON(w, http.StatusOK, map[string]any{
		"ready": a.deps.Sessions.IsReady(r.Context(), sessionID, ownerID),
	})
}

func (a *API) handleConsumeArtifact(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	ref, err := a.deps.Sessions.GetArtifact(r.Context(), sessionID)
	if err != nil {
		respondError(w, sessionStatusCode(err), err)
		return
	}

	data, err := a.deps.Blobs.Get(r.Context(), ref)
	if err != nil {
		a.deps.Logger.Printf("ERROR fetch recording %s: %v", ref.Key, err)
		respondError(w, http.StatusBadGateway, fmt.Errorf("fetch recording: %w", err))
		return
	}
	if err := a.deps.Blobs.Delete(r.Context(), ref); err != nil {
		a.deps.Logger.Printf("WARN release recording %s: %v", ref.Key, err)
	}

	w.Header().Set("Content-Type", ref.ContentType)
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	_, _ = w.Write(data)
}

// handleAwaitArtifact long-polls until the session's recording arrives, then
// consumes and returns it in one response. The connection is held open across
// readiness checks; a client cut short by a proxy timeout reissues the request.
func (a *API) handleAwaitArtifact(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))

	if _, err := a.deps.Sessions.GetSession(r.Context(), sessionID); err != nil {
		respondError(w, sessionStatusCode(err), err)
		return
	}

	outcome := a.receiver.Await(r.Context(), sessionID, ownerID)
	if !outcome.Received {
		if r.Context().Err() != nil {
			return
		}
		respondError(w, http.StatusRequestTimeout,
			errors.New("no recording arrived before the poll budget ran out"))
		return
	}

	artifact := outcome.Artifact
	w.Header().Set("Content-Type", artifact.Ref.ContentType)
	w.Header().Set("Content-Length", fmt.Sprint(len(artifact.Bytes)))
	_, _ = w.Write(artifact.Bytes)
}

func (a *API) handleUploadRecording(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	contentType := r.Header.Get("Content-Type")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("read recording body: %w", err))
		return
	}

	// A zero-byte or implausibly small capture means the recording pipeline
	// produced no usable audio; fail the session rather than store it.
	if int64(len(body)) < a.config.MinUploadBytes {
		uploadsRejected.Inc()
		if err := a.deps.Sessions.MarkError(r.Context(), sessionID); err != nil {
			a.deps.Logger.Printf("WARN mark session %s errored: %v", sessionID, err)
		}
		a.publishEvent(r, bus.SubjectSessionFailed, sessionID, "", map[string]any{"reason": "empty capture"})
		respondError(w, http.StatusBadRequest,
			fmt.Errorf("recording too small: %d bytes (minimum %d)", len(body), a.config.MinUploadBytes))
		return
	}

	ref := ArtifactRef{
		Key:         RecordingKey(sessionID, contentType),
		ContentType: contentType,
		Size:        int64(len(body)),
	}

	if err := a.deps.Blobs.Put(r.Context(), ref, bytes.NewReader(body)); err != nil {
		a.deps.Logger.Printf("ERROR store recording %s: %v", ref.Key, err)
		if markErr := a.deps.Sessions.MarkError(r.Context(), sessionID); markErr != nil {
			a.deps.Logger.Printf("WARN mark session %s errored: %v", sessionID, markErr)
		}
		a.publishEvent(r, bus.SubjectSessionFailed, sessionID, "", map[string]any{"reason": "storage failure"})
		respondError(w, http.StatusBadGateway, fmt.Errorf("store recording: %w", err))
		return
	}

	if err := a.deps.Sessions.MarkCompleted(r.Context(), sessionID, ref); err != nil {
		// The blob is orphaned; remove it so a dead session leaves no bytes.
		if delErr := a.deps.Blobs.Delete(r.Context(), ref); delErr != nil {
			a.deps.Logger.Printf("WARN release orphaned recording %s: %v", ref.Key, delErr)
		}
		respondError(w, sessionStatusCode(err), err)
		return
	}

	sessionsCompleted.Inc()
	a.publishEvent(r, bus.SubjectSessionCompleted, sessionID, "", map[string]any{
		"key":          ref.Key,
		"content_type": ref.ContentType,
		"size":         ref.Size,
	})

	respondJSON(w, http.StatusCreated, map[string]any{"artifact": ref})
}

func (a *API) handleMarkError(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := a.deps.Sessions.MarkError(r.Context(), sessionID); err != nil {
		respondError(w, sessionStatusCode(err), err)
		return
	}

	a.publishEvent(r, bus.SubjectSessionFailed, sessionID, "", map[string]any{"reason": "sender reported"})
	respondJSON(w, http.StatusOK, map[string]any{"status": StatusError})
}

func (a *API) handleMobileRecord(w http.ResponseWriter, r *http.Request) {
	sessionID, ownerID, err := parseScanQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	session, err := a.deps.Sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		respondError(w, sessionStatusCode(err), err)
		return
	}
	if ownerID != "" && session.OwnerID != ownerID {
		respondError(w, http.StatusNotFound, ErrSessionNotFound)
		return
	}

	scanURL, err := BuildScanURL(a.config.PublicBase, session.ID, session.OwnerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	page, err := a.deps.Renderer.Render("mobile_record.html.tmpl", map[string]any{
		"SessionID": session.ID,
		"OwnerID":   session.OwnerID,
		"ScanURL":   scanURL,
		"ExpiresIn": a.config.ExpiryWindow.String(),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}
