package docgen

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Register attaches the document and template endpoints to the router.
func (s *Service) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/documents/generate", s.handleGenerate)
		r.Get("/documents/{documentID}", s.handleGetDocument)

		r.Post("/templates", s.handleCreateTemplate)
		r.Get("/templates", s.handleListTemplates)
		r.Get("/templates/{templateID}", s.handleGetTemplate)
		r.Put("/templates/{templateID}", s.handleUpdateTemplate)
		r.Delete("/templates/{templateID}", s.handleDeleteTemplate)
	})
}

func (s *Service) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID    string            `json:"session_id"`
		OwnerID      string            `json:"owner_id"`
		Transcript   string            `json:"transcript"`
		TemplateID   *uuid.UUID        `json:"template_id"`
		TemplateName string            `json:"template_name"`
		TemplateBody string            `json:"template_body"`
		Fields       map[string]string `json:"fields"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	doc, err := s.Generate(r.Context(), GenerateRequest{
		SessionID:    req.SessionID,
		OwnerID:      req.OwnerID,
		Transcript:   req.Transcript,
		TemplateID:   req.TemplateID,
		TemplateName: req.TemplateName,
		TemplateBody: req.TemplateBody,
		Fields:       req.Fields,
	})
	if err != nil {
		respondError(w, generateStatusCode(err), err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"document": doc})
}

func (s *Service) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("valid document id is required"))
		return
	}

	doc, err := s.GetDocument(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"document": doc})
}

func (s *Service) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Body string `json:"body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	tmpl, err := s.CreateTemplate(r.Context(), req.Name, req.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"template": tmpl})
}

func (s *Service) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.ListTemplates(r.Context())
	if err != nil {
		respondError(w, http.StatusFailedDependency, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (s *Service) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "templateID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("valid template id is required"))
		return
	}

	tmpl, err := s.GetTemplate(r.Context(), id)
	if err != nil {
		respondError(w, templateStatusCode(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"template": tmpl})
}

func (s *Service) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "templateID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("valid template id is required"))
		return
	}

	var req struct {
		Name string `json:"name"`
		Body string `json:"body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	tmpl, err := s.UpdateTemplate(r.Context(), id, req.Name, req.Body)
	if err != nil {
		respondError(w, templateStatusCode(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"template": tmpl})
}

func (s *Service) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "templateID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("valid template id is required"))
		return
	}

	if err := s.DeleteTemplate(r.Context(), id); err != nil {
		respondError(w, templateStatusCode(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func generateStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrNoTemplate), errors.Is(err, ErrEmptyTranscript):
		return http.StatusBadRequest
	case errors.Is(err, ErrTemplateNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func templateStatusCode(err error) int {
	if errors.Is(err, ErrTemplateNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}
