package docgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"scribed/pkg/bus"
	"scribed/pkg/render"
)

// ErrNoTemplate means the request named no resolvable template.
var ErrNoTemplate = errors.New("docgen: no template resolved")

// ErrTemplateNotFound means the referenced stored template does not exist.
var ErrTemplateNotFound = errors.New("docgen: template not found")

// Service runs the document generation pipeline: transcript plus template in,
// substituted document out, persisted when a database is configured.
type Service struct {
	orm         *gorm.DB
	renderer    *render.Engine
	transcriber Transcriber
	eventBus    *bus.Bus
	logger      *log.Logger
}

// NewService wires the pipeline. The ORM, transcriber, and bus are all
// optional: without an ORM documents are returned but not persisted, without
// a transcriber requests must carry a transcript.
func NewService(orm *gorm.DB, renderer *render.Engine, transcriber Transcriber, eventBus *bus.Bus, logger *log.Logger) (*Service, error) {
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		orm:         orm,
		renderer:    renderer,
		transcriber: transcriber,
		eventBus:    eventBus,
		logger:      logger,
	}, nil
}

// GenerateRequest describes one document to produce. Exactly one of
// TemplateBody, TemplateID, or TemplateName must resolve; Transcript may be
// supplied directly or produced from Audio.
type GenerateRequest struct {
	SessionID        string
	OwnerID          string
	Transcript       string
	Audio            []byte
	AudioContentType string
	TemplateID       *uuid.UUID
	TemplateName     string
	TemplateBody     string
	Fields           map[string]string
}

// Generate resolves the template, transcribes if needed, substitutes, and
// persists the result.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (Document, error) {
	body, err := s.resolveTemplate(ctx, req)
	if err != nil {
		return Document{}, err
	}

	transcript := req.Transcript
	if transcript == "" && len(req.Audio) > 0 {
		if s.transcriber == nil {
			return Document{}, errors.New("docgen: no transcriber configured")
		}
		transcript, err = s.transcriber.Transcribe(ctx, req.Audio, req.AudioContentType)
		if err != nil {
			return Document{}, err
		}
	}
	if transcript == "" {
		return Document{}, errors.New("docgen: transcript or audio is required")
	}

	doc := Document{
		ID:         uuid.New(),
		SessionID:  req.SessionID,
		OwnerID:    req.OwnerID,
		TemplateID: req.TemplateID,
		Transcript: transcript,
		Body:       Substitute(body, req.Fields, transcript),
		Fields:     req.Fields,
		CreatedAt:  time.Now().UTC(),
	}

	if s.orm != nil {
		model := documentModel{
			ID:         doc.ID,
			SessionID:  doc.SessionID,
			OwnerID:    doc.OwnerID,
			TemplateID: doc.TemplateID,
			Transcript: doc.Transcript,
			Body:       doc.Body,
			Fields:     fieldsToJSONMap(doc.Fields),
			CreatedAt:  doc.CreatedAt,
		}
		if err := s.orm.WithContext(ctx).Create(&model).Error; err != nil {
			return Document{}, fmt.Errorf("persist document: %w", err)
		}
	}

	if s.eventBus != nil {
		err := s.eventBus.Publish(ctx, bus.Event{
			Subject:   bus.SubjectDocumentGenerated,
			SessionID: doc.SessionID,
			OwnerID:   doc.OwnerID,
			Detail:    map[string]any{"document_id": doc.ID},
		})
		if err != nil {
			s.logger.Printf("WARN publish document event: %v", err)
		}
	}

	return doc, nil
}

// resolveTemplate picks the template body: inline body, stored template, or
// an embedded default, in that order.
func (s *Service) resolveTemplate(ctx context.Context, req GenerateRequest) (string, error) {
	if req.TemplateBody != "" {
		return req.TemplateBody, nil
	}

	if req.TemplateID != nil {
		tmpl, err := s.GetTemplate(ctx, *req.TemplateID)
		if err != nil {
			return "", err
		}
		return tmpl.Body, nil
	}

	if req.TemplateName != "" {
		name := req.TemplateName + ".tmpl"
		if !s.renderer.Has(name) {
			return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, req.TemplateName)
		}
		// Default bodies carry {token} placeholders only, so rendering with
		// no data returns them verbatim for substitution.
		return s.renderer.Render(name, nil)
	}

	return "", ErrNoTemplate
}

// GetDocument loads a persisted document.
func (s *Service) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	if s.orm == nil {
		return Document{}, errors.New("docgen: no database configured")
	}

	var model documentModel
	err := s.orm.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, fmt.Errorf("docgen: document %s not found", id)
	}
	if err != nil {
		return Document{}, err
	}
	return model.toAPI(), nil
}

// CreateTemplate stores a reusable template.
func (s *Service) CreateTemplate(ctx context.Context, name, body string) (DocTemplate, error) {
	if s.orm == nil {
		return DocTemplate{}, errors.New("docgen: no database configured")
	}
	if name == "" || body == "" {
		return DocTemplate{}, errors.New("docgen: template name and body are required")
	}

	now := time.Now().UTC()
	model := templateModel{
		ID:        uuid.New(),
		Name:      name,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.orm.WithContext(ctx).Create(&model).Error; err != nil {
		return DocTemplate{}, err
	}
	return model.toAPI(), nil
}

// GetTemplate loads a stored template.
func (s *Service) GetTemplate(ctx context.Context, id uuid.UUID) (DocTemplate, error) {
	if s.orm == nil {
		return DocTemplate{}, errors.New("docgen: no database configured")
	}

	var model templateModel
	err := s.orm.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DocTemplate{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	if err != nil {
		return DocTemplate{}, err
	}
	return model.toAPI(), nil
}

// ListTemplates returns all stored templates ordered by name.
func (s *Service) ListTemplates(ctx context.Context) ([]DocTemplate, error) {
	if s.orm == nil {
		return nil, errors.New("docgen: no database configured")
	}

	var models []templateModel
	if err := s.orm.WithContext(ctx).Order("name").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]DocTemplate, 0, len(models))
	for _, m := range models {
		out = append(out, m.toAPI())
	}
	return out, nil
}

// UpdateTemplate replaces a stored template's name and body.
func (s *Service) UpdateTemplate(ctx context.Context, id uuid.UUID, name, body string) (DocTemplate, error) {
	if s.orm == nil {
		return DocTemplate{}, errors.New("docgen: no database configured")
	}
	if name == "" || body == "" {
		return DocTemplate{}, errors.New("docgen: template name and body are required")
	}

	res := s.orm.WithContext(ctx).Model(&templateModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"name": name, "body": body, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return DocTemplate{}, res.Error
	}
	if res.RowsAffected == 0 {
		return DocTemplate{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return s.GetTemplate(ctx, id)
}

// DeleteTemplate removes a stored template.
func (s *Service) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	if s.orm == nil {
		return errors.New("docgen: no database configured")
	}

	res := s.orm.WithContext(ctx).Delete(&templateModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return nil
}
