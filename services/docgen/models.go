package docgen

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DocTemplate is a reusable document body with {token} placeholders.
type DocTemplate struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document is a generated clinical document.
type Document struct {
	ID         uuid.UUID         `json:"id"`
	SessionID  string            `json:"session_id,omitempty"`
	OwnerID    string            `json:"owner_id,omitempty"`
	TemplateID *uuid.UUID        `json:"template_id,omitempty"`
	Transcript string            `json:"transcript,omitempty"`
	Body       string            `json:"body"`
	Fields     map[string]string `json:"fields,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

type templateModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"type:text;uniqueIndex;not null"`
	Body      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (templateModel) TableName() string { return "doc_templates" }

func (m templateModel) toAPI() DocTemplate {
	return DocTemplate{
		ID:        m.ID,
		Name:      m.Name,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type documentModel struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey"`
	SessionID  string            `gorm:"type:text;index"`
	OwnerID    string            `gorm:"type:text;index"`
	TemplateID *uuid.UUID        `gorm:"type:uuid"`
	Transcript string            `gorm:"type:text"`
	Body       string            `gorm:"type:text;not null"`
	Fields     datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt  time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (documentModel) TableName() string { return "documents" }

func (m documentModel) toAPI() Document {
	return Document{
		ID:         m.ID,
		SessionID:  m.SessionID,
		OwnerID:    m.OwnerID,
		TemplateID: m.TemplateID,
		Transcript: m.Transcript,
		Body:       m.Body,
		Fields:     fieldsFromJSONMap(m.Fields),
		CreatedAt:  m.CreatedAt,
	}
}

func fieldsFromJSONMap(src datatypes.JSONMap) map[string]string {
	if src == nil {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func fieldsToJSONMap(src map[string]string) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range src {
		out[k] = v
	}
	return out
}
