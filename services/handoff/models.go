package handoff

import "time"

type sessionModel struct {
	ID          string    `gorm:"type:text;primaryKey" db:"id"`
	OwnerID     string    `gorm:"type:text;index" db:"owner_id"`
	Status      string    `gorm:"type:text;not null" db:"status"`
	ArtifactKey string    `gorm:"type:text" db:"artifact_key"`
	ContentType string    `gorm:"type:text" db:"content_type"`
	SizeBytes   int64     `gorm:"type:bigint;not null;default:0" db:"size_bytes"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime" db:"created_at"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime" db:"updated_at"`
}

func (sessionModel) TableName() string { return "handoff_sessions" }

func (m sessionModel) toAPI() Session {
	s := Session{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Status:    Status(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.ArtifactKey != "" {
		s.Artifact = &ArtifactRef{
			Key:         m.ArtifactKey,
			ContentType: m.ContentType,
			Size:        m.SizeBytes,
		}
	}
	return s
}
