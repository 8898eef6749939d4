package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type HandoffSession struct {
	ID          string    `gorm:"type:text;primaryKey"`
	OwnerID     string    `gorm:"type:text;index"`
	Status      string    `gorm:"type:text;not null"`
	ArtifactKey string    `gorm:"type:text"`
	ContentType string    `gorm:"type:text"`
	SizeBytes   int64     `gorm:"type:bigint;not null;default:0"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (HandoffSession) TableName() string { return "handoff_sessions" }

type DocTemplate struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"type:text;uniqueIndex;not null"`
	Body      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type Document struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey"`
	SessionID  string            `gorm:"type:text;index"`
	OwnerID    string            `gorm:"type:text;index"`
	TemplateID *uuid.UUID        `gorm:"type:uuid"`
	Transcript string            `gorm:"type:text"`
	Body       string            `gorm:"type:text;not null"`
	Fields     datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt  time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Template   DocTemplate       `gorm:"foreignKey:TemplateID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(
		&HandoffSession{},
		&DocTemplate{},
		&Document{},
	); err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().CreateConstraint(&Document{}, "Template")
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&Document{},
		&DocTemplate{},
		&HandoffSession{},
	)
}
