package repository

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// ChunkRecord is a stored document chunk with its embedding. The vector
// column requires the pgvector extension; on SQLite the embedding is
// persisted as a blob and similarity search is unavailable.
type ChunkRecord struct {
	ID           string          `gorm:"primaryKey"`
	TenantID     string          `gorm:"index;not null"`
	CollectionID string          `gorm:"index;not null"`
	DocumentID   string          `gorm:"index;not null"`
	Position     int             `gorm:"not null"`
	Content      string          `gorm:"not null"`
	Embedding    pgvector.Vector `gorm:"type:vector(1536)"`
	CreatedAt    time.Time       `gorm:"autoCreateTime"`
}

func (ChunkRecord) TableName() string {
	return "document_chunks"
}

// ChunkGormRepository persists the chunks produced by the ingestion
// pipeline's storage stage.
type ChunkGormRepository struct {
	db *gorm.DB
}

func NewChunkGormRepository(db *gorm.DB) *ChunkGormRepository {
	return &ChunkGormRepository{db: db}
}

func (r *ChunkGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&ChunkRecord{})
}

// ReplaceForDocument swaps a document's chunks in one transaction so a
// re-ingest never leaves a mixed generation behind.
func (r *ChunkGormRepository) ReplaceForDocument(ctx context.Context, tenantID, documentID string, chunks []ChunkRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ? AND document_id = ?", tenantID, documentID).
			Delete(&ChunkRecord{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.Create(&chunks).Error
	})
}

// DeleteForDocument removes a document's chunks, used by job cancel
// cleanup.
func (r *ChunkGormRepository) DeleteForDocument(ctx context.Context, tenantID, documentID string) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND document_id = ?", tenantID, documentID).
		Delete(&ChunkRecord{}).Error
}
