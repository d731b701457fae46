package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"club-reconciliation-backend/internal/models"
)

type SourceRepository struct {
	db *gorm.DB
}

func NewSourceRepository(db *gorm.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

func (r *SourceRepository) Create(ctx context.Context, s *models.TransactionSource) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *SourceRepository) Save(ctx context.Context, s *models.TransactionSource) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *SourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.TransactionSource, error) {
	var s models.TransactionSource
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}
