package repository

import (
	"context"

	"gorm.io/gorm"

	"club-reconciliation-backend/internal/models"
)

type DebitorRepository struct {
	db *gorm.DB
}

func NewDebitorRepository(db *gorm.DB) *DebitorRepository {
	return &DebitorRepository{db: db}
}

// List returns all debitors in a stable order.
func (r *DebitorRepository) List(ctx context.Context) ([]models.Debitor, error) {
	var out []models.Debitor
	err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

func (r *DebitorRepository) Create(ctx context.Context, d *models.Debitor) error {
	return r.db.WithContext(ctx).Create(d).Error
}
