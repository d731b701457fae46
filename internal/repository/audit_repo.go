package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"club-reconciliation-backend/internal/models"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Record(ctx context.Context, entry *models.MatchAuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *AuditRepository) ListByTransaction(ctx context.Context, txID uuid.UUID) ([]models.MatchAuditLog, error) {
	var out []models.MatchAuditLog
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", txID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}
