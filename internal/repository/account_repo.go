package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"club-reconciliation-backend/internal/models"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetOrCreate returns the account for category, creating it on first use.
func (r *AccountRepository) GetOrCreate(ctx context.Context, category models.AccountCategory) (*models.Account, error) {
	acc := &models.Account{
		ID:       uuid.New(),
		Category: category,
		Name:     strings.ReplaceAll(string(category), "_", " "),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "category"}},
			DoNothing: true,
		}).
		Create(acc).Error
	if err != nil {
		return nil, err
	}

	var stored models.Account
	if err := r.db.WithContext(ctx).First(&stored, "category = ?", category).Error; err != nil {
		return nil, notFound(err)
	}
	return &stored, nil
}
