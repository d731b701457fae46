package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"club-reconciliation-backend/internal/models"
)

type SettlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// CandidateKey is the join used to find the settlement a payment belongs
// to.
type CandidateKey struct {
	MemberID             uuid.UUID
	DestinationAccountID uuid.UUID
	Amount               decimal.Decimal
	ValueDate            time.Time
}

// FindCandidates returns settlements for key, oldest first.
func (r *SettlementRepository) FindCandidates(ctx context.Context, key CandidateKey) ([]models.Settlement, error) {
	var out []models.Settlement
	err := r.db.WithContext(ctx).
		Where("member_id = ?", key.MemberID).
		Where("destination_account_id = ?", key.DestinationAccountID).
		Where("amount = ?", key.Amount).
		Where("value_date = ?", key.ValueDate).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *SettlementRepository) Create(ctx context.Context, s *models.Settlement) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *SettlementRepository) CreateBatch(ctx context.Context, s []models.Settlement) error {
	if len(s) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&s).Error
}

// Attach links an unlinked settlement to a real transaction. It reports
// false if the settlement was linked in the meantime.
func (r *SettlementRepository) Attach(ctx context.Context, settlementID, txID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Settlement{}).
		Where("id = ? AND real_transaction_id IS NULL", settlementID).
		Updates(map[string]interface{}{
			"real_transaction_id": txID,
			"kind":                models.KindSettlement,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *SettlementRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	var s models.Settlement
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *SettlementRepository) GetByTransaction(ctx context.Context, txID uuid.UUID) (*models.Settlement, error) {
	var s models.Settlement
	if err := r.db.WithContext(ctx).First(&s, "real_transaction_id = ?", txID).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *SettlementRepository) ListByMember(ctx context.Context, memberID uuid.UUID) ([]models.Settlement, error) {
	var out []models.Settlement
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("value_date ASC, created_at ASC").
		Find(&out).Error
	return out, err
}
