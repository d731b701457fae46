package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"club-reconciliation-backend/internal/models"
)

type RealTransactionRepository struct {
	db *gorm.DB
}

func NewRealTransactionRepository(db *gorm.DB) *RealTransactionRepository {
	return &RealTransactionRepository{db: db}
}

// InsertIfAbsent inserts t unless its natural key is already stored. The
// check and the insert are one statement, so concurrent imports of the
// same file cannot both insert.
func (r *RealTransactionRepository) InsertIfAbsent(ctx context.Context, t *models.RealTransaction) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "natural_key"}},
			DoNothing: true,
		}).
		Create(t)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *RealTransactionRepository) Create(ctx context.Context, t *models.RealTransaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *RealTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RealTransaction, error) {
	var t models.RealTransaction
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// GetForUpdate loads a transaction and locks its row until the surrounding
// database transaction ends.
func (r *RealTransactionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.RealTransaction, error) {
	var t models.RealTransaction
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&t, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// UpdateMatch persists the match attributes, the only fields that change
// after a transaction is ingested.
func (r *RealTransactionRepository) UpdateMatch(ctx context.Context, t *models.RealTransaction) error {
	return r.db.WithContext(ctx).
		Model(&models.RealTransaction{}).
		Where("id = ?", t.ID).
		Updates(map[string]interface{}{
			"status":           t.Status,
			"confidence_score": t.ConfidenceScore,
			"member_id":        t.MemberID,
			"debitor_id":       t.DebitorID,
			"match_details":    t.MatchDetails,
		}).Error
}

// ListUnsettled returns transactions not yet matched to a member or
// debitor, oldest first.
func (r *RealTransactionRepository) ListUnsettled(ctx context.Context) ([]models.RealTransaction, error) {
	var txs []models.RealTransaction
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{models.StatusPending, models.StatusUnresolved}).
		Order("value_date ASC, created_at ASC").
		Find(&txs).Error
	return txs, err
}

// ListBySource pages through a source's transactions by id.
func (r *RealTransactionRepository) ListBySource(
	ctx context.Context,
	sourceID uuid.UUID,
	status string,
	cursor string,
	limit int,
) ([]models.RealTransaction, string, bool, error) {

	var txs []models.RealTransaction
	query := r.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Order("id ASC").
		Limit(limit + 1)

	if status != "" && status != "all" {
		query = query.Where("status = ?", status)
	}
	if cursor != "" {
		query = query.Where("id > ?", cursor)
	}

	if err := query.Find(&txs).Error; err != nil {
		return nil, "", false, err
	}

	hasMore := false
	var nextCursor string
	if len(txs) > limit {
		hasMore = true
		nextCursor = txs[limit-1].ID.String()
		txs = txs[:limit]
	}
	return txs, nextCursor, hasMore, nil
}

// StatusCount is one row of per-status totals. Sum is signed as seen
// from the bank account.
type StatusCount struct {
	Status string
	Count  int64
	Sum    decimal.Decimal
}

func (r *RealTransactionRepository) CountByStatus(ctx context.Context, sourceID uuid.UUID) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).
		Model(&models.RealTransaction{}).
		Where("source_id = ?", sourceID).
		Select("status, COUNT(*) as count, COALESCE(SUM(CASE WHEN direction = ? THEN -amount ELSE amount END), 0) as sum", models.DirectionCredit).
		Group("status").
		Scan(&rows).Error
	return rows, err
}

func (r *RealTransactionRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.RealTransaction{}).Count(&n).Error
	return n, err
}
