package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"club-reconciliation-backend/internal/models"
)

type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// FindByNumber looks a member up by membership number.
func (r *MemberRepository) FindByNumber(ctx context.Context, number int) (*models.Member, error) {
	var m models.Member
	if err := r.db.WithContext(ctx).First(&m, "number = ?", number).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// Lock takes a row lock on the member for the rest of the surrounding
// database transaction. Settlement lookups for one member serialise on it.
func (r *MemberRepository) Lock(ctx context.Context, id uuid.UUID) error {
	var m models.Member
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&m, "id = ?", id).Error
	return notFound(err)
}

func (r *MemberRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var m models.Member
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *MemberRepository) Create(ctx context.Context, m *models.Member) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// CreateMembership stores p and closes the member's open membership the
// day before p starts.
func (r *MemberRepository) CreateMembership(ctx context.Context, p *models.Membership) error {
	end := p.StartsOn.AddDate(0, 0, -1)
	err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("member_id = ? AND ends_on IS NULL AND starts_on < ?", p.MemberID, p.StartsOn).
		Update("ends_on", end).Error
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *MemberRepository) ListMemberships(ctx context.Context, memberID uuid.UUID) ([]models.Membership, error) {
	var out []models.Membership
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("starts_on ASC").
		Find(&out).Error
	return out, err
}
