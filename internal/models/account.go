package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountCategory identifies the special bookkeeping accounts this service
// books against.
type AccountCategory string

const (
	AccountBank           AccountCategory = "bank"
	AccountMemberFees     AccountCategory = "member_fees"
	AccountMemberDonation AccountCategory = "member_donation"
	AccountLiability      AccountCategory = "liability"
)

type Account struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Category  AccountCategory `gorm:"size:32;uniqueIndex;not null" json:"category"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"created_at"`
}
