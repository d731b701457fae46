package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Member mirrors the membership system's record. Only Number is used for
// matching.
type Member struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Number    int       `gorm:"uniqueIndex;not null" json:"number"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

type Membership struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	MemberID  uuid.UUID       `gorm:"type:uuid;index;not null" json:"member_id"`
	StartsOn  time.Time       `gorm:"type:date;not null" json:"starts_on"`
	EndsOn    *time.Time      `gorm:"type:date" json:"ends_on,omitempty"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2)" json:"amount"`
	Interval  int             `json:"interval"`
	CreatedAt time.Time       `json:"created_at"`
}

// Debitor is a non-member payer recognised by literal tokens in the
// payment reference.
type Debitor struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `json:"name"`
	Token1    string    `json:"token1"`
	Token2    string    `json:"token2"`
	CreatedAt time.Time `json:"created_at"`
}
