package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	KindClaim      = "claim"
	KindSettlement = "settlement"
)

// Settlement is the internal-ledger side of a transaction: a claim against a
// member, or the realized settlement of one by a RealTransaction.
type Settlement struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Kind                 string          `gorm:"size:16;not null" json:"kind"`
	SourceAccountID      uuid.UUID       `gorm:"type:uuid;not null" json:"source_account_id"`
	DestinationAccountID uuid.UUID       `gorm:"type:uuid;index;not null" json:"destination_account_id"`
	MemberID             uuid.UUID       `gorm:"type:uuid;index;not null" json:"member_id"`
	Amount               decimal.Decimal `gorm:"type:numeric(12,2);index;not null" json:"amount"`
	ValueDate            time.Time       `gorm:"type:date;index;not null" json:"value_date"`
	RealTransactionID    *uuid.UUID      `gorm:"type:uuid;uniqueIndex" json:"real_transaction_id,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}
