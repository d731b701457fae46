package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionSettlementCreated  = "settlement_created"
	ActionSettlementAttached = "settlement_attached"
	ActionDebitorClassified  = "debitor_classified"
	ActionManualAssign       = "manual_assign"
)

// MatchAuditLog records every change the matcher makes to a transaction.
type MatchAuditLog struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TransactionID uuid.UUID  `gorm:"type:uuid;index" json:"transaction_id"`
	Action        string     `gorm:"size:32" json:"action"`
	SettlementID  *uuid.UUID `gorm:"type:uuid" json:"settlement_id,omitempty"`
	PerformedBy   string     `json:"performed_by"`
	Reason        string     `json:"reason"`
	CreatedAt     time.Time  `json:"created_at"`
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Account{},
		&Member{},
		&Membership{},
		&Debitor{},
		&TransactionSource{},
		&RealTransaction{},
		&Settlement{},
		&MatchAuditLog{},
	}
}
