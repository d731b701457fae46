package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Channel is the medium money moved through.
type Channel string

const (
	ChannelBank  Channel = "bank"
	ChannelCash  Channel = "cash"
	ChannelOther Channel = "other"
)

// Direction tells which side of the club's bank account a transaction hits.
// Debit means money was received, credit means money was paid out.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// Match status of a RealTransaction.
const (
	StatusPending    = "pending"
	StatusMatched    = "matched"
	StatusUnresolved = "unresolved"
	StatusDebitor    = "debitor"
)

// RealTransaction is money that actually moved through a channel.
// Amount is never negative; Direction carries the sign.
type RealTransaction struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SourceID        *uuid.UUID      `gorm:"type:uuid;index" json:"source_id,omitempty"`
	Channel         Channel         `gorm:"size:16;not null" json:"channel"`
	ValueDate       time.Time       `gorm:"type:date;index;not null" json:"value_date"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);index;not null" json:"amount"`
	Direction       Direction       `gorm:"size:8;not null" json:"direction"`
	Purpose         string          `json:"purpose"`
	Originator      string          `json:"originator"`
	Importer        string          `gorm:"size:64" json:"importer"`
	BookedAt        time.Time       `json:"booked_at"`
	RawLine         datatypes.JSON  `json:"raw_line,omitempty"`
	NaturalKey      string          `gorm:"size:64;uniqueIndex;not null" json:"-"`
	Status          string          `gorm:"size:16;index;not null" json:"status"`
	ConfidenceScore int             `json:"confidence_score"`
	MemberID        *uuid.UUID      `gorm:"type:uuid;index" json:"member_id,omitempty"`
	DebitorID       *uuid.UUID      `gorm:"type:uuid;index" json:"debitor_id,omitempty"`
	MatchDetails    datatypes.JSON  `json:"match_details,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// SignedAmount is the amount as seen from the bank account: positive when
// money came in, negative when it went out.
func (t *RealTransaction) SignedAmount() decimal.Decimal {
	if t.Direction == DirectionCredit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// CivilDate reduces t to the calendar day it falls on in loc, stored as
// midnight UTC so the same day compares equal regardless of DST offsets.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
