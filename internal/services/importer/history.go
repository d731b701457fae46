// Package importer loads the member history exported by the previous
// membership system.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"club-reconciliation-backend/internal/models"
	"club-reconciliation-backend/internal/repository"
	"club-reconciliation-backend/internal/services/ingest"
)

// ImporterTag marks real transactions created from a history export.
const ImporterTag = "history"

const (
	bookingFeeClaim = "fee_claim"
	bookingDeposit  = "deposit"

	typeMembershipFee = "membership fee"
)

// Date is a calendar day in the export's YYYY-MM-DD form.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

type MemberRecord struct {
	Number              int                `json:"number"`
	Name                string             `json:"name"`
	Address             string             `json:"address"`
	Email               string             `json:"email"`
	PaymentType         string             `json:"payment_type"`
	Memberships         []MembershipRecord `json:"memberships"`
	BankTransactions    []BankRecord       `json:"bank_transactions"`
	AccountTransactions []AccountRecord    `json:"account_transactions"`
}

type MembershipRecord struct {
	Start      Date            `json:"membership_start"`
	FeeMonthly decimal.Decimal `json:"membership_fee_monthly"`
	Interval   int             `json:"membership_fee_interval"`
}

type BankRecord struct {
	BookingDate Date            `json:"booking_date"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference"`
	Owner       string          `json:"transaction_owner"`
}

type AccountRecord struct {
	Amount           decimal.Decimal `json:"amount"`
	BookingDate      Date            `json:"booking_date"`
	DueDate          Date            `json:"due_date"`
	PaymentReference string          `json:"payment_reference"`
	TransactionType  string          `json:"transaction_type"`
	BookingType      string          `json:"booking_type"`
}

// Summary counts what an import created.
type Summary struct {
	Members             int `json:"members"`
	SkippedMembers      int `json:"skipped_members"`
	Memberships         int `json:"memberships"`
	Transactions        int `json:"transactions"`
	SkippedTransactions int `json:"skipped_transactions"`
	Claims              int `json:"claims"`
	Deposits            int `json:"deposits"`
	LinkedDeposits      int `json:"linked_deposits"`
}

type HistoryImporter struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewHistoryImporter(db *gorm.DB, log zerolog.Logger) *HistoryImporter {
	return &HistoryImporter{db: db, log: log}
}

// Import reads a JSON array of members from r and stores all of it in one
// database transaction. Members whose number already exists are skipped.
func (h *HistoryImporter) Import(ctx context.Context, r io.Reader) (*Summary, error) {
	var records []MemberRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding history export: %w", err)
	}

	sum := &Summary{}
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accounts, err := loadAccounts(ctx, tx)
		if err != nil {
			return err
		}
		for i := range records {
			if err := h.importMember(ctx, tx, accounts, &records[i], sum); err != nil {
				return fmt.Errorf("member %d: %w", records[i].Number, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.log.Info().
		Int("members", sum.Members).
		Int("skipped_members", sum.SkippedMembers).
		Int("transactions", sum.Transactions).
		Int("claims", sum.Claims).
		Int("deposits", sum.Deposits).
		Int("linked_deposits", sum.LinkedDeposits).
		Msg("history imported")
	return sum, nil
}

type bookAccounts struct {
	fees, donation, liability *models.Account
}

func loadAccounts(ctx context.Context, tx *gorm.DB) (*bookAccounts, error) {
	repo := repository.NewAccountRepository(tx)
	var a bookAccounts
	for _, slot := range []struct {
		category models.AccountCategory
		dst      **models.Account
	}{
		{models.AccountMemberFees, &a.fees},
		{models.AccountMemberDonation, &a.donation},
		{models.AccountLiability, &a.liability},
	} {
		acc, err := repo.GetOrCreate(ctx, slot.category)
		if err != nil {
			return nil, fmt.Errorf("loading %s account: %w", slot.category, err)
		}
		*slot.dst = acc
	}
	return &a, nil
}

func (h *HistoryImporter) importMember(ctx context.Context, tx *gorm.DB, accounts *bookAccounts, rec *MemberRecord, sum *Summary) error {
	members := repository.NewMemberRepository(tx)

	_, err := members.FindByNumber(ctx, rec.Number)
	if err == nil {
		h.log.Warn().Int("member_number", rec.Number).Msg("member already exists, skipping")
		sum.SkippedMembers++
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	member := &models.Member{
		ID:      uuid.New(),
		Number:  rec.Number,
		Name:    rec.Name,
		Address: rec.Address,
		Email:   rec.Email,
	}
	if err := members.Create(ctx, member); err != nil {
		return fmt.Errorf("creating member: %w", err)
	}
	sum.Members++

	periods := append([]MembershipRecord(nil), rec.Memberships...)
	sort.SliceStable(periods, func(i, j int) bool {
		return periods[i].Start.Before(periods[j].Start.Time)
	})
	for _, p := range periods {
		err := members.CreateMembership(ctx, &models.Membership{
			ID:       uuid.New(),
			MemberID: member.ID,
			StartsOn: p.Start.Time,
			Amount:   p.FeeMonthly.Mul(decimal.NewFromInt(int64(p.Interval))),
			Interval: p.Interval,
		})
		if err != nil {
			return fmt.Errorf("creating membership from %s: %w", p.Start.Format("2006-01-02"), err)
		}
		sum.Memberships++
	}

	created, err := importBankRecords(ctx, tx, rec.BankTransactions, sum)
	if err != nil {
		return err
	}
	return importAccountRecords(ctx, tx, accounts, member, rec.AccountTransactions, created, sum)
}

func importBankRecords(ctx context.Context, tx *gorm.DB, records []BankRecord, sum *Summary) ([]*models.RealTransaction, error) {
	repo := repository.NewRealTransactionRepository(tx)
	var created []*models.RealTransaction
	for _, br := range records {
		raw, err := json.Marshal(br)
		if err != nil {
			return nil, err
		}
		originator := br.Owner
		if originator == "" {
			originator = "imported"
		}
		direction := models.DirectionDebit
		if br.Amount.IsNegative() {
			direction = models.DirectionCredit
		}

		t := &models.RealTransaction{
			ID:         uuid.New(),
			Channel:    models.ChannelBank,
			ValueDate:  br.BookingDate.Time,
			Amount:     br.Amount.Abs(),
			Direction:  direction,
			Purpose:    br.Reference,
			Originator: originator,
			Importer:   ImporterTag,
			BookedAt:   time.Now(),
			RawLine:    datatypes.JSON(raw),
			Status:     models.StatusPending,
		}
		t.NaturalKey = ingest.NaturalKey(t)

		inserted, err := repo.InsertIfAbsent(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("storing bank transaction of %s: %w", br.BookingDate.Format("2006-01-02"), err)
		}
		if !inserted {
			sum.SkippedTransactions++
			continue
		}
		sum.Transactions++
		created = append(created, t)
	}
	return created, nil
}

func importAccountRecords(
	ctx context.Context,
	tx *gorm.DB,
	accounts *bookAccounts,
	member *models.Member,
	records []AccountRecord,
	created []*models.RealTransaction,
	sum *Summary,
) error {
	settlements := repository.NewSettlementRepository(tx)
	transactions := repository.NewRealTransactionRepository(tx)

	var claims []models.Settlement
	for _, ar := range records {
		if ar.BookingType != bookingFeeClaim {
			continue
		}
		claims = append(claims, models.Settlement{
			ID:                   uuid.New(),
			Kind:                 models.KindClaim,
			SourceAccountID:      accounts.fees.ID,
			DestinationAccountID: accounts.liability.ID,
			MemberID:             member.ID,
			Amount:               ar.Amount.Abs(),
			ValueDate:            ar.DueDate.Time,
		})
	}
	if err := settlements.CreateBatch(ctx, claims); err != nil {
		return fmt.Errorf("creating fee claims: %w", err)
	}
	sum.Claims += len(claims)

	linked := make(map[uuid.UUID]bool)
	for _, ar := range records {
		if ar.BookingType != bookingDeposit {
			continue
		}
		dst := accounts.donation
		if ar.TransactionType == typeMembershipFee {
			dst = accounts.fees
		}
		s := &models.Settlement{
			ID:                   uuid.New(),
			Kind:                 models.KindClaim,
			SourceAccountID:      accounts.liability.ID,
			DestinationAccountID: dst.ID,
			MemberID:             member.ID,
			Amount:               ar.Amount.Abs(),
			ValueDate:            ar.DueDate.Time,
		}

		rt := findPayment(created, linked, s.Amount, s.ValueDate, ar.PaymentReference)
		if rt != nil {
			linked[rt.ID] = true
			s.Kind = models.KindSettlement
			s.RealTransactionID = &rt.ID
		}
		if err := settlements.Create(ctx, s); err != nil {
			return fmt.Errorf("creating deposit of %s: %w", ar.DueDate.Format("2006-01-02"), err)
		}
		sum.Deposits++

		if rt == nil {
			continue
		}
		details, _ := json.Marshal(map[string]interface{}{
			"importer":      ImporterTag,
			"member_number": member.Number,
			"settlement_id": s.ID.String(),
		})
		rt.Status = models.StatusMatched
		rt.MemberID = &member.ID
		rt.MatchDetails = details
		if err := transactions.UpdateMatch(ctx, rt); err != nil {
			return fmt.Errorf("linking transaction %s: %w", rt.ID, err)
		}
		sum.LinkedDeposits++
	}
	return nil
}

// findPayment returns the first imported transaction not yet linked whose
// amount, date and purpose equal the deposit's.
func findPayment(created []*models.RealTransaction, linked map[uuid.UUID]bool, amount decimal.Decimal, date time.Time, purpose string) *models.RealTransaction {
	for _, t := range created {
		if linked[t.ID] {
			continue
		}
		if t.Amount.Equal(amount) && t.ValueDate.Equal(date) && t.Purpose == purpose {
			return t
		}
	}
	return nil
}
