// Package matching resolves real transactions to members and their
// settlement records.
package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"club-reconciliation-backend/internal/models"
	"club-reconciliation-backend/internal/repository"
	"club-reconciliation-backend/internal/services/reference"
)

// ErrAlreadyMatched is returned when a transaction is already settled
// against a different member.
var ErrAlreadyMatched = errors.New("transaction is already settled against another member")

// MemberDirectory resolves membership numbers to members.
type MemberDirectory interface {
	FindByNumber(ctx context.Context, number int) (*models.Member, error)
}

var _ MemberDirectory = (*repository.MemberRepository)(nil)

// ConflictError means the settlement a transaction resolves to is already
// linked to another transaction.
type ConflictError struct {
	TransactionID         uuid.UUID
	ExistingTransactionID uuid.UUID
	SettlementID          uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("transaction %s conflicts with transaction %s: settlement %s is already linked",
		e.TransactionID, e.ExistingTransactionID, e.SettlementID)
}

// Outcome describes what matching did with one transaction.
type Outcome struct {
	Status       string             `json:"status"`
	MemberNumber int                `json:"member_number,omitempty"`
	Score        int                `json:"score"`
	Reason       string             `json:"reason,omitempty"`
	Settlement   *models.Settlement `json:"settlement,omitempty"`
	Debitor      *models.Debitor    `json:"debitor,omitempty"`
	Action       string             `json:"action,omitempty"`
}

// Matcher links real transactions to settlement records. It writes through
// db, which may itself be an open database transaction.
type Matcher struct {
	db          *gorm.DB
	debitors    *DebitorMatcher
	log         zerolog.Logger
	performedBy string
}

// NewMatcher returns a Matcher that falls back to debitors, which may be
// nil, when no member can be resolved.
func NewMatcher(db *gorm.DB, debitors *DebitorMatcher, log zerolog.Logger) *Matcher {
	return &Matcher{db: db, debitors: debitors, log: log, performedBy: "matcher"}
}

// WithDB returns a copy of m writing through db.
func (m *Matcher) WithDB(db *gorm.DB) *Matcher {
	c := *m
	c.db = db
	return &c
}

// Match resolves t from its purpose text. Transactions that cannot be
// resolved are marked unresolved, or classified by debitor, and are not an
// error. A *ConflictError leaves the database untouched.
func (m *Matcher) Match(ctx context.Context, t *models.RealTransaction) (*Outcome, error) {
	parsed := reference.Parse(t.Purpose)
	if !parsed.Found {
		return m.fallback(ctx, t, parsed, "no member number in reference")
	}

	member, err := m.directory().FindByNumber(ctx, parsed.MemberNumber)
	if errors.Is(err, repository.ErrNotFound) {
		m.log.Info().
			Str("transaction", t.ID.String()).
			Int("member_number", parsed.MemberNumber).
			Msg("reference names unknown member, needs manual review")
		return m.fallback(ctx, t, parsed, fmt.Sprintf("no member with number %d", parsed.MemberNumber))
	}
	if err != nil {
		return nil, fmt.Errorf("looking up member %d: %w", parsed.MemberNumber, err)
	}

	return m.settle(ctx, t, member, parsed.Score, "")
}

// Assign settles t against the member with number, bypassing the
// reference parser. Used when an operator resolves a transaction by hand.
func (m *Matcher) Assign(ctx context.Context, t *models.RealTransaction, number int) (*Outcome, error) {
	member, err := m.directory().FindByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("looking up member %d: %w", number, err)
	}
	return m.settle(ctx, t, member, 0, models.ActionManualAssign)
}

func (m *Matcher) directory() MemberDirectory {
	return repository.NewMemberRepository(m.db)
}

func (m *Matcher) fallback(ctx context.Context, t *models.RealTransaction, parsed reference.Result, reason string) (*Outcome, error) {
	out := &Outcome{
		Status:       models.StatusUnresolved,
		MemberNumber: parsed.MemberNumber,
		Score:        parsed.Score,
		Reason:       reason,
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t.Status = models.StatusUnresolved
		t.ConfidenceScore = parsed.Score
		t.MemberID = nil
		t.DebitorID = nil

		if d, ok := m.debitors.Match(t.Purpose); ok {
			out.Status = models.StatusDebitor
			out.Debitor = d
			out.Action = models.ActionDebitorClassified
			out.Reason = "matched debitor tokens"
			t.Status = models.StatusDebitor
			t.DebitorID = &d.ID

			err := repository.NewAuditRepository(tx).Record(ctx, &models.MatchAuditLog{
				TransactionID: t.ID,
				Action:        models.ActionDebitorClassified,
				PerformedBy:   m.performedBy,
				Reason:        fmt.Sprintf("debitor %s", d.Name),
			})
			if err != nil {
				return fmt.Errorf("recording audit log: %w", err)
			}
		}

		t.MatchDetails = details(t, out)
		return repository.NewRealTransactionRepository(tx).UpdateMatch(ctx, t)
	})
	if err != nil {
		return nil, fmt.Errorf("marking transaction %s %s: %w", t.ID, out.Status, err)
	}
	return out, nil
}

// settle finds or creates the settlement for t and member. The member row
// is locked for the duration so two matchers cannot both create a
// settlement for the same claim.
func (m *Matcher) settle(ctx context.Context, t *models.RealTransaction, member *models.Member, score int, action string) (*Outcome, error) {
	out := &Outcome{
		Status:       models.StatusMatched,
		MemberNumber: member.Number,
		Score:        score,
	}

	signed := t.SignedAmount()
	if signed.IsZero() {
		out.Status = models.StatusUnresolved
		out.Reason = "transaction is balanced"
		t.Status = models.StatusUnresolved
		t.ConfidenceScore = score
		t.MatchDetails = details(t, out)
		if err := repository.NewRealTransactionRepository(m.db).UpdateMatch(ctx, t); err != nil {
			return nil, fmt.Errorf("marking transaction %s unresolved: %w", t.ID, err)
		}
		return out, nil
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		members := repository.NewMemberRepository(tx)
		accounts := repository.NewAccountRepository(tx)
		settlements := repository.NewSettlementRepository(tx)

		if err := members.Lock(ctx, member.ID); err != nil {
			return fmt.Errorf("locking member %d: %w", member.Number, err)
		}

		linked, err := settlements.GetByTransaction(ctx, t.ID)
		switch {
		case err == nil && linked.MemberID != member.ID:
			return ErrAlreadyMatched
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("loading linked settlement: %w", err)
		}

		fees, err := accounts.GetOrCreate(ctx, models.AccountMemberFees)
		if err != nil {
			return fmt.Errorf("loading fee account: %w", err)
		}
		liability, err := accounts.GetOrCreate(ctx, models.AccountLiability)
		if err != nil {
			return fmt.Errorf("loading liability account: %w", err)
		}

		// Money received settles a fee; money paid out refunds one.
		src, dst := liability, fees
		if signed.IsNegative() {
			src, dst = fees, liability
		}

		candidates, err := settlements.FindCandidates(ctx, repository.CandidateKey{
			MemberID:             member.ID,
			DestinationAccountID: dst.ID,
			Amount:               t.Amount,
			ValueDate:            t.ValueDate,
		})
		if err != nil {
			return fmt.Errorf("finding settlements: %w", err)
		}

		chosen, conflict := pickCandidate(candidates, t.ID)
		switch {
		case chosen != nil && chosen.RealTransactionID != nil:
			out.Settlement = chosen
			out.Reason = "already settled"
		case chosen != nil:
			ok, err := settlements.Attach(ctx, chosen.ID, t.ID)
			if err != nil {
				return fmt.Errorf("attaching settlement %s: %w", chosen.ID, err)
			}
			if !ok {
				return fmt.Errorf("settlement %s was linked concurrently", chosen.ID)
			}
			chosen.RealTransactionID = &t.ID
			chosen.Kind = models.KindSettlement
			out.Settlement = chosen
			out.Action = models.ActionSettlementAttached
		case conflict != nil:
			return &ConflictError{
				TransactionID:         t.ID,
				ExistingTransactionID: *conflict.RealTransactionID,
				SettlementID:          conflict.ID,
			}
		default:
			s := &models.Settlement{
				ID:                   uuid.New(),
				Kind:                 models.KindSettlement,
				SourceAccountID:      src.ID,
				DestinationAccountID: dst.ID,
				MemberID:             member.ID,
				Amount:               t.Amount,
				ValueDate:            t.ValueDate,
				RealTransactionID:    &t.ID,
			}
			if err := settlements.Create(ctx, s); err != nil {
				return fmt.Errorf("creating settlement: %w", err)
			}
			out.Settlement = s
			out.Action = models.ActionSettlementCreated
		}

		t.Status = models.StatusMatched
		t.ConfidenceScore = score
		t.MemberID = &member.ID
		t.DebitorID = nil
		t.MatchDetails = details(t, out)
		if err := repository.NewRealTransactionRepository(tx).UpdateMatch(ctx, t); err != nil {
			return fmt.Errorf("updating transaction: %w", err)
		}

		if out.Action == "" {
			return nil
		}
		entry := &models.MatchAuditLog{
			TransactionID: t.ID,
			Action:        out.Action,
			SettlementID:  &out.Settlement.ID,
			PerformedBy:   m.performedBy,
			Reason:        fmt.Sprintf("member %d, score %d", member.Number, score),
		}
		if action != "" {
			entry.Action = action
			entry.Reason = fmt.Sprintf("%s by operator (%s)", out.Action, entry.Reason)
		}
		if err := repository.NewAuditRepository(tx).Record(ctx, entry); err != nil {
			return fmt.Errorf("recording audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) || errors.Is(err, ErrAlreadyMatched) {
			return nil, err
		}
		return nil, fmt.Errorf("settling transaction %s: %w", t.ID, err)
	}

	m.log.Debug().
		Str("transaction", t.ID.String()).
		Int("member_number", member.Number).
		Int("score", score).
		Str("settlement", out.Settlement.ID.String()).
		Str("action", out.Action).
		Msg("transaction matched")
	return out, nil
}

// pickCandidate prefers a settlement already linked to txID, then the
// oldest unlinked one. If every candidate belongs to another transaction
// the first of them is returned as the conflict.
func pickCandidate(candidates []models.Settlement, txID uuid.UUID) (chosen, conflict *models.Settlement) {
	var unlinked *models.Settlement
	for i := range candidates {
		c := &candidates[i]
		switch {
		case c.RealTransactionID == nil:
			if unlinked == nil {
				unlinked = c
			}
		case *c.RealTransactionID == txID:
			return c, nil
		case conflict == nil:
			conflict = c
		}
	}
	if unlinked != nil {
		return unlinked, nil
	}
	return nil, conflict
}

func details(t *models.RealTransaction, out *Outcome) []byte {
	d := map[string]interface{}{
		"purpose":       t.Purpose,
		"signed_amount": t.SignedAmount().StringFixed(2),
		"score":         out.Score,
		"decision":      out.Status,
	}
	if out.MemberNumber != 0 {
		d["member_number"] = out.MemberNumber
	}
	if out.Reason != "" {
		d["reason"] = out.Reason
	}
	if out.Settlement != nil {
		d["settlement_id"] = out.Settlement.ID.String()
	}
	if out.Debitor != nil {
		d["debitor_id"] = out.Debitor.ID.String()
	}
	if out.Action != "" {
		d["action"] = out.Action
	}
	b, _ := json.Marshal(d)
	return b
}
