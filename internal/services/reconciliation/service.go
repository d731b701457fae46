package reconciliation

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"club-reconciliation-backend/internal/models"
	"club-reconciliation-backend/internal/repository"
	"club-reconciliation-backend/internal/services/ingest"
	"club-reconciliation-backend/internal/services/matching"
	"club-reconciliation-backend/internal/services/reference"
)

// ReconciliationService ties ingestion and matching to the database.
type ReconciliationService struct {
	db         *gorm.DB
	ingestor   *ingest.Ingestor
	log        zerolog.Logger
	statsCache sync.Map // sourceID -> *SourceStats
}

func NewReconciliationService(db *gorm.DB, ingestor *ingest.Ingestor, log zerolog.Logger) *ReconciliationService {
	return &ReconciliationService{
		db:       db,
		ingestor: ingestor,
		log:      log,
	}
}

// IngestStatement stores the transactions in r and matches the new ones.
// Ingest and match share one database transaction: if any row fails to
// parse or any match fails hard, nothing from the file is kept and the
// returned source is marked failed.
func (s *ReconciliationService) IngestStatement(ctx context.Context, filename string, r io.Reader) (*models.TransactionSource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	sum := sha256.Sum256(data)

	sources := repository.NewSourceRepository(s.db)
	source := &models.TransactionSource{
		ID:          uuid.New(),
		Filename:    filename,
		ContentHash: hex.EncodeToString(sum[:]),
		Status:      models.SourceProcessing,
		StartedAt:   time.Now(),
	}
	if err := sources.Create(ctx, source); err != nil {
		return nil, fmt.Errorf("creating source: %w", err)
	}

	debitors, err := s.debitorSnapshot(ctx)
	if err != nil {
		return s.fail(ctx, source, err)
	}

	var counts Counts
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res, err := s.ingestor.Ingest(ctx, bytes.NewReader(data), source, repository.NewRealTransactionRepository(tx))
		if err != nil {
			return err
		}
		counts.Total = res.Total
		counts.Created = len(res.Created)
		counts.Skipped = res.Skipped

		matcher := matching.NewMatcher(tx, debitors, s.log)
		for i := range res.Created {
			out, err := matcher.Match(ctx, &res.Created[i])
			if err != nil {
				return err
			}
			counts.add(out.Status)
		}
		return nil
	})
	if err != nil {
		return s.fail(ctx, source, err)
	}

	now := time.Now()
	source.Status = models.SourceCompleted
	source.TotalRows = counts.Total
	source.CreatedCount = counts.Created
	source.SkippedCount = counts.Skipped
	source.MatchedCount = counts.Matched
	source.UnresolvedCount = counts.Unresolved
	source.DebitorCount = counts.Debitor
	source.CompletedAt = &now
	if err := sources.Save(ctx, source); err != nil {
		return nil, fmt.Errorf("completing source %s: %w", source.ID, err)
	}

	s.log.Info().
		Str("source", source.ID.String()).
		Str("file", filename).
		Int("created", counts.Created).
		Int("skipped", counts.Skipped).
		Int("matched", counts.Matched).
		Int("unresolved", counts.Unresolved).
		Int("debitor", counts.Debitor).
		Msg("statement reconciled")
	return source, nil
}

func (s *ReconciliationService) fail(ctx context.Context, source *models.TransactionSource, cause error) (*models.TransactionSource, error) {
	now := time.Now()
	source.Status = models.SourceFailed
	source.Error = cause.Error()
	source.CompletedAt = &now
	if err := repository.NewSourceRepository(s.db).Save(ctx, source); err != nil {
		s.log.Error().Err(err).Str("source", source.ID.String()).Msg("marking source failed")
	}
	s.log.Warn().Err(cause).Str("source", source.ID.String()).Str("file", source.Filename).Msg("statement rejected")
	return source, cause
}

// Counts tallies the outcome of a run.
type Counts struct {
	Total      int `json:"total"`
	Created    int `json:"created"`
	Skipped    int `json:"skipped"`
	Matched    int `json:"matched"`
	Unresolved int `json:"unresolved"`
	Debitor    int `json:"debitor"`
}

func (c *Counts) add(status string) {
	switch status {
	case models.StatusMatched:
		c.Matched++
	case models.StatusDebitor:
		c.Debitor++
	default:
		c.Unresolved++
	}
}

// ReconcilePending retries every pending or unresolved transaction, each in
// its own database transaction. The first hard error stops the run and is
// returned together with the counts so far.
func (s *ReconciliationService) ReconcilePending(ctx context.Context) (*Counts, error) {
	debitors, err := s.debitorSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := repository.NewRealTransactionRepository(s.db).ListUnsettled(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing unsettled transactions: %w", err)
	}

	counts := &Counts{Total: len(pending)}
	matcher := matching.NewMatcher(s.db, debitors, s.log)
	for _, p := range pending {
		out, err := s.matchLocked(ctx, matcher, p.ID, func(m *matching.Matcher, t *models.RealTransaction) (*matching.Outcome, error) {
			return m.Match(ctx, t)
		})
		if err != nil {
			return counts, err
		}
		counts.add(out.Status)
	}

	s.log.Info().
		Int("total", counts.Total).
		Int("matched", counts.Matched).
		Int("unresolved", counts.Unresolved).
		Int("debitor", counts.Debitor).
		Msg("reconcile pass finished")
	return counts, nil
}

// MatchTransaction runs the matcher for one stored transaction.
func (s *ReconciliationService) MatchTransaction(ctx context.Context, id uuid.UUID) (*models.RealTransaction, *matching.Outcome, error) {
	debitors, err := s.debitorSnapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	var t *models.RealTransaction
	out, err := s.matchLocked(ctx, matching.NewMatcher(s.db, debitors, s.log), id, func(m *matching.Matcher, locked *models.RealTransaction) (*matching.Outcome, error) {
		t = locked
		return m.Match(ctx, locked)
	})
	if err != nil {
		return nil, nil, err
	}
	return t, out, nil
}

// AssignMember settles a transaction against the member with number,
// ignoring what its reference says.
func (s *ReconciliationService) AssignMember(ctx context.Context, id uuid.UUID, number int) (*models.RealTransaction, *matching.Outcome, error) {
	var t *models.RealTransaction
	out, err := s.matchLocked(ctx, matching.NewMatcher(s.db, nil, s.log), id, func(m *matching.Matcher, locked *models.RealTransaction) (*matching.Outcome, error) {
		t = locked
		return m.Assign(ctx, locked, number)
	})
	if err != nil {
		return nil, nil, err
	}
	return t, out, nil
}

// matchLocked loads transaction id under a row lock and hands it to fn
// inside one database transaction.
func (s *ReconciliationService) matchLocked(
	ctx context.Context,
	matcher *matching.Matcher,
	id uuid.UUID,
	fn func(*matching.Matcher, *models.RealTransaction) (*matching.Outcome, error),
) (*matching.Outcome, error) {
	var out *matching.Outcome
	var sourceID *uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := repository.NewRealTransactionRepository(tx).GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		sourceID = t.SourceID
		out, err = fn(matcher.WithDB(tx), t)
		return err
	})
	if sourceID != nil {
		s.statsCache.Delete(*sourceID)
	}
	if err != nil {
		return nil, fmt.Errorf("matching transaction %s: %w", id, err)
	}
	return out, nil
}

func (s *ReconciliationService) debitorSnapshot(ctx context.Context) (*matching.DebitorMatcher, error) {
	debitors, err := repository.NewDebitorRepository(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading debitors: %w", err)
	}
	return matching.NewDebitorMatcher(debitors)
}

func (s *ReconciliationService) GetSource(ctx context.Context, id uuid.UUID) (*models.TransactionSource, error) {
	return repository.NewSourceRepository(s.db).GetByID(ctx, id)
}

// SourceStats are live per-status totals for one source.
type SourceStats struct {
	Total       int64           `json:"total"`
	TotalAmount decimal.Decimal `json:"total_amount"`

	MatchedCount int64           `json:"matched_count"`
	MatchedSum   decimal.Decimal `json:"matched_sum"`

	UnresolvedCount int64           `json:"unresolved_count"`
	UnresolvedSum   decimal.Decimal `json:"unresolved_sum"`

	DebitorCount int64           `json:"debitor_count"`
	DebitorSum   decimal.Decimal `json:"debitor_sum"`

	PendingCount int64           `json:"pending_count"`
	PendingSum   decimal.Decimal `json:"pending_sum"`
}

func (s *ReconciliationService) GetSourceStats(ctx context.Context, sourceID uuid.UUID) (SourceStats, error) {
	if val, ok := s.statsCache.Load(sourceID); ok {
		return *val.(*SourceStats), nil
	}

	var stats SourceStats
	rows, err := repository.NewRealTransactionRepository(s.db).CountByStatus(ctx, sourceID)
	if err != nil {
		return stats, fmt.Errorf("counting transactions of source %s: %w", sourceID, err)
	}

	for _, r := range rows {
		stats.Total += r.Count
		stats.TotalAmount = stats.TotalAmount.Add(r.Sum)

		switch r.Status {
		case models.StatusMatched:
			stats.MatchedCount = r.Count
			stats.MatchedSum = r.Sum
		case models.StatusUnresolved:
			stats.UnresolvedCount = r.Count
			stats.UnresolvedSum = r.Sum
		case models.StatusDebitor:
			stats.DebitorCount = r.Count
			stats.DebitorSum = r.Sum
		case models.StatusPending:
			stats.PendingCount = r.Count
			stats.PendingSum = r.Sum
		}
	}

	s.statsCache.Store(sourceID, &stats)
	return stats, nil
}

func (s *ReconciliationService) ListTransactions(
	ctx context.Context,
	sourceID uuid.UUID,
	status string,
	cursor string,
	limit int,
) ([]models.RealTransaction, string, bool, error) {
	return repository.NewRealTransactionRepository(s.db).ListBySource(ctx, sourceID, status, cursor, limit)
}

// ParseReference exposes the reference parser.
func (s *ReconciliationService) ParseReference(text string) reference.Result {
	return reference.Parse(text)
}

func (s *ReconciliationService) DB() *gorm.DB {
	return s.db
}
