package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"club-reconciliation-backend/internal/models"
)

// TransactionWriter stores a RealTransaction unless one with the same
// natural key exists. It reports whether a row was inserted.
type TransactionWriter interface {
	InsertIfAbsent(ctx context.Context, t *models.RealTransaction) (bool, error)
}

// Result summarises one ingested statement.
type Result struct {
	Total   int
	Created []models.RealTransaction
	Skipped int
}

type Ingestor struct {
	parser *Parser
	log    zerolog.Logger
}

func NewIngestor(parser *Parser, log zerolog.Logger) *Ingestor {
	return &Ingestor{parser: parser, log: log}
}

// Ingest parses r and writes every transaction through w. Rows already
// known are skipped. The caller owns the transaction w writes into and
// must roll it back when Ingest fails.
func (i *Ingestor) Ingest(ctx context.Context, r io.Reader, source *models.TransactionSource, w TransactionWriter) (*Result, error) {
	txns, err := i.parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", source.Filename, err)
	}

	res := &Result{Total: len(txns)}
	for idx := range txns {
		t := txns[idx]
		t.ID = uuid.New()
		t.SourceID = &source.ID

		inserted, err := w.InsertIfAbsent(ctx, &t)
		if err != nil {
			return nil, fmt.Errorf("storing transaction %d of %s: %w", idx+1, source.Filename, err)
		}
		if !inserted {
			res.Skipped++
			i.log.Debug().
				Str("source", source.ID.String()).
				Str("natural_key", t.NaturalKey).
				Msg("transaction already ingested")
			continue
		}
		res.Created = append(res.Created, t)
	}

	i.log.Info().
		Str("source", source.ID.String()).
		Str("file", source.Filename).
		Int("total", res.Total).
		Int("created", len(res.Created)).
		Int("skipped", res.Skipped).
		Msg("statement ingested")
	return res, nil
}
