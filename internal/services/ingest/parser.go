// Package ingest turns bank statement exports into RealTransactions.
package ingest

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"club-reconciliation-backend/internal/config"
	"club-reconciliation-backend/internal/models"
)

// RowError reports the statement line that could not be read. Row counts
// the header as row 1.
type RowError struct {
	Row    int
	Reason string
	Err    error
}

func (e *RowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("row %d: %s: %v", e.Row, e.Reason, e.Err)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

func (e *RowError) Unwrap() error { return e.Err }

// Parser reads one bank's CSV layout.
type Parser struct {
	format   config.BankFormat
	loc      *time.Location
	channel  models.Channel
	importer string
}

// NewParser validates format and returns a Parser. Dates are read in loc.
func NewParser(format config.BankFormat, loc *time.Location, importer string) (*Parser, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if _, err := lookupEncoding(format.Encoding); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{
		format:   format,
		loc:      loc,
		channel:  models.ChannelBank,
		importer: importer,
	}, nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1, nil
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", name)
}

type columns struct {
	date       int
	amount     int
	originator int
	reference  []int
	header     []string
}

func (p *Parser) resolveColumns(header []string) (*columns, error) {
	cols := &columns{date: -1, amount: -1, originator: -1, header: header}
	type refCol struct {
		name string
		idx  int
	}
	var refs []refCol
	for i, name := range header {
		name = strings.TrimSpace(name)
		switch {
		case name == p.format.DateColumn:
			cols.date = i
		case name == p.format.AmountColumn:
			cols.amount = i
		case p.format.OriginatorColumn != "" && name == p.format.OriginatorColumn:
			cols.originator = i
		case strings.HasPrefix(name, p.format.ReferencePrefix):
			refs = append(refs, refCol{name: name, idx: i})
		}
	}

	switch {
	case cols.date < 0:
		return nil, &RowError{Row: 1, Reason: fmt.Sprintf("missing column %q", p.format.DateColumn)}
	case cols.amount < 0:
		return nil, &RowError{Row: 1, Reason: fmt.Sprintf("missing column %q", p.format.AmountColumn)}
	case p.format.OriginatorColumn != "" && cols.originator < 0:
		return nil, &RowError{Row: 1, Reason: fmt.Sprintf("missing column %q", p.format.OriginatorColumn)}
	case len(refs) == 0:
		return nil, &RowError{Row: 1, Reason: fmt.Sprintf("no columns starting with %q", p.format.ReferencePrefix)}
	}

	sort.SliceStable(refs, func(i, j int) bool {
		return columnLess(refs[i].name, refs[j].name)
	})
	for _, r := range refs {
		cols.reference = append(cols.reference, r.idx)
	}
	return cols, nil
}

// columnLess orders column names ascending, comparing a trailing number
// numerically so VWZ2 sorts before VWZ10.
func columnLess(a, b string) bool {
	pa, na, okA := splitNumericSuffix(a)
	pb, nb, okB := splitNumericSuffix(b)
	if okA && okB && pa == pb {
		return na < nb
	}
	return a < b
}

func splitNumericSuffix(s string) (string, int, bool) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return s, 0, false
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil {
		return s, 0, false
	}
	return s[:i], n, true
}

// Parse reads the whole statement. Any unreadable row fails the whole
// file; nothing is returned alongside an error.
func (p *Parser) Parse(r io.Reader) ([]models.RealTransaction, error) {
	enc, err := lookupEncoding(p.format.Encoding)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(transform.NewReader(r, enc.NewDecoder()))
	cr.Comma = []rune(p.format.Delimiter)[0]
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading statement header: %w", err)
	}
	cols, err := p.resolveColumns(header)
	if err != nil {
		return nil, err
	}

	bookedAt := time.Now().In(p.loc)
	var txns []models.RealTransaction
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			row := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				row = pe.StartLine
			}
			return nil, &RowError{Row: row, Reason: "malformed CSV", Err: err}
		}
		if isBlank(rec) {
			continue
		}
		line, _ := cr.FieldPos(0)
		txn, err := p.parseRow(cols, rec, bookedAt)
		if err != nil {
			return nil, &RowError{Row: line, Reason: err.Error()}
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func (p *Parser) parseRow(cols *columns, rec []string, bookedAt time.Time) (models.RealTransaction, error) {
	dateStr := strings.TrimSpace(rec[cols.date])
	date, err := time.ParseInLocation(p.format.DateLayout, dateStr, p.loc)
	if err != nil {
		return models.RealTransaction{}, fmt.Errorf("parsing date %q", dateStr)
	}

	amountStr := rec[cols.amount]
	signed, err := ParseEuropeanAmount(amountStr)
	if err != nil {
		return models.RealTransaction{}, fmt.Errorf("parsing amount %q", amountStr)
	}

	direction := models.DirectionDebit
	if signed.IsNegative() {
		direction = models.DirectionCredit
	}

	fragments := make([]string, 0, len(cols.reference))
	for _, idx := range cols.reference {
		if f := strings.TrimSpace(rec[idx]); f != "" {
			fragments = append(fragments, f)
		}
	}

	originator := ""
	if cols.originator >= 0 {
		originator = strings.TrimSpace(rec[cols.originator])
	}

	raw := make(map[string]string, len(rec))
	for i, v := range rec {
		raw[cols.header[i]] = v
	}
	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return models.RealTransaction{}, fmt.Errorf("encoding raw line: %w", err)
	}

	txn := models.RealTransaction{
		Channel:    p.channel,
		ValueDate:  models.CivilDate(date, p.loc),
		Amount:     signed.Abs(),
		Direction:  direction,
		Purpose:    strings.Join(fragments, " "),
		Originator: originator,
		Importer:   p.importer,
		BookedAt:   bookedAt,
		RawLine:    rawJSON,
		Status:     models.StatusPending,
	}
	txn.NaturalKey = NaturalKey(&txn)
	return txn, nil
}

var europeanAmount = regexp.MustCompile(`^[+-]?(\d{1,3}(\.\d{3})+|\d+)(,\d+)?$`)

// ParseEuropeanAmount reads "1.234,56" style amounts. Thousands separators
// must group by three; exponents are rejected.
func ParseEuropeanAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	if !europeanAmount.MatchString(s) {
		return decimal.Decimal{}, fmt.Errorf("malformed amount %q", s)
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)
	return decimal.NewFromString(s)
}

// NaturalKey identifies a transaction across imports: the same money
// movement always hashes to the same key.
func NaturalKey(t *models.RealTransaction) string {
	parts := []string{
		string(t.Channel),
		t.ValueDate.Format("2006-01-02"),
		t.Amount.StringFixed(2),
		string(t.Direction),
		t.Purpose,
		t.Originator,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
