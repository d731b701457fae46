package ingest

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"club-reconciliation-backend/internal/config"
	"club-reconciliation-backend/internal/models"
)

func berlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return loc
}

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser(config.DefaultFormat(), berlin(t), "bank_csv_importer")
	require.NoError(t, err)
	return p
}

func parseFixture(t *testing.T) []models.RealTransaction {
	t.Helper()
	f, err := os.Open("../../../testdata/transactions.csv")
	require.NoError(t, err)
	defer f.Close()

	txns, err := newTestParser(t).Parse(f)
	require.NoError(t, err)
	return txns
}

func utf8Format() config.BankFormat {
	f := config.DefaultFormat()
	f.Encoding = "utf-8"
	return f
}

func TestParse_Fixture(t *testing.T) {
	txns := parseFixture(t)
	require.Len(t, txns, 6)

	first := txns[0]
	assert.Equal(t, "Mitgliedsbeitrag ID 42 Januar", first.Purpose)
	assert.Equal(t, "Max Mustermann", first.Originator)
	assert.Equal(t, "20.00", first.Amount.StringFixed(2))
	assert.Equal(t, models.DirectionDebit, first.Direction)
	assert.Equal(t, models.ChannelBank, first.Channel)
	assert.Equal(t, "bank_csv_importer", first.Importer)
	assert.Equal(t, models.StatusPending, first.Status)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), first.ValueDate)
	assert.Len(t, first.NaturalKey, 64)
	assert.Contains(t, string(first.RawLine), `"Betrag":"20,00"`)
}

func TestParse_Latin1(t *testing.T) {
	txns := parseFixture(t)
	assert.Equal(t, "Jürgen Müller", txns[3].Originator)
	assert.Equal(t, "Spende für den Lötkolben", txns[3].Purpose)
	assert.Equal(t, "Kontoführung", txns[5].Purpose)
}

func TestParse_NegativeAmountIsCredit(t *testing.T) {
	txns := parseFixture(t)
	power := txns[2]
	assert.Equal(t, models.DirectionCredit, power.Direction)
	assert.Equal(t, "1234.56", power.Amount.StringFixed(2))
	assert.True(t, power.SignedAmount().IsNegative())
}

func TestParse_SkipsEmptyLines(t *testing.T) {
	txns := parseFixture(t)
	for _, txn := range txns {
		assert.False(t, txn.ValueDate.IsZero())
	}
}

func TestParse_BadAmountFailsWholeFile(t *testing.T) {
	csv := "Buchungstag;Betrag;Auftraggeber/Empfänger;VWZ1\n" +
		"01.02.2024;10,00;A;ok\n" +
		"02.02.2024;zehn;B;broken\n"
	p, err := NewParser(utf8Format(), time.UTC, "test")
	require.NoError(t, err)

	txns, err := p.Parse(strings.NewReader(csv))
	require.Error(t, err)
	assert.Nil(t, txns)

	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 3, rowErr.Row)
	assert.Contains(t, err.Error(), "parsing amount")
}

func TestParse_MalformedAmountsFailWholeFile(t *testing.T) {
	for _, amount := range []string{"1e3", "-1E-2", "1.2.3,45"} {
		csv := "Buchungstag;Betrag;Auftraggeber/Empfänger;VWZ1\n" +
			"01.02.2024;10,00;A;ok\n" +
			"02.02.2024;" + amount + ";B;broken\n"
		p, err := NewParser(utf8Format(), time.UTC, "test")
		require.NoError(t, err)

		txns, err := p.Parse(strings.NewReader(csv))
		assert.Nil(t, txns, amount)
		var rowErr *RowError
		require.True(t, errors.As(err, &rowErr), amount)
		assert.Equal(t, 3, rowErr.Row, amount)
	}
}

func TestParse_BadDate(t *testing.T) {
	csv := "Buchungstag;Betrag;Auftraggeber/Empfänger;VWZ1\n2024-02-01;10,00;A;x\n"
	p, err := NewParser(utf8Format(), time.UTC, "test")
	require.NoError(t, err)

	_, err = p.Parse(strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2: parsing date")
}

func TestParse_MissingColumns(t *testing.T) {
	p, err := NewParser(utf8Format(), time.UTC, "test")
	require.NoError(t, err)

	_, err = p.Parse(strings.NewReader("Datum;Betrag;Auftraggeber/Empfänger;VWZ1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "Buchungstag"`)

	_, err = p.Parse(strings.NewReader("Buchungstag;Betrag;Auftraggeber/Empfänger;Zweck\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no columns starting with "VWZ"`)
}

func TestParse_RaggedRow(t *testing.T) {
	csv := "Buchungstag;Betrag;Auftraggeber/Empfänger;VWZ1\n01.02.2024;10,00\n"
	p, err := NewParser(utf8Format(), time.UTC, "test")
	require.NoError(t, err)

	_, err = p.Parse(strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed CSV")
}

func TestParse_EmptyFile(t *testing.T) {
	p := newTestParser(t)
	txns, err := p.Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, txns)
}

func TestParse_ReferenceColumnOrder(t *testing.T) {
	csv := "VWZ10;Buchungstag;VWZ2;Betrag;VWZ1;Auftraggeber/Empfänger\n" +
		"zehn;01.02.2024;zwei;1,00;eins;A\n"
	p, err := NewParser(utf8Format(), time.UTC, "test")
	require.NoError(t, err)

	txns, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "eins zwei zehn", txns[0].Purpose)
}

func TestParse_DateIsCivilDay(t *testing.T) {
	// Last Sunday of March: the Berlin offset changes that night.
	csv := "Buchungstag;Betrag;Auftraggeber/Empfänger;VWZ1\n31.03.2024;1,00;A;x\n"
	p, err := NewParser(utf8Format(), berlin(t), "test")
	require.NoError(t, err)

	txns, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), txns[0].ValueDate)
}

func TestNewParser_Invalid(t *testing.T) {
	f := config.DefaultFormat()
	f.Encoding = "ebcdic"
	_, err := NewParser(f, time.UTC, "test")
	assert.Error(t, err)

	f = config.DefaultFormat()
	f.Delimiter = ";;"
	_, err = NewParser(f, time.UTC, "test")
	assert.Error(t, err)

	f = config.DefaultFormat()
	f.DateLayout = ""
	_, err = NewParser(f, time.UTC, "test")
	assert.Error(t, err)
}

func TestParseEuropeanAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.234,56", "1234.56"},
		{"-1.234,56", "-1234.56"},
		{"20,00", "20"},
		{"0,5", "0.5"},
		{" 1 000,00 ", "1000"},
		{"1.000.000,01", "1000000.01"},
	}
	for _, tt := range tests {
		got, err := ParseEuropeanAmount(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String(), tt.in)
	}

	for _, bad := range []string{"", "abc", "1,2,3", "1e3", "-1E-2", "1.2.3,45", "12.34", "1,", ",5", "--1"} {
		_, err := ParseEuropeanAmount(bad)
		assert.Error(t, err, bad)
	}
}

func TestNaturalKey_Stable(t *testing.T) {
	a := parseFixture(t)
	b := parseFixture(t)
	for i := range a {
		assert.Equal(t, a[i].NaturalKey, b[i].NaturalKey)
	}
	assert.NotEqual(t, a[0].NaturalKey, a[1].NaturalKey)
}

func TestColumnLess(t *testing.T) {
	assert.True(t, columnLess("VWZ2", "VWZ10"))
	assert.False(t, columnLess("VWZ10", "VWZ2"))
	assert.True(t, columnLess("VWZ", "VWZ1"))
	assert.True(t, columnLess("VWZa", "VWZb"))
}
