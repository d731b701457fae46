package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// BankFormat describes the column layout of one bank's CSV export.
type BankFormat struct {
	Name             string `yaml:"name"`
	Encoding         string `yaml:"encoding"`
	Delimiter        string `yaml:"delimiter"`
	DateColumn       string `yaml:"date_column"`
	DateLayout       string `yaml:"date_layout"`
	AmountColumn     string `yaml:"amount_column"`
	ReferencePrefix  string `yaml:"reference_prefix"`
	OriginatorColumn string `yaml:"originator_column"`
}

// Formats is the top-level layout of a bank format file.
type Formats struct {
	Formats []BankFormat `yaml:"formats"`
}

// Get looks a format up by name, case-insensitively.
func (f *Formats) Get(name string) (*BankFormat, bool) {
	for i := range f.Formats {
		if strings.EqualFold(f.Formats[i].Name, name) {
			return &f.Formats[i], true
		}
	}
	return nil, false
}

// Validate reports the first missing required setting.
func (b *BankFormat) Validate() error {
	switch {
	case b.DateColumn == "":
		return fmt.Errorf("bank format %q: date_column is required", b.Name)
	case b.DateLayout == "":
		return fmt.Errorf("bank format %q: date_layout is required", b.Name)
	case b.AmountColumn == "":
		return fmt.Errorf("bank format %q: amount_column is required", b.Name)
	case b.ReferencePrefix == "":
		return fmt.Errorf("bank format %q: reference_prefix is required", b.Name)
	case len([]rune(b.Delimiter)) != 1:
		return fmt.Errorf("bank format %q: delimiter must be a single character", b.Name)
	}
	return nil
}

// DefaultFormat is the layout of the club's bank export: Latin-1,
// semicolon-separated, reference split over VWZ1..VWZn.
func DefaultFormat() BankFormat {
	return BankFormat{
		Name:             "shack",
		Encoding:         "iso-8859-1",
		Delimiter:        ";",
		DateColumn:       "Buchungstag",
		DateLayout:       "02.01.2006",
		AmountColumn:     "Betrag",
		ReferencePrefix:  "VWZ",
		OriginatorColumn: "Auftraggeber/Empfänger",
	}
}

func DefaultFormats() *Formats {
	return &Formats{Formats: []BankFormat{DefaultFormat()}}
}

// LoadFormats reads a YAML bank format file. Missing encoding, delimiter
// and date layout fall back to the defaults.
func LoadFormats(path string) (*Formats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bank formats: %w", err)
	}
	var formats Formats
	if err := yaml.Unmarshal(data, &formats); err != nil {
		return nil, fmt.Errorf("parsing bank formats: %w", err)
	}

	def := DefaultFormat()
	for i := range formats.Formats {
		f := &formats.Formats[i]
		if f.Encoding == "" {
			f.Encoding = def.Encoding
		}
		if f.Delimiter == "" {
			f.Delimiter = def.Delimiter
		}
		if f.DateLayout == "" {
			f.DateLayout = def.DateLayout
		}
		if err := f.Validate(); err != nil {
			return nil, err
		}
	}
	return &formats, nil
}

// SaveFormats writes formats as YAML.
func SaveFormats(path string, formats *Formats) error {
	data, err := yaml.Marshal(formats)
	if err != nil {
		return fmt.Errorf("marshaling bank formats: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing bank formats: %w", err)
	}
	return nil
}
