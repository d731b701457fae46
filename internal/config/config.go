package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type DB struct {
	URL         string `envconfig:"URL" default:"host=localhost user=postgres password=postgres dbname=reconciliation port=5432 sslmode=disable"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"true"`
}

type Server struct {
	Port        int      `envconfig:"PORT" default:"8080"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`
}

type Log struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"console"`
}

// Bookkeeping holds what the ingestor and matcher need to know about the
// club's books.
type Bookkeeping struct {
	Timezone       string `envconfig:"TIMEZONE" default:"Europe/Berlin"`
	BankFormatFile string `envconfig:"BANK_FORMAT_FILE"`
	BankFormat     string `envconfig:"BANK_FORMAT" default:"shack"`
	Importer       string `envconfig:"IMPORTER" default:"bank_csv_importer"`
}

type App struct {
	Env         string       `envconfig:"APP_ENV" default:"development"`
	DB          *DB          `envconfig:"DATABASE"`
	Server      *Server      `envconfig:"SERVER"`
	Log         *Log         `envconfig:"LOG"`
	Bookkeeping *Bookkeeping `envconfig:"BOOKKEEPING"`
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*App, error) {
	if err := godotenv.Load(envFiles...); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing env: %w", err)
	}
	return &cfg, nil
}

// Location resolves the configured civil timezone.
func (b *Bookkeeping) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", b.Timezone, err)
	}
	return loc, nil
}

// Format returns the configured bank format, read from BankFormatFile when
// set and from the built-in formats otherwise.
func (b *Bookkeeping) Format() (*BankFormat, error) {
	formats := DefaultFormats()
	if b.BankFormatFile != "" {
		loaded, err := LoadFormats(b.BankFormatFile)
		if err != nil {
			return nil, err
		}
		formats = loaded
	}
	f, ok := formats.Get(b.BankFormat)
	if !ok {
		return nil, fmt.Errorf("unknown bank format %q", b.BankFormat)
	}
	return f, nil
}
