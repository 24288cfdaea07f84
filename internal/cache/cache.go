// Package cache persists the last known quote per symbol, one small file
// each, and decides whether a stored quote predates the latest close.
package cache

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"stockbar/internal/provider"
)

// ErrMissing is returned by Load when no record exists for the symbol.
var ErrMissing = fmt.Errorf("cache record missing: %w", fs.ErrNotExist)

// Record is one persisted quote. WrittenAt is the file's modification time.
type Record struct {
	Symbol        string
	Price         decimal.Decimal
	PreviousClose decimal.Decimal
	WrittenAt     time.Time
}

// Quote converts the record into a non-live quote.
func (r Record) Quote() provider.Quote {
	return provider.Quote{Symbol: r.Symbol, Price: r.Price, PreviousClose: r.PreviousClose, Source: "cache"}
}

// Cutoff yields the most recent market close at or before now.
type Cutoff interface {
	LastCloseCutoff(now time.Time) time.Time
}

type Store struct {
	Dir   string
	Clock Cutoff
}

func New(dir string, clock Cutoff) *Store {
	return &Store{Dir: dir, Clock: clock}
}

// DefaultDir is the per-user cache directory for stockbar.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "stockbar"), nil
}

// Path is the record location for symbol.
func (s *Store) Path(symbol string) string {
	return filepath.Join(s.Dir, fileName(symbol))
}

// Load reads the stored record without judging its freshness.
func (s *Store) Load(symbol string) (Record, error) {
	p := s.Path(symbol)
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, ErrMissing
	}
	if err != nil {
		return Record{}, fmt.Errorf("read cache: %w", err)
	}
	info, err := os.Stat(p)
	if err != nil {
		return Record{}, fmt.Errorf("stat cache: %w", err)
	}

	lines := make([]string, 0, 2)
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) != 2 {
		return Record{}, fmt.Errorf("parse cache %s: want 2 lines, got %d", p, len(lines))
	}
	price, err := decimal.NewFromString(lines[0])
	if err != nil {
		return Record{}, fmt.Errorf("parse cache price: %w", err)
	}
	prev, err := decimal.NewFromString(lines[1])
	if err != nil {
		return Record{}, fmt.Errorf("parse cache previous close: %w", err)
	}
	return Record{
		Symbol:        strings.ToUpper(symbol),
		Price:         price,
		PreviousClose: prev,
		WrittenAt:     info.ModTime(),
	}, nil
}

// IsStale reports whether rec was written before the latest close cutoff.
func (s *Store) IsStale(rec Record, now time.Time) bool {
	return rec.WrittenAt.Before(s.Clock.LastCloseCutoff(now))
}

// Save atomically replaces the record for symbol and stamps it with at.
func (s *Store) Save(symbol string, q provider.Quote, at time.Time) error {
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	// MkdirAll leaves an existing directory's mode alone.
	if err := os.Chmod(s.Dir, 0o700); err != nil {
		return fmt.Errorf("chmod cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.Dir, "."+fileName(symbol)+"-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp: %w", err)
	}
	if _, err := fmt.Fprintf(tmp, "%s\n%s\n", q.Price.StringFixed(2), q.PreviousClose.StringFixed(2)); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chtimes(tmpName, at, at); err != nil {
		return fmt.Errorf("stamp temp: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(symbol)); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}

// Delete removes the record for symbol. A missing record is not an error.
func (s *Store) Delete(symbol string) error {
	err := os.Remove(s.Path(symbol))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete cache: %w", err)
	}
	return nil
}

// fileName keeps tickers like BRK.B and ^GSPC intact and maps anything that
// could escape the directory to '_'.
func fileName(symbol string) string {
	up := strings.ToUpper(strings.TrimSpace(symbol))
	b := []byte(up)
	for i, c := range b {
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '^', c == '=':
		case c == '.' && i > 0:
		default:
			b[i] = '_'
		}
	}
	return string(b) + ".quote"
}
