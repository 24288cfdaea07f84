// Package marketclock decides whether the exchange session is open.
package marketclock

import (
	"fmt"
	"time"
	_ "time/tzdata" // exchange zone must resolve on hosts without a zoneinfo database
)

// State is the market session state at an instant.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Config describes the exchange session. Open and Close are "15:04" local
// times; Tolerance widens the window on both ends.
type Config struct {
	Location  string
	Open      string
	Close     string
	Tolerance time.Duration
}

// DefaultConfig is the NYSE/Nasdaq regular session.
func DefaultConfig() Config {
	return Config{Location: "America/New_York", Open: "09:30", Close: "16:00", Tolerance: 2 * time.Minute}
}

type Clock struct {
	loc   *time.Location
	start time.Duration // open - tolerance, offset from local midnight
	end   time.Duration // close + tolerance
}

func New(cfg Config) (*Clock, error) {
	loc, err := time.LoadLocation(cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", cfg.Location, err)
	}
	open, err := parseClock(cfg.Open)
	if err != nil {
		return nil, fmt.Errorf("parse open: %w", err)
	}
	closeAt, err := parseClock(cfg.Close)
	if err != nil {
		return nil, fmt.Errorf("parse close: %w", err)
	}
	if cfg.Tolerance < 0 {
		return nil, fmt.Errorf("negative tolerance %s", cfg.Tolerance)
	}
	start, end := open-cfg.Tolerance, closeAt+cfg.Tolerance
	if start < 0 || end > 24*time.Hour || start >= end {
		return nil, fmt.Errorf("invalid session window %s-%s", cfg.Open, cfg.Close)
	}
	return &Clock{loc: loc, start: start, end: end}, nil
}

// MustDefault returns the default clock and panics if it cannot be built.
func MustDefault() *Clock {
	c, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Clock) Location() *time.Location { return c.loc }

// IsOpen reports whether now falls inside the extended session window on a
// weekday in the exchange zone.
func (c *Clock) IsOpen(now time.Time) bool {
	t := now.In(c.loc)
	if !tradingDay(t.Weekday()) {
		return false
	}
	tod := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())
	return tod >= c.start && tod < c.end
}

func (c *Clock) State(now time.Time) State {
	if c.IsOpen(now) {
		return Open
	}
	return Closed
}

// LastCloseCutoff returns the latest weekday end-of-window instant that is
// not after now. A quote written before it predates the most recent close.
func (c *Clock) LastCloseCutoff(now time.Time) time.Time {
	t := now.In(c.loc)
	h, m := int(c.end/time.Hour), int((c.end%time.Hour)/time.Minute)
	s := int((c.end % time.Minute) / time.Second)
	for i := 0; i < 8; i++ {
		cut := time.Date(t.Year(), t.Month(), t.Day()-i, h, m, s, 0, c.loc)
		if tradingDay(cut.Weekday()) && !cut.After(t) {
			return cut
		}
	}
	// unreachable: a week always contains a weekday
	return time.Time{}
}

func tradingDay(d time.Weekday) bool { return d != time.Saturday && d != time.Sunday }

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
