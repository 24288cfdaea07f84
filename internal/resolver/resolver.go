// Package resolver picks a quote source for a symbol based on market hours,
// source health and the cached close, and derives the displayed values.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stockbar/internal/cache"
	"stockbar/internal/provider"
)

type Clock interface {
	IsOpen(now time.Time) bool
}

// Store is the quote cache as seen by the resolver.
type Store interface {
	Load(symbol string) (cache.Record, error)
	IsStale(rec cache.Record, now time.Time) bool
	Save(symbol string, q provider.Quote, at time.Time) error
	Delete(symbol string) error
}

// Error is a terminal resolution failure: every source was tried and failed.
type Error struct {
	Symbol string
	Open   bool
	// Cause is the primary source's failure when the primary was consulted.
	Cause *provider.FetchError
	// Fatal asks the caller to exit non-zero.
	Fatal bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("resolve %s: all sources failed: %v", e.Symbol, e.Cause)
}

func (e *Error) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

type Resolver struct {
	clock     Clock
	primary   provider.Source
	secondary provider.Source
	store     Store
	log       *slog.Logger
}

func New(clock Clock, primary, secondary provider.Source, store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{clock: clock, primary: primary, secondary: secondary, store: store, log: logger}
}

type step struct {
	src     provider.Source
	primary bool
}

// order is the fallback policy. While the market is open the primary has the
// freshest price; once closed the secondary reports the settled close more
// reliably than the primary's previous_close.
func (r *Resolver) order(open bool) []step {
	p, s := step{r.primary, true}, step{r.secondary, false}
	if open {
		return []step{p, s}
	}
	return []step{s, p}
}

// Resolve produces the quote to display for symbol at now.
func (r *Resolver) Resolve(ctx context.Context, symbol string, now time.Time) (DisplayQuote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	open := r.clock.IsOpen(now)
	log := r.log.With("symbol", symbol, "market_open", open)

	if !open {
		if rec, ok := r.cached(log, symbol, now); ok {
			log.Debug("using cached close", "written_at", rec.WrittenAt)
			return newDisplayQuote(rec.Quote(), false), nil
		}
	}

	q, cause := r.fetch(ctx, log, symbol, r.order(open))
	if cause != nil {
		return DisplayQuote{}, &Error{
			Symbol: symbol,
			Open:   open,
			Cause:  cause,
			Fatal:  open && cause.Kind == provider.UnexpectedHTTP,
		}
	}

	if err := r.store.Save(symbol, q, now); err != nil {
		log.Warn("cache save failed", "err", err)
	}
	return newDisplayQuote(q, open), nil
}

// cached returns a fresh record. Stale or unreadable records are removed so
// the rebuild starts clean.
func (r *Resolver) cached(log *slog.Logger, symbol string, now time.Time) (cache.Record, bool) {
	rec, err := r.store.Load(symbol)
	switch {
	case errors.Is(err, cache.ErrMissing):
		log.Debug("no cached quote")
		return cache.Record{}, false
	case err != nil:
		log.Warn("cached quote unreadable", "err", err)
	case r.store.IsStale(rec, now):
		log.Info("cached quote is stale", "written_at", rec.WrittenAt)
	default:
		return rec, true
	}
	if err := r.store.Delete(symbol); err != nil {
		log.Warn("cache delete failed", "err", err)
	}
	return cache.Record{}, false
}

// fetch walks steps until one source succeeds. On total failure it returns
// the primary's failure, or the last one seen if the primary was absent.
func (r *Resolver) fetch(ctx context.Context, log *slog.Logger, symbol string, steps []step) (provider.Quote, *provider.FetchError) {
	var primaryErr, lastErr *provider.FetchError
	for _, st := range steps {
		if st.src == nil {
			continue
		}
		q, err := st.src.Fetch(ctx, symbol)
		if err == nil {
			q.Symbol = symbol
			log.Debug("quote fetched", "source", st.src.Name(), "price", q.Price.StringFixed(2))
			return q, nil
		}
		fe := classify(st.src.Name(), err)
		log.Warn("quote source failed", "source", st.src.Name(), "kind", fe.Kind.String(), "err", fe)
		if st.primary {
			primaryErr = fe
		}
		lastErr = fe
	}
	if primaryErr != nil {
		return provider.Quote{}, primaryErr
	}
	if lastErr != nil {
		return provider.Quote{}, lastErr
	}
	return provider.Quote{}, &provider.FetchError{Kind: provider.Unreachable, Message: "no sources configured"}
}

func classify(name string, err error) *provider.FetchError {
	var fe *provider.FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &provider.FetchError{Source: name, Kind: provider.Unreachable, Err: err}
}
