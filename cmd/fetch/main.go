// Command fetch queries every quote source for one symbol and prints what
// each returned, alongside the market state and the cached record. It never
// writes the cache.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"stockbar/internal/cache"
	"stockbar/internal/config"
	"stockbar/internal/credential"
	"stockbar/internal/httpx"
	"stockbar/internal/logging"
	"stockbar/internal/marketclock"
	"stockbar/internal/provider"
	"stockbar/internal/provider/nasdaq"
	"stockbar/internal/provider/twelvedata"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, time.Now()))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, now time.Time) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a config file (optional)")
	symbol := fs.String("symbol", getenv("SYMBOL", "ORCL"), "ticker symbol")
	noKeychain := fs.Bool("no-keychain", false, "skip the keychain lookup for the primary's key")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	log, closer, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer closer.Close()

	clock, err := marketclock.New(cfg.Market.Clock())
	if err != nil {
		log.Error("market clock", "err", err)
		return 1
	}
	dir := cfg.CacheDir
	if dir == "" {
		if dir, err = cache.DefaultDir(); err != nil {
			log.Error("cache dir", "err", err)
			return 1
		}
	}

	key := cfg.APIKey
	if key == "" && !*noKeychain {
		if key, err = (credential.Keychain{Service: cfg.Keychain.Service, User: cfg.Keychain.User}).APIKey(); err != nil {
			log.Warn("no api key for twelvedata", "err", err)
		}
	}
	tdClient, err := twelvedata.NewClient(key,
		twelvedata.WithBaseURL(strings.TrimRight(cfg.TwelveData.Endpoint, "/")),
		twelvedata.WithHTTPClient(httpx.New(cfg.TwelveData.Timeout())),
	)
	if err != nil {
		log.Error("twelvedata client", "err", err)
		return 1
	}
	sources := []provider.Source{
		twelvedata.NewSource(tdClient, log),
		nasdaq.New(nasdaq.Config{BaseURL: cfg.Nasdaq.Endpoint}, httpx.New(cfg.Nasdaq.Timeout()), log),
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.TwelveData.Timeout()+cfg.Nasdaq.Timeout())
	defer cancel()

	rep := inspect(ctx, strings.ToUpper(strings.TrimSpace(*symbol)), sources, clock, cache.New(dir, clock), now)
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		log.Error("encode report", "err", err)
		return 1
	}
	fmt.Fprintln(stdout, string(b))
	return 0
}

type report struct {
	Symbol  string         `json:"symbol"`
	Market  marketReport   `json:"market"`
	Cache   cacheReport    `json:"cache"`
	Sources []sourceReport `json:"sources"`
}

type marketReport struct {
	State           string    `json:"state"`
	LocalTime       time.Time `json:"local_time"`
	LastCloseCutoff time.Time `json:"last_close_cutoff"`
}

type cacheReport struct {
	Path      string          `json:"path"`
	Present   bool            `json:"present"`
	Stale     bool            `json:"stale,omitempty"`
	WrittenAt *time.Time      `json:"written_at,omitempty"`
	Quote     *provider.Quote `json:"quote,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type sourceReport struct {
	Name    string          `json:"name"`
	Elapsed string          `json:"elapsed"`
	Quote   *provider.Quote `json:"quote,omitempty"`
	Error   *errorReport    `json:"error,omitempty"`
}

type errorReport struct {
	Kind    string `json:"kind"`
	Status  int    `json:"status,omitempty"`
	Summary string `json:"summary"`
	Detail  string `json:"detail"`
}

// inspect queries every source concurrently; the report keeps source order.
func inspect(ctx context.Context, symbol string, sources []provider.Source, clock *marketclock.Clock, store *cache.Store, now time.Time) report {
	rep := report{
		Symbol: symbol,
		Market: marketReport{
			State:           clock.State(now).String(),
			LocalTime:       now.In(clock.Location()),
			LastCloseCutoff: clock.LastCloseCutoff(now),
		},
		Cache:   inspectCache(store, symbol, now),
		Sources: make([]sourceReport, len(sources)),
	}

	// Source failures are part of the report, so no goroutine returns an error.
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			start := time.Now()
			q, err := src.Fetch(gctx, symbol)
			out := sourceReport{Name: src.Name(), Elapsed: time.Since(start).Round(time.Millisecond).String()}
			if err != nil {
				out.Error = describe(err)
			} else {
				out.Quote = &q
			}
			rep.Sources[i] = out
			return nil
		})
	}
	_ = g.Wait()
	return rep
}

func inspectCache(store *cache.Store, symbol string, now time.Time) cacheReport {
	out := cacheReport{Path: store.Path(symbol)}
	rec, err := store.Load(symbol)
	switch {
	case errors.Is(err, cache.ErrMissing):
		return out
	case err != nil:
		out.Present = true
		out.Error = err.Error()
		return out
	}
	q := rec.Quote()
	out.Present = true
	out.Stale = store.IsStale(rec, now)
	out.WrittenAt = &rec.WrittenAt
	out.Quote = &q
	return out
}

func describe(err error) *errorReport {
	var fe *provider.FetchError
	if !errors.As(err, &fe) {
		return &errorReport{Kind: provider.Unreachable.String(), Summary: "unreachable", Detail: err.Error()}
	}
	return &errorReport{Kind: fe.Kind.String(), Status: fe.StatusCode, Summary: fe.Summary(), Detail: fe.Error()}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
