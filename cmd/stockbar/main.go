// Command stockbar prints one status-bar line for a stock symbol.
//
// The symbol comes from the first argument, the -symbol flag, the config file
// or the executable name, in that order: a binary installed as
// "stockbar-ORCL.5m" reports ORCL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"stockbar/internal/cache"
	"stockbar/internal/config"
	"stockbar/internal/credential"
	"stockbar/internal/httpx"
	"stockbar/internal/logging"
	"stockbar/internal/marketclock"
	"stockbar/internal/provider/nasdaq"
	"stockbar/internal/provider/twelvedata"
	"stockbar/internal/resolver"
	"stockbar/internal/statusline"
)

// Displayed errors exit 0 so the host does not add its own error chrome.
// Only an open-market unexpected HTTP status with no working fallback is fatal.
const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

type app struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
	// apiKey reads the primary's key when the config carries none.
	apiKey func(config.Keychain) (string, error)
	// executable names the running binary for symbol discovery.
	executable func() (string, error)
}

func main() {
	a := &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
		now:    time.Now,
		apiKey: func(k config.Keychain) (string, error) {
			return credential.Keychain{Service: k.Service, User: k.User}.APIKey()
		},
		executable: os.Executable,
	}
	os.Exit(a.run(context.Background(), os.Args[1:]))
}

func (a *app) run(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("stockbar", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	configPath := fs.String("config", "", "path to a config file (json, yaml or toml); defaults to $"+config.PathEnv)
	symbolFlag := fs.String("symbol", "", "ticker symbol, e.g. ORCL")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(a.stderr, "stockbar: %v\n", err)
		fmt.Fprintln(a.stdout, statusline.FormatError("stockbar", errors.New("bad config"), statusline.DefaultStyle))
		return exitOK
	}

	log, closer, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}, a.stderr)
	if err != nil {
		fmt.Fprintf(a.stderr, "stockbar: %v\n", err)
		fmt.Fprintln(a.stdout, statusline.FormatError("stockbar", errors.New("bad log file"), cfg.Style))
		return exitOK
	}
	defer closer.Close()

	symbol := pickSymbol(fs.Arg(0), *symbolFlag, cfg.Symbol, a.exeName())
	if symbol == "" {
		log.Error("no symbol: pass one as an argument, -symbol, config or executable name")
		fmt.Fprintln(a.stdout, statusline.FormatError("stockbar", errors.New("no symbol"), cfg.Style))
		return exitOK
	}

	res, timeout, err := a.build(cfg, log)
	if err != nil {
		log.Error("setup failed", "err", err)
		fmt.Fprintln(a.stdout, statusline.FormatError(symbol, err, cfg.Style))
		return exitOK
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	q, err := res.Resolve(ctx, symbol, a.now())
	if err != nil {
		fmt.Fprintln(a.stdout, statusline.FormatError(symbol, err, cfg.Style))
		var re *resolver.Error
		if errors.As(err, &re) && re.Fatal {
			log.Error("quote unavailable", "symbol", symbol, "err", err)
			return exitFatal
		}
		log.Warn("quote unavailable", "symbol", symbol, "err", err)
		return exitOK
	}
	fmt.Fprintln(a.stdout, statusline.Format(q, cfg.Style))
	return exitOK
}

// build wires the resolver and returns it with a deadline covering both
// sources back to back.
func (a *app) build(cfg config.Config, log *slog.Logger) (*resolver.Resolver, time.Duration, error) {
	clock, err := marketclock.New(cfg.Market.Clock())
	if err != nil {
		return nil, 0, fmt.Errorf("market clock: %w", err)
	}

	dir := cfg.CacheDir
	if dir == "" {
		if dir, err = cache.DefaultDir(); err != nil {
			return nil, 0, fmt.Errorf("cache dir: %w", err)
		}
	}
	store := cache.New(dir, clock)

	key := strings.TrimSpace(cfg.APIKey)
	if key == "" && a.apiKey != nil {
		if key, err = a.apiKey(cfg.Keychain); err != nil {
			log.Warn("primary source disabled", "err", err)
			key = ""
		}
	}
	tdClient, err := twelvedata.NewClient(key,
		twelvedata.WithBaseURL(strings.TrimRight(cfg.TwelveData.Endpoint, "/")),
		twelvedata.WithHTTPClient(httpx.New(cfg.TwelveData.Timeout())),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("twelvedata client: %w", err)
	}
	primary := twelvedata.NewSource(tdClient, log)
	secondary := nasdaq.New(nasdaq.Config{BaseURL: cfg.Nasdaq.Endpoint}, httpx.New(cfg.Nasdaq.Timeout()), log)

	timeout := cfg.TwelveData.Timeout() + cfg.Nasdaq.Timeout() + time.Second
	return resolver.New(clock, primary, secondary, store, log), timeout, nil
}

func (a *app) exeName() string {
	if a.executable == nil {
		return ""
	}
	p, err := a.executable()
	if err != nil {
		return ""
	}
	return filepath.Base(p)
}

// refreshSuffix matches the scheduling hint hosts append to plugin names.
var refreshSuffix = regexp.MustCompile(`\.\d+(ms|s|m|h|d)$`)

// pickSymbol returns the first non-empty candidate, upper-cased.
func pickSymbol(arg, flagValue, configured, exe string) string {
	for _, s := range []string{arg, flagValue, configured, symbolFromExe(exe)} {
		if s = strings.TrimSpace(s); s != "" {
			return strings.ToUpper(s)
		}
	}
	return ""
}

// symbolFromExe extracts ORCL from names like "stockbar-ORCL.5m" or
// "stockbar-BRK.B.10m.exe".
func symbolFromExe(name string) string {
	name = strings.TrimSuffix(name, ".exe")
	rest, ok := strings.CutPrefix(name, "stockbar-")
	if !ok {
		return ""
	}
	return refreshSuffix.ReplaceAllString(rest, "")
}
