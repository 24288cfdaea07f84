// Package nasdaq reads quotes from the public Nasdaq quote API. It needs no
// key but rejects requests that do not look like they come from a browser.
package nasdaq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"stockbar/internal/httpx"
	"stockbar/internal/provider"
)

const defaultBaseURL = "https://api.nasdaq.com"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=nasdaq_test -destination=mock_http_client_test.go -source=source.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	Name    string
	BaseURL string
	Headers map[string]string
}

type Source struct {
	cfg    Config
	client HTTPClient
	log    *slog.Logger
}

func New(cfg Config, hc HTTPClient, logger *slog.Logger) *Source {
	if cfg.Name == "" {
		cfg.Name = "nasdaq"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	headers := make(map[string]string, len(httpx.BrowserHeaders)+2+len(cfg.Headers))
	for k, v := range httpx.BrowserHeaders {
		headers[k] = v
	}
	headers["Origin"] = "https://www.nasdaq.com"
	headers["Referer"] = "https://www.nasdaq.com/"
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	cfg.Headers = headers
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{cfg: cfg, client: hc, log: logger}
}

func (s *Source) Name() string { return s.cfg.Name }

// Fetch reports every failure as Unreachable: the secondary source either
// yields a complete quote or nothing.
func (s *Source) Fetch(ctx context.Context, symbol string) (provider.Quote, error) {
	u := fmt.Sprintf("%s/api/quote/%s/info?assetclass=stocks", strings.TrimRight(s.cfg.BaseURL, "/"), url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return provider.Quote{}, s.fail("creating request", err)
	}
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return provider.Quote{}, s.fail("performing request", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return provider.Quote{}, &provider.FetchError{Source: s.cfg.Name, Kind: provider.Unreachable, StatusCode: res.StatusCode, Message: "unexpected status"}
	}

	var body infoResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return provider.Quote{}, s.fail("decoding response", err)
	}
	if body.Data == nil {
		return provider.Quote{}, s.fail("missing data", nil)
	}

	// secondaryData carries the official close once the session has ended.
	sess, which := body.Data.SecondaryData, "secondary"
	if !sess.complete() {
		sess, which = body.Data.PrimaryData, "primary"
	}
	if !sess.complete() {
		return provider.Quote{}, s.fail("missing session fields", nil)
	}

	price, err := parseAmount(*sess.LastSalePrice)
	if err != nil || price.IsNegative() {
		return provider.Quote{}, s.fail("bad lastSalePrice", err)
	}
	change, err := parseAmount(*sess.NetChange)
	if err != nil {
		return provider.Quote{}, s.fail("bad netChange", err)
	}
	prev := PreviousClose(price, change)
	if prev.IsNegative() {
		return provider.Quote{}, s.fail("negative previous close", nil)
	}

	s.log.Debug("nasdaq quote", "symbol", symbol, "session", which, "price", price.StringFixed(2), "net_change", change.StringFixed(2))
	return provider.Quote{
		Symbol:        symbol,
		Price:         price,
		PreviousClose: prev,
		IsLive:        true,
		Source:        s.cfg.Name,
	}, nil
}

func (s *Source) fail(msg string, err error) *provider.FetchError {
	return &provider.FetchError{Source: s.cfg.Name, Kind: provider.Unreachable, Message: msg, Err: err}
}

// PreviousClose derives the prior close from the last price and the net change.
func PreviousClose(price, netChange decimal.Decimal) decimal.Decimal {
	if netChange.IsNegative() {
		return price.Add(netChange.Abs())
	}
	return price.Sub(netChange)
}

// parseAmount strips currency and thousands formatting ("$1,234.50", "+0.70").
// Nasdaq reports an unchanged session as "UNCH".
func parseAmount(s string) (decimal.Decimal, error) {
	clean := strings.NewReplacer("$", "", ",", "", "+", "", " ", "").Replace(strings.TrimSpace(s))
	if strings.EqualFold(clean, "UNCH") {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(clean)
}

// complete reports whether the session carries both a price and a change.
func (s *session) complete() bool {
	return s != nil && !blank(s.LastSalePrice) && !blank(s.NetChange)
}

func blank(p *string) bool { return p == nil || strings.TrimSpace(*p) == "" }

type infoResponse struct {
	Data *struct {
		Symbol        string   `json:"symbol"`
		PrimaryData   *session `json:"primaryData"`
		SecondaryData *session `json:"secondaryData"`
	} `json:"data"`
}

type session struct {
	LastSalePrice      *string `json:"lastSalePrice"`
	NetChange          *string `json:"netChange"`
	PercentageChange   *string `json:"percentageChange"`
	LastTradeTimestamp *string `json:"lastTradeTimestamp"`
}
