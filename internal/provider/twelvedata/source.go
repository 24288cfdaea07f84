package twelvedata

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"stockbar/internal/provider"
)

// Source adapts Client to provider.Source.
type Source struct {
	name   string
	client *Client
	log    *slog.Logger
}

func NewSource(client *Client, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{name: "twelvedata", client: client, log: logger}
}

func (s *Source) Name() string { return s.name }

// Fetch never returns a bare error: every failure is a *provider.FetchError.
func (s *Source) Fetch(ctx context.Context, symbol string) (provider.Quote, error) {
	if s.client == nil || !s.client.HasKey() {
		return provider.Quote{}, s.fail(provider.Unreachable, 0, "missing api key", nil)
	}

	res, err := s.client.GetQuote(ctx, symbol)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return provider.Quote{}, s.fail(provider.ClassifyStatus(se.StatusCode), se.StatusCode, "", nil)
		}
		if errors.Is(err, ErrEmptyBody) {
			return provider.Quote{}, s.fail(provider.Unreachable, 0, "empty body", nil)
		}
		var de *DecodeError
		if errors.As(err, &de) {
			return provider.Quote{}, s.fail(provider.InvalidData, 0, "invalid data", err)
		}
		return provider.Quote{}, s.fail(provider.Unreachable, 0, "", err)
	}

	if res.Failed() {
		msg := res.Message
		if msg == "" {
			msg = "api error"
		}
		return provider.Quote{}, s.fail(provider.APIError, 0, msg, nil)
	}

	if res.IsMarketOpen != nil {
		s.log.Debug("twelvedata quote", "symbol", symbol, "is_market_open", *res.IsMarketOpen)
	}

	price, ok1 := parsePrice(res.Close)
	prev, ok2 := parsePrice(res.PreviousClose)
	if !ok1 || !ok2 {
		return provider.Quote{}, s.fail(provider.InvalidData, 0, "invalid data", nil)
	}
	return provider.Quote{
		Symbol:        symbol,
		Price:         price,
		PreviousClose: prev,
		IsLive:        true,
		Source:        s.name,
	}, nil
}

func (s *Source) fail(kind provider.Kind, code int, msg string, err error) *provider.FetchError {
	return &provider.FetchError{Source: s.name, Kind: kind, StatusCode: code, Message: msg, Err: err}
}

func parsePrice(p *string) (decimal.Decimal, bool) {
	if p == nil {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(*p))
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d, true
}
