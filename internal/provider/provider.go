package provider

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Quote is the normalized shape returned by all sources.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	IsLive        bool            `json:"is_live"`
	Source        string          `json:"source"`
}

// Source fetches a single symbol's quote. Implementations never retry and
// report every failure as a *FetchError.
//
//go:generate mockgen -package=resolver_test -destination=../resolver/mock_source_test.go -source=provider.go Source
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (Quote, error)
}

// Kind classifies why a fetch failed.
type Kind int

const (
	Unreachable Kind = iota
	HTTPOutage
	RateLimited
	UnexpectedHTTP
	APIError
	InvalidData
)

func (k Kind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case HTTPOutage:
		return "http_outage"
	case RateLimited:
		return "rate_limited"
	case UnexpectedHTTP:
		return "unexpected_http"
	case APIError:
		return "api_error"
	case InvalidData:
		return "invalid_data"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// FetchError is the failure half of a fetch outcome.
type FetchError struct {
	Source     string
	Kind       Kind
	StatusCode int    // set for HTTPOutage, RateLimited and UnexpectedHTTP
	Message    string // provider message for APIError, detail otherwise
	Err        error  // underlying transport or decode error, if any
}

func (e *FetchError) Error() string {
	s := e.Source + ": " + e.Kind.String()
	if e.StatusCode != 0 {
		s += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *FetchError) Unwrap() error { return e.Err }

// Summary is the short user-facing description of the failure.
func (e *FetchError) Summary() string {
	switch e.Kind {
	case HTTPOutage:
		return fmt.Sprintf("service unavailable (HTTP %d)", e.StatusCode)
	case RateLimited:
		return fmt.Sprintf("rate limited (HTTP %d)", e.StatusCode)
	case UnexpectedHTTP:
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	case APIError:
		if e.Message != "" {
			return e.Message
		}
		return "api error"
	case InvalidData:
		return "invalid data"
	}
	return "unreachable"
}

// ClassifyStatus maps a non-200 HTTP status to a failure kind.
func ClassifyStatus(code int) Kind {
	switch {
	case code >= 500:
		return HTTPOutage
	case code == 401, code == 429:
		return RateLimited
	}
	return UnexpectedHTTP
}
