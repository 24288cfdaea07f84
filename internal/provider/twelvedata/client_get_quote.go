package twelvedata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ErrEmptyBody is returned when a 200 response carries no payload.
var ErrEmptyBody = errors.New("empty response body")

// StatusError reports a non-200 HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// DecodeError reports a 200 payload that could not be read.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decoding %s: %v", e.Field, e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// QuoteResponse is the subset of the /quote payload we read. Numeric fields
// stay nil when the provider omits them or sends null or "".
type QuoteResponse struct {
	Symbol        string
	Close         *string
	PreviousClose *string
	Change        *string
	PercentChange *string
	IsMarketOpen  *bool

	// Set when the provider reports a logical error with HTTP 200.
	Status  string
	Code    *string
	Message string
}

// Failed reports whether the payload is a provider-level error.
func (r *QuoteResponse) Failed() bool {
	return r.Status == "error" || (r.Code != nil && *r.Code != "" && *r.Code != "200")
}

// GetQuote retrieves the latest quote for symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string, opts ...ClientOption) (*QuoteResponse, error) {
	override := &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
		key:        c.key,
	}
	for _, opt := range opts {
		opt(override)
	}

	query := url.Values{"symbol": {symbol}}
	if override.key != "" {
		query.Set("apikey", override.key)
	}

	endpoint := fmt.Sprintf("%s/quote?%s", override.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header
	req.Header.Set("Accept", "application/json")

	res, err := override.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return nil, &StatusError{StatusCode: res.StatusCode, Body: string(b)}
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyBody
	}

	// {
	//   "symbol": "ORCL",
	//   "close": "120.50",
	//   "previous_close": "118.00",
	//   "change": "2.50",
	//   "percent_change": "2.11864",
	//   "is_market_open": true
	// }
	var body map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, &DecodeError{Field: "quote response", Err: err}
	}

	var out QuoteResponse
	if out.Symbol, err = stringOrEmpty(body, "symbol"); err != nil {
		return nil, &DecodeError{Field: "symbol", Err: err}
	}
	if out.Status, err = stringOrEmpty(body, "status"); err != nil {
		return nil, &DecodeError{Field: "status", Err: err}
	}
	if out.Message, err = stringOrEmpty(body, "message"); err != nil {
		return nil, &DecodeError{Field: "message", Err: err}
	}
	if out.Code, err = parseNullableNumber(body, "code"); err != nil {
		return nil, &DecodeError{Field: "code", Err: err}
	}
	if out.Close, err = parseNullableNumber(body, "close"); err != nil {
		return nil, &DecodeError{Field: "close", Err: err}
	}
	if out.PreviousClose, err = parseNullableNumber(body, "previous_close"); err != nil {
		return nil, &DecodeError{Field: "previous_close", Err: err}
	}
	if out.Change, err = parseNullableNumber(body, "change"); err != nil {
		return nil, &DecodeError{Field: "change", Err: err}
	}
	if out.PercentChange, err = parseNullableNumber(body, "percent_change"); err != nil {
		return nil, &DecodeError{Field: "percent_change", Err: err}
	}
	if out.IsMarketOpen, err = parseNullableValue[bool](body, "is_market_open"); err != nil {
		return nil, &DecodeError{Field: "is_market_open", Err: err}
	}
	return &out, nil
}

// parseNullableValue is a helper function to parse a nullable value.
func parseNullableValue[T any](data map[string]any, key string) (*T, error) {
	v, ok := data[key]
	if !ok || v == nil {
		return nil, nil
	}
	if v, ok := v.(T); ok {
		return &v, nil
	}
	return nil, fmt.Errorf("unexpected type: %T", v)
}

// parseNullableNumber accepts a quoted or bare JSON number. Missing, null and
// empty values all come back nil so callers never see a silent zero.
func parseNullableNumber(data map[string]any, key string) (*string, error) {
	v, ok := data[key]
	if !ok || v == nil {
		return nil, nil
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case json.Number:
		s = x.String()
	default:
		return nil, fmt.Errorf("unexpected type: %T", v)
	}
	if s == "" {
		return nil, nil
	}
	return &s, nil
}

func stringOrEmpty(data map[string]any, key string) (string, error) {
	p, err := parseNullableValue[string](data, key)
	if err != nil || p == nil {
		return "", err
	}
	return *p, nil
}
