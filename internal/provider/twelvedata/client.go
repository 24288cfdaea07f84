package twelvedata

import (
	"net/http"
	"strings"
)

const baseURL = "https://api.twelvedata.com"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=twelvedata_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Twelve Data REST API. Requests carry the key as the
// apikey query parameter (https://twelvedata.com/docs#authentication).
type Client struct {
	baseURL    string
	httpClient HTTPClient
	header     http.Header // sent with every request
	key        string
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader adds headers to every request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewClient builds a client for key. A blank key is allowed; HasKey then
// reports false and callers are expected to skip the client.
func NewClient(key string, options ...ClientOption) (*Client, error) {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		key:        strings.TrimSpace(key),
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

func (c *Client) HasKey() bool { return c.key != "" }
