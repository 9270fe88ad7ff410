package finnhub

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const baseURL = "https://finnhub.io/api/v1"

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("finnhub: api key is required")

// Client is a client for the Finnhub REST API.
type Client struct {
	// name is reported by Name.
	name string
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the underlying HTTP client handed to resty.
	httpClient *http.Client
	// timeout bounds each request when httpClient has none.
	timeout time.Duration
	// key authenticates every request.
	key string

	rest *resty.Client
	now  func() time.Time
}

// Option is a configuration option for the Finnhub client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithName overrides the source name.
func WithName(name string) Option {
	return func(c *Client) {
		c.name = name
	}
}

// WithTimeout sets a per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// New creates a Finnhub client. The key is mandatory.
func New(key string, options ...Option) (*Client, error) {
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		name:    "Finnhub",
		baseURL: baseURL,
		timeout: 30 * time.Second,
		key:     key,
		now:     time.Now,
	}
	for _, option := range options {
		option(c)
	}

	if c.httpClient != nil {
		c.rest = resty.NewWithClient(c.httpClient)
	} else {
		c.rest = resty.New().SetTimeout(c.timeout)
	}
	c.rest.SetBaseURL(c.baseURL).
		SetHeader("Accept", "application/json").
		// https://finnhub.io/docs/api/authentication
		SetHeader("X-Finnhub-Token", c.key)
	return c, nil
}

func (c *Client) Name() string { return c.name }
