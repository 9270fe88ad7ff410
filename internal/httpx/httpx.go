package httpx

import (
	"net"
	"net/http"
	"net/url"
	"time"
)

// Client is a small wrapper around http.Client with sane defaults for
// talking to market-data providers.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Headers   map[string]string
}

// New builds a client with the given overall timeout. A non-empty proxyURL
// overrides the proxy taken from the environment.
func New(timeout time.Duration, proxyURL string) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	c := &Client{UserAgent: "stock-analysis/1.0"}
	c.HTTP = &http.Client{Timeout: timeout, Transport: &headerTransport{base: transport, client: c}}
	return c
}

// headerTransport stamps the client's default headers on every request,
// including requests issued by libraries that only see c.HTTP.
type headerTransport struct {
	base   http.RoundTripper
	client *Client
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c := t.client
	if (c.UserAgent != "" && req.Header.Get("User-Agent") == "") || len(c.Headers) > 0 {
		req = req.Clone(req.Context())
		if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", c.UserAgent)
		}
		for k, v := range c.Headers {
			if req.Header.Get(k) == "" {
				req.Header.Set(k, v)
			}
		}
	}
	return t.base.RoundTrip(req)
}
