package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// DefaultTimeout applies when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// ErrNilContext is returned by Do when called without a context.
var ErrNilContext = errors.New("httpclient: context cannot be nil")

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout time.Duration
	// MaxRedirects caps how many redirects are followed. Zero means no limit
	// beyond the net/http default; a negative value disables redirects.
	MaxRedirects int
	UseCookieJar bool
	// Transport overrides the round tripper, e.g. for proxies or uTLS fingerprinting.
	Transport http.RoundTripper
}

// Client wraps a standard http.Client with a per-call context requirement.
type Client struct {
	*http.Client
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &http.Client{
		Timeout:       cfg.Timeout,
		CheckRedirect: redirectPolicy(cfg.MaxRedirects),
	}

	if cfg.UseCookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("httpclient: cookie jar: %w", err)
		}
		c.Jar = jar
	}

	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{Client: c}, nil
}

func redirectPolicy(max int) func(*http.Request, []*http.Request) error {
	switch {
	case max < 0:
		return func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	case max == 0:
		return nil
	default:
		return func(_ *http.Request, via []*http.Request) error {
			if len(via) >= max {
				return fmt.Errorf("httpclient: stopped after %d redirects", max)
			}
			return nil
		}
	}
}

// Do executes req bound to ctx. The context controls cancellation
// independently of the client timeout.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	resp, err := c.Client.Do(req.Clone(ctx))
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return resp, nil
}
