package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/trustcheck/internal/bypass"
	"github.com/FranksOps/trustcheck/internal/fingerprint"
	"github.com/FranksOps/trustcheck/internal/metrics"
	"github.com/FranksOps/trustcheck/pkg/httpclient"
	"github.com/FranksOps/trustcheck/pkg/proxy"
	"github.com/FranksOps/trustcheck/pkg/useragent"
	"github.com/google/uuid"
	"golang.org/x/text/language"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// MaxBodyBytes caps how much of a result page is read.
const MaxBodyBytes = 4 << 20

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	UAOrder      useragent.Order
	Fingerprint  fingerprint.Profile
	Logger       *slog.Logger
}

// Request describes one page to fetch.
type Request struct {
	URL string
	// Language feeds the Accept-Language header, e.g. "it".
	Language string
}

// Page is a fetched result page.
type Page struct {
	ID         string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
	FetchedAt  time.Time
	// Challenge names the bot wall that served the page, if any.
	Challenge string
}

// Fetcher performs single GETs with UA rotation, optional proxy rotation
// and a fingerprinted TLS transport. One outbound request per Fetch call.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
	logger *slog.Logger
}

// NewFetcher builds a Fetcher. The client is shared across requests so
// connections and cookies (if enabled) are reused.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = httpclient.DefaultTimeout
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// The proxy is chosen per request and carried in its context, so the
	// transport (and its connection pool) is built once.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
			return u, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("scraper: setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("scraper: create client: %w", err)
	}

	return &Fetcher{config: cfg, client: client, logger: logger}, nil
}

// Fetch GETs r.URL. Transport failures are returned as errors; any HTTP
// response, including non-2xx, is returned as a Page for the caller to judge.
func (f *Fetcher) Fetch(ctx context.Context, r Request) (*Page, error) {
	start := time.Now()
	page := &Page{
		ID:        uuid.NewString(),
		URL:       r.URL,
		FetchedAt: start.UTC(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("scraper: build request: %w", err)
	}
	host := req.URL.Hostname()

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		if activeProxy = f.config.ProxyPool.Next(); activeProxy != nil {
			req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
		}
	}

	req.Header.Set("User-Agent", f.config.UAPool.Pick(f.config.UAOrder))
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", acceptLanguage(r.Language))

	resp, err := f.client.Do(req.Context(), req)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.Redacted()).Inc()
		}
		metrics.RecordFetch(host, 0)
		f.logger.Debug("fetch failed", "id", page.ID, "url", r.URL, "err", err)
		return nil, fmt.Errorf("scraper: GET %s: %w", host, err)
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		metrics.RecordFetch(host, 0)
		return nil, fmt.Errorf("scraper: read body from %s: %w", host, err)
	}

	page.StatusCode = resp.StatusCode
	page.Header = resp.Header
	page.Body = body
	page.Duration = time.Since(start)
	page.Challenge = bypass.Analyze(bypass.Response{
		StatusCode: page.StatusCode,
		Header:     page.Header,
		Body:       page.Body,
	}, bypass.DefaultDetectors())

	metrics.RecordFetch(host, page.StatusCode)
	f.logger.Debug("fetched",
		"id", page.ID,
		"url", r.URL,
		"status", page.StatusCode,
		"bytes", len(body),
		"duration", page.Duration,
		"challenge", page.Challenge,
	)

	return page, nil
}

// Close drops idle connections held by the transport.
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}

// acceptLanguage builds the header from the canonical BCP 47 form of lang,
// so "it_IT" is sent as "it-IT".
func acceptLanguage(lang string) string {
	tag := language.Make(lang).String()
	if tag == "und" || tag == "en" {
		return "en-US,en;q=0.5"
	}
	return tag + ",en;q=0.5"
}
