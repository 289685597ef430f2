// Package query runs one name lookup against a search provider and turns
// the provider's hits into a Response.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/trustcheck/internal/metrics"
	"github.com/FranksOps/trustcheck/internal/serp"
	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// Component executes queries against a single provider.
type Component struct {
	provider    serp.Provider
	logger      *slog.Logger
	failOnEmpty bool
	now         func() time.Time
}

// Option configures a Component.
type Option func(*Component)

// WithLogger sets the logger used for the per-query log line.
func WithLogger(l *slog.Logger) Option {
	return func(c *Component) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFailOnEmpty makes Execute return serp.ErrNoResults instead of an
// empty Response.
func WithFailOnEmpty(fail bool) Option {
	return func(c *Component) { c.failOnEmpty = fail }
}

// New returns a Component that searches with p.
func New(p serp.Provider, opts ...Option) (*Component, error) {
	if p == nil {
		return nil, errors.New("query: provider is nil")
	}
	c := &Component{
		provider: p,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Execute searches for name in language and returns the provider's results
// in rank order. An empty language means serp.DefaultLanguage. The provider
// is called exactly once and its errors are returned unchanged.
func (c *Component) Execute(ctx context.Context, name, lang string) (*serp.Response, error) {
	if lang == "" {
		lang = serp.DefaultLanguage
	}
	q := serp.Query{Name: name, Language: lang}
	provider := c.provider.Name()
	id := uuid.NewString()
	start := c.now()

	if err := validate(q); err != nil {
		metrics.RecordQuery(provider, metrics.OutcomeInvalid, 0, 0)
		c.logger.Warn("query rejected", "id", id, "provider", provider, "err", err)
		return nil, err
	}

	hits, err := c.provider.Search(ctx, q)
	took := c.now().Sub(start)
	if err != nil {
		metrics.RecordQuery(provider, metrics.OutcomeError, took, 0)
		c.logger.Error("query failed",
			"id", id,
			"provider", provider,
			"name", q.Name,
			"language", q.Language,
			"duration", took,
			"err", err,
		)
		return nil, err
	}

	results := normalize(hits)
	outcome := metrics.OutcomeOK
	if len(results) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.RecordQuery(provider, outcome, took, len(results))
	c.logger.Info("query executed",
		"id", id,
		"provider", provider,
		"name", q.Name,
		"language", q.Language,
		"results", len(results),
		"duration", took,
	)

	if len(results) == 0 && c.failOnEmpty {
		return nil, fmt.Errorf("%w for %q", serp.ErrNoResults, q.Name)
	}
	return serp.NewResponse(q, results), nil
}

func validate(q serp.Query) error {
	if strings.TrimSpace(q.Name) == "" {
		return fmt.Errorf("%w: name is blank", serp.ErrInvalidQuery)
	}
	if _, err := language.Parse(q.Language); err != nil {
		return fmt.Errorf("%w: language %q: %v", serp.ErrInvalidQuery, q.Language, err)
	}
	return nil
}

// normalize trims titles and drops hits whose URL is not an absolute
// http(s) URL. Order is kept.
func normalize(hits []serp.Result) []serp.Result {
	out := make([]serp.Result, 0, len(hits))
	for _, h := range hits {
		u, err := url.Parse(strings.TrimSpace(h.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		out = append(out, serp.Result{
			Title: strings.TrimSpace(h.Title),
			URL:   u.String(),
		})
	}
	return out
}
