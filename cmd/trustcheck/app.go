package main

import (
	"fmt"
	"log/slog"

	"github.com/FranksOps/trustcheck/internal/config"
	"github.com/FranksOps/trustcheck/internal/engine"
	"github.com/FranksOps/trustcheck/internal/fingerprint"
	"github.com/FranksOps/trustcheck/internal/query"
	"github.com/FranksOps/trustcheck/internal/scraper"
	"github.com/FranksOps/trustcheck/internal/serp"
	"github.com/FranksOps/trustcheck/pkg/proxy"
	"github.com/FranksOps/trustcheck/pkg/useragent"
)

// app is the wired dependency graph for one command invocation.
type app struct {
	engine  *engine.Engine
	fetcher *scraper.Fetcher
}

func build(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}
	opts := serp.Options{MaxResults: cfg.MaxResults}

	switch cfg.Provider {
	case serp.ProviderBing:
		opts.BaseURL = cfg.Bing.BaseURL
	case serp.ProviderDuckDuckGo:
		opts.BaseURL = cfg.DuckDuckGo.BaseURL
	}

	if cfg.Provider != serp.ProviderPlaceholder {
		f, err := newFetcher(cfg.Fetch, logger)
		if err != nil {
			return nil, err
		}
		a.fetcher = f
		opts.Fetcher = f
	}

	provider, err := serp.New(cfg.Provider, opts)
	if err != nil {
		a.Close()
		return nil, err
	}

	component, err := query.New(provider,
		query.WithLogger(logger),
		query.WithFailOnEmpty(cfg.FailOnEmpty),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.engine, err = engine.New(component, cfg.Concurrency)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func newFetcher(cfg config.FetchConfig, logger *slog.Logger) (*scraper.Fetcher, error) {
	profile, err := fingerprint.ParseProfile(cfg.Fingerprint)
	if err != nil {
		return nil, err
	}
	order, err := useragent.ParseOrder(cfg.UserAgentOrder)
	if err != nil {
		return nil, err
	}

	var pool *proxy.Pool
	if len(cfg.Proxies) > 0 || cfg.ProxyFile != "" {
		pool = proxy.NewPool(proxy.Config{})
		if err := pool.Add(cfg.Proxies...); err != nil {
			return nil, err
		}
		if cfg.ProxyFile != "" {
			if err := pool.LoadFile(cfg.ProxyFile); err != nil {
				return nil, err
			}
		}
		logger.Debug("proxy rotation enabled", "proxies", pool.Len())
	}

	f, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      cfg.Timeout,
		UseCookieJar: cfg.CookieJar,
		ProxyPool:    pool,
		UAPool:       useragent.NewPool(cfg.UserAgents),
		UAOrder:      order,
		Fingerprint:  profile,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build fetcher: %w", err)
	}
	return f, nil
}

func (a *app) Close() {
	if a.fetcher != nil {
		a.fetcher.Close()
	}
}
