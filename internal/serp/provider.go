package serp

import (
	"context"
	"fmt"

	"github.com/FranksOps/trustcheck/internal/scraper"
)

// Provider names.
const (
	ProviderPlaceholder = "placeholder"
	ProviderBing        = "bing"
	ProviderDuckDuckGo  = "duckduckgo"
)

// DefaultMaxResults caps how many results a scraping provider keeps.
const DefaultMaxResults = 10

// Provider is any search backend that turns a query into ranked results.
type Provider interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Result, error)
}

// PageFetcher is the part of scraper.Fetcher the scraping providers use.
type PageFetcher interface {
	Fetch(ctx context.Context, r scraper.Request) (*scraper.Page, error)
}

// Options carries what a provider needs to be built.
type Options struct {
	Fetcher PageFetcher
	// BaseURL overrides the provider's search endpoint.
	BaseURL    string
	MaxResults int
}

// Names lists the providers New can build.
func Names() []string {
	return []string{ProviderPlaceholder, ProviderBing, ProviderDuckDuckGo}
}

// New builds the provider registered under name.
func New(name string, opts Options) (Provider, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}

	switch name {
	case ProviderPlaceholder:
		return Placeholder{}, nil
	case ProviderBing:
		if opts.Fetcher == nil {
			return nil, fmt.Errorf("serp: %s needs a fetcher", name)
		}
		return newBing(opts), nil
	case ProviderDuckDuckGo:
		if opts.Fetcher == nil {
			return nil, fmt.Errorf("serp: %s needs a fetcher", name)
		}
		return newDuckDuckGo(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}

// IsKnown reports whether name is a provider New can build.
func IsKnown(name string) bool {
	for _, n := range Names() {
		if n == name {
			return true
		}
	}
	return false
}
