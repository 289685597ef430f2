package serp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const defaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"

// duckDuckGo scrapes the JavaScript-free html.duckduckgo.com endpoint.
type duckDuckGo struct {
	fetcher    PageFetcher
	baseURL    string
	maxResults int
}

func newDuckDuckGo(opts Options) *duckDuckGo {
	base := opts.BaseURL
	if base == "" {
		base = defaultDuckDuckGoURL
	}
	return &duckDuckGo{fetcher: opts.Fetcher, baseURL: base, maxResults: opts.MaxResults}
}

func (d *duckDuckGo) Name() string { return ProviderDuckDuckGo }

func (d *duckDuckGo) Search(ctx context.Context, q Query) ([]Result, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return nil, fmt.Errorf("serp: duckduckgo base url: %w", err)
	}
	values := u.Query()
	values.Set("q", q.Name)
	if region := ddgRegion(q.Language); region != "" {
		values.Set("kl", region)
	}
	u.RawQuery = values.Encode()

	doc, err := fetchDocument(ctx, d.fetcher, ProviderDuckDuckGo, u.String(), q.Language)
	if err != nil {
		return nil, err
	}
	return d.parse(doc, u)
}

func (d *duckDuckGo) parse(doc *goquery.Document, base *url.URL) ([]Result, error) {
	links := doc.Find("#links")
	if links.Length() == 0 {
		if doc.Find(".no-results").Length() > 0 {
			return []Result{}, nil
		}
		return nil, &ParseError{Provider: ProviderDuckDuckGo, Err: errors.New("result list #links not found")}
	}

	results := make([]Result, 0, d.maxResults)
	links.Find(".result").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if item.HasClass("result--ad") {
			return true
		}
		link := item.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		target, ok := absoluteURL(base, href)
		if !ok {
			return true
		}
		results = append(results, Result{
			Title: normalizeSpace(link.Text()),
			URL:   unwrapDuckDuckGoLink(target),
		})
		return len(results) < d.maxResults
	})
	return results, nil
}

// unwrapDuckDuckGoLink replaces a /l/?uddg= redirect with its target.
func unwrapDuckDuckGoLink(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || !strings.HasPrefix(u.Path, "/l/") {
		return raw
	}
	if target := u.Query().Get("uddg"); target != "" {
		if _, ok := absoluteURL(nil, target); ok {
			return target
		}
	}
	return raw
}

// ddgRegion maps a language code onto DuckDuckGo's kl region parameter,
// e.g. "it" -> "it-it", "en" -> "us-en".
func ddgRegion(lang string) string {
	base := strings.ToLower(strings.SplitN(strings.ReplaceAll(lang, "_", "-"), "-", 2)[0])
	switch base {
	case "":
		return ""
	case "en":
		return "us-en"
	default:
		return base + "-" + base
	}
}
