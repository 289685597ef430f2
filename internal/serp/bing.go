package serp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const defaultBingURL = "https://www.bing.com/search"

// bing scrapes the organic results off Bing's HTML result page.
type bing struct {
	fetcher    PageFetcher
	baseURL    string
	maxResults int
}

func newBing(opts Options) *bing {
	base := opts.BaseURL
	if base == "" {
		base = defaultBingURL
	}
	return &bing{fetcher: opts.Fetcher, baseURL: base, maxResults: opts.MaxResults}
}

func (b *bing) Name() string { return ProviderBing }

func (b *bing) Search(ctx context.Context, q Query) ([]Result, error) {
	searchURL, err := b.searchURL(q)
	if err != nil {
		return nil, err
	}

	doc, err := fetchDocument(ctx, b.fetcher, ProviderBing, searchURL.String(), q.Language)
	if err != nil {
		return nil, err
	}
	return b.parse(doc, searchURL)
}

func (b *bing) searchURL(q Query) (*url.URL, error) {
	u, err := url.Parse(b.baseURL)
	if err != nil {
		return nil, fmt.Errorf("serp: bing base url: %w", err)
	}
	values := u.Query()
	values.Set("q", q.Name)
	values.Set("count", strconv.Itoa(b.maxResults))
	if q.Language != "" {
		values.Set("setlang", q.Language)
	}
	u.RawQuery = values.Encode()
	return u, nil
}

func (b *bing) parse(doc *goquery.Document, base *url.URL) ([]Result, error) {
	list := doc.Find("#b_results")
	if list.Length() == 0 {
		return nil, &ParseError{Provider: ProviderBing, Err: errors.New("result list #b_results not found")}
	}

	results := make([]Result, 0, b.maxResults)
	list.Find("li.b_algo").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		link := item.Find("h2 a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		target, ok := absoluteURL(base, unwrapBingLink(href))
		if !ok {
			return true
		}
		results = append(results, Result{
			Title: normalizeSpace(link.Text()),
			URL:   target,
		})
		return len(results) < b.maxResults
	})
	return results, nil
}

// unwrapBingLink recovers the target of a /ck/a click-tracking link,
// whose u parameter is "a1" followed by the base64url-encoded URL.
func unwrapBingLink(href string) string {
	u, err := url.Parse(href)
	if err != nil || !strings.HasSuffix(u.Path, "/ck/a") {
		return href
	}
	encoded := u.Query().Get("u")
	if !strings.HasPrefix(encoded, "a1") {
		return href
	}
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded[2:], "="))
	if err != nil {
		return href
	}
	return string(decoded)
}
