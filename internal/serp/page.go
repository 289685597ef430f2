package serp

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/FranksOps/trustcheck/internal/scraper"
	"github.com/PuerkitoBio/goquery"
)

// fetchDocument GETs rawURL and parses it as HTML, mapping each failure
// onto the error taxonomy.
func fetchDocument(ctx context.Context, f PageFetcher, provider, rawURL, lang string) (*goquery.Document, error) {
	page, err := f.Fetch(ctx, scraper.Request{URL: rawURL, Language: lang})
	if err != nil {
		return nil, &NetworkError{Provider: provider, Err: err}
	}

	if page.StatusCode < 200 || page.StatusCode >= 300 {
		reason := http.StatusText(page.StatusCode)
		if page.Challenge != "" {
			reason = "challenged by " + page.Challenge
		}
		return nil, &ProviderError{Provider: provider, StatusCode: page.StatusCode, Reason: reason}
	}
	if page.Challenge != "" {
		return nil, &ProviderError{Provider: provider, StatusCode: page.StatusCode, Reason: "challenged by " + page.Challenge}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, &ParseError{Provider: provider, Err: err}
	}
	return doc, nil
}

// absoluteURL resolves href against base and keeps it only if the result
// is an http(s) URL with a host.
func absoluteURL(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return u.String(), true
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
