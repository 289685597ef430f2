package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Response is the part of a fetched page the detectors look at.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector reports whether a response is a bot challenge or block page,
// and which vendor served it.
type Detector func(Response) (detected bool, source string)

// DefaultDetectors covers the common bot walls plus the challenge pages of
// the search engines we scrape.
func DefaultDetectors() []Detector {
	return []Detector{
		detectBing,
		detectDuckDuckGo,
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Analyze runs r through detectors in order and returns the source of the
// first one that fires, or "" when the page looks like real content.
func Analyze(r Response, detectors []Detector) string {
	for _, d := range detectors {
		if detected, source := d(r); detected {
			return source
		}
	}
	return ""
}

func header(r Response, key string) string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get(key)
}

func containsAny(body []byte, needles ...string) bool {
	for _, n := range needles {
		if bytes.Contains(body, []byte(n)) {
			return true
		}
	}
	return false
}

// detectBing catches the captcha interstitial Bing serves with a 200.
func detectBing(r Response) (bool, string) {
	if containsAny(r.Body, "b_captcha", "/turing/captcha/challenge", "captcha-challenge-form") {
		return true, "Bing"
	}
	return false, ""
}

// detectDuckDuckGo catches the html endpoint's anomaly (bot) modal.
func detectDuckDuckGo(r Response) (bool, string) {
	if containsAny(r.Body, "anomaly-modal", "Unfortunately, bots use DuckDuckGo too") {
		return true, "DuckDuckGo"
	}
	return false, ""
}

func detectCloudflare(r Response) (bool, string) {
	if r.StatusCode != http.StatusForbidden && r.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(header(r, "Server")), "cloudflare") {
		return true, "Cloudflare"
	}
	if containsAny(r.Body, "cf-browser-verification", "cloudflare-nginx", "cf-turnstile", "Attention Required! | Cloudflare") {
		return true, "Cloudflare"
	}
	return false, ""
}

func detectAkamai(r Response) (bool, string) {
	if r.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(header(r, "Server")), "akamai") {
		return true, "Akamai"
	}
	// generic "Access Denied ... Reference #" block page
	if containsAny(r.Body, "Reference #") && containsAny(r.Body, "Access Denied") {
		return true, "Akamai"
	}
	return false, ""
}

func detectDataDome(r Response) (bool, string) {
	if r.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(header(r, "Server")), "datadome") ||
		header(r, "X-DataDome") != "" || header(r, "X-DataDome-Response") != "" {
		return true, "DataDome"
	}
	if containsAny(r.Body, "geo.captcha-delivery.com", "datadome") {
		return true, "DataDome"
	}
	return false, ""
}

func detectPerimeterX(r Response) (bool, string) {
	if r.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if header(r, "X-Px-Captcha") != "" {
		return true, "PerimeterX"
	}
	if containsAny(r.Body, "client.perimeterx.net", "px-captcha", "_pxBlock") {
		return true, "PerimeterX"
	}
	return false, ""
}
