package query

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/FranksOps/trustcheck/internal/serp"
)

type stubProvider struct {
	results []serp.Result
	err     error
	calls   int
	last    serp.Query
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Search(_ context.Context, q serp.Query) ([]serp.Result, error) {
	s.calls++
	s.last = q
	return s.results, s.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestExecute_Placeholder(t *testing.T) {
	c, err := New(serp.Placeholder{}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := c.Execute(context.Background(), "Mario Rossi", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Input != "Mario Rossi" || resp.Language != "it" {
		t.Errorf("unexpected echo: %+v", resp)
	}
	if len(resp.Results) != 2 || resp.Results[0].Title != "Fake result 1" || resp.Results[1].Title != "Fake result 2" {
		t.Errorf("unexpected results: %+v", resp.Results)
	}
}

func TestExecute_CallsProviderOnce(t *testing.T) {
	p := &stubProvider{results: []serp.Result{{Title: "a", URL: "https://a.example"}}}
	c, _ := New(p, WithLogger(quietLogger()))

	if _, err := c.Execute(context.Background(), "Acme Corp", "en"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 1 {
		t.Errorf("expected 1 provider call, got %d", p.calls)
	}
	if p.last != (serp.Query{Name: "Acme Corp", Language: "en"}) {
		t.Errorf("unexpected query passed to provider: %+v", p.last)
	}
}

func TestExecute_LanguageEchoedUnchanged(t *testing.T) {
	c, _ := New(serp.Placeholder{}, WithLogger(quietLogger()))
	resp, err := c.Execute(context.Background(), "Acme Corp", "en-gb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Language != "en-gb" {
		t.Errorf("expected language echoed as en-gb, got %q", resp.Language)
	}
}

func TestExecute_InvalidQuery(t *testing.T) {
	p := &stubProvider{}
	c, _ := New(p, WithLogger(quietLogger()))

	for _, name := range []string{"", "   ", "\t\n"} {
		if _, err := c.Execute(context.Background(), name, "it"); !errors.Is(err, serp.ErrInvalidQuery) {
			t.Errorf("name %q: expected ErrInvalidQuery, got %v", name, err)
		}
	}
	if _, err := c.Execute(context.Background(), "Mario Rossi", "not a language"); !errors.Is(err, serp.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for malformed language, got %v", err)
	}
	if p.calls != 0 {
		t.Errorf("provider must not be called for invalid queries, got %d calls", p.calls)
	}
}

func TestExecute_Normalizes(t *testing.T) {
	p := &stubProvider{results: []serp.Result{
		{Title: "  first  ", URL: "https://one.example/a"},
		{Title: "no scheme", URL: "one.example/b"},
		{Title: "mail", URL: "mailto:someone@example.com"},
		{Title: "second", URL: " http://two.example "},
	}}
	c, _ := New(p, WithLogger(quietLogger()))

	resp, err := c.Execute(context.Background(), "Mario Rossi", "it")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []serp.Result{
		{Title: "first", URL: "https://one.example/a"},
		{Title: "second", URL: "http://two.example"},
	}
	if len(resp.Results) != len(want) {
		t.Fatalf("expected %d results, got %+v", len(want), resp.Results)
	}
	for i := range want {
		if resp.Results[i] != want[i] {
			t.Errorf("result %d: expected %+v, got %+v", i, want[i], resp.Results[i])
		}
	}
}

func TestExecute_Empty(t *testing.T) {
	p := &stubProvider{}
	c, _ := New(p, WithLogger(quietLogger()))
	resp, err := c.Execute(context.Background(), "Nobody", "it")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("expected empty non-nil results, got %#v", resp.Results)
	}

	c, _ = New(p, WithLogger(quietLogger()), WithFailOnEmpty(true))
	if _, err := c.Execute(context.Background(), "Nobody", "it"); !errors.Is(err, serp.ErrNoResults) {
		t.Errorf("expected ErrNoResults, got %v", err)
	}
}

func TestExecute_ProviderErrorSurfaced(t *testing.T) {
	provErr := &serp.ProviderError{Provider: "stub", StatusCode: 503, Reason: "Service Unavailable"}
	p := &stubProvider{err: provErr}
	c, _ := New(p, WithLogger(quietLogger()))

	_, err := c.Execute(context.Background(), "Mario Rossi", "it")
	var got *serp.ProviderError
	if !errors.As(err, &got) || got != provErr {
		t.Errorf("expected provider error unchanged, got %v", err)
	}
	if p.calls != 1 {
		t.Errorf("expected no retries, got %d calls", p.calls)
	}
}

func TestExecute_Logs(t *testing.T) {
	var buf bytes.Buffer
	c, _ := New(serp.Placeholder{}, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	if _, err := c.Execute(context.Background(), "Mario Rossi", "it"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	line := buf.String()
	for _, want := range []string{"query executed", "provider=placeholder", "results=2", "id="} {
		if !strings.Contains(line, want) {
			t.Errorf("expected log line to contain %q, got %q", want, line)
		}
	}
}

func TestNew_NilProvider(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("expected error for nil provider")
	}
}
