package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/trustcheck/internal/query"
	"github.com/FranksOps/trustcheck/internal/serp"
)

func placeholderEngine(t *testing.T, concurrency int) *Engine {
	t.Helper()
	c, err := query.New(serp.Placeholder{}, query.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	if err != nil {
		t.Fatalf("failed to build query component: %v", err)
	}
	e, err := New(c, concurrency)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	return e
}

const fakeResults = `[{"title":"Fake result 1","url":"https://example.com"},{"title":"Fake result 2","url":"https://example.com"}]`

func TestRun_DefaultLanguage(t *testing.T) {
	e := placeholderEngine(t, 1)
	resp, err := e.Run(context.Background(), "Mario Rossi", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := json.Marshal(resp)
	want := `{"input":"Mario Rossi","language":"it","results":` + fakeResults + `}`
	if string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}
}

func TestRun_ExplicitLanguage(t *testing.T) {
	e := placeholderEngine(t, 1)
	resp, err := e.Run(context.Background(), "Acme Corp", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := json.Marshal(resp)
	want := `{"input":"Acme Corp","language":"en","results":` + fakeResults + `}`
	if string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}
}

func TestRun_Deterministic(t *testing.T) {
	e := placeholderEngine(t, 1)
	first, _ := e.Run(context.Background(), "Mario Rossi", "it")
	a, _ := json.Marshal(first)
	for i := 0; i < 5; i++ {
		next, err := e.Run(context.Background(), "Mario Rossi", "it")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		b, _ := json.Marshal(next)
		if !bytes.Equal(a, b) {
			t.Fatalf("run %d differs: %s vs %s", i, a, b)
		}
	}
}

func TestRun_EchoesInput(t *testing.T) {
	e := placeholderEngine(t, 1)
	for _, name := range []string{"Mario Rossi", "Acme Corp", "Zoë Ünal", "x"} {
		for _, lang := range []string{"it", "en", "de", "pt-BR"} {
			resp, err := e.Run(context.Background(), name, lang)
			if err != nil {
				t.Fatalf("%q/%q: unexpected error: %v", name, lang, err)
			}
			if resp.Input != name || resp.Language != lang || len(resp.Results) != 2 {
				t.Errorf("%q/%q: unexpected response %+v", name, lang, resp)
			}
		}
	}
}

type recordingExecutor struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	failOn   string
}

func (r *recordingExecutor) Execute(ctx context.Context, name, lang string) (*serp.Response, error) {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	if name == r.failOn {
		return nil, fmt.Errorf("lookup %s: %w", name, serp.ErrNoResults)
	}
	return serp.NewResponse(serp.Query{Name: name, Language: lang}, nil), nil
}

func TestRunBatch_KeepsOrder(t *testing.T) {
	exec := &recordingExecutor{}
	e, _ := New(exec, 4)

	queries := make([]serp.Query, 20)
	for i := range queries {
		queries[i] = serp.Query{Name: fmt.Sprintf("name-%02d", i), Language: "it"}
	}

	out, err := e.RunBatch(context.Background(), queries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(queries) {
		t.Fatalf("expected %d responses, got %d", len(queries), len(out))
	}
	for i, resp := range out {
		if resp.Input != queries[i].Name {
			t.Errorf("position %d: expected %s, got %s", i, queries[i].Name, resp.Input)
		}
	}
	if peak := exec.peak.Load(); peak > 4 {
		t.Errorf("expected at most 4 concurrent lookups, saw %d", peak)
	}
}

func TestRunBatch_FirstError(t *testing.T) {
	e, _ := New(&recordingExecutor{failOn: "broken"}, 2)
	_, err := e.RunBatch(context.Background(), []serp.Query{
		{Name: "ok"}, {Name: "broken"}, {Name: "later"},
	})
	if !errors.Is(err, serp.ErrNoResults) {
		t.Errorf("expected the failing lookup's error, got %v", err)
	}
}

// blockingExecutor fails "broken" once every other lookup is in flight;
// the others wait for cancellation.
type blockingExecutor struct {
	started   chan struct{}
	waiters   int
	cancelled atomic.Int32
	calls     atomic.Int32
}

func (b *blockingExecutor) Execute(ctx context.Context, name, lang string) (*serp.Response, error) {
	b.calls.Add(1)
	if name == "broken" {
		for i := 0; i < b.waiters; i++ {
			<-b.started
		}
		return nil, fmt.Errorf("lookup %s: %w", name, serp.ErrNoResults)
	}

	b.started <- struct{}{}
	select {
	case <-ctx.Done():
		b.cancelled.Add(1)
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return serp.NewResponse(serp.Query{Name: name, Language: lang}, nil), nil
	}
}

func TestRunBatch_FirstErrorCancelsPending(t *testing.T) {
	exec := &blockingExecutor{started: make(chan struct{}, 2), waiters: 2}
	e, _ := New(exec, 3)

	start := time.Now()
	_, err := e.RunBatch(context.Background(), []serp.Query{
		{Name: "slow-1"}, {Name: "broken"}, {Name: "slow-2"},
	})
	if !errors.Is(err, serp.ErrNoResults) {
		t.Fatalf("expected the failing lookup's error, got %v", err)
	}
	if got := exec.cancelled.Load(); got != 2 {
		t.Errorf("expected both in-flight lookups to see cancellation, got %d", got)
	}
	if time.Since(start) > 4*time.Second {
		t.Error("RunBatch waited for lookups that should have been cancelled")
	}
}

func TestRunBatch_FirstErrorSkipsQueued(t *testing.T) {
	exec := &blockingExecutor{started: make(chan struct{}), waiters: 0}
	e, _ := New(exec, 1)

	_, err := e.RunBatch(context.Background(), []serp.Query{
		{Name: "broken"}, {Name: "queued-1"}, {Name: "queued-2"},
	})
	if !errors.Is(err, serp.ErrNoResults) {
		t.Fatalf("expected the failing lookup's error, got %v", err)
	}
	if got := exec.calls.Load(); got != 1 {
		t.Errorf("expected queued lookups to be skipped after the failure, got %d calls", got)
	}
}

func TestNew_NilExecutor(t *testing.T) {
	if _, err := New(nil, 1); err == nil {
		t.Error("expected error for nil executor")
	}
}
