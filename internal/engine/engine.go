// Package engine is the entry point callers use to look up a name. It
// hands each lookup to a query Executor unchanged.
package engine

import (
	"context"
	"errors"

	"github.com/FranksOps/trustcheck/internal/serp"
	"golang.org/x/sync/errgroup"
)

// Executor runs a single lookup. *query.Component satisfies it.
type Executor interface {
	Execute(ctx context.Context, name, language string) (*serp.Response, error)
}

// Engine dispatches lookups to an Executor.
type Engine struct {
	exec        Executor
	concurrency int
}

// New returns an Engine. concurrency bounds RunBatch; values below 1 mean
// one lookup at a time.
func New(exec Executor, concurrency int) (*Engine, error) {
	if exec == nil {
		return nil, errors.New("engine: executor is nil")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{exec: exec, concurrency: concurrency}, nil
}

// Run looks up name in language. An empty language means
// serp.DefaultLanguage. Results and errors come back from the Executor as is.
func (e *Engine) Run(ctx context.Context, name, language string) (*serp.Response, error) {
	return e.exec.Execute(ctx, name, language)
}

// RunBatch runs every query and returns the responses in input order.
// The first error cancels the lookups still pending and is returned.
func (e *Engine) RunBatch(ctx context.Context, queries []serp.Query) ([]*serp.Response, error) {
	out := make([]*serp.Response, len(queries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, q := range queries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			resp, err := e.Run(ctx, q.Name, q.Language)
			if err != nil {
				return err
			}
			out[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
