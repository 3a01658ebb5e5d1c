package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gardar/redactra/pkg/geom"
)

// ErrWorkerClosed is returned for calls issued after Close.
var ErrWorkerClosed = errors.New("engine worker closed")

// request is one unit of work executed on the worker goroutine.
type request func(backend Engine)

// Worker owns a backend Engine and executes every call on a single goroutine.
// Worker itself implements Engine, so resolvers never know whether they talk to
// the backend directly or through the worker.
//
// A caller whose context is cancelled stops waiting and gets ctx.Err(), but a call the
// worker has already picked up still runs to completion; its result is dropped.
type Worker struct {
	backend Engine
	reqs    chan request
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewWorker starts a worker goroutine for backend.
func NewWorker(backend Engine) *Worker {
	w := &Worker{
		backend: backend,
		reqs:    make(chan request),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// loop executes requests one at a time until Close.
func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case req := <-w.reqs:
			req(w.backend)
		}
	}
}

// Close stops the worker and waits for the in-flight call to finish.
func (w *Worker) Close() error {
	w.once.Do(func() { close(w.done) })
	w.wg.Wait()
	return nil
}

// call sends fn to the worker goroutine and waits for its result.
func call[T any](ctx context.Context, w *Worker, fn func(ctx context.Context, backend Engine) (T, error)) (T, error) {
	var zero T

	type result struct {
		val T
		err error
	}
	// Buffered so the worker never blocks on a caller that stopped waiting
	out := make(chan result, 1)

	// The backend call is not cancellable once started
	bctx := context.WithoutCancel(ctx)
	req := func(backend Engine) {
		v, err := fn(bctx, backend)
		out <- result{val: v, err: err}
	}

	select {
	case <-w.done:
		return zero, ErrWorkerClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	case w.reqs <- req:
	}

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-out:
		return r.val, r.err
	}
}

// PageCount implements Engine.
func (w *Worker) PageCount(ctx context.Context) (int, error) {
	return call(ctx, w, func(ctx context.Context, b Engine) (int, error) {
		return b.PageCount(ctx)
	})
}

// RenderPage implements Engine.
func (w *Worker) RenderPage(ctx context.Context, index int, scale float64) ([]byte, error) {
	return call(ctx, w, func(ctx context.Context, b Engine) ([]byte, error) {
		return b.RenderPage(ctx, index, scale)
	})
}

// PageBounds implements Engine.
func (w *Worker) PageBounds(ctx context.Context, index int) (geom.Box, error) {
	return call(ctx, w, func(ctx context.Context, b Engine) (geom.Box, error) {
		return b.PageBounds(ctx, index)
	})
}

// PageWords implements Engine.
func (w *Worker) PageWords(ctx context.Context, index int) ([]Word, error) {
	return call(ctx, w, func(ctx context.Context, b Engine) ([]Word, error) {
		return b.PageWords(ctx, index)
	})
}

// PageLines implements Engine.
func (w *Worker) PageLines(ctx context.Context, index int) ([]Line, error) {
	return call(ctx, w, func(ctx context.Context, b Engine) ([]Line, error) {
		return b.PageLines(ctx, index)
	})
}

// SearchPage implements Engine.
func (w *Worker) SearchPage(ctx context.Context, index int, literal string) ([][]geom.Quad, error) {
	return call(ctx, w, func(ctx context.Context, b Engine) ([][]geom.Quad, error) {
		return b.SearchPage(ctx, index, literal)
	})
}

// Metadata implements Engine.
func (w *Worker) Metadata(ctx context.Context) (map[string]string, error) {
	return call(ctx, w, func(ctx context.Context, b Engine) (map[string]string, error) {
		return b.Metadata(ctx)
	})
}

// ExportDocument implements Engine.
func (w *Worker) ExportDocument(ctx context.Context, anns []Annotation, permanent bool, strip []string) ([]byte, error) {
	return call(ctx, w, func(ctx context.Context, b Engine) ([]byte, error) {
		return b.ExportDocument(ctx, anns, permanent, strip)
	})
}

// LoadExistingAnnotations implements Engine.
func (w *Worker) LoadExistingAnnotations(ctx context.Context, file []byte) ([]Annotation, error) {
	return call(ctx, w, func(ctx context.Context, b Engine) ([]Annotation, error) {
		return b.LoadExistingAnnotations(ctx, file)
	})
}

// Generation is a last-request-wins counter. Each triggering event takes a new token;
// a result is applied only if its token is still current when it arrives.
type Generation struct {
	n atomic.Uint64
}

// Next invalidates all earlier tokens and returns a new one.
func (g *Generation) Next() uint64 {
	return g.n.Add(1)
}

// Current reports whether token is the most recently issued one.
func (g *Generation) Current(token uint64) bool {
	return g.n.Load() == token
}
