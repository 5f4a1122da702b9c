// Package goroutine implements the runtime's goroutine pool: one OS
// thread per spawned goroutine, awaited as a single unit so the host can
// observe the moment the pool empties.
package goroutine

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool registers every goroutine this program run spawns (the main
// goroutine plus every `go f(...)`) and blocks until they have all
// returned, aborted or not. errgroup.Group already implements exactly
// this registration/wait contract, so the pool is a thin wrapper rather
// than a hand-rolled mutex-guarded set with its own condition variable.
type Pool struct {
	group errgroup.Group
}

// New returns an empty pool for one program run.
func New() *Pool {
	return &Pool{}
}

// Go registers fn as a new goroutine and starts it immediately on its
// own OS thread. fn's error, if any, is fatal: the first one returned by
// any goroutine is surfaced from Wait.
func (p *Pool) Go(fn func() error) {
	p.group.Go(func() error {
		runtime.LockOSThread()
		return fn()
	})
}

// Wait blocks until every goroutine registered with Go has returned,
// matching the "goroutine pool empty" termination condition. It returns
// the first non-nil error reported by any goroutine, if any.
func (p *Pool) Wait() error {
	return p.group.Wait()
}
