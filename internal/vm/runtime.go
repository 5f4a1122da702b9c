package vm

import (
	"io"

	"github.com/goatlang/goat/internal/chanmgr"
	"github.com/goatlang/goat/internal/goroutine"
	"github.com/goatlang/goat/internal/heap"
)

// nativeFunc is the signature every native-function handler implements:
// it freely pops its arguments from th's operand stack and pushes its
// results.
type nativeFunc func(rt *Runtime, th *Thread) error

// Runtime is the shared, process-lifetime context every goroutine's
// Thread reads through: heap, channel manager, goroutine pool, and the
// frozen program produced by compilation. It is passed explicitly rather
// than kept in package-level singletons.
type Runtime struct {
	Program *Program
	Config  Config
	Heap    *heap.Heap
	Channels *chanmgr.Manager
	Pool    *goroutine.Pool
	Stdout  io.Writer

	natives map[uint64]nativeFunc
}

// New constructs a Runtime ready to execute prog under cfg, writing
// native print output to out.
func New(prog *Program, cfg Config, out io.Writer) *Runtime {
	rt := &Runtime{
		Program:  prog,
		Config:   cfg,
		Heap:     heap.New(cfg.HeapSize),
		Channels: chanmgr.New(),
		Pool:     goroutine.New(),
		Stdout:   out,
	}
	rt.natives = registerNatives()
	return rt
}

// Run locates the program's entry point (Config.MainFunc, "main" by
// default) and executes it on a fresh goroutine, then blocks until the
// entire goroutine pool (main plus every `go` spawned from it) has
// finished.
func (rt *Runtime) Run() error {
	idx, ok := rt.Program.MainIndex(rt.Config.MainFunc)
	if !ok {
		return newErr(KindName, "no function named %q", rt.Config.MainFunc)
	}
	fn := rt.Program.Functions[idx]
	main := newThread(rt)
	main.code = fn.Code
	main.pc = 0
	if err := main.pushFrame(frame{
		functionIndex: idx,
		returnPC:      -1,
		previousFP:    -1,
		locals:        make([]uint64, fn.Varc),
	}); err != nil {
		return err
	}

	rt.Pool.Go(main.run)
	return rt.Pool.Wait()
}
