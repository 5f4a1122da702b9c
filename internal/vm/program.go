// Package vm implements the execution engine: the per-thread
// fetch-decode-execute loop, the frame/operand stack memory model, the
// closure and dynamic-dispatch calling convention, and the
// native-function handlers that drive the heap, channel manager and
// goroutine pool.
package vm

import (
	"github.com/goatlang/goat/internal/bytecode"
	"github.com/goatlang/goat/internal/stringpool"
	"github.com/goatlang/goat/internal/types"
)

// Program is the frozen, immutable output of compilation: everything a
// Runtime needs to execute a source file, handed in as a single value
// rather than relying on process-wide singletons.
type Program struct {
	Functions []*bytecode.Function
	ByName    map[string]uint64
	Types     *types.Table
	Strings   *stringpool.Pool
}

// MainIndex looks up the top-level function called name (Runtime.Run
// passes Config.MainFunc), reporting false if the program declares none.
func (p *Program) MainIndex(name string) (uint64, bool) {
	idx, ok := p.ByName[name]
	return idx, ok
}

// Config holds the four adjustable runtime parameters.
type Config struct {
	HeapSize         uint64 // bytes, default 64 MiB
	CallStackSize    uint64 // bytes per thread, default 8 KiB
	OperandStackSize uint64 // bytes per thread, default 1 KiB
	MainFunc         string // default "main"
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		HeapSize:         64 * 1024 * 1024,
		CallStackSize:    8 * 1024,
		OperandStackSize: 1024,
		MainFunc:         "main",
	}
}
