// Package compiler wires the four compiler passes (scanner, resolver,
// type annotator, emitter) behind the Compile, Check and BuildProgram
// entry points the CLI and tests use: a small Result struct returned by
// a handful of top-level functions rather than a long-lived compiler
// object.
package compiler

import (
	"github.com/goatlang/goat/internal/ast"
	"github.com/goatlang/goat/internal/bytecode"
	"github.com/goatlang/goat/internal/diagnostic"
	"github.com/goatlang/goat/internal/emitter"
	"github.com/goatlang/goat/internal/parser"
	"github.com/goatlang/goat/internal/resolver"
	"github.com/goatlang/goat/internal/scanner"
	"github.com/goatlang/goat/internal/stringpool"
	"github.com/goatlang/goat/internal/typecheck"
	"github.com/goatlang/goat/internal/vm"
)

// Result holds every pass's output for one source file, so callers that
// want to inspect intermediate state (tests, `goatvm -disasm`) don't have
// to re-run the pipeline.
type Result struct {
	Diagnostics *diagnostic.Diagnostics
	Program     *ast.Program
	Scan        *scanner.Result
	Vars        *resolver.Result
	Typed       *typecheck.Result
	Funcs       []*bytecode.Function
	Strings     *stringpool.Pool
}

// Compile runs the full pipeline: parse, scan, resolve, annotate, emit.
// It always returns a Result; callers must check
// Result.Diagnostics.HasErrors() before trusting Funcs/Typed.
func Compile(source string) *Result {
	res := &Result{}

	p := parser.New(source)
	prog := p.Parse()
	res.Program = prog
	if p.Diagnostics().HasErrors() {
		res.Diagnostics = p.Diagnostics()
		return res
	}

	scan := scanner.Scan(prog)
	res.Scan = scan

	vars := resolver.Analyze(prog, scan)
	res.Vars = vars

	diags := p.Diagnostics()
	typed := typecheck.Annotate(prog, scan, vars, diags)
	res.Typed = typed
	res.Diagnostics = diags
	if diags.HasErrors() {
		return res
	}

	pool := stringpool.New()
	res.Strings = pool
	res.Funcs = emitter.Emit(scan, vars, typed, pool, diags)

	return res
}

// Check runs parse + resolve + type-check only (no emission):
// diagnostics only, no executable artifact.
func Check(source string) *diagnostic.Diagnostics {
	p := parser.New(source)
	prog := p.Parse()
	if p.Diagnostics().HasErrors() {
		return p.Diagnostics()
	}
	scan := scanner.Scan(prog)
	vars := resolver.Analyze(prog, scan)
	diags := p.Diagnostics()
	typecheck.Annotate(prog, scan, vars, diags)
	return diags
}

// BuildProgram compiles source and, if it compiled cleanly, wraps the
// result into a *vm.Program ready to Run.
func BuildProgram(source string) (*vm.Program, *diagnostic.Diagnostics) {
	res := Compile(source)
	if res.Diagnostics != nil && res.Diagnostics.HasErrors() {
		return nil, res.Diagnostics
	}
	return &vm.Program{
		Functions: res.Funcs,
		ByName:    res.Scan.ByName,
		Types:     res.Typed.Table,
		Strings:   res.Strings,
	}, res.Diagnostics
}
