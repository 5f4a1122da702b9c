// Package resolver implements the second compiler pass: for every function
// it computes a VariableFrame recording which names are parameters,
// locals, or captures, and categorises each as bound, free, or escaped.
package resolver

import (
	"github.com/goatlang/goat/internal/ast"
	"github.com/goatlang/goat/internal/native"
	"github.com/goatlang/goat/internal/scanner"
)

// Category is the storage class a name resolves to within one frame.
type Category int

const (
	// Bound names live in a stack slot local to this frame.
	Bound Category = iota
	// Free names are referenced here but declared in an enclosing frame;
	// they occupy a capture slot populated from the closure at call time.
	Free
	// Escaped names are declared here but captured by an inner function,
	// so they live in a heap box and are accessed through a pointer kept
	// in their stack slot.
	Escaped
)

func (c Category) String() string {
	switch c {
	case Bound:
		return "bound"
	case Free:
		return "free"
	case Escaped:
		return "escaped"
	default:
		return "unknown"
	}
}

// Variable is one entry in a VariableFrame's name table. It is shared by
// pointer so that a later capture can promote it from Bound to Escaped in
// place.
type Variable struct {
	Name     string
	Category Category
	Slot     int
}

// VariableFrame is the per-function result of the analysis: insertion
// ordered lists matching the frame's slot layout (captures, then
// parameters, then locals), plus a name lookup.
type VariableFrame struct {
	Captures []string
	Params   []string
	Locals   []string

	vars map[string]*Variable

	Capc uint16
	Argc uint16
	Varc uint16
}

func newFrame() *VariableFrame {
	return &VariableFrame{vars: make(map[string]*Variable)}
}

// Lookup returns the Variable bound to name in this frame, if any.
func (f *VariableFrame) Lookup(name string) (*Variable, bool) {
	v, ok := f.vars[name]
	return v, ok
}

// AllVars returns every Variable known to this frame, in no particular
// order; used by the emitter to build a function's pointer map.
func (f *VariableFrame) AllVars() []*Variable {
	out := make([]*Variable, 0, len(f.vars))
	for _, v := range f.vars {
		out = append(out, v)
	}
	return out
}

func (f *VariableFrame) declare(name string, cat Category, list *[]string) *Variable {
	if v, ok := f.vars[name]; ok {
		return v
	}
	v := &Variable{Name: name, Category: cat}
	f.vars[name] = v
	*list = append(*list, name)
	return v
}

func (f *VariableFrame) assignSlots() {
	slot := 0
	assign := func(names []string) {
		for _, n := range names {
			f.vars[n].Slot = slot
			slot++
		}
	}
	assign(f.Captures)
	assign(f.Params)
	assign(f.Locals)
	f.Capc = uint16(len(f.Captures))
	f.Argc = uint16(len(f.Params))
	f.Varc = uint16(slot)
}

// propagateTo pushes every name still Free in f up into enclosing,
// promoting an existing Bound entry there to Escaped the first time an
// inner function captures it.
func (f *VariableFrame) propagateTo(enclosing *VariableFrame) {
	for _, name := range f.Captures {
		v := f.vars[name]
		if v.Category != Free {
			continue
		}
		if outer, ok := enclosing.vars[name]; ok {
			if outer.Category == Bound {
				outer.Category = Escaped
			}
			continue
		}
		enclosing.declare(name, Free, &enclosing.Captures)
	}
}

// Result is the output of analysis: one VariableFrame per function, keyed
// by the function's own parse-node identity.
type Result struct {
	Frames map[ast.NodeID]*VariableFrame
}

type analyzer struct {
	scan   *scanner.Result
	result *Result
	stack  []*VariableFrame
}

// Analyze runs the variable analyzer over prog's top-level function
// declarations, recursing into nested function literals as they are
// encountered. scan supplies the name -> index table used to tell a call
// to a top-level function apart from a capture reference.
func Analyze(prog *ast.Program, scan *scanner.Result) *Result {
	a := &analyzer{scan: scan, result: &Result{Frames: make(map[ast.NodeID]*VariableFrame)}}
	for _, decl := range prog.Functions {
		a.analyzeFunc(decl)
	}
	return a.result
}

func (a *analyzer) current() *VariableFrame { return a.stack[len(a.stack)-1] }

func (a *analyzer) analyzeFunc(fn ast.Func) *VariableFrame {
	frame := newFrame()
	a.stack = append(a.stack, frame)

	for _, p := range fn.FuncSig().Params {
		frame.declare(p.Name, Bound, &frame.Params)
	}
	a.visitBlock(fn.FuncBody())

	frame.assignSlots()
	a.result.Frames[fn.NodeID()] = frame

	a.stack = a.stack[:len(a.stack)-1]
	if len(a.stack) > 0 {
		frame.propagateTo(a.current())
	}
	return frame
}

func (a *analyzer) reference(name string) {
	cur := a.current()
	if _, ok := cur.Lookup(name); ok {
		return
	}
	if _, ok := a.scan.ByName[name]; ok {
		return
	}
	if _, ok := native.BuiltinCallName[name]; ok {
		return
	}
	cur.declare(name, Free, &cur.Captures)
}

func (a *analyzer) visitBlock(b *ast.Block) {
	if b == nil {
		return
	}
	for _, stmt := range b.Stmts {
		a.visitStmt(stmt)
	}
}

func (a *analyzer) visitStmt(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.Block:
		a.visitBlock(s)
	case *ast.VarDecl:
		if s.Value != nil {
			a.visitExpr(s.Value)
		}
		a.current().declare(s.Name, Bound, &a.current().Locals)
	case *ast.AssignStmt:
		a.visitTarget(s.Target)
		a.visitExpr(s.Value)
	case *ast.SendStmt:
		a.visitExpr(s.Channel)
		a.visitExpr(s.Value)
	case *ast.IfStmt:
		a.visitExpr(s.Cond)
		a.visitBlock(s.Then)
		if s.Else != nil {
			a.visitStmt(s.Else)
		}
	case *ast.ForStmt:
		if s.Cond != nil {
			a.visitExpr(s.Cond)
		}
		a.visitBlock(s.Body)
	case *ast.ReturnStmt:
		if s.Value != nil {
			a.visitExpr(s.Value)
		}
	case *ast.GoStmt:
		a.visitExpr(s.Call)
	case *ast.ExprStmt:
		a.visitExpr(s.Expr)
	}
}

// visitTarget resolves the left-hand side of an assignment. Only a bare
// identifier target is supported; declarations bind a single name, and
// assignment targets stay scalar names to match.
func (a *analyzer) visitTarget(target ast.Expression) {
	if id, ok := target.(*ast.Ident); ok {
		a.reference(id.Name)
		return
	}
	a.visitExpr(target)
}

func (a *analyzer) visitExpr(expr ast.Expression) {
	switch e := expr.(type) {
	case nil:
		return
	case *ast.Ident:
		a.reference(e.Name)
	case *ast.FuncLit:
		a.analyzeFunc(e)
	case *ast.BinaryExpr:
		a.visitExpr(e.Left)
		a.visitExpr(e.Right)
	case *ast.UnaryExpr:
		a.visitExpr(e.Operand)
	case *ast.CallExpr:
		a.visitExpr(e.Fn)
		for _, arg := range e.Args {
			a.visitExpr(arg)
		}
	case *ast.MakeExpr:
		if e.Capacity != nil {
			a.visitExpr(e.Capacity)
		}
	}
}
