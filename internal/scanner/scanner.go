// Package scanner implements the first compiler pass: a top-down walk of
// the parse tree that assigns every function declaration and function
// literal a dense index before any later pass inspects bodies in detail.
package scanner

import "github.com/goatlang/goat/internal/ast"

// Result is the output of a scan: a dense numbering of every function in
// the program, keyed both by name (for top-level declarations) and by
// parse-node identity (for every function, named or not).
type Result struct {
	// ByNode maps a function's own NodeID (FunctionDecl or FuncLit) to its
	// dense index in Funcs.
	ByNode map[ast.NodeID]uint64
	// ByName maps a top-level function's name to its index.
	ByName map[string]uint64
	// Funcs lists every scanned function in discovery order; index i here
	// is the function's dense index.
	Funcs []ast.Func
}

// Scan walks prog top-down, recursing into nested function literals
// without otherwise inspecting statement bodies.
func Scan(prog *ast.Program) *Result {
	r := &Result{
		ByNode: make(map[ast.NodeID]uint64),
		ByName: make(map[string]uint64),
	}
	for _, decl := range prog.Functions {
		r.visitFunc(decl)
	}
	return r
}

func (r *Result) visitFunc(fn ast.Func) uint64 {
	idx := uint64(len(r.Funcs))
	r.Funcs = append(r.Funcs, fn)
	r.ByNode[fn.NodeID()] = idx
	if name := fn.FuncName(); name != "" {
		r.ByName[name] = idx
	}
	r.visitBlock(fn.FuncBody())
	return idx
}

// visitBlock recurses only far enough to find nested function literals;
// it does not resolve names or categorise variables.
func (r *Result) visitBlock(b *ast.Block) {
	if b == nil {
		return
	}
	for _, stmt := range b.Stmts {
		r.visitStmt(stmt)
	}
}

func (r *Result) visitStmt(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.Block:
		r.visitBlock(s)
	case *ast.VarDecl:
		r.visitExpr(s.Value)
	case *ast.AssignStmt:
		r.visitExpr(s.Target)
		r.visitExpr(s.Value)
	case *ast.SendStmt:
		r.visitExpr(s.Channel)
		r.visitExpr(s.Value)
	case *ast.IfStmt:
		r.visitExpr(s.Cond)
		r.visitBlock(s.Then)
		if s.Else != nil {
			r.visitStmt(s.Else)
		}
	case *ast.ForStmt:
		r.visitExpr(s.Cond)
		r.visitBlock(s.Body)
	case *ast.ReturnStmt:
		r.visitExpr(s.Value)
	case *ast.GoStmt:
		r.visitExpr(s.Call)
	case *ast.ExprStmt:
		r.visitExpr(s.Expr)
	}
}

func (r *Result) visitExpr(expr ast.Expression) {
	switch e := expr.(type) {
	case nil:
		return
	case *ast.FuncLit:
		r.visitFunc(e)
	case *ast.BinaryExpr:
		r.visitExpr(e.Left)
		r.visitExpr(e.Right)
	case *ast.UnaryExpr:
		r.visitExpr(e.Operand)
	case *ast.CallExpr:
		r.visitExpr(e.Fn)
		for _, a := range e.Args {
			r.visitExpr(a)
		}
	case *ast.MakeExpr:
		r.visitExpr(e.Capacity)
	}
}
