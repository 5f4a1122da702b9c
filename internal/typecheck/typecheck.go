// Package typecheck implements the third compiler pass: it assigns a
// canonical interned type to every expression and declaration node and
// reports name and type errors through a diagnostic sink.
package typecheck

import (
	"github.com/goatlang/goat/internal/ast"
	"github.com/goatlang/goat/internal/diagnostic"
	"github.com/goatlang/goat/internal/native"
	"github.com/goatlang/goat/internal/resolver"
	"github.com/goatlang/goat/internal/scanner"
	"github.com/goatlang/goat/internal/token"
	"github.com/goatlang/goat/internal/types"
)

// Result is the output of type annotation: the interned type table and a
// map from every typed expression node to its type index.
type Result struct {
	Table *types.Table
	// Types maps an expression node's ID to its interned type index.
	Types map[ast.NodeID]uint64
	// FuncTypes maps a function node's ID to its type index: the Function
	// type, or a Closure wrapping it for a literal with captures.
	FuncTypes map[ast.NodeID]uint64
}

type scopeEntry struct {
	typeIndex uint64
}

// scope is a parent-chained symbol table, one per function plus one per
// nested block.
type scope struct {
	parent *scope
	names  map[string]scopeEntry
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: make(map[string]scopeEntry)}
}

func (s *scope) define(name string, typeIdx uint64) {
	s.names[name] = scopeEntry{typeIndex: typeIdx}
}

func (s *scope) lookup(name string) (scopeEntry, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if e, ok := cur.names[name]; ok {
			return e, true
		}
	}
	return scopeEntry{}, false
}

type annotator struct {
	scan     *scanner.Result
	vars     *resolver.Result
	diags    *diagnostic.Diagnostics
	table    *types.Table
	result   *Result
	funcTyps []uint64 // index in scan.Funcs -> Function type index
}

// Annotate runs the type annotator over prog using the outputs of the
// scanner and resolver passes. Errors are recorded on diags; annotation
// continues best-effort after a type error so the caller sees every
// diagnostic in one pass.
func Annotate(prog *ast.Program, scan *scanner.Result, vars *resolver.Result, diags *diagnostic.Diagnostics) *Result {
	table := types.NewTable()
	a := &annotator{
		scan:  scan,
		vars:  vars,
		diags: diags,
		table: table,
		result: &Result{
			Table:     table,
			Types:     make(map[ast.NodeID]uint64),
			FuncTypes: make(map[ast.NodeID]uint64),
		},
	}

	// Pre-register every function's signature type so a forward call to a
	// later top-level function resolves even before its body is visited.
	a.funcTyps = make([]uint64, len(scan.Funcs))
	for i, fn := range scan.Funcs {
		a.funcTyps[i] = a.signatureType(fn.FuncSig())
	}

	root := newScope(nil)
	for _, decl := range prog.Functions {
		a.annotateFunc(decl, root)
	}
	return a.result
}

func (a *annotator) signatureType(sig *ast.FuncSignature) uint64 {
	var args []uint64
	for _, p := range sig.Params {
		args = append(args, a.resolveTypeExpr(p.Type))
	}
	var ret *uint64
	if sig.Result != nil {
		r := a.resolveTypeExpr(sig.Result)
		ret = &r
	}
	return a.table.FunctionType(args, ret)
}

// resolveTypeExpr interns the type named by a syntactic TypeExpr. Function
// slots are wrapped in Callable so a closure address may be stored there.
func (a *annotator) resolveTypeExpr(t ast.TypeExpr) uint64 {
	switch tt := t.(type) {
	case *ast.NamedType:
		switch tt.Name {
		case "Int":
			return types.IntIndex
		case "Float":
			return types.FloatIndex
		case "Bool":
			return types.BoolIndex
		case "String":
			return types.StringIndex
		default:
			line, col := tt.Pos()
			a.diags.ErrorfKind(diagnostic.KindType, line, col, "unknown type %q", tt.Name)
			return types.IntIndex
		}
	case *ast.ChanType:
		elem := a.resolveTypeExpr(tt.Elem)
		return a.table.ChannelType(elem)
	case *ast.FuncType:
		var args []uint64
		for _, p := range tt.Params {
			args = append(args, a.resolveTypeExpr(p))
		}
		var ret *uint64
		if tt.Result != nil {
			r := a.resolveTypeExpr(tt.Result)
			ret = &r
		}
		fnType := a.table.FunctionType(args, ret)
		return a.table.CallableType(fnType)
	default:
		return types.IntIndex
	}
}

func (a *annotator) annotateFunc(fn ast.Func, parent *scope) {
	idx := a.scan.ByNode[fn.NodeID()]
	fnType := a.funcTyps[idx]

	frame := a.vars.Frames[fn.NodeID()]
	capc := uint16(0)
	if frame != nil {
		capc = frame.Capc
	}
	resultType := fnType
	if capc > 0 {
		resultType = a.table.ClosureType(fnType, capc)
	}
	a.result.FuncTypes[fn.NodeID()] = resultType

	fnScope := newScope(parent)
	for _, p := range fn.FuncSig().Params {
		fnScope.define(p.Name, a.resolveTypeExpr(p.Type))
	}
	a.annotateBlock(fn.FuncBody(), fnScope)
}

func (a *annotator) annotateBlock(b *ast.Block, parent *scope) {
	if b == nil {
		return
	}
	s := newScope(parent)
	for _, stmt := range b.Stmts {
		a.annotateStmt(stmt, s)
	}
}

func (a *annotator) annotateStmt(stmt ast.Statement, s *scope) {
	switch st := stmt.(type) {
	case *ast.Block:
		a.annotateBlock(st, s)
	case *ast.VarDecl:
		var declType uint64
		if st.Value != nil {
			declType = a.annotateExpr(st.Value, s)
		}
		if st.Type != nil {
			declType = a.resolveTypeExpr(st.Type)
		}
		s.define(st.Name, declType)
	case *ast.AssignStmt:
		targetType := a.annotateExpr(st.Target, s)
		valueType := a.annotateExpr(st.Value, s)
		if !a.assignable(targetType, valueType) {
			line, col := st.Pos()
			a.diags.ErrorfKind(diagnostic.KindType, line, col, "cannot assign value of differing type to %s", describeExpr(st.Target))
		}
	case *ast.SendStmt:
		chType := a.annotateExpr(st.Channel, s)
		a.annotateExpr(st.Value, s)
		ct := a.table.Get(chType)
		if ct.Kind != types.Channel {
			line, col := st.Pos()
			a.diags.ErrorfKind(diagnostic.KindType, line, col, "send target is not a channel")
		}
	case *ast.IfStmt:
		a.annotateExpr(st.Cond, s)
		a.annotateBlock(st.Then, s)
		if st.Else != nil {
			a.annotateStmt(st.Else, s)
		}
	case *ast.ForStmt:
		if st.Cond != nil {
			a.annotateExpr(st.Cond, s)
		}
		a.annotateBlock(st.Body, s)
	case *ast.ReturnStmt:
		if st.Value != nil {
			a.annotateExpr(st.Value, s)
		}
	case *ast.GoStmt:
		a.annotateExpr(st.Call, s)
	case *ast.ExprStmt:
		a.annotateExpr(st.Expr, s)
	}
}

func (a *annotator) annotateExpr(expr ast.Expression, s *scope) uint64 {
	if expr == nil {
		return types.IntIndex
	}
	line, col := expr.Pos()
	switch e := expr.(type) {
	case *ast.IntLit:
		a.set(e, types.IntIndex)
		return types.IntIndex
	case *ast.FloatLit:
		a.set(e, types.FloatIndex)
		return types.FloatIndex
	case *ast.StringLit:
		a.set(e, types.StringIndex)
		return types.StringIndex
	case *ast.BoolLit:
		a.set(e, types.BoolIndex)
		return types.BoolIndex
	case *ast.Ident:
		if entry, ok := s.lookup(e.Name); ok {
			a.set(e, entry.typeIndex)
			return entry.typeIndex
		}
		if idx, ok := a.scan.ByName[e.Name]; ok {
			t := a.funcTyps[idx]
			a.set(e, t)
			return t
		}
		if _, ok := native.BuiltinCallName[e.Name]; ok {
			a.set(e, types.NativeIndex)
			return types.NativeIndex
		}
		a.diags.ErrorfKind(diagnostic.KindName, line, col, "undefined name %q", e.Name)
		a.set(e, types.IntIndex)
		return types.IntIndex
	case *ast.BinaryExpr:
		return a.annotateBinary(e, s)
	case *ast.UnaryExpr:
		return a.annotateUnary(e, s)
	case *ast.CallExpr:
		return a.annotateCall(e, s)
	case *ast.MakeExpr:
		elem := a.resolveTypeExpr(e.Elem)
		if e.Capacity != nil {
			a.annotateExpr(e.Capacity, s)
		}
		ct := a.table.ChannelType(elem)
		a.set(e, ct)
		return ct
	case *ast.FuncLit:
		a.annotateFunc(e, s)
		t := a.result.FuncTypes[e.NodeID()]
		a.set(e, t)
		return t
	default:
		return types.IntIndex
	}
}

func (a *annotator) annotateBinary(e *ast.BinaryExpr, s *scope) uint64 {
	left := a.annotateExpr(e.Left, s)
	right := a.annotateExpr(e.Right, s)
	line, col := e.Pos()
	if left != right {
		a.diags.ErrorfKind(diagnostic.KindType, line, col, "operand type mismatch around %s", e.Op)
		a.set(e, types.IntIndex)
		return types.IntIndex
	}
	var result uint64
	switch e.Op {
	case token.LAND, token.LOR, token.EQ, token.NEQ, token.LT, token.GT, token.LEQ, token.GEQ:
		result = types.BoolIndex
	case token.SHL, token.SHR, token.PERCENT:
		result = types.IntIndex
	default:
		result = left
	}
	a.set(e, result)
	return result
}

func (a *annotator) annotateUnary(e *ast.UnaryExpr, s *scope) uint64 {
	operand := a.annotateExpr(e.Operand, s)
	line, col := e.Pos()
	var result uint64
	switch e.Op {
	case token.ARROW:
		ot := a.table.Get(operand)
		if ot.Kind != types.Channel {
			a.diags.ErrorfKind(diagnostic.KindType, line, col, "receive on a non-channel operand")
			result = types.IntIndex
			break
		}
		result = ot.Elem
	case token.NOT:
		result = types.BoolIndex
	case token.CARET:
		result = types.IntIndex
	default: // PLUS, MINUS
		result = operand
	}
	a.set(e, result)
	return result
}

func (a *annotator) annotateCall(e *ast.CallExpr, s *scope) uint64 {
	fnType := a.annotateExpr(e.Fn, s)
	for _, arg := range e.Args {
		a.annotateExpr(arg, s)
	}
	line, col := e.Pos()

	t := a.table.Get(fnType)
	var fnDesc *types.Type
	switch t.Kind {
	case types.Function:
		fnDesc = t
	case types.Closure, types.Callable:
		fnDesc = a.table.Get(t.FnType)
	case types.Native:
		a.set(e, types.IntIndex)
		return types.IntIndex
	default:
		a.diags.ErrorfKind(diagnostic.KindType, line, col, "call target is not callable")
		a.set(e, types.IntIndex)
		return types.IntIndex
	}
	var result uint64 = types.IntIndex
	if fnDesc.Ret != nil {
		result = *fnDesc.Ret
	}
	a.set(e, result)
	return result
}

// assignable reports whether a value of type src may be stored in a slot
// of type dst. Function, Closure and Callable descriptors over the same
// signature are interchangeable at the word level: all three are a
// closure address by the time they reach a slot.
func (a *annotator) assignable(dst, src uint64) bool {
	if dst == src {
		return true
	}
	du, ok1 := a.underlyingFunc(dst)
	su, ok2 := a.underlyingFunc(src)
	return ok1 && ok2 && du == su
}

func (a *annotator) underlyingFunc(idx uint64) (uint64, bool) {
	t := a.table.Get(idx)
	switch t.Kind {
	case types.Function:
		return idx, true
	case types.Closure, types.Callable:
		return t.FnType, true
	default:
		return 0, false
	}
}

func (a *annotator) set(e ast.Expression, t uint64) {
	a.result.Types[e.NodeID()] = t
}

func describeExpr(e ast.Expression) string {
	if id, ok := e.(*ast.Ident); ok {
		return id.Name
	}
	return "expression"
}
