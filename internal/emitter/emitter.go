// Package emitter implements the fourth compiler pass: it walks the
// resolved, type-annotated tree and produces a flat bytecode.Instruction
// stream per function, following the lowering conventions fixed by the
// language's escape-analysis and closure calling convention.
package emitter

import (
	"github.com/goatlang/goat/internal/ast"
	"github.com/goatlang/goat/internal/bytecode"
	"github.com/goatlang/goat/internal/diagnostic"
	"github.com/goatlang/goat/internal/native"
	"github.com/goatlang/goat/internal/resolver"
	"github.com/goatlang/goat/internal/scanner"
	"github.com/goatlang/goat/internal/stringpool"
	"github.com/goatlang/goat/internal/token"
	"github.com/goatlang/goat/internal/typecheck"
	"github.com/goatlang/goat/internal/types"
)

// Emit lowers every function discovered by the scanner into bytecode,
// using vars and typed for variable categories and expression types.
// String literals are interned into pool as they are encountered. Returns
// one *bytecode.Function per scanned function, indexed identically to
// scan.Funcs.
func Emit(scan *scanner.Result, vars *resolver.Result, typed *typecheck.Result, pool *stringpool.Pool, diags *diagnostic.Diagnostics) []*bytecode.Function {
	e := &emitter{scan: scan, vars: vars, typed: typed, table: typed.Table, pool: pool, diags: diags}
	e.cellType = e.table.CellType()

	funcs := make([]*bytecode.Function, len(scan.Funcs))
	for idx, fn := range scan.Funcs {
		funcs[idx] = e.emitFunction(fn, uint64(idx))
	}
	return funcs
}

type emitter struct {
	scan     *scanner.Result
	vars     *resolver.Result
	typed    *typecheck.Result
	table    *types.Table
	pool     *stringpool.Pool
	diags    *diagnostic.Diagnostics
	cellType uint64

	// per-function state
	frame *resolver.VariableFrame
	code  []bytecode.Instruction
}

func (e *emitter) emitFunction(fn ast.Func, idx uint64) *bytecode.Function {
	e.frame = e.vars.Frames[fn.NodeID()]
	e.code = nil

	e.emitEscapedParamPrologue()
	e.emitBlock(fn.FuncBody())
	if len(e.code) == 0 || e.code[len(e.code)-1].Op != bytecode.Ret {
		e.emit(bytecode.Ret, 0)
	}

	pm := make([]bool, e.frame.Varc)
	for _, v := range e.frame.AllVars() {
		if v.Category != resolver.Bound {
			pm[v.Slot] = true
		}
	}

	return &bytecode.Function{
		Capc:       e.frame.Capc,
		Argc:       e.frame.Argc,
		Varc:       e.frame.Varc,
		Index:      idx,
		Name:       fn.FuncName(),
		PointerMap: pm,
		Code:       e.code,
	}
}

// emitEscapedParamPrologue boxes every parameter the resolver marked
// Escaped: invoke_static/invoke_dynamic write the raw argument word
// straight into the parameter's slot, so the callee must replace it with
// a fresh one-word box holding that same value before any capture can
// share it.
func (e *emitter) emitEscapedParamPrologue() {
	for _, name := range e.frame.Params {
		v, _ := e.frame.Lookup(name)
		if v.Category != resolver.Escaped {
			continue
		}
		e.emit(bytecode.Load, uint64(v.Slot))
		e.emit(bytecode.New, e.cellType)
		e.emit(bytecode.Dup, 0)
		e.emit(bytecode.Store, uint64(v.Slot))
		e.emit(bytecode.Swap, 0)
		e.emit(bytecode.Wstore, 0)
	}
}

func (e *emitter) emit(op bytecode.Opcode, payload uint64) int {
	e.code = append(e.code, bytecode.Instruction{Op: op, Payload: payload})
	return len(e.code) - 1
}

func (e *emitter) patch(at int, target uint64) {
	e.code[at].Payload = target
}

func (e *emitter) here() uint64 { return uint64(len(e.code)) }

func (e *emitter) emitBlock(b *ast.Block) {
	if b == nil {
		return
	}
	for _, stmt := range b.Stmts {
		e.emitStmt(stmt)
	}
}

func (e *emitter) emitStmt(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.Block:
		e.emitBlock(s)
	case *ast.VarDecl:
		e.emitVarDecl(s)
	case *ast.AssignStmt:
		e.emitAssign(s)
	case *ast.SendStmt:
		e.emitSend(s)
	case *ast.IfStmt:
		e.emitIf(s)
	case *ast.ForStmt:
		e.emitFor(s)
	case *ast.ReturnStmt:
		if s.Value != nil {
			e.emitExpr(s.Value)
		}
		e.emit(bytecode.Ret, 0)
	case *ast.GoStmt:
		e.emitGo(s)
	case *ast.ExprStmt:
		e.emitExpr(s.Expr)
		// A statement discards whatever value its expression left behind.
		// Calls to print natives and to functions with no result slot push
		// nothing, so popping there would underflow.
		if call, ok := s.Expr.(*ast.CallExpr); ok {
			if e.callHasResult(call) {
				e.emit(bytecode.Pop, 0)
			}
		} else {
			e.emit(bytecode.Pop, 0)
		}
	}
}

func (e *emitter) emitVarDecl(s *ast.VarDecl) {
	v, _ := e.frame.Lookup(s.Name)
	switch v.Category {
	case resolver.Escaped:
		e.emit(bytecode.New, e.cellType)
		e.emit(bytecode.Dup, 0)
		e.emit(bytecode.Store, uint64(v.Slot))
		if s.Value != nil {
			e.emitExpr(s.Value)
		} else {
			e.emit(bytecode.Push, 0)
		}
		e.emit(bytecode.Wstore, 0)
	default: // Bound; a declaration site is never Free
		if s.Value != nil {
			e.emitExpr(s.Value)
			e.emit(bytecode.Store, uint64(v.Slot))
		}
	}
}

func (e *emitter) emitAssign(s *ast.AssignStmt) {
	id, ok := s.Target.(*ast.Ident)
	if !ok {
		line, col := s.Pos()
		e.diags.ErrorfKind(diagnostic.KindUnsupport, line, col, "assignment target must be a plain name")
		return
	}
	v, ok := e.frame.Lookup(id.Name)
	if !ok {
		line, col := s.Pos()
		e.diags.ErrorfKind(diagnostic.KindName, line, col, "undefined name %q", id.Name)
		return
	}
	switch v.Category {
	case resolver.Bound:
		e.emitExpr(s.Value)
		e.emit(bytecode.Store, uint64(v.Slot))
	default: // Escaped or Free: write through the box pointer
		e.emit(bytecode.Load, uint64(v.Slot))
		e.emitExpr(s.Value)
		e.emit(bytecode.Wstore, 0)
	}
}

func (e *emitter) emitSend(s *ast.SendStmt) {
	e.emitExpr(s.Channel)
	e.emit(bytecode.New, e.cellType)
	e.emit(bytecode.Dup, 0)
	e.emitExpr(s.Value)
	e.emit(bytecode.Wstore, 0)
	e.emit(bytecode.InvokeNative, uint64(native.ChanSend))
}

func (e *emitter) emitIf(s *ast.IfStmt) {
	e.emitExpr(s.Cond)
	jumpToElse := e.emit(bytecode.IfF, 0)
	e.emitBlock(s.Then)
	if s.Else == nil {
		e.patch(jumpToElse, e.here())
		return
	}
	jumpToEnd := e.emit(bytecode.Goto, 0)
	e.patch(jumpToElse, e.here())
	e.emitStmt(s.Else)
	e.patch(jumpToEnd, e.here())
}

func (e *emitter) emitFor(s *ast.ForStmt) {
	loopStart := e.here()
	var jumpToEnd int
	if s.Cond != nil {
		e.emitExpr(s.Cond)
		jumpToEnd = e.emit(bytecode.IfF, 0)
	}
	e.emitBlock(s.Body)
	e.emit(bytecode.Goto, loopStart)
	if s.Cond != nil {
		e.patch(jumpToEnd, e.here())
	}
}

func (e *emitter) emitGo(s *ast.GoStmt) {
	for _, arg := range s.Call.Args {
		e.emitExpr(arg)
	}
	e.emitCallable(s.Call.Fn)
	e.emit(bytecode.InvokeNative, uint64(native.NewThread))
}

// emitCallable pushes a value onto the operand stack that new_thread or
// invoke_dynamic can treat uniformly as a closure address: a variable
// already holding a closure is simply loaded, a function literal is
// emitted normally, and a bare reference to a top-level function is
// wrapped in a synthetic zero-capture closure.
func (e *emitter) emitCallable(expr ast.Expression) {
	if id, ok := expr.(*ast.Ident); ok {
		if _, local := e.frame.Lookup(id.Name); !local {
			if idx, isTopLevel := e.scan.ByName[id.Name]; isTopLevel {
				e.emitStaticClosure(idx)
				return
			}
		}
	}
	e.emitExpr(expr)
}

// emitStaticClosure wraps top-level function idx in a fresh zero-capture
// closure so it can flow anywhere a closure address is expected.
func (e *emitter) emitStaticClosure(idx uint64) {
	fnType := e.typed.FuncTypes[e.scan.Funcs[idx].NodeID()]
	closureType := e.table.ClosureType(e.underlyingFuncType(fnType), 0)
	e.emit(bytecode.New, closureType)
	e.emit(bytecode.Dup, 0)
	e.emit(bytecode.Push, idx)
	e.emit(bytecode.Wstore, 0)
}

func (e *emitter) underlyingFuncType(idx uint64) uint64 {
	t := e.table.Get(idx)
	if t.Kind == types.Closure || t.Kind == types.Callable {
		return t.FnType
	}
	return idx
}

// callHasResult reports whether the compiled call leaves a value on the
// operand stack. The print natives push nothing; for every other target
// the callee's signature decides.
func (e *emitter) callHasResult(call *ast.CallExpr) bool {
	if id, ok := call.Fn.(*ast.Ident); ok {
		if _, shadowed := e.frame.Lookup(id.Name); !shadowed {
			if _, isNative := native.BuiltinCallName[id.Name]; isNative {
				return false
			}
		}
	}
	t := e.table.Get(e.typed.Types[call.Fn.NodeID()])
	if t.Kind == types.Closure || t.Kind == types.Callable {
		t = e.table.Get(t.FnType)
	}
	if t.Kind != types.Function {
		return false
	}
	return t.Ret != nil
}

func (e *emitter) emitExpr(expr ast.Expression) {
	switch ex := expr.(type) {
	case *ast.IntLit:
		e.emit(bytecode.Push, parseIntBits(ex.Value))
	case *ast.FloatLit:
		e.emit(bytecode.Push, parseFloatBits(ex.Value))
	case *ast.BoolLit:
		if ex.Value {
			e.emit(bytecode.Push, 1)
		} else {
			e.emit(bytecode.Push, 0)
		}
	case *ast.StringLit:
		e.emitStringLit(ex.Value)
	case *ast.Ident:
		e.emitLoadName(ex)
	case *ast.BinaryExpr:
		e.emitBinary(ex)
	case *ast.UnaryExpr:
		e.emitUnary(ex)
	case *ast.CallExpr:
		e.emitCall(ex)
	case *ast.MakeExpr:
		e.emitMake(ex)
	case *ast.FuncLit:
		e.emitFuncLit(ex)
	}
}

// emitLoadName reads name's value per its storage category.
func (e *emitter) emitLoadName(ex *ast.Ident) {
	if v, ok := e.frame.Lookup(ex.Name); ok {
		e.emit(bytecode.Load, uint64(v.Slot))
		if v.Category != resolver.Bound {
			e.emit(bytecode.Wload, 0)
		}
		return
	}
	// Not a local: a top-level function reference used as a value is
	// materialised as a zero-capture closure. Anything else (a native
	// builtin outside call position) has no runtime representation.
	if idx, ok := e.scan.ByName[ex.Name]; ok {
		e.emitStaticClosure(idx)
		return
	}
	line, col := ex.Pos()
	e.diags.ErrorfKind(diagnostic.KindName, line, col, "%q is not usable as a value", ex.Name)
	e.emit(bytecode.Push, 0)
}

func (e *emitter) emitBinary(ex *ast.BinaryExpr) {
	switch ex.Op {
	case token.LAND:
		e.emitExpr(ex.Left)
		e.emit(bytecode.Dup, 0)
		jf := e.emit(bytecode.IfF, 0)
		e.emit(bytecode.Pop, 0)
		e.emitExpr(ex.Right)
		e.patch(jf, e.here())
		return
	case token.LOR:
		e.emitExpr(ex.Left)
		e.emit(bytecode.Dup, 0)
		jt := e.emit(bytecode.IfT, 0)
		e.emit(bytecode.Pop, 0)
		e.emitExpr(ex.Right)
		e.patch(jt, e.here())
		return
	}

	e.emitExpr(ex.Left)
	e.emitExpr(ex.Right)
	isFloat := e.exprIsFloat(ex.Left)

	var op bytecode.Opcode
	switch ex.Op {
	case token.PLUS:
		op = pick(isFloat, bytecode.Fadd, bytecode.Iadd)
	case token.MINUS:
		op = pick(isFloat, bytecode.Fsub, bytecode.Isub)
	case token.STAR:
		op = pick(isFloat, bytecode.Fmul, bytecode.Imul)
	case token.SLASH:
		op = pick(isFloat, bytecode.Fdiv, bytecode.Idiv)
	case token.PERCENT:
		op = bytecode.Irem
	case token.AMP:
		op = bytecode.Iand
	case token.PIPE:
		op = bytecode.Ior
	case token.CARET:
		op = bytecode.Ixor
	case token.SHL:
		op = bytecode.Ishl
	case token.SHR:
		op = bytecode.Ishr
	case token.EQ:
		op = pick(isFloat, bytecode.Feq, bytecode.Ieq)
	case token.NEQ:
		op = pick(isFloat, bytecode.Fne, bytecode.Ine)
	case token.LT:
		op = pick(isFloat, bytecode.Flt, bytecode.Ilt)
	case token.LEQ:
		op = pick(isFloat, bytecode.Fle, bytecode.Ile)
	case token.GT:
		op = pick(isFloat, bytecode.Fgt, bytecode.Igt)
	case token.GEQ:
		op = pick(isFloat, bytecode.Fge, bytecode.Ige)
	}
	e.emit(op, 0)
}

func pick(cond bool, ifTrue, ifFalse bytecode.Opcode) bytecode.Opcode {
	if cond {
		return ifTrue
	}
	return ifFalse
}

func (e *emitter) exprIsFloat(expr ast.Expression) bool {
	t := e.typed.Types[expr.NodeID()]
	return e.table.Get(t).Kind == types.Float
}

func (e *emitter) emitUnary(ex *ast.UnaryExpr) {
	switch ex.Op {
	case token.ARROW:
		e.emitExpr(ex.Operand)
		e.emit(bytecode.InvokeNative, uint64(native.ChanRecv))
		e.emit(bytecode.Wload, 0)
	case token.NOT:
		e.emitExpr(ex.Operand)
		e.emit(bytecode.Lnot, 0)
	case token.CARET:
		e.emitExpr(ex.Operand)
		e.emit(bytecode.Inot, 0)
	case token.MINUS:
		e.emitExpr(ex.Operand)
		if e.exprIsFloat(ex.Operand) {
			e.emit(bytecode.Fneg, 0)
		} else {
			e.emit(bytecode.Ineg, 0)
		}
	case token.PLUS:
		e.emitExpr(ex.Operand)
	}
}

func (e *emitter) emitCall(call *ast.CallExpr) {
	if id, ok := call.Fn.(*ast.Ident); ok {
		if _, shadowed := e.frame.Lookup(id.Name); !shadowed {
			if idx, ok := native.BuiltinCallName[id.Name]; ok {
				for _, a := range call.Args {
					e.emitExpr(a)
				}
				e.emit(bytecode.InvokeNative, uint64(idx))
				return
			}
			if idx, ok := e.scan.ByName[id.Name]; ok {
				for _, a := range call.Args {
					e.emitExpr(a)
				}
				e.emit(bytecode.InvokeStatic, idx)
				return
			}
		}
	}
	for _, a := range call.Args {
		e.emitExpr(a)
	}
	e.emitExpr(call.Fn)
	e.emit(bytecode.InvokeDynamic, 0)
}

func (e *emitter) emitMake(ex *ast.MakeExpr) {
	if ex.Capacity != nil {
		e.emitExpr(ex.Capacity)
	} else {
		e.emit(bytecode.Push, 0)
	}
	e.emit(bytecode.InvokeNative, uint64(native.NewChan))
}

func (e *emitter) emitFuncLit(lit *ast.FuncLit) {
	frame := e.vars.Frames[lit.NodeID()]
	idx := e.scan.ByNode[lit.NodeID()]
	fnType := e.typed.FuncTypes[lit.NodeID()]
	closureType := e.underlyingClosureType(fnType, frame.Capc)

	e.emit(bytecode.New, closureType)
	e.emit(bytecode.Dup, 0)
	e.emit(bytecode.Push, idx)
	e.emit(bytecode.Wstore, 0)
	for i, name := range frame.Captures {
		outer, _ := e.frame.Lookup(name)
		e.emit(bytecode.Dup, 0)
		e.emit(bytecode.Load, uint64(outer.Slot))
		e.emit(bytecode.Wstore, uint64(i+1))
	}
}

func (e *emitter) underlyingClosureType(fnTypeOrClosure uint64, capc uint16) uint64 {
	t := e.table.Get(fnTypeOrClosure)
	if t.Kind == types.Closure {
		return fnTypeOrClosure
	}
	return e.table.ClosureType(fnTypeOrClosure, capc)
}

// emitStringLit boxes a literal's pool index: a String value is a
// heap-allocated one-word cell holding the index, so print natives can
// dereference through it uniformly with every other boxed reference.
func (e *emitter) emitStringLit(s string) {
	idx := e.pool.Intern(s)
	e.emit(bytecode.New, e.cellType)
	e.emit(bytecode.Dup, 0)
	e.emit(bytecode.Push, idx)
	e.emit(bytecode.Wstore, 0)
}
