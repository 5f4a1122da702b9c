package emitter_test

import (
	"testing"

	"github.com/goatlang/goat/internal/bytecode"
	"github.com/goatlang/goat/internal/compiler"
	"github.com/goatlang/goat/internal/native"
	"github.com/goatlang/goat/internal/types"
)

func compile(t *testing.T, source string) *compiler.Result {
	t.Helper()
	res := compiler.Compile(source)
	if res.Diagnostics.HasErrors() {
		t.Fatalf("compile errors: %s", res.Diagnostics.Format("test"))
	}
	return res
}

func fn(t *testing.T, res *compiler.Result, name string) *bytecode.Function {
	t.Helper()
	idx, ok := res.Scan.ByName[name]
	if !ok {
		t.Fatalf("no function named %q", name)
	}
	return res.Funcs[idx]
}

func countOp(f *bytecode.Function, op bytecode.Opcode) int {
	n := 0
	for _, instr := range f.Code {
		if instr.Op == op {
			n++
		}
	}
	return n
}

// A literal with capc captures allocates its closure and writes exactly
// capc+1 words into it (function index plus one pointer per capture)
// before leaving the address on the stack.
func TestClosureAllocationWritesHeaderAndCaptures(t *testing.T) {
	res := compile(t, `
func main() {
	var a Int = 1;
	var b Int = 2;
	var f = func() {
		iprint(a + b);
	};
	f();
}
`)
	main := fn(t, res, "main")

	closureAt := -1
	for i, instr := range main.Code {
		if instr.Op == bytecode.New && res.Typed.Table.Get(instr.Payload).Kind == types.Closure {
			closureAt = i
		}
	}
	if closureAt < 0 {
		t.Fatal("no closure-type allocation in main")
	}
	closure := res.Typed.Table.Get(main.Code[closureAt].Payload)
	if closure.Capc != 2 {
		t.Fatalf("closure capc = %d, want 2", closure.Capc)
	}

	// After the New: Dup/Push/Wstore writes the function index, then a
	// Dup/Load/Wstore triple per capture.
	writes := map[uint64]bool{}
	for _, instr := range main.Code[closureAt:] {
		if instr.Op == bytecode.Wstore {
			writes[instr.Payload] = true
			if len(writes) == int(closure.Capc)+1 {
				break
			}
		}
	}
	for slot := uint64(0); slot <= uint64(closure.Capc); slot++ {
		if !writes[slot] {
			t.Errorf("closure word %d never written", slot)
		}
	}
}

// A send statement boxes its payload: the channel is pushed, a fresh
// one-word cell is allocated and filled, and chan_send is invoked.
func TestSendLoweringBoxesValue(t *testing.T) {
	res := compile(t, `
func main() {
	var ch = make(chan Int, 1);
	ch <- 9;
}
`)
	main := fn(t, res, "main")
	cell := res.Typed.Table.CellType()

	sawBox := false
	sawSend := false
	for _, instr := range main.Code {
		if instr.Op == bytecode.New && instr.Payload == cell {
			sawBox = true
		}
		if instr.Op == bytecode.InvokeNative && instr.Payload == uint64(native.ChanSend) {
			sawSend = true
		}
	}
	if !sawBox {
		t.Error("send emitted no cell-type allocation for its payload")
	}
	if !sawSend {
		t.Error("send emitted no chan_send invocation")
	}
}

// A receive unboxes: chan_recv leaves the item box, then wload 0 fetches
// the payload word.
func TestReceiveLoweringUnboxes(t *testing.T) {
	res := compile(t, `
func main() {
	var ch = make(chan Int, 1);
	ch <- 4;
	var v Int = <- ch;
	iprint(v);
}
`)
	main := fn(t, res, "main")
	for i, instr := range main.Code {
		if instr.Op == bytecode.InvokeNative && instr.Payload == uint64(native.ChanRecv) {
			if i+1 >= len(main.Code) || main.Code[i+1].Op != bytecode.Wload {
				t.Error("chan_recv not followed by wload 0")
			}
			return
		}
	}
	t.Error("no chan_recv invocation emitted")
}

// Print natives push nothing, so a bare print statement must not emit a
// trailing pop; a call to a value-returning function used as a statement
// must discard its result.
func TestStatementDiscardRules(t *testing.T) {
	res := compile(t, `
func double(n Int) Int {
	return n * 2;
}

func noisy() {
	iprint(7);
}

func main() {
	iprint(1);
	double(2);
	noisy();
}
`)
	main := fn(t, res, "main")

	if got := countOp(main, bytecode.Pop); got != 1 {
		t.Errorf("main emitted %d pops, want exactly 1 (for the unused double result)", got)
	}
	for i, instr := range main.Code {
		if instr.Op == bytecode.InvokeNative && instr.Payload == uint64(native.Iprint) {
			if i+1 < len(main.Code) && main.Code[i+1].Op == bytecode.Pop {
				t.Error("iprint statement followed by a pop")
			}
		}
	}
}

// Short-circuit operators evaluate the right operand only when needed:
// && lowers through dup/if_f, || through dup/if_t.
func TestShortCircuitLowering(t *testing.T) {
	res := compile(t, `
func main() {
	var a Bool = true;
	var b Bool = false;
	var x Bool = a && b;
	var y Bool = a || b;
}
`)
	main := fn(t, res, "main")
	if countOp(main, bytecode.IfF) < 1 {
		t.Error("no if_f emitted for &&")
	}
	if countOp(main, bytecode.IfT) < 1 {
		t.Error("no if_t emitted for ||")
	}
	if countOp(main, bytecode.Dup) < 2 {
		t.Error("short-circuit operands not duplicated before the test")
	}
}

// An escaped parameter is re-boxed in the prologue: the raw argument is
// loaded, a cell is allocated and stored over the slot, and the value is
// written through the new pointer.
func TestEscapedParameterPrologue(t *testing.T) {
	res := compile(t, `
func makeAdder(base Int) func(Int) Int {
	return func(n Int) Int {
		return base + n;
	};
}

func main() {
	var add2 func(Int) Int = makeAdder(2);
	iprint(add2(40));
}
`)
	maker := fn(t, res, "makeAdder")
	cell := res.Typed.Table.CellType()
	if maker.Code[0].Op != bytecode.Load {
		t.Fatalf("prologue starts with %s, want load of the raw argument", maker.Code[0].Op)
	}
	if maker.Code[1].Op != bytecode.New || maker.Code[1].Payload != cell {
		t.Errorf("prologue does not allocate a cell for the escaped parameter")
	}
}

// Static calls and dynamic calls compile to different invoke forms.
func TestStaticVersusDynamicDispatch(t *testing.T) {
	res := compile(t, `
func helper() {
	iprint(1);
}

func main() {
	helper();
	var f func() = func() { iprint(2); };
	f();
}
`)
	main := fn(t, res, "main")
	if countOp(main, bytecode.InvokeStatic) != 1 {
		t.Errorf("invoke_static count = %d, want 1", countOp(main, bytecode.InvokeStatic))
	}
	if countOp(main, bytecode.InvokeDynamic) != 1 {
		t.Errorf("invoke_dynamic count = %d, want 1", countOp(main, bytecode.InvokeDynamic))
	}
}

// A top-level function passed as a value is wrapped in a zero-capture
// closure so invoke_dynamic and new_thread can treat it uniformly.
func TestTopLevelFunctionAsValue(t *testing.T) {
	res := compile(t, `
func work() {
	iprint(5);
}

func main() {
	go work();
}
`)
	main := fn(t, res, "main")
	sawZeroCaptureClosure := false
	for _, instr := range main.Code {
		if instr.Op == bytecode.New {
			d := res.Typed.Table.Get(instr.Payload)
			if d.Kind == types.Closure && d.Capc == 0 {
				sawZeroCaptureClosure = true
			}
		}
	}
	if !sawZeroCaptureClosure {
		t.Error("go on a top-level function did not materialise a zero-capture closure")
	}
}

// Every compiled function ends in ret even when the source body has no
// return statement.
func TestImplicitReturn(t *testing.T) {
	res := compile(t, `
func quiet() {
}

func main() {
	quiet();
}
`)
	for _, f := range res.Funcs {
		if len(f.Code) == 0 || f.Code[len(f.Code)-1].Op != bytecode.Ret {
			t.Errorf("function %d does not end in ret", f.Index)
		}
	}
}
