package vm_test

import (
	"bytes"
	"testing"

	"github.com/goatlang/goat/internal/bytecode"
	"github.com/goatlang/goat/internal/compiler"
	"github.com/goatlang/goat/internal/vm"
)

// run compiles and executes source under the default configuration,
// returning everything written to its simulated stdout.
func run(t *testing.T, source string) string {
	t.Helper()
	prog, diags := compiler.BuildProgram(source)
	if diags != nil && diags.HasErrors() {
		t.Fatalf("compile errors: %s", diags.Format("test.goat"))
	}
	var out bytes.Buffer
	rt := vm.New(prog, vm.DefaultConfig(), &out)
	if err := rt.Run(); err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	return out.String()
}

// A branch taken through if/else.
func TestIfElse(t *testing.T) {
	src := `
func main() {
	var x Int;
	var y Int = 10;
	if (y > 2) {
		x = 1;
	} else {
		x = 2;
	}
	iprint(x);
}
`
	if got, want := run(t, src), "1\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
}

// An escaped counter: a closure capturing and mutating a boxed local,
// invoked three times.
func TestEscapedCounter(t *testing.T) {
	src := `
func makeCounter() func() {
	var n Int = 0;
	return func() {
		n = n + 1;
		iprint(n);
	};
}

func main() {
	var c func() = makeCounter();
	c();
	c();
	c();
}
`
	if got, want := run(t, src), "1\n2\n3\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
}

// Channel ping-pong: a spawned goroutine sends once, main receives.
func TestChannelPingPong(t *testing.T) {
	src := `
func producer(ch chan Int) {
	ch <- 42;
}

func main() {
	var ch = make(chan Int, 1);
	go producer(ch);
	var v Int = <- ch;
	iprint(v);
}
`
	if got, want := run(t, src), "42\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
}

// Producer/consumer: values 1..10 sent over a capacity-2 channel,
// received and printed in order by a single consumer.
func TestProducerConsumer(t *testing.T) {
	src := `
func producer(ch chan Int) {
	var i Int = 1;
	for (i <= 10) {
		ch <- i;
		i = i + 1;
	}
}

func consumer(ch chan Int) {
	var i Int = 0;
	for (i < 10) {
		var v Int = <- ch;
		iprint(v);
		i = i + 1;
	}
}

func main() {
	var ch = make(chan Int, 2);
	go producer(ch);
	go consumer(ch);
}
`
	want := "1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n"
	if got := run(t, src); got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
}

// Recursion: fact(6) == 720.
func TestRecursiveFactorial(t *testing.T) {
	src := `
func fact(n Int) Int {
	if (n <= 1) {
		return 1;
	}
	return n * fact(n - 1);
}

func main() {
	iprint(fact(6));
}
`
	if got, want := run(t, src), "720\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
}

// A closure over a captured (escaped) local compiles and runs
// differently from a sibling local that no inner function captures
// (stays bound), and both execute correctly.
func TestEscapedVsBoundPromotion(t *testing.T) {
	src := `
func main() {
	var escaped Int = 5;
	var notEscaped Int = 9;
	var show func() = func() { iprint(escaped); };
	show();
	iprint(notEscaped);
}
`
	if got, want := run(t, src), "5\n9\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}

	res := compiler.Compile(src)
	if res.Diagnostics.HasErrors() {
		t.Fatalf("compile errors: %s", res.Diagnostics.Format("test.goat"))
	}
	cellType := res.Typed.Table.CellType()
	main := res.Funcs[res.Scan.ByName["main"]]

	newCount := 0
	for _, instr := range main.Code {
		if instr.Op == bytecode.New && instr.Payload == cellType {
			newCount++
		}
	}
	// One box for `escaped` (captured) and one for the `show` closure
	// itself is a *separate* New (closure type, not cell type), so the
	// only cell-type allocation here is escaped's box.
	if newCount != 1 {
		t.Errorf("expected exactly one cell-type allocation (for `escaped`), got %d", newCount)
	}
}

// A function with no escaped variables never allocates a cell box, and
// every local reference is a plain load/store.
func TestNoEscapesMeansNoBoxes(t *testing.T) {
	src := `
func add(a Int, b Int) Int {
	var total Int = a + b;
	return total;
}

func main() {
	iprint(add(2, 3));
}
`
	res := compiler.Compile(src)
	if res.Diagnostics.HasErrors() {
		t.Fatalf("compile errors: %s", res.Diagnostics.Format("test.goat"))
	}
	cellType := res.Typed.Table.CellType()
	add := res.Funcs[res.Scan.ByName["add"]]
	for _, instr := range add.Code {
		if instr.Op == bytecode.New && instr.Payload == cellType {
			t.Errorf("add() has no escaped locals but emitted a cell-type allocation")
		}
		if instr.Op == bytecode.Wload || instr.Op == bytecode.Wstore {
			t.Errorf("add() has no escaped locals but emitted %s", instr.Op)
		}
	}

	if got, want := run(t, src), "5\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
}
