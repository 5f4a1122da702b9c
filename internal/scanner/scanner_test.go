package scanner_test

import (
	"testing"

	"github.com/goatlang/goat/internal/parser"
	"github.com/goatlang/goat/internal/scanner"
)

func scan(t *testing.T, source string) *scanner.Result {
	t.Helper()
	p := parser.New(source)
	prog := p.Parse()
	if p.Diagnostics().HasErrors() {
		t.Fatalf("parse errors: %s", p.Diagnostics().Format("test"))
	}
	return scanner.Scan(prog)
}

func TestScanAssignsDenseIndices(t *testing.T) {
	res := scan(t, `
func first() {
}

func second() {
}
`)
	if len(res.Funcs) != 2 {
		t.Fatalf("scanned %d functions, want 2", len(res.Funcs))
	}
	if res.ByName["first"] != 0 || res.ByName["second"] != 1 {
		t.Errorf("ByName = %v, want first=0 second=1", res.ByName)
	}
	for i, fn := range res.Funcs {
		if got := res.ByNode[fn.NodeID()]; got != uint64(i) {
			t.Errorf("ByNode[%d] = %d, want %d", fn.NodeID(), got, i)
		}
	}
}

func TestScanFindsNestedLiterals(t *testing.T) {
	res := scan(t, `
func outer() {
	var f = func() {
		var g = func() {
		};
	};
}
`)
	if len(res.Funcs) != 3 {
		t.Fatalf("scanned %d functions, want 3 (outer plus two literals)", len(res.Funcs))
	}
	if len(res.ByName) != 1 {
		t.Errorf("ByName has %d entries, want 1 (literals are unnamed)", len(res.ByName))
	}
}

func TestScanFindsLiteralsInAllPositions(t *testing.T) {
	res := scan(t, `
func apply(f func()) {
	f();
}

func main() {
	apply(func() { iprint(1); });
	go func() { iprint(2); }();
	var h = func() { iprint(3); };
	h();
}
`)
	// apply, main, and three literals.
	if len(res.Funcs) != 5 {
		t.Errorf("scanned %d functions, want 5", len(res.Funcs))
	}
}
