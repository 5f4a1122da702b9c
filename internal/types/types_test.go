package types

import "testing"

func TestInterningDeduplicates(t *testing.T) {
	table := NewTable()

	ch1 := table.ChannelType(IntIndex)
	ch2 := table.ChannelType(IntIndex)
	if ch1 != ch2 {
		t.Errorf("Channel(Int) interned twice: %d and %d", ch1, ch2)
	}

	chFloat := table.ChannelType(FloatIndex)
	if chFloat == ch1 {
		t.Error("Channel(Float) deduplicated onto Channel(Int)")
	}
}

func TestPredefinedIndicesAreStable(t *testing.T) {
	table := NewTable()
	wants := []struct {
		idx  uint64
		kind Kind
	}{
		{IntIndex, Int},
		{FloatIndex, Float},
		{BoolIndex, Bool},
		{StringIndex, String},
		{NativeIndex, Native},
	}
	for _, w := range wants {
		if got := table.Get(w.idx).Kind; got != w.kind {
			t.Errorf("type %d kind = %s, want %s", w.idx, got, w.kind)
		}
	}
}

func TestClosureSizeIsHeaderPlusCaptures(t *testing.T) {
	table := NewTable()
	fnType := table.FunctionType(nil, nil)

	for _, capc := range []uint16{0, 1, 3} {
		idx := table.ClosureType(fnType, capc)
		d := table.Get(idx)
		if want := uint64(8 * (int(capc) + 1)); d.Size != want {
			t.Errorf("Closure capc=%d size = %d, want %d", capc, d.Size, want)
		}
		if d.Memc != uint64(capc)+1 {
			t.Errorf("Closure capc=%d memc = %d, want %d", capc, d.Memc, capc+1)
		}
		if d.PointerMap[0] {
			t.Error("function-index slot marked as pointer")
		}
		for i := 1; i < len(d.PointerMap); i++ {
			if !d.PointerMap[i] {
				t.Errorf("capture slot %d not marked as pointer", i)
			}
		}
	}
}

func TestCellTypeIsItsOwnEntry(t *testing.T) {
	table := NewTable()
	cell := table.CellType()
	if cell == NativeIndex {
		t.Error("cell type deduplicated onto the Native placeholder")
	}
	d := table.Get(cell)
	if d.Size != 8 || d.Memc != 1 {
		t.Errorf("cell size/memc = %d/%d, want 8/1", d.Size, d.Memc)
	}
	if cell2 := table.CellType(); cell2 != cell {
		t.Errorf("CellType not stable: %d then %d", cell, cell2)
	}
}

func TestFunctionCanonicalNameDistinguishesSignatures(t *testing.T) {
	table := NewTable()
	ret := IntIndex
	f1 := table.FunctionType([]uint64{IntIndex}, &ret)
	f2 := table.FunctionType([]uint64{IntIndex}, nil)
	f3 := table.FunctionType([]uint64{IntIndex, IntIndex}, &ret)
	if f1 == f2 || f1 == f3 || f2 == f3 {
		t.Errorf("distinct signatures interned together: %d %d %d", f1, f2, f3)
	}

	callable := table.CallableType(f1)
	closure := table.ClosureType(f1, 0)
	if callable == f1 || closure == f1 || callable == closure {
		t.Errorf("wrappers interned onto their function type: fn=%d callable=%d closure=%d", f1, callable, closure)
	}
}
