// Package types holds the interned type table built by the type annotator
// and consulted by the emitter and runtime for allocation sizing.
package types

import "fmt"

// Kind tags which variant of the closed Type sum a descriptor represents.
type Kind int

const (
	Int Kind = iota
	Float
	Bool
	String
	Channel
	Closure
	Callable
	Function
	Native
	Box
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "Int"
	case Float:
		return "Float"
	case Bool:
		return "Bool"
	case String:
		return "String"
	case Channel:
		return "Channel"
	case Closure:
		return "Closure"
	case Callable:
		return "Callable"
	case Function:
		return "Function"
	case Native:
		return "Native"
	case Box:
		return "Box"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// wordSize is the size in bytes of every scalar value and every heap word.
const wordSize = 8

// Type is an interned descriptor for one of the ten closed variants. Not
// every field is meaningful for every Kind; see the constructors below.
type Type struct {
	Index      uint64
	Kind       Kind
	Size       uint64 // bytes occupied by one instance
	Memc       uint64 // slot count, for composite kinds
	PointerMap []bool // which of the Memc slots hold heap pointers

	Elem   uint64   // Channel: index of element type
	FnType uint64   // Closure/Callable: index of the underlying Function type
	Capc   uint16   // Closure: capture count
	Args   []uint64 // Function: parameter type indices
	Ret    *uint64  // Function: result type index, nil if none
}

// CanonicalName renders the textual form used to deduplicate entries in a
// Table: two Type values with the same CanonicalName are the same type.
func (t *Type) CanonicalName() string {
	switch t.Kind {
	case Int, Float, Bool, String, Native, Box:
		return t.Kind.String()
	case Channel:
		return fmt.Sprintf("Channel(%d)", t.Elem)
	case Closure:
		return fmt.Sprintf("Closure(%d,%d)", t.FnType, t.Capc)
	case Callable:
		return fmt.Sprintf("Callable(%d)", t.FnType)
	case Function:
		name := "Function("
		for i, a := range t.Args {
			if i > 0 {
				name += ","
			}
			name += fmt.Sprintf("%d", a)
		}
		name += ")"
		if t.Ret != nil {
			name += fmt.Sprintf("->%d", *t.Ret)
		}
		return name
	default:
		return t.Kind.String()
	}
}

// Table is the append-only, name-deduplicated set of interned types built
// during compilation. It is frozen and shared read-only at runtime.
type Table struct {
	types []*Type
	byKey map[string]uint64
}

// NewTable returns a Table pre-populated with the four scalar types and a
// Native placeholder used for builtin function slots, matching the fixed
// indices the compiler and runtime both rely on.
func NewTable() *Table {
	t := &Table{byKey: make(map[string]uint64)}
	t.intern(&Type{Kind: Int, Size: wordSize})
	t.intern(&Type{Kind: Float, Size: wordSize})
	t.intern(&Type{Kind: Bool, Size: wordSize})
	t.intern(&Type{Kind: String, Size: wordSize})
	t.intern(&Type{Kind: Native, Size: wordSize})
	return t
}

// Predefined indices for the table returned by NewTable.
const (
	IntIndex uint64 = iota
	FloatIndex
	BoolIndex
	StringIndex
	NativeIndex
)

func (t *Table) intern(typ *Type) uint64 {
	key := typ.CanonicalName()
	if idx, ok := t.byKey[key]; ok {
		return idx
	}
	idx := uint64(len(t.types))
	typ.Index = idx
	t.types = append(t.types, typ)
	t.byKey[key] = idx
	return idx
}

// Scalar interns (or finds) the plain Int/Float/Bool/String/Native type.
func (t *Table) Scalar(k Kind) uint64 {
	return t.intern(&Type{Kind: k, Size: wordSize})
}

// ChannelType interns (or finds) `Channel(elem)`. A channel value is the
// channel manager's index itself, pushed and stored as a plain word; it is
// not held in a heap box. Size is therefore a single word, and PointerMap
// carries no pointer slots (elem is a type index, not a reference).
func (t *Table) ChannelType(elem uint64) uint64 {
	return t.intern(&Type{Kind: Channel, Elem: elem, Size: wordSize})
}

// CellType interns (or finds) the one-word box type shared by escaped
// variables, string literals and channel send payloads. Its single slot
// is marked as a pointer for GC readiness even though a boxed scalar is
// not one; a collector would consult the boxed value's own type first.
func (t *Table) CellType() uint64 {
	return t.intern(&Type{Kind: Box, Size: wordSize, Memc: 1, PointerMap: []bool{true}})
}

// FunctionType interns (or finds) `Function(args...)->ret`.
func (t *Table) FunctionType(args []uint64, ret *uint64) uint64 {
	return t.intern(&Type{Kind: Function, Args: args, Ret: ret, Size: wordSize})
}

// ClosureType interns (or finds) `Closure(fnType, capc)`. Size is
// 8 + 8*capc: one word for the function index plus one per capture.
func (t *Table) ClosureType(fnType uint64, capc uint16) uint64 {
	pm := make([]bool, capc+1)
	for i := range pm {
		pm[i] = i > 0 // capture slots are pointers; the function-index slot is not
	}
	return t.intern(&Type{
		Kind:       Closure,
		FnType:     fnType,
		Capc:       capc,
		Size:       wordSize * uint64(capc+1),
		Memc:       uint64(capc + 1),
		PointerMap: pm,
	})
}

// CallableType interns (or finds) `Callable(fnType)`, the wrapper used for
// a function-typed parameter or result slot that must accept a closure.
func (t *Table) CallableType(fnType uint64) uint64 {
	return t.intern(&Type{Kind: Callable, FnType: fnType, Size: wordSize})
}

// Get returns the type at idx.
func (t *Table) Get(idx uint64) *Type { return t.types[idx] }

// Len reports how many types have been interned.
func (t *Table) Len() int { return len(t.types) }

// All returns every interned type in index order. The slice is shared;
// callers must not mutate it.
func (t *Table) All() []*Type { return t.types }
