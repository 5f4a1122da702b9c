// Package bytecode defines the instruction set, function table entries and
// closure/frame layouts emitted by the compiler and executed by the VM.
package bytecode

import (
	"fmt"
	"strings"
)

// Opcode tags one instruction. Payload interpretation is opcode-specific:
// a local slot index, a jump target, a type index, a native-function
// index, or (for push) a raw word constant.
type Opcode uint8

const (
	Nop Opcode = iota
	Load
	Store
	Push
	Pop
	Dup
	Swap
	Wload
	Bload
	Wstore
	Bstore
	I2f
	F2i
	Iadd
	Isub
	Imul
	Idiv
	Irem
	Ineg
	Iinc
	Idec
	Ishl
	Ishr
	Ixor
	Ior
	Iand
	Inot
	Fadd
	Fsub
	Fmul
	Fdiv
	Fneg
	Ieq
	Ine
	Ilt
	Ile
	Igt
	Ige
	Feq
	Fne
	Flt
	Fle
	Fgt
	Fge
	Lnot
	Goto
	IfT
	IfF
	InvokeStatic
	InvokeDynamic
	InvokeNative
	Ret
	New
)

var opcodeNames = [...]string{
	Nop: "nop", Load: "load", Store: "store", Push: "push", Pop: "pop",
	Dup: "dup", Swap: "swap", Wload: "wload", Bload: "bload",
	Wstore: "wstore", Bstore: "bstore", I2f: "i2f", F2i: "f2i",
	Iadd: "iadd", Isub: "isub", Imul: "imul", Idiv: "idiv", Irem: "irem",
	Ineg: "ineg", Iinc: "iinc", Idec: "idec",
	Ishl: "ishl", Ishr: "ishr", Ixor: "ixor", Ior: "ior", Iand: "iand", Inot: "inot",
	Fadd: "fadd", Fsub: "fsub", Fmul: "fmul", Fdiv: "fdiv", Fneg: "fneg",
	Ieq: "ieq", Ine: "ine", Ilt: "ilt", Ile: "ile", Igt: "igt", Ige: "ige",
	Feq: "feq", Fne: "fne", Flt: "flt", Fle: "fle", Fgt: "fgt", Fge: "fge",
	Lnot: "lnot", Goto: "goto_", IfT: "if_t", IfF: "if_f",
	InvokeStatic: "invoke_static", InvokeDynamic: "invoke_dynamic", InvokeNative: "invoke_native",
	Ret: "ret", New: "new_",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", int(op))
}

// Instruction is one bytecode op plus its 64-bit payload. Payload doubles
// as a raw constant for Push and as an index/target for every other
// opcode that needs one.
type Instruction struct {
	Op      Opcode
	Payload uint64
}

// WordSize is the size in bytes of every stack word, heap word, and local
// slot in the machine.
const WordSize = 8

// Function is one compiled function: its frame shape plus its code.
// Local-slot layout is captures (0..Capc), then parameters
// (Capc..Capc+Argc), then other locals (Capc+Argc..Varc).
type Function struct {
	Capc       uint16
	Argc       uint16
	Varc       uint16
	Index      uint64
	Name       string // "" for a function literal
	PointerMap []bool // len Varc; true for escaped and captured slots (box pointers); bound slots are never marked, even when they hold a closure or string address
	Code       []Instruction
}

// ClosureHeaderWords is the number of words occupied by a closure's header
// (just the function index) before its capture pointers.
const ClosureHeaderWords = 1

// FrameDataWords is the number of words occupied by a call frame's
// bookkeeping fields, ahead of its Varc locals: function index, previous
// frame pointer, return program counter.
const FrameDataWords = 3

// Disassemble renders one line per instruction, mnemonic plus raw
// payload, for the `-disasm` debugging aid. Jump targets, local slots and
// native/static call indices all share the payload field, so this prints
// the bare value rather than trying to resolve it against a table the
// bytecode package has no access to.
func (f *Function) Disassemble() string {
	var b strings.Builder
	name := f.Name
	if name == "" {
		name = fmt.Sprintf("func#%d", f.Index)
	}
	fmt.Fprintf(&b, "%s capc=%d argc=%d varc=%d\n", name, f.Capc, f.Argc, f.Varc)
	for i, instr := range f.Code {
		fmt.Fprintf(&b, "  %4d  %-16s %d\n", i, instr.Op, instr.Payload)
	}
	return b.String()
}
