package vm

import (
	"math"

	"github.com/goatlang/goat/internal/bytecode"
)

// Thread is one goroutine's private call stack and operand stack; it
// shares the heap, channel manager, function/type/native tables and
// string pool with the Runtime that owns it.
// Nothing here is safe to use from more than one OS thread: the interp
// loop itself has no yield points, so a Thread is only ever driven by
// the single goroutine running Thread.run.
type Thread struct {
	rt      *Runtime
	operand []uint64
	frames  []frame
	code    []bytecode.Instruction
	pc      int
}

func newThread(rt *Runtime) *Thread {
	return &Thread{rt: rt}
}

func (th *Thread) curFrame() *frame { return &th.frames[len(th.frames)-1] }

func (th *Thread) push(v uint64) error {
	maxWords := int(th.rt.Config.OperandStackSize / 8)
	if len(th.operand) >= maxWords {
		return newErr(KindStackOverflow, "operand stack exceeds %d words", maxWords)
	}
	th.operand = append(th.operand, v)
	return nil
}

func (th *Thread) pop() (uint64, error) {
	if len(th.operand) == 0 {
		return 0, newErr(KindStackUnderflow, "operand stack empty")
	}
	v := th.operand[len(th.operand)-1]
	th.operand = th.operand[:len(th.operand)-1]
	return v, nil
}

// popArgsInto writes argc popped words into locals[capc:capc+argc]:
// the caller pushed arguments left-to-right, so the last-pushed argument
// (popped first) lands in the highest slot.
func (th *Thread) popArgsInto(locals []uint64, capc, argc uint16) error {
	for i := uint16(0); i < argc; i++ {
		v, err := th.pop()
		if err != nil {
			return err
		}
		locals[capc+argc-1-i] = v
	}
	return nil
}

func (th *Thread) pushFrame(f frame) error {
	used := frameBytes(len(f.locals))
	for _, existing := range th.frames {
		used += frameBytes(len(existing.locals))
	}
	if used > th.rt.Config.CallStackSize {
		return newErr(KindStackOverflow, "call stack exceeds %d bytes", th.rt.Config.CallStackSize)
	}
	th.frames = append(th.frames, f)
	return nil
}

// run drives the fetch-decode-execute loop until the thread returns past
// its top frame (normal exit) or a runtime error aborts it.
func (th *Thread) run() error {
	for {
		if len(th.frames) == 0 {
			return nil
		}
		if th.pc >= len(th.code) {
			return newErr(KindStackUnderflow, "fell off the end of function code without ret")
		}
		instr := th.code[th.pc]
		th.pc++

		done, err := th.exec(instr)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// exec executes one instruction, returning done=true once the thread has
// returned past its last frame.
func (th *Thread) exec(instr bytecode.Instruction) (bool, error) {
	rt := th.rt
	switch instr.Op {
	case bytecode.Nop:
		// no-op

	case bytecode.Push:
		return false, th.push(instr.Payload)
	case bytecode.Pop:
		_, err := th.pop()
		return false, err
	case bytecode.Dup:
		v, err := th.pop()
		if err != nil {
			return false, err
		}
		if err := th.push(v); err != nil {
			return false, err
		}
		return false, th.push(v)
	case bytecode.Swap:
		y, err := th.pop()
		if err != nil {
			return false, err
		}
		x, err := th.pop()
		if err != nil {
			return false, err
		}
		if err := th.push(y); err != nil {
			return false, err
		}
		return false, th.push(x)

	case bytecode.Load:
		return false, th.push(th.curFrame().locals[instr.Payload])
	case bytecode.Store:
		v, err := th.pop()
		if err != nil {
			return false, err
		}
		th.curFrame().locals[instr.Payload] = v
		return false, nil

	case bytecode.Wload:
		addr, err := th.pop()
		if err != nil {
			return false, err
		}
		return false, th.push(rt.Heap.ReadWord(addr, instr.Payload))
	case bytecode.Bload:
		addr, err := th.pop()
		if err != nil {
			return false, err
		}
		return false, th.push(rt.Heap.ReadByte(addr, instr.Payload))
	case bytecode.Wstore:
		v, err := th.pop()
		if err != nil {
			return false, err
		}
		addr, err := th.pop()
		if err != nil {
			return false, err
		}
		rt.Heap.WriteWord(addr, instr.Payload, v)
		return false, nil
	case bytecode.Bstore:
		v, err := th.pop()
		if err != nil {
			return false, err
		}
		addr, err := th.pop()
		if err != nil {
			return false, err
		}
		rt.Heap.WriteByte(addr, instr.Payload, v)
		return false, nil

	case bytecode.I2f:
		v, err := th.pop()
		if err != nil {
			return false, err
		}
		return false, th.push(math.Float64bits(float64(int64(v))))
	case bytecode.F2i:
		v, err := th.pop()
		if err != nil {
			return false, err
		}
		return false, th.push(uint64(int64(math.Float64frombits(v))))

	case bytecode.Iadd, bytecode.Isub, bytecode.Imul, bytecode.Idiv, bytecode.Irem,
		bytecode.Ishl, bytecode.Ishr, bytecode.Ixor, bytecode.Ior, bytecode.Iand:
		return false, th.execIntBinary(instr.Op)
	case bytecode.Ineg, bytecode.Iinc, bytecode.Idec, bytecode.Inot:
		return false, th.execIntUnary(instr.Op)
	case bytecode.Fadd, bytecode.Fsub, bytecode.Fmul, bytecode.Fdiv:
		return false, th.execFloatBinary(instr.Op)
	case bytecode.Fneg:
		v, err := th.pop()
		if err != nil {
			return false, err
		}
		return false, th.push(math.Float64bits(-math.Float64frombits(v)))

	case bytecode.Ieq, bytecode.Ine, bytecode.Ilt, bytecode.Ile, bytecode.Igt, bytecode.Ige:
		return false, th.execIntCompare(instr.Op)
	case bytecode.Feq, bytecode.Fne, bytecode.Flt, bytecode.Fle, bytecode.Fgt, bytecode.Fge:
		return false, th.execFloatCompare(instr.Op)

	case bytecode.Lnot:
		v, err := th.pop()
		if err != nil {
			return false, err
		}
		if v == 0 {
			return false, th.push(1)
		}
		return false, th.push(0)

	case bytecode.Goto:
		th.pc = int(instr.Payload)
		return false, nil
	case bytecode.IfT:
		v, err := th.pop()
		if err != nil {
			return false, err
		}
		if v != 0 {
			th.pc = int(instr.Payload)
		}
		return false, nil
	case bytecode.IfF:
		v, err := th.pop()
		if err != nil {
			return false, err
		}
		if v == 0 {
			th.pc = int(instr.Payload)
		}
		return false, nil

	case bytecode.InvokeStatic:
		return false, th.invokeStatic(instr.Payload)
	case bytecode.InvokeDynamic:
		return false, th.invokeDynamic()
	case bytecode.InvokeNative:
		fn, ok := rt.natives[instr.Payload]
		if !ok {
			return false, newErr(KindBadInstruction, "unknown native index %d", instr.Payload)
		}
		return false, fn(rt, th)

	case bytecode.Ret:
		return th.execRet()

	case bytecode.New:
		typ := rt.Program.Types.Get(instr.Payload)
		addr, err := rt.Heap.Allocate(typ, 1)
		if err != nil {
			return false, newErr(KindOutOfMemory, "%v", err)
		}
		return false, th.push(addr)
	}
	return false, nil
}

func (th *Thread) execIntBinary(op bytecode.Opcode) error {
	b, err := th.pop()
	if err != nil {
		return err
	}
	a, err := th.pop()
	if err != nil {
		return err
	}
	ai, bi := int64(a), int64(b)
	var result int64
	switch op {
	case bytecode.Iadd:
		result = ai + bi
	case bytecode.Isub:
		result = ai - bi
	case bytecode.Imul:
		result = ai * bi
	case bytecode.Idiv:
		if bi == 0 {
			return newErr(KindArithmetic, "integer division by zero")
		}
		result = ai / bi
	case bytecode.Irem:
		if bi == 0 {
			return newErr(KindArithmetic, "integer division by zero")
		}
		result = ai % bi
	case bytecode.Ishl:
		return th.push(uint64(a) << (uint64(b) & 63))
	case bytecode.Ishr:
		return th.push(uint64(a) >> (uint64(b) & 63))
	case bytecode.Ixor:
		return th.push(a ^ b)
	case bytecode.Ior:
		return th.push(a | b)
	case bytecode.Iand:
		return th.push(a & b)
	}
	return th.push(uint64(result))
}

func (th *Thread) execIntUnary(op bytecode.Opcode) error {
	v, err := th.pop()
	if err != nil {
		return err
	}
	switch op {
	case bytecode.Ineg:
		return th.push(uint64(-int64(v)))
	case bytecode.Iinc:
		return th.push(uint64(int64(v) + 1))
	case bytecode.Idec:
		return th.push(uint64(int64(v) - 1))
	case bytecode.Inot:
		return th.push(^v)
	}
	return nil
}

func (th *Thread) execFloatBinary(op bytecode.Opcode) error {
	b, err := th.pop()
	if err != nil {
		return err
	}
	a, err := th.pop()
	if err != nil {
		return err
	}
	af, bf := math.Float64frombits(a), math.Float64frombits(b)
	var result float64
	switch op {
	case bytecode.Fadd:
		result = af + bf
	case bytecode.Fsub:
		result = af - bf
	case bytecode.Fmul:
		result = af * bf
	case bytecode.Fdiv:
		result = af / bf
	}
	return th.push(math.Float64bits(result))
}

func (th *Thread) execIntCompare(op bytecode.Opcode) error {
	b, err := th.pop()
	if err != nil {
		return err
	}
	a, err := th.pop()
	if err != nil {
		return err
	}
	ai, bi := int64(a), int64(b)
	var r bool
	switch op {
	case bytecode.Ieq:
		r = ai == bi
	case bytecode.Ine:
		r = ai != bi
	case bytecode.Ilt:
		r = ai < bi
	case bytecode.Ile:
		r = ai <= bi
	case bytecode.Igt:
		r = ai > bi
	case bytecode.Ige:
		r = ai >= bi
	}
	return th.pushBool(r)
}

func (th *Thread) execFloatCompare(op bytecode.Opcode) error {
	b, err := th.pop()
	if err != nil {
		return err
	}
	a, err := th.pop()
	if err != nil {
		return err
	}
	af, bf := math.Float64frombits(a), math.Float64frombits(b)
	var r bool
	switch op {
	case bytecode.Feq:
		r = af == bf
	case bytecode.Fne:
		r = af != bf
	case bytecode.Flt:
		r = af < bf
	case bytecode.Fle:
		r = af <= bf
	case bytecode.Fgt:
		r = af > bf
	case bytecode.Fge:
		r = af >= bf
	}
	return th.pushBool(r)
}

func (th *Thread) pushBool(b bool) error {
	if b {
		return th.push(1)
	}
	return th.push(0)
}

func (th *Thread) invokeStatic(idx uint64) error {
	fn := th.rt.Program.Functions[idx]
	returnPC := th.pc
	locals := make([]uint64, fn.Varc)
	if err := th.popArgsInto(locals, fn.Capc, fn.Argc); err != nil {
		return err
	}
	if err := th.pushFrame(frame{
		functionIndex: idx,
		returnPC:      returnPC,
		previousFP:    len(th.frames) - 1,
		locals:        locals,
	}); err != nil {
		return err
	}
	th.code = fn.Code
	th.pc = 0
	return nil
}

func (th *Thread) invokeDynamic() error {
	closureAddr, err := th.pop()
	if err != nil {
		return err
	}
	rt := th.rt
	idx := rt.Heap.ReadWord(closureAddr, 0)
	fn := rt.Program.Functions[idx]
	returnPC := th.pc
	locals := make([]uint64, fn.Varc)
	for i := uint16(0); i < fn.Capc; i++ {
		locals[i] = rt.Heap.ReadWord(closureAddr, uint64(i)+1)
	}
	if err := th.popArgsInto(locals, fn.Capc, fn.Argc); err != nil {
		return err
	}
	if err := th.pushFrame(frame{
		functionIndex: idx,
		returnPC:      returnPC,
		previousFP:    len(th.frames) - 1,
		locals:        locals,
	}); err != nil {
		return err
	}
	th.code = fn.Code
	th.pc = 0
	return nil
}

// execRet pops the current frame, resuming the caller's code at its
// saved return_pc, or reports done=true if the call stack is now empty.
func (th *Thread) execRet() (bool, error) {
	returned := th.frames[len(th.frames)-1]
	th.frames = th.frames[:len(th.frames)-1]
	if len(th.frames) == 0 {
		return true, nil
	}
	caller := th.frames[len(th.frames)-1]
	th.pc = returned.returnPC
	th.code = th.rt.Program.Functions[caller.functionIndex].Code
	return false, nil
}
