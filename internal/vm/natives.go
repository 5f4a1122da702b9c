// Native-function handlers, installed under the stable indices defined
// by internal/native. Each handler freely pops its own arguments from
// the calling Thread's operand stack and pushes its own results.
package vm

import (
	"fmt"
	"math"

	"github.com/goatlang/goat/internal/native"
)

func registerNatives() map[uint64]nativeFunc {
	return map[uint64]nativeFunc{
		uint64(native.NewThread): nativeNewThread,
		uint64(native.NewChan):   nativeNewChan,
		uint64(native.ChanSend):  nativeChanSend,
		uint64(native.ChanRecv):  nativeChanRecv,
		uint64(native.Sprint):    nativeSprint,
		uint64(native.Iprint):    nativeIprint,
		uint64(native.Fprint):    nativeFprint,
	}
}

// nativeNewThread implements `go f(args...)`: …, args…, closure → … . It
// resolves the closure's function index and capture pointers, installs
// the already-evaluated arguments into the new thread's parameter slots,
// and hands the new Thread to the goroutine pool to run on its own OS
// thread.
func nativeNewThread(rt *Runtime, th *Thread) error {
	closureAddr, err := th.pop()
	if err != nil {
		return err
	}
	idx := rt.Heap.ReadWord(closureAddr, 0)
	fn := rt.Program.Functions[idx]

	locals := make([]uint64, fn.Varc)
	if err := th.popArgsInto(locals, fn.Capc, fn.Argc); err != nil {
		return err
	}
	for i := uint16(0); i < fn.Capc; i++ {
		locals[i] = rt.Heap.ReadWord(closureAddr, uint64(i)+1)
	}

	spawned := newThread(rt)
	spawned.code = fn.Code
	spawned.pc = 0
	if err := spawned.pushFrame(frame{
		functionIndex: idx,
		returnPC:      -1,
		previousFP:    -1,
		locals:        locals,
	}); err != nil {
		return err
	}

	rt.Pool.Go(spawned.run)
	return nil
}

// nativeNewChan implements `make(chan Elem, capacity)`: …, capacity →
// …, channel. The channel value itself is a one-word handle, not a heap
// pointer: types.ChannelType is sized as a single word precisely so it
// can be pushed and stored like any scalar.
func nativeNewChan(rt *Runtime, th *Thread) error {
	capacity, err := th.pop()
	if err != nil {
		return err
	}
	idx := rt.Channels.NewChannel(int(int64(capacity)))
	return th.push(idx)
}

// nativeChanSend implements `ch <- v`: …, channel, item_box → … .
func nativeChanSend(rt *Runtime, th *Thread) error {
	itemBox, err := th.pop()
	if err != nil {
		return err
	}
	chanIdx, err := th.pop()
	if err != nil {
		return err
	}
	rt.Channels.Get(chanIdx).Push(itemBox)
	return nil
}

// nativeChanRecv implements `<- ch`: …, channel → …, item_box.
func nativeChanRecv(rt *Runtime, th *Thread) error {
	chanIdx, err := th.pop()
	if err != nil {
		return err
	}
	box := rt.Channels.Get(chanIdx).Pop()
	return th.push(box)
}

// nativeSprint implements the String print builtin: …, string_box → … .
// The box is the one-word cell emitted for every string literal,
// dereferenced through its pool index.
func nativeSprint(rt *Runtime, th *Thread) error {
	box, err := th.pop()
	if err != nil {
		return err
	}
	poolIdx := rt.Heap.ReadWord(box, 0)
	fmt.Fprintln(rt.Stdout, rt.Program.Strings.Get(poolIdx))
	return nil
}

// nativeIprint implements the Int print builtin: …, int → … .
func nativeIprint(rt *Runtime, th *Thread) error {
	v, err := th.pop()
	if err != nil {
		return err
	}
	fmt.Fprintln(rt.Stdout, int64(v))
	return nil
}

// nativeFprint implements the Float print builtin: …, float → … .
func nativeFprint(rt *Runtime, th *Thread) error {
	v, err := th.pop()
	if err != nil {
		return err
	}
	fmt.Fprintln(rt.Stdout, math.Float64frombits(v))
	return nil
}
