// Package heap implements the runtime's bump allocator: a single
// contiguous byte arena shared by every goroutine, serialised only for
// the allocation bump itself. Reads and writes of already-allocated
// words are lock-free; the compiler's emission discipline guarantees a
// word is never written concurrently with a read of the same word except
// through a channel or an escaped-variable box.
package heap

import (
	"fmt"
	"sync"

	"github.com/goatlang/goat/internal/types"
)

// blockHeaderWords is the size, in words, of the BlockHeader that
// precedes every allocation's payload. control_bits and the mark/forward
// fields reserved for a future copying GC are folded into one word since
// this core never inspects them; type_index and count are each one word.
const blockHeaderWords = 3
const blockHeaderSize = blockHeaderWords * 8

// ErrOutOfMemory is returned when a bump would exceed the arena's
// reserved size.
var ErrOutOfMemory = fmt.Errorf("heap: out of memory")

// Heap is a bump allocator over a contiguous arena. Addresses returned by
// Allocate are byte offsets into the arena, one past that allocation's
// BlockHeader, so address 0 is reserved and never returned: it doubles as
// the language's nil/zero reference.
type Heap struct {
	mu   sync.Mutex
	data []byte
	top  uint64
	size uint64
}

// New reserves an arena of the given size in bytes. The first word is
// burned so that address 0 stays reserved for nil.
func New(size uint64) *Heap {
	h := &Heap{data: make([]byte, size), size: size}
	h.top = 8
	return h
}

// Allocate reserves one block of typ.Size*count bytes (plus header),
// returning the address of its first payload byte.
func (h *Heap) Allocate(typ *types.Type, count uint64) (uint64, error) {
	payload := typ.Size * count
	blockSize := blockHeaderSize + payload

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.top+blockSize > h.size {
		return 0, ErrOutOfMemory
	}
	headerAt := h.top
	h.writeWordLocked(headerAt, 0)               // control_bits / mark-forward, reserved
	h.writeWordLocked(headerAt+8, typ.Index)     // type_index
	h.writeWordLocked(headerAt+16, count)        // count
	addr := headerAt + blockHeaderSize
	h.top += blockSize
	return addr, nil
}

// Size reports the arena's total reserved size in bytes.
func (h *Heap) Size() uint64 { return h.size }

// Used reports how many bytes have been bumped so far, for diagnostics.
func (h *Heap) Used() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.top
}

func (h *Heap) writeWordLocked(addr uint64, v uint64) {
	for i := 0; i < 8; i++ {
		h.data[addr+uint64(i)] = byte(v >> (8 * i))
	}
}

// ReadWord loads the 8-byte word at addr + 8*slot.
func (h *Heap) ReadWord(addr uint64, slot uint64) uint64 {
	at := addr + 8*slot
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(h.data[at+uint64(i)]) << (8 * i)
	}
	return v
}

// WriteWord stores v into the 8-byte word at addr + 8*slot.
func (h *Heap) WriteWord(addr uint64, slot uint64, v uint64) {
	at := addr + 8*slot
	for i := 0; i < 8; i++ {
		h.data[at+uint64(i)] = byte(v >> (8 * i))
	}
}

// ReadByte loads the single byte at addr + offset, zero-extended to a
// word as required by the `bload` opcode.
func (h *Heap) ReadByte(addr uint64, offset uint64) uint64 {
	return uint64(h.data[addr+offset])
}

// WriteByte stores the low 8 bits of v at addr + offset.
func (h *Heap) WriteByte(addr uint64, offset uint64, v uint64) {
	h.data[addr+offset] = byte(v)
}

// TypeIndexAt returns the type_index recorded in the BlockHeader
// preceding the block at addr, from which a closure's arity can be
// recovered given only its address. The interpreter and natives do not
// call it.
func (h *Heap) TypeIndexAt(addr uint64) uint64 {
	return h.ReadWord(addr-blockHeaderSize, 1)
}
