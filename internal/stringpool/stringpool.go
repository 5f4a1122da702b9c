// Package stringpool implements the append-only string table shared by
// the compiler (which interns literals) and the runtime (whose print
// natives dereference pool indices back into bytes).
package stringpool

// Pool is an append-only vector of immutable byte strings, frozen for
// reading once compilation hands it to the runtime.
type Pool struct {
	strings []string
	byValue map[string]uint64
}

// New returns an empty pool.
func New() *Pool {
	return &Pool{byValue: make(map[string]uint64)}
}

// Intern returns s's index, assigning it a fresh one if s has not been
// seen before.
func (p *Pool) Intern(s string) uint64 {
	if idx, ok := p.byValue[s]; ok {
		return idx
	}
	idx := uint64(len(p.strings))
	p.strings = append(p.strings, s)
	p.byValue[s] = idx
	return idx
}

// Get returns the string stored at idx.
func (p *Pool) Get(idx uint64) string {
	return p.strings[idx]
}

// Len reports how many strings have been interned.
func (p *Pool) Len() int { return len(p.strings) }
