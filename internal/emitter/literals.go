package emitter

import (
	"math"
	"strconv"
)

// parseIntBits renders an integer literal's source text as the raw word
// pushed by `push`: a signed 64-bit value reinterpreted bit-for-bit.
func parseIntBits(text string) uint64 {
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0
	}
	return uint64(n)
}

// parseFloatBits renders a float literal's source text as the IEEE-754
// bit pattern pushed by `push`.
func parseFloatBits(text string) uint64 {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return math.Float64bits(f)
}
