// Package prng provides a counter-mode pseudo-random generator.
//
// Every draw is a pure function of its arguments: the arguments are joined
// into a key, hashed with blake2s, and the digest is split into eight uint32
// values. Callers derive independent streams by adding a stream name to the
// arguments, so that changing how many values one stream consumes never
// shifts the values of another.
package prng

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2s"
)

// BlockSize is the number of values produced per hash block.
const BlockSize = 8

const maxUint32 = float64(^uint32(0))

// Key joins the arguments into a slash-separated hash key.
func Key(args ...any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, "/")
}

// Uint32s returns the eight uint32 values of the block keyed by args.
func Uint32s(args ...any) [BlockSize]uint32 {
	sum := blake2s.Sum256([]byte(Key(args...)))
	var out [BlockSize]uint32
	for i := range out {
		out[i] = binary.BigEndian.Uint32(sum[i*4:])
	}
	return out
}

// Floats returns n floats in [0,1] drawn from the stream keyed by args.
func Floats(n int, args ...any) []float64 {
	if n <= 0 {
		return nil
	}
	key := Key(args...)
	out := make([]float64, 0, n)
	for block := 0; len(out) < n; block++ {
		for _, v := range Uint32s(key, block) {
			if len(out) == n {
				break
			}
			out = append(out, float64(v)/maxUint32)
		}
	}
	return out
}

// Stream is an unbounded sequence of floats in [0,1].
// It is not safe for concurrent use.
type Stream struct {
	key   string
	block int
	buf   [BlockSize]uint32
	pos   int
}

// NewStream starts a stream keyed by args.
func NewStream(args ...any) *Stream {
	return &Stream{key: Key(args...), pos: BlockSize}
}

// Float64 returns the next value in [0,1].
func (s *Stream) Float64() float64 {
	if s.pos == BlockSize {
		s.buf = Uint32s(s.key, s.block)
		s.block++
		s.pos = 0
	}
	v := s.buf[s.pos]
	s.pos++
	return float64(v) / maxUint32
}

// Range returns the next value scaled into [lo,hi).
func (s *Stream) Range(lo, hi float64) float64 {
	return lo + (hi-lo)*s.Float64()
}

// Intn returns the next value as an int in [0,n). n must be positive.
func (s *Stream) Intn(n int) int {
	v := int(s.Float64() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}
