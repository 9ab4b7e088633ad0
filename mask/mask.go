// Package mask implements the hierarchical time-range key derivation ladder
// (the "mask ladder"): factoring any closed interval [a,b] of uint64
// timestamps into the minimal sequence of power-of-two-aligned bit-ranges
// the rest of this module keys material against.
package mask

import "fmt"

// Table is the compile-time ladder of bit widths used to build subscription
// keys at multiple time-range granularities. It MUST be identical on the
// headend and on the decoder; Block.MaskIdx values on the wire are indices
// into this slice.
//
// Table[0] == 0 (exact, per-timestamp match); Table is strictly increasing;
// Table[len(Table)-1] < 64. The reference ladder below gives M=32 levels,
// widening by 2 bits at each step.
var Table = buildTable()

func buildTable() []uint8 {
	t := make([]uint8, 0, 32)
	for w := uint8(0); w <= 62; w += 2 {
		t = append(t, w)
	}
	return t
}

func init() {
	if len(Table) == 0 || Table[0] != 0 {
		panic("mask: Table must start at 0")
	}
	for i := 1; i < len(Table); i++ {
		if Table[i] <= Table[i-1] {
			panic("mask: Table must be strictly increasing")
		}
	}
	if Table[len(Table)-1] >= 64 {
		panic("mask: Table must stay below 64 bits")
	}
}

// Block is one emitted element of a decomposition: a timestamp range
// [Start, Start+2^Table[MaskIdx]-1] entirely covered by a single bit-range
// key.
type Block struct {
	Start   uint64
	MaskIdx uint8
}

// span returns (1<<w)-1, the inclusive width of a block at mask index idx.
// w stays below 64 per Table's invariant, so the shift never overflows.
func span(idx int) uint64 {
	return (uint64(1) << Table[idx]) - 1
}

// Decompose produces the unique greedy decomposition of the closed interval
// [a,b] into maximally-wide power-of-two-aligned blocks drawn from Table.
// a MUST be <= b. Every t in [a,b] is covered by exactly one returned block,
// and the result is a pure function of a, b, and Table — headend and
// decoder agree on it without coordination.
func Decompose(a, b uint64) []Block {
	if a > b {
		panic(fmt.Sprintf("mask: Decompose called with a > b (%d > %d)", a, b))
	}

	var blocks []Block
	idx := 0

	for a <= b {
		for idx < len(Table)-1 {
			nextSpan := span(idx + 1)
			if a&nextSpan == 0 && a|nextSpan <= b {
				idx++
				continue
			}
			break
		}

		blocks = append(blocks, Block{Start: a, MaskIdx: uint8(idx)})

		next := (a | span(idx)) + 1
		if next == 0 {
			// Advancement overflowed uint64; [a,b] reached math.MaxUint64.
			break
		}
		a = next
		idx = 0
	}

	return blocks
}

// Contains reports whether the block (tStart, maskIdx) covers timestamp t,
// via the membership test (tStart XOR t) >> Table[maskIdx] == 0.
func Contains(tStart uint64, maskIdx uint8, t uint64) bool {
	return (tStart^t)>>Table[maskIdx] == 0
}

// AlignDown returns t with its low Table[maskIdx] bits cleared — the start
// of the bit-range block at maskIdx that contains t.
func AlignDown(t uint64, maskIdx uint8) uint64 {
	return t &^ span(int(maskIdx))
}
