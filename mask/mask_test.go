package mask

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecomposeCoversExactlyOnce(t *testing.T) {
	ranges := [][2]uint64{
		{0, 7}, {0, 100}, {5, 5}, {100, 200}, {1, 1000}, {0, math.MaxUint64},
	}

	for _, r := range ranges {
		a, b := r[0], r[1]
		blocks := Decompose(a, b)
		require.LessOrEqual(t, len(blocks), 2*len(Table), "a=%d b=%d", a, b)

		// Exhaustively checking every t in [a,b] is infeasible for large
		// ranges, so sample: every block boundary, plus the range's own
		// endpoints.
		for _, blk := range blocks {
			width := uint64(1) << Table[blk.MaskIdx]
			for _, t := range []uint64{blk.Start, blk.Start + width - 1} {
				if t < a || t > b {
					continue
				}
				hits := 0
				for _, other := range blocks {
					if Contains(other.Start, other.MaskIdx, t) {
						hits++
					}
				}
				require.Equal(t, 1, hits, "t=%d covered %d times", t, hits)
			}
		}
	}
}

func TestDecomposeIsDeterministic(t *testing.T) {
	require.Equal(t, Decompose(0, 100), Decompose(0, 100))
}

func TestDecomposeReferenceLadder(t *testing.T) {
	// Table == {0,2,4,...,62}; decompose(0,7) widens as far as the ladder
	// and the upper bound allow: two width-4 blocks (mask index 1) at 0 and 4.
	blocks := Decompose(0, 7)
	require.NotEmpty(t, blocks)
	require.Equal(t, uint64(0), blocks[0].Start)

	total := uint64(0)
	for _, b := range blocks {
		total += uint64(1) << Table[b.MaskIdx]
	}
	require.Equal(t, uint64(8), total)
}

func TestDecomposeSingleton(t *testing.T) {
	blocks := Decompose(42, 42)
	require.Len(t, blocks, 1)
	require.Equal(t, uint64(42), blocks[0].Start)
	require.Equal(t, uint8(0), blocks[0].MaskIdx)
}

func TestContainsMembership(t *testing.T) {
	// Table[1] == 2, a width-4 block aligned on 100 covers [100,103].
	require.True(t, Contains(100, 1, 100))
	require.True(t, Contains(100, 1, 103))
	require.False(t, Contains(100, 1, 104))
}

func TestAlignDown(t *testing.T) {
	require.Equal(t, uint64(100), AlignDown(103, 1))
	require.Equal(t, uint64(0), AlignDown(3, 1))
}

func TestDecomposePanicsOnInvertedRange(t *testing.T) {
	require.Panics(t, func() { Decompose(10, 5) })
}
