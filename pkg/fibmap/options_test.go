package fibmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_New_Clamps_Log2Size_To_Hard_Bounds(t *testing.T) {
	t.Parallel()

	low := New(Options{Log2Size: 3})
	assert.Equal(t, uint32(5), low.minSize)
	assert.Equal(t, uint32(32), low.spaces[0].size)

	high := New(Options{Log2Size: 40})
	assert.Equal(t, uint32(32), high.minSize)
}

func Test_New_Replaces_Out_Of_Range_Loads_With_Defaults(t *testing.T) {
	t.Parallel()

	for _, bad := range []float64{0, 1, 1.5, -0.3} {
		tbl := New(Options{GrowLoad: bad, ShrinkLoad: bad})

		assert.InDelta(t, DefaultGrowLoad, tbl.growLoad, 1e-9, "growLoad %v", bad)
		assert.InDelta(t, DefaultShrinkLoad, tbl.shrinkLoad, 1e-9, "shrinkLoad %v", bad)
	}
}

func Test_New_Caps_ShrinkLoad_At_Half_GrowLoad(t *testing.T) {
	t.Parallel()

	tbl := New(Options{GrowLoad: 0.6, ShrinkLoad: 0.5})

	assert.InDelta(t, 0.3, tbl.shrinkLoad, 1e-9)
}

func Test_New_Raises_BatchSize_To_Cover_Migration(t *testing.T) {
	t.Parallel()

	// Default loads: ceil(0.7/0.25)+1 = 4.
	assert.Equal(t, uint32(4), New(Options{BatchSize: 1}).batchSize)
	assert.Equal(t, uint32(12), New(Options{BatchSize: 12}).batchSize)

	// Wide load spread needs a bigger batch than the floor of 4.
	wide := New(Options{GrowLoad: 0.9, ShrinkLoad: 0.1, BatchSize: 2})
	assert.Equal(t, uint32(10), wide.batchSize)

	// The sentinel is never touched.
	assert.Equal(t, uint32(MigrateAll), New(Options{BatchSize: MigrateAll}).batchSize)
}

func Test_New_Defaults_OffsetMult_And_Scales_OffsetLimit(t *testing.T) {
	t.Parallel()

	tbl := New(Options{})
	assert.Equal(t, uint32(DefaultOffsetMult), tbl.offsetMult)
	assert.Equal(t, uint32(5), tbl.spaces[0].offsetLimit)

	tripled := New(Options{Log2Size: 6, OffsetMult: 3})
	assert.Equal(t, uint32(18), tripled.spaces[0].offsetLimit)
}

func Test_NewDefault_Uses_Documented_Defaults(t *testing.T) {
	t.Parallel()

	tbl := NewDefault()

	require.Equal(t, uint32(DefaultLog2Size), tbl.spaces[0].log2Size)
	assert.Equal(t, uint32(32), tbl.spaces[0].size)
	assert.Equal(t, uint32(31), tbl.spaces[0].mask)
	assert.Equal(t, uint32(27), tbl.spaces[0].shift)
	assert.InDelta(t, DefaultGrowLoad, tbl.growLoad, 1e-9)
	assert.InDelta(t, DefaultShrinkLoad, tbl.shrinkLoad, 1e-9)
	assert.Equal(t, uint32(MinBatchSize), tbl.batchSize)
	assert.Equal(t, uint32(22), tbl.growCount, "floor(32*0.7)")
	assert.Equal(t, uint32(8), tbl.shrinkCount, "floor(32*0.25)")
}

func Test_Index_Mixing_Spreads_Sequential_Keys(t *testing.T) {
	t.Parallel()

	s := &NewLog2(8).spaces[0]

	hits := make(map[uint32]int)
	for k := uint32(0); k < 256; k++ {
		idx := s.index(k)
		require.Less(t, idx, s.size)
		hits[idx]++
	}

	// Fibonacci mixing must not pile sequential keys into a few slots.
	for idx, n := range hits {
		assert.LessOrEqual(t, n, 4, "slot %d", idx)
	}

	assert.Greater(t, len(hits), 128, "sequential keys landed in too few distinct slots")
}
