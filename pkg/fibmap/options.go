package fibmap

import "math/bits"

// Defaults and hard bounds. These are part of the table's contract: the
// constructors sanitise rather than reject, so any Options value yields a
// working table.
const (
	// hardMinLog2Size is the smallest space any table will use.
	hardMinLog2Size = 5
	// hardMaxLog2Size caps log2 sizing at the key width.
	hardMaxLog2Size = maxBits

	// DefaultLog2Size is the initial space size used by NewDefault.
	DefaultLog2Size = 5
	// DefaultGrowLoad is the load factor above which the table grows.
	DefaultGrowLoad = 0.7
	// DefaultShrinkLoad is the load factor below which the table shrinks.
	DefaultShrinkLoad = 0.25
	// DefaultOffsetMult scales log2Size into the probe-length limit.
	DefaultOffsetMult = 1

	// MinBatchSize is the fewest secondary slots scanned per mutation
	// during a batched migration.
	MinBatchSize = 4

	// MigrateAll as a BatchSize requests whole-table migration at resize
	// time instead of batched draining. It is the zero value on purpose:
	// an unset BatchSize selects the classical rehash behaviour.
	MigrateAll = 0
)

// Options configure New. Zero or out-of-range fields are replaced by
// defaults; see New for the exact rules.
type Options struct {
	// Log2Size is the log2 of the initial (and minimum) space size.
	// Clamped to [5, 32].
	Log2Size uint32

	// GrowLoad is the load factor watermark that triggers growth.
	// Values outside (0, 1) become DefaultGrowLoad.
	GrowLoad float64

	// ShrinkLoad is the load factor watermark that triggers shrinking.
	// Values outside (0, 1) become DefaultShrinkLoad, and it is lowered
	// to GrowLoad/2 if above it, so a shrink cannot immediately re-grow
	// once its migration completes.
	ShrinkLoad float64

	// OffsetMult scales log2Size into the maximum tolerated probe length.
	// Zero becomes DefaultOffsetMult.
	OffsetMult uint32

	// BatchSize is the number of secondary slots to scan per mutation
	// while a migration is active. MigrateAll (the zero value) drains the
	// whole old space at resize time. Any other value is raised to at
	// least ceil(GrowLoad/ShrinkLoad)+1 and MinBatchSize, which
	// guarantees the drain finishes before the new primary can reach its
	// grow watermark again.
	BatchSize uint32
}

// New constructs a table with custom parameters, sanitising them as
// documented on Options.
func New(opts Options) *Table {
	t := &Table{}

	t.minSize = opts.Log2Size
	if t.minSize < hardMinLog2Size {
		t.minSize = hardMinLog2Size
	}

	if t.minSize > hardMaxLog2Size {
		t.minSize = hardMaxLog2Size
	}

	t.growLoad = opts.GrowLoad
	if t.growLoad <= 0 || t.growLoad >= 1 {
		t.growLoad = DefaultGrowLoad
	}

	t.shrinkLoad = opts.ShrinkLoad
	if t.shrinkLoad <= 0 || t.shrinkLoad >= 1 {
		t.shrinkLoad = DefaultShrinkLoad
	}

	if t.shrinkLoad > t.growLoad/2 {
		t.shrinkLoad = t.growLoad / 2
	}

	t.offsetMult = opts.OffsetMult
	if t.offsetMult == 0 {
		t.offsetMult = DefaultOffsetMult
	}

	t.batchSize = opts.BatchSize
	if t.batchSize != MigrateAll {
		if need := ceilRatio(t.growLoad, t.shrinkLoad) + 1; t.batchSize < need {
			t.batchSize = need
		}

		if t.batchSize < MinBatchSize {
			t.batchSize = MinBatchSize
		}
	}

	t.initSpace(&t.spaces[0], t.minSize)

	return t
}

// NewDefault constructs a table with all defaults: 32 slots, 0.7/0.25
// loads, offset multiplier 1 and the minimal migration batch.
func NewDefault() *Table {
	return NewLog2(DefaultLog2Size)
}

// NewLog2 constructs a table of 2^log2Size slots with default loads and
// batched migration.
func NewLog2(log2Size uint32) *Table {
	return New(Options{Log2Size: log2Size, BatchSize: MinBatchSize})
}

// NewForCapacity constructs a table whose initial size is the smallest
// power of two (at least 2^5) with itemCount below DefaultGrowLoad times the
// size. The grow trigger compares the count with floor(size*GrowLoad), so an
// itemCount equal to that floor still reaches it, and the probe-length
// trigger applies as for any table.
func NewForCapacity(itemCount uint32) *Table {
	log2 := uint32(0)
	if itemCount > 1 {
		log2 = uint32(bits.Len32(itemCount - 1))
	}

	for log2 < hardMaxLog2Size && float64(itemCount) >= DefaultGrowLoad*float64(uint64(1)<<log2) {
		log2++
	}

	return New(Options{Log2Size: log2, BatchSize: MinBatchSize})
}

// ceilRatio returns ceil(a/b) for positive floats, as a uint32.
func ceilRatio(a, b float64) uint32 {
	n := uint32(a / b)
	if float64(n)*b < a {
		n++
	}

	return n
}
