// Package fibmap provides an in-memory table mapping 32-bit unsigned keys to
// integer values.
//
// The table is a mapping structure, not a general-purpose hash table: keys
// are expected to already be fingerprints (e.g. xxhash of a string folded to
// 32 bits), so key diffusion from arbitrary domains is the caller's job. The
// engine itself only applies Fibonacci index mixing on top.
//
// Storage is open-addressed with linear probing, Robin Hood displacement on
// insert and backward-shift on delete, so there are no tombstones. Resizing
// is incremental: the table holds two spaces, and after a grow or shrink
// trigger the old space is drained into the new one a bounded number of
// slots per mutation. With BatchSize set to MigrateAll the drain happens in
// one pass at trigger time, which is the classical rehash behaviour.
//
// A Table is not safe for concurrent use. Entry pointers returned by Put and
// Get are borrows: they are valid only until the next Put, Remove or Free on
// the same table, because displacement, backward shift and migration may
// move any entry to any other slot in either space.
package fibmap

// Entry is a single table slot. Offset is the probe length: the distance
// from the key's ideal slot to the slot it actually occupies.
type Entry struct {
	Key    uint32
	Offset uint32
	Value  int
	inuse  bool
}

// InUse reports whether the entry holds a live key. It is false for entries
// whose slot was cleared by a remove or lazily vacated by migration after
// the pointer was handed out.
func (e *Entry) InUse() bool { return e.inuse }

// Table maps 32-bit keys to int values. The zero value is not usable; use
// one of the constructors.
type Table struct {
	spaces      [2]space
	current     uint8
	count       uint32
	minSize     uint32
	growCount   uint32
	shrinkCount uint32
	toMigrate   uint32
	migratePos  uint32
	offsetMult  uint32
	batchSize   uint32
	migrateDir  int
	growLoad    float64
	shrinkLoad  float64
}

// Resize directions.
const (
	growDir   = 1
	shrinkDir = -1
)

// initSpace prepares s as a fresh primary of 2^log2Size slots (clamped to
// the table minimum) and recomputes the table's integer load watermarks so
// per-operation checks need no float math. Buckets stay nil until the first
// insert.
func (t *Table) initSpace(s *space, log2Size uint32) {
	n := log2Size
	if n < t.minSize {
		n = t.minSize
	}

	s.log2Size = n
	s.size = 1 << n
	s.mask = s.size - 1
	s.shift = maxBits - n
	s.offsetLimit = t.offsetMult * n
	s.maxOffset = 0
	s.buckets = nil

	t.shrinkCount = uint32(float64(s.size) * t.shrinkLoad)
	t.growCount = uint32(float64(s.size) * t.growLoad)

	// Growing strictly before the space fills keeps the insert probe loop
	// finite.
	if t.growCount > s.mask {
		t.growCount = s.mask
	}
}

// migrate advances the drain of the secondary space into the primary by up
// to batch slots. Live entries are re-inserted into the primary and lazily
// deleted (inuse cleared, no backward shift) in the secondary. When the last
// slot has been scanned the secondary's buckets are released.
func (t *Table) migrate(batch uint32) {
	migrated := uint32(0)
	left := t.toMigrate
	pos := t.migratePos

	cur := &t.spaces[t.current]
	other := &t.spaces[t.current^1]

	for left > 0 && migrated < batch {
		e := &other.buckets[pos]
		if e.inuse {
			cur.insert(e.Key, e.Value)
			e.inuse = false
		}

		pos++
		migrated++
		left--
	}

	if left == 0 {
		t.migrateDir = 0
		t.toMigrate = 0
		t.migratePos = 0
		other.buckets = nil

		return
	}

	t.toMigrate = left
	t.migratePos = pos
}

// triggerResize swaps the spaces and arms migration of the old primary.
// dir is growDir or shrinkDir. An empty table takes the cold-restart path
// instead: both bucket arrays are released and the new primary starts at
// the minimum size.
func (t *Table) triggerResize(dir int) {
	cur := t.current
	s := &t.spaces[cur]
	newSize := uint32(int(s.log2Size) + dir)

	if t.count > 0 {
		t.migrateDir = dir
		t.toMigrate = s.size
		t.migratePos = 0
	} else {
		t.spaces[0].buckets = nil
		t.spaces[1].buckets = nil
		newSize = t.minSize
	}

	cur ^= 1
	t.current = cur
	t.initSpace(&t.spaces[cur], newSize)

	if t.batchSize == MigrateAll && t.count > 0 {
		t.migrate(t.toMigrate)
	}
}

// Get returns the entry for key and whether it exists. During a migration
// the secondary space is consulted when the primary misses.
//
// The returned pointer is valid only until the next mutating call.
func (t *Table) Get(key uint32) (*Entry, bool) {
	pri := &t.spaces[t.current]

	e := pri.fetch(key, pri.maxOffset)
	if e == nil && t.toMigrate > 0 {
		sec := &t.spaces[t.current^1]
		e = sec.fetch(key, sec.maxOffset)
	}

	if e == nil {
		return nil, false
	}

	return e, true
}

// Put inserts key with value. If the key already exists anywhere in the
// table, the existing entry is returned with exists == true and nothing is
// mutated, not even the value; remove and re-put to replace a value. A new
// key returns its entry with exists == false.
//
// The returned pointer is valid only until the next mutating call.
func (t *Table) Put(key uint32, value int) (*Entry, bool) {
	if t.toMigrate > 0 {
		other := &t.spaces[t.current^1]

		// A key still sitting in the secondary must not be duplicated in
		// the primary. Found means no migration step for this call.
		if e := other.fetch(key, other.maxOffset); e != nil {
			return e, true
		}

		t.migrate(t.batchSize)
	}

	cur := &t.spaces[t.current]

	e, exists := cur.insert(key, value)
	if exists {
		return e, true
	}

	t.count++

	if t.toMigrate == 0 && (cur.maxOffset >= cur.offsetLimit || t.count >= t.growCount) {
		t.triggerResize(growDir)

		// A whole-table drain has already moved the new entry out of the
		// slot e points at; hand out its live copy in the new primary.
		if !e.inuse {
			pri := &t.spaces[t.current]
			e = pri.fetch(key, pri.maxOffset)
		}
	}

	return e, false
}

// Remove deletes key from the table, reporting whether it was present.
func (t *Table) Remove(key uint32) bool {
	if t.toMigrate > 0 {
		other := &t.spaces[t.current^1]

		if other.remove(key, other.maxOffset) {
			t.count--
			t.migrate(t.batchSize)

			return true
		}

		t.migrate(t.batchSize)
	}

	cur := &t.spaces[t.current]

	if !cur.remove(key, cur.maxOffset) {
		return false
	}

	t.count--

	if t.toMigrate == 0 && t.count <= t.shrinkCount && cur.log2Size > t.minSize {
		t.triggerResize(shrinkDir)
	}

	return true
}

// Len returns the number of live keys across both spaces.
func (t *Table) Len() int { return int(t.count) }

// Free releases both bucket arrays and zeroes the table. Using the table
// after Free is undefined; re-initialise with a constructor instead.
func (t *Table) Free() { *t = Table{} }
