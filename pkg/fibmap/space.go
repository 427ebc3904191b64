package fibmap

// fibBase32 is floor(2^32 / phi), the 32-bit Fibonacci multiplier.
const fibBase32 = 0x9E3779B9

// maxBits is the key width. The arithmetic below is specialised to 32-bit
// keys; a 64-bit variant would swap the base constant and this width.
const maxBits = 32

// space is one of the table's two bucket arrays together with its derived
// sizing parameters. The buckets slice stays nil until the first insert.
type space struct {
	buckets     []Entry
	mask        uint32
	log2Size    uint32
	shift       uint32
	size        uint32
	offsetLimit uint32
	maxOffset   uint32
}

// index returns the ideal slot for key: Fibonacci multiplication with XOR
// pre-mixing, taking the top log2Size bits of the wrapped 32-bit product.
// The XOR folds the high bits down so runs of sequential keys still spread.
func (s *space) index(key uint32) uint32 {
	return ((key ^ (key >> s.shift)) * fibBase32) >> s.shift
}

// insert places key/value into the space, displacing richer entries Robin
// Hood style. If the key is already live, the existing entry is returned
// with true and nothing is written. Otherwise the returned pointer is the
// slot the new entry ended up in, which is not necessarily where the probe
// loop terminated: a displaced entry may have been carried further.
//
// The probe loop terminates because a resize is always triggered before the
// primary fills completely (growCount is clamped below the size).
func (s *space) insert(key uint32, value int) (*Entry, bool) {
	if s.buckets == nil {
		s.buckets = make([]Entry, s.size)
	}

	idx := s.index(key)
	cand := Entry{Key: key, Value: value, Offset: 0, inuse: true}

	placed := false

	var placedIdx uint32

	for s.buckets[idx].inuse {
		if s.buckets[idx].Key == cand.Key {
			return &s.buckets[idx], true
		}

		// The richer of the two keeps probing; the poorer takes the slot.
		if s.buckets[idx].Offset < cand.Offset {
			if !placed {
				placedIdx = idx
				placed = true
			}

			s.buckets[idx], cand = cand, s.buckets[idx]

			// A swapped-in entry can sit deeper than whatever commits at
			// the end of the chain; maxOffset must cover it too.
			if s.buckets[idx].Offset > s.maxOffset {
				s.maxOffset = s.buckets[idx].Offset
			}
		}

		idx = (idx + 1) & s.mask
		cand.Offset++
	}

	if cand.Offset > s.maxOffset {
		s.maxOffset = cand.Offset
	}

	if !placed {
		placedIdx = idx
	}

	s.buckets[idx] = cand

	return &s.buckets[placedIdx], false
}

// fetch probes for key from its ideal slot, scanning at most offsetLimit+1
// slots. Callers pass the space's maxOffset, which bounds the probe length
// of every live entry. Empty slots do not terminate the scan: migration
// lazy-deletes leave gaps in front of live entries in the secondary.
func (s *space) fetch(key uint32, offsetLimit uint32) *Entry {
	if s.buckets == nil {
		return nil
	}

	idx := s.index(key)

	for offset := uint32(0); offset <= offsetLimit; offset++ {
		if s.buckets[idx].inuse && s.buckets[idx].Key == key {
			return &s.buckets[idx]
		}

		idx = (idx + 1) & s.mask
	}

	return nil
}

// remove deletes key from the space, reporting whether it was found. The
// probe is bounded like fetch and likewise does not stop at empty slots, so
// it stays correct in a lazily-holed secondary. The vacated slot is closed
// by shifting subsequent displaced entries back one position.
func (s *space) remove(key uint32, offsetLimit uint32) bool {
	if s.buckets == nil {
		return false
	}

	idx := s.index(key)

	for offset := uint32(0); offset <= offsetLimit; offset++ {
		if s.buckets[idx].inuse && s.buckets[idx].Key == key {
			s.backshift(idx)

			return true
		}

		idx = (idx + 1) & s.mask
	}

	return false
}

// backshift clears the slot at idx and pulls consecutive displaced entries
// one position back, decrementing their offsets, until an empty slot or an
// entry already at its ideal position. This is what makes tombstones
// unnecessary.
func (s *space) backshift(idx uint32) {
	s.buckets[idx] = Entry{}
	prev := idx
	idx = (idx + 1) & s.mask

	for s.buckets[idx].inuse && s.buckets[idx].Offset > 0 {
		s.buckets[prev] = s.buckets[idx]
		s.buckets[prev].Offset--
		s.buckets[idx] = Entry{}
		prev = idx
		idx = (idx + 1) & s.mask
	}
}
