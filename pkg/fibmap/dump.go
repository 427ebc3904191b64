package fibmap

import (
	"fmt"
	"io"
	"os"
)

// Dump writes the table's slots to standard output; see DumpTo.
func (t *Table) Dump(includeEmpties bool) {
	t.DumpTo(os.Stdout, includeEmpties)
}

// DumpTo writes a human-readable listing of the primary space and, while a
// migration is active, the secondary space. Each slot line carries the
// space tag, slot index, state, key in hex and decimal, value and probe
// offset. Empty slots are listed only when includeEmpties is set.
func (t *Table) DumpTo(w io.Writer, includeEmpties bool) {
	pri := &t.spaces[t.current]
	sec := &t.spaces[t.current^1]

	fmt.Fprintf(w, "# In map: %d keys, primary space size %d, bits %d, max probe length %d\n",
		t.count, pri.size, pri.log2Size, pri.maxOffset)
	fmt.Fprintf(w, "# space, slot, state, key, value, offset\n")

	dumpSpace(w, "pri", pri, includeEmpties)

	if sec.buckets == nil {
		return
	}

	fmt.Fprintf(w, "# Table still migrating, left %d, old size %d bits %d max probe length %d\n",
		t.toMigrate, sec.size, sec.log2Size, sec.maxOffset)
	fmt.Fprintf(w, "# space, slot, state, key, value, offset\n")

	dumpSpace(w, "sec", sec, includeEmpties)
}

func dumpSpace(w io.Writer, tag string, s *space, includeEmpties bool) {
	for i, b := range s.buckets {
		if !b.inuse && !includeEmpties {
			continue
		}

		state := "empty"
		if b.inuse {
			state = "full "
		}

		fmt.Fprintf(w, "%s, #%06d, %s, 0x%08x (%010d), %06d, %06d\n",
			tag, i, state, b.Key, b.Key, b.Value, b.Offset)
	}
}
