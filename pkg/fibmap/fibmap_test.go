package fibmap_test

import (
	"math/rand"
	"testing"

	"github.com/calvinalkan/fibmap/internal/keyset"
	"github.com/calvinalkan/fibmap/pkg/fibmap"
	"github.com/calvinalkan/fibmap/pkg/fibmap/internal/testutil"
)

func Test_Table_Returns_Value_After_Put(t *testing.T) {
	t.Parallel()

	tbl := fibmap.NewDefault()

	_, exists := tbl.Put(7, 100)
	if exists {
		t.Fatal("fresh key reported as existing")
	}

	e, exists := tbl.Get(7)
	if !exists {
		t.Fatal("expected key 7 to exist")
	}

	if e.Key != 7 || e.Value != 100 {
		t.Fatalf("got key=%d value=%d, want key=7 value=100", e.Key, e.Value)
	}

	if tbl.Len() != 1 {
		t.Fatalf("Len()=%d, want 1", tbl.Len())
	}
}

func Test_Table_Keeps_First_Value_On_Duplicate_Put(t *testing.T) {
	t.Parallel()

	tbl := fibmap.NewDefault()

	_, _ = tbl.Put(7, 100)

	e, exists := tbl.Put(7, 200)
	if !exists {
		t.Fatal("duplicate put did not report exists")
	}

	if e.Value != 100 {
		t.Fatalf("duplicate put returned value %d, want the original 100", e.Value)
	}

	e, _ = tbl.Get(7)
	if e.Value != 100 {
		t.Fatalf("get after duplicate put returned %d, want 100 (no update-in-place)", e.Value)
	}

	if tbl.Len() != 1 {
		t.Fatalf("Len()=%d, want 1", tbl.Len())
	}
}

func Test_Table_Get_And_Remove_Miss_On_Empty_Table(t *testing.T) {
	t.Parallel()

	tbl := fibmap.NewDefault()

	if e, exists := tbl.Get(42); exists || e != nil {
		t.Fatal("get on empty table must miss with a nil entry")
	}

	if tbl.Remove(42) {
		t.Fatal("remove on empty table must report not found")
	}
}

func Test_Table_Grows_While_Keys_Stay_Retrievable(t *testing.T) {
	t.Parallel()

	tbl := fibmap.NewDefault()

	for k := uint32(0); k < 100; k++ {
		if _, exists := tbl.Put(k, int(k)+1); exists {
			t.Fatalf("key %d reported as existing on first insert", k)
		}
	}

	if tbl.Len() != 100 {
		t.Fatalf("Len()=%d, want 100", tbl.Len())
	}

	for k := uint32(0); k < 100; k++ {
		e, exists := tbl.Get(k)
		if !exists {
			t.Fatalf("key %d lost after growth", k)
		}

		if e.Value != int(k)+1 {
			t.Fatalf("key %d value %d, want %d", k, e.Value, int(k)+1)
		}
	}

	// 100 live keys need at least 100/0.7 > 128 slots.
	if st := tbl.Stats(); st.Log2Size < 8 {
		t.Fatalf("primary log2size=%d, want >= 8", st.Log2Size)
	}
}

func Test_Table_Round_Trips_Thousands_Of_Distinct_Keys(t *testing.T) {
	t.Parallel()

	tbl := fibmap.NewDefault()
	keys := keyset.Shuffled(5000, 11)

	for _, k := range keys {
		if _, exists := tbl.Put(k, int(k)*2+1); exists {
			t.Fatalf("distinct key %d reported as existing", k)
		}
	}

	if tbl.Len() != 5000 {
		t.Fatalf("Len()=%d, want 5000", tbl.Len())
	}

	for _, k := range keys {
		e, exists := tbl.Get(k)
		if !exists {
			t.Fatalf("key %d not retrievable", k)
		}

		if e.Value != int(k)*2+1 {
			t.Fatalf("key %d value %d, want %d", k, e.Value, int(k)*2+1)
		}
	}
}

func Test_Table_Remove_Round_Trip_Decrements_Count(t *testing.T) {
	t.Parallel()

	tbl := fibmap.NewLog2(5)

	insertOrder := keyset.Shuffled(2000, 3)
	removeOrder := keyset.Shuffled(2000, 4)

	for _, k := range insertOrder {
		tbl.Put(k, int(k))
	}

	for i, k := range removeOrder {
		if !tbl.Remove(k) {
			t.Fatalf("remove %d: key %d not found", i, k)
		}

		if _, exists := tbl.Get(k); exists {
			t.Fatalf("key %d still retrievable after remove", k)
		}

		if want := 2000 - i - 1; tbl.Len() != want {
			t.Fatalf("after removing %d keys Len()=%d, want %d", i+1, tbl.Len(), want)
		}
	}
}

func Test_Table_Matches_Model_During_Long_Mixed_Workload(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(7))
	data := make([]byte, 3*100_000)
	_, _ = r.Read(data)

	gen := testutil.NewOpGenerator(data, 4096)
	testutil.RunBehavior(t, fibmap.NewLog2(5), gen, testutil.RunConfig{CompareLenEveryN: 64})
}

func Test_Table_Matches_Model_During_Shrink_Heavy_Workload(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(8))
	data := make([]byte, 3*100_000)
	_, _ = r.Read(data)

	// A tight key space keeps the live count oscillating across both the
	// grow and shrink watermarks.
	gen := testutil.NewOpGenerator(data, 256)
	testutil.RunBehavior(t, fibmap.NewLog2(5), gen, testutil.RunConfig{CompareLenEveryN: 32})
}

func Test_Table_Matches_Model_With_Whole_Table_Migration(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(9))
	data := make([]byte, 3*100_000)
	_, _ = r.Read(data)

	gen := testutil.NewOpGenerator(data, 2048)
	tbl := fibmap.New(fibmap.Options{BatchSize: fibmap.MigrateAll})
	testutil.RunBehavior(t, tbl, gen, testutil.RunConfig{CompareLenEveryN: 64})
}

func Test_Table_Round_Trips_String_Fingerprints(t *testing.T) {
	t.Parallel()

	tbl := fibmap.NewDefault()

	names := make([]string, 300)
	for i := range names {
		names[i] = "object-" + string(rune('a'+i%26)) + "-" + string(rune('0'+i%10)) + "-" + string(rune('A'+i/26%26)) + "-" + string(rune('a'+i/10%26))
	}

	inserted := make(map[uint32]int)

	for i, name := range names {
		fp := keyset.Fingerprint(name)

		_, exists := tbl.Put(fp, i)
		if wantExists := contains(inserted, fp); exists != wantExists {
			t.Fatalf("fingerprint of %q: exists=%v, want %v", name, exists, wantExists)
		}

		if !exists {
			inserted[fp] = i
		}
	}

	for fp, want := range inserted {
		e, exists := tbl.Get(fp)
		if !exists || e.Value != want {
			t.Fatalf("fingerprint %#x not retrievable with value %d", fp, want)
		}
	}
}

func contains(m map[uint32]int, k uint32) bool {
	_, ok := m[k]

	return ok
}
