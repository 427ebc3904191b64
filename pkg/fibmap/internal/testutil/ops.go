package testutil

import (
	"testing"

	"github.com/calvinalkan/fibmap/pkg/fibmap"
)

// OpKind identifies a generated operation.
type OpKind uint8

// Operation kinds. The generator weights puts double so workloads actually
// fill tables instead of churning an empty one.
const (
	OpPut OpKind = iota
	OpGet
	OpRemove
)

func (k OpKind) String() string {
	switch k {
	case OpPut:
		return "Put"
	case OpGet:
		return "Get"
	case OpRemove:
		return "Remove"
	default:
		return "Unknown"
	}
}

// Op is a single decoded operation.
type Op struct {
	Kind  OpKind
	Key   uint32
	Value int
}

// OpGenerator decodes raw fuzz bytes into a deterministic operation
// sequence. Keys are confined to a small space so sequences collide,
// re-insert and remove the same keys often enough to cross resize
// thresholds in both directions.
type OpGenerator struct {
	data     []byte
	pos      int
	keySpace uint32
}

// NewOpGenerator returns a generator over data with keys in [0, keySpace).
func NewOpGenerator(data []byte, keySpace uint32) *OpGenerator {
	if keySpace == 0 {
		keySpace = 1
	}

	return &OpGenerator{data: data, keySpace: keySpace}
}

// Next decodes the next operation. It reports false when the input is
// exhausted. Each operation consumes three bytes: kind selector, then two
// key bytes; the value is derived from the key bytes so replays are
// self-consistent.
func (g *OpGenerator) Next() (Op, bool) {
	if g.pos+3 > len(g.data) {
		return Op{}, false
	}

	sel := g.data[g.pos]
	lo := g.data[g.pos+1]
	hi := g.data[g.pos+2]
	g.pos += 3

	var kind OpKind

	// Puts twice as likely as gets or removes.
	switch sel % 4 {
	case 0, 1:
		kind = OpPut
	case 2:
		kind = OpGet
	default:
		kind = OpRemove
	}

	key := (uint32(hi)<<8 | uint32(lo)) % g.keySpace

	return Op{Kind: kind, Key: key, Value: int(key)*3 + 7}, true
}

// RunConfig bounds a behaviour run.
type RunConfig struct {
	// MaxOps caps the number of operations applied. Zero means no cap.
	MaxOps int

	// CompareLenEveryN checks Len against the model every N operations.
	// Zero disables the periodic check; the final check always runs.
	CompareLenEveryN int
}

// RunBehavior applies the generated operations to both the table and a
// fresh model, failing the test on the first observable divergence. It
// finishes with a full membership sweep: every model key must be
// retrievable from the table with the model's value.
func RunBehavior(t *testing.T, tbl *fibmap.Table, gen *OpGenerator, cfg RunConfig) {
	t.Helper()

	model := NewModel()
	applied := 0

	for {
		if cfg.MaxOps > 0 && applied >= cfg.MaxOps {
			break
		}

		op, ok := gen.Next()
		if !ok {
			break
		}

		applied++

		switch op.Kind {
		case OpPut:
			wantValue, wantExists := model.Put(op.Key, op.Value)

			e, exists := tbl.Put(op.Key, op.Value)
			if exists != wantExists {
				t.Fatalf("op %d: Put(%d) exists=%v, model says %v", applied, op.Key, exists, wantExists)
			}

			if e == nil {
				t.Fatalf("op %d: Put(%d) returned nil entry", applied, op.Key)
			}

			if e.Key != op.Key {
				t.Fatalf("op %d: Put(%d) returned entry for key %d", applied, op.Key, e.Key)
			}

			if e.Value != wantValue {
				t.Fatalf("op %d: Put(%d) entry value %d, model says %d", applied, op.Key, e.Value, wantValue)
			}

		case OpGet:
			wantValue, wantExists := model.Get(op.Key)

			e, exists := tbl.Get(op.Key)
			if exists != wantExists {
				t.Fatalf("op %d: Get(%d) exists=%v, model says %v", applied, op.Key, exists, wantExists)
			}

			if exists && e.Value != wantValue {
				t.Fatalf("op %d: Get(%d) value %d, model says %d", applied, op.Key, e.Value, wantValue)
			}

			if exists && e.Key != op.Key {
				t.Fatalf("op %d: Get(%d) returned entry for key %d", applied, op.Key, e.Key)
			}

		case OpRemove:
			want := model.Remove(op.Key)

			if got := tbl.Remove(op.Key); got != want {
				t.Fatalf("op %d: Remove(%d)=%v, model says %v", applied, op.Key, got, want)
			}
		}

		if cfg.CompareLenEveryN > 0 && applied%cfg.CompareLenEveryN == 0 {
			if tbl.Len() != model.Len() {
				t.Fatalf("op %d: Len()=%d, model has %d", applied, tbl.Len(), model.Len())
			}
		}
	}

	if tbl.Len() != model.Len() {
		t.Fatalf("after %d ops: Len()=%d, model has %d", applied, tbl.Len(), model.Len())
	}

	for _, key := range model.Keys() {
		wantValue, _ := model.Get(key)

		e, exists := tbl.Get(key)
		if !exists {
			t.Fatalf("after %d ops: key %d in model but not in table", applied, key)
		}

		if e.Value != wantValue {
			t.Fatalf("after %d ops: key %d value %d, model says %d", applied, key, e.Value, wantValue)
		}
	}
}
