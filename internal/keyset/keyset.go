// Package keyset generates 32-bit key material for fibmap tables.
//
// The table engine maps fingerprints, not raw domain keys; this package is
// the collaborator that produces those fingerprints. Benchmarks and tests
// use the sequential and shuffled generators, callers with string keys use
// Fingerprint.
package keyset

import (
	"math/rand"

	"github.com/cespare/xxhash/v2"
)

// Sequential returns the keys 0..n-1 in order.
func Sequential(n uint32) []uint32 {
	keys := make([]uint32, n)
	for i := range keys {
		keys[i] = uint32(i)
	}

	return keys
}

// Shuffled returns a Fisher-Yates shuffle of Sequential(n). The shuffle is
// deterministic per seed so benchmark runs are reproducible.
func Shuffled(n uint32, seed int64) []uint32 {
	keys := Sequential(n)

	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})

	return keys
}

// Fingerprint reduces s to a 32-bit key: xxhash64 folded onto itself so
// both halves of the 64-bit digest contribute.
func Fingerprint(s string) uint32 {
	h := xxhash.Sum64String(s)

	return uint32(h ^ (h >> 32))
}

// Fingerprints maps Fingerprint over ss.
func Fingerprints(ss []string) []uint32 {
	keys := make([]uint32, len(ss))
	for i, s := range ss {
		keys[i] = Fingerprint(s)
	}

	return keys
}
