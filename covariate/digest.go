package covariate

import (
	"encoding/binary"

	"github.com/minio/highwayhash"
)

var digestSeed = [highwayhash.Size]byte{}

// Digest returns a fingerprint of t's contents: every (key, entry) pair in
// canonical ascending-key order, hashed with highwayhash. Two tables built
// from the same observations via different batch groupings or merge
// orders must produce identical digests; this is the cheap mechanical
// check for P3 (merge commutativity) and P8 (determinism) used by tests
// instead of comparing entire tables entry-by-entry.
func Digest(t *Table) [highwayhash.Size]byte {
	var buf []byte
	var scratch [24]byte
	t.Range(func(k Key, e Entry) {
		binary.LittleEndian.PutUint64(scratch[0:8], uint64(k))
		binary.LittleEndian.PutUint64(scratch[8:16], e.Observations)
		binary.LittleEndian.PutUint64(scratch[16:24], uint64(int64(e.Mismatches*1e9)))
		buf = append(buf, scratch[:]...)
	})
	return highwayhash.Sum(buf, digestSeed[:])
}
