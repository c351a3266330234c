package dirfs

import "hash/fnv"

// hashIdent derives a stable identifier from a path for platforms whose
// stat does not expose inode numbers.
func hashIdent(path string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	return h.Sum64()
}
