//go:build !unix

package dirfs

import "os"

// No inode numbers here, fall back to stable path hashes.
func identFor(path string, _ os.FileInfo) uint64 {
	return hashIdent(path)
}

func ownerOf(_ os.FileInfo) (uid, gid uint32) {
	return 0, 0
}
