package tarfs

import "github.com/evidfs/go-evidfs/filesystem"

// directory enumerates one directory of the mounted archive. The entry
// slice is frozen at mount time, so every List call hands out an
// independent iterator over the same state.
type directory struct {
	fs   *FileSystem
	node *node
}

var _ filesystem.Directory = (*directory)(nil)

func (d *directory) Entry() filesystem.Entry {
	return d.node.entry
}

func (d *directory) List() filesystem.DirIter {
	return filesystem.NewSliceIter(d.node.children)
}

func (d *directory) Lookup(name string) (filesystem.DirEntry, error) {
	return filesystem.LookupIter(d.List(), name)
}
