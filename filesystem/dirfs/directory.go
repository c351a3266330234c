package dirfs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/evidfs/go-evidfs/filesystem"
)

// directory enumerates one host directory. Driver-native order is the
// lexical name order os.ReadDir yields, which is stable across calls.
type directory struct {
	fs    *FileSystem
	path  string
	entry filesystem.Entry
}

var _ filesystem.Directory = (*directory)(nil)

func (d *directory) Entry() filesystem.Entry {
	return d.entry
}

// List snapshots the name list eagerly but stats entries lazily, so a
// directory with many children costs one descriptor per step, not one
// up-front pass over all of them.
func (d *directory) List() filesystem.DirIter {
	names, err := os.ReadDir(d.path)
	return &dirIter{dir: d, names: names, err: err}
}

// Lookup stats the joined path directly instead of scanning the listing.
func (d *directory) Lookup(name string) (filesystem.DirEntry, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return filesystem.DirEntry{}, fmt.Errorf("%q: %w", name, filesystem.ErrNotFound)
	}
	entry, err := d.fs.entryAt(filepath.Join(d.path, name))
	if err != nil {
		return filesystem.DirEntry{}, err
	}
	return filesystem.DirEntry{Name: name, ID: entry.ID, Kind: entry.Kind}, nil
}

type dirIter struct {
	dir     *directory
	names   []os.DirEntry
	pos     int
	current filesystem.DirEntry
	err     error
}

func (it *dirIter) Next() bool {
	if it.err != nil {
		return false
	}
	for it.pos < len(it.names) {
		de := it.names[it.pos]
		it.pos++

		entry, err := it.dir.fs.entryAt(filepath.Join(it.dir.path, de.Name()))
		if err != nil {
			// the object vanished between listing and stat, skip it
			continue
		}
		it.current = filesystem.DirEntry{Name: de.Name(), ID: entry.ID, Kind: entry.Kind}
		return true
	}
	return false
}

func (it *dirIter) Entry() filesystem.DirEntry {
	return it.current
}

func (it *dirIter) Err() error {
	return it.err
}
