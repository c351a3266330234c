package filesystem

import (
	"fmt"

	"github.com/evidfs/go-evidfs/backend"
)

// fakeFS is a scripted filesystem used to test the generic logic in this
// package without any driver. Layout:
//
//	/            dir    id 1
//	/a           dir    id 2
//	/a/b         dir    id 7
//	/a/b/c       file   id 8
//	/f           file   id 3
//	/link        symlink id 4
//	/x           file   id 5 (duplicate name, first)
//	/x           file   id 6 (duplicate name, second)
//	/dangling    entry referenced by id 99, which does not exist
type fakeFS struct {
	entries  map[uint64]Entry
	children map[uint64][]DirEntry
	storage  backend.Storage
}

func (f *fakeFS) Info() Info {
	return Info{Type: "fake"}
}

func (f *fakeFS) Root() (Directory, error) {
	return &fakeDir{fs: f, entry: f.entries[1]}, nil
}

func (f *fakeFS) EntryByID(id uint64) (Entry, error) {
	e, ok := f.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("identifier %d: %w", id, ErrNotFound)
	}
	return e, nil
}

func (f *fakeFS) OpenFile(e Entry) (File, error) {
	if e.Kind != KindRegular {
		return nil, fmt.Errorf("entry %d is a %s: %w", e.ID, e.Kind, ErrNotAFile)
	}
	return NewExtentFile(e, f.storage), nil
}

func (f *fakeFS) OpenDirectory(e Entry) (Directory, error) {
	if e.Kind != KindDirectory {
		return nil, fmt.Errorf("entry %d is a %s: %w", e.ID, e.Kind, ErrNotADirectory)
	}
	if _, ok := f.entries[e.ID]; !ok {
		return nil, fmt.Errorf("identifier %d: %w", e.ID, ErrNotFound)
	}
	return &fakeDir{fs: f, entry: e}, nil
}

type fakeDir struct {
	fs    *fakeFS
	entry Entry
}

func (d *fakeDir) Entry() Entry {
	return d.entry
}

func (d *fakeDir) List() DirIter {
	return NewSliceIter(d.fs.children[d.entry.ID])
}

func (d *fakeDir) Lookup(name string) (DirEntry, error) {
	return LookupIter(d.List(), name)
}

func newFakeFS() *fakeFS {
	dir := func(id uint64) Entry {
		return Entry{ID: id, Kind: KindDirectory, State: AllocAllocated}
	}
	return &fakeFS{
		entries: map[uint64]Entry{
			1: dir(1),
			2: dir(2),
			7: dir(7),
			3: {ID: 3, Kind: KindRegular, Size: 5, State: AllocAllocated,
				Extents: Extents{{Logical: 0, Disk: 2, Length: 5}}},
			4: {ID: 4, Kind: KindSymlink, State: AllocAllocated},
			5: {ID: 5, Kind: KindRegular, State: AllocDeleted},
			6: {ID: 6, Kind: KindRegular, State: AllocAllocated},
			8: {ID: 8, Kind: KindRegular, State: AllocAllocated},
		},
		children: map[uint64][]DirEntry{
			1: {
				{Name: "a", ID: 2, Kind: KindDirectory},
				{Name: "f", ID: 3, Kind: KindRegular},
				{Name: "link", ID: 4, Kind: KindSymlink},
				{Name: "x", ID: 5, Kind: KindRegular},
				{Name: "x", ID: 6, Kind: KindRegular},
				{Name: "dangling", ID: 99, Kind: KindRegular},
			},
			2: {
				{Name: "b", ID: 7, Kind: KindDirectory},
			},
			7: {
				{Name: "c", ID: 8, Kind: KindRegular},
			},
		},
	}
}
