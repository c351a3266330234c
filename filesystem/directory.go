package filesystem

import "fmt"

// Directory is the enumeration capability of one directory.
type Directory interface {
	// Entry returns the directory's own descriptor.
	Entry() Entry
	// List returns a fresh iterator over the directory's entries in
	// driver-native order, which is not guaranteed sorted. Every call
	// yields an independent pass over the same on-disk state; entries are
	// pulled on demand, so enormous or corrupt directories never have to
	// be materialized in memory.
	List() DirIter
	// Lookup finds the entry for an exact name, failing with ErrNotFound
	// when absent. Name comparison rules (case sensitivity, encoding) are
	// format-defined and documented per driver; no normalization happens
	// here. When a corrupt image holds several entries under one name, the
	// first in driver-native order wins, on every call.
	Lookup(name string) (DirEntry, error)
}

// DirIter iterates directory entries in driver-native order:
//
//	it := dir.List()
//	for it.Next() {
//		entry := it.Entry()
//		...
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
//
// Err reports whether iteration ended because the listing was exhausted or
// because the driver hit unreadable directory data.
type DirIter interface {
	Next() bool
	Entry() DirEntry
	Err() error
}

// SliceIter adapts an already-materialized entry slice to DirIter, for
// drivers whose native directory representation is small and in memory.
type SliceIter struct {
	entries []DirEntry
	pos     int
}

// NewSliceIter returns a DirIter over entries.
func NewSliceIter(entries []DirEntry) *SliceIter {
	return &SliceIter{entries: entries}
}

func (it *SliceIter) Next() bool {
	if it.pos >= len(it.entries) {
		return false
	}
	it.pos++
	return true
}

func (it *SliceIter) Entry() DirEntry {
	return it.entries[it.pos-1]
}

func (it *SliceIter) Err() error {
	return nil
}

// LookupIter scans a fresh iterator for name and returns the first match in
// iteration order. It is the shared Lookup implementation for drivers whose
// lookup is a scan of List.
func LookupIter(it DirIter, name string) (DirEntry, error) {
	for it.Next() {
		if entry := it.Entry(); entry.Name == name {
			return entry, nil
		}
	}
	if err := it.Err(); err != nil {
		return DirEntry{}, err
	}
	return DirEntry{}, fmt.Errorf("%q: %w", name, ErrNotFound)
}
