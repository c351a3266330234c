package filesystem

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// SplitPath splits a slash-separated absolute path into its non-empty
// segments. Consecutive and trailing separators collapse, so "//a///b/",
// "/a/b" and "a/b" describe the same walk. An empty result addresses the
// root.
func SplitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// Resolve walks path from the root of fsys one segment at a time and
// returns the descriptor of the final segment. "" and "/" resolve to the
// root descriptor.
//
// Resolve is a pure composition of Directory operations: each segment is a
// single Lookup on the current directory followed by EntryByID on its
// identifier, so it behaves identically on every driver. A symlink is never
// followed: a terminal segment resolving to one returns the symlink
// descriptor itself, and a non-terminal one fails with ErrNotADirectory.
// Callers that want link targets read them explicitly via SymlinkReader,
// keeping cycle bookkeeping on their side.
//
// A missing segment fails with ErrNotFound, a non-terminal non-directory
// with ErrNotADirectory, both wrapped with the failing position. Corrupt
// directories with duplicate names resolve to the first match in
// driver-native order, per the Lookup contract.
func Resolve(fsys FileSystem, path string) (Entry, error) {
	root, err := fsys.Root()
	if err != nil {
		return Entry{}, err
	}

	entry := root.Entry()
	current := root
	segments := SplitPath(path)
	for i, segment := range segments {
		de, err := current.Lookup(segment)
		if err != nil {
			return Entry{}, fmt.Errorf("resolving %q at segment %q: %w", path, segment, err)
		}
		entry, err = fsys.EntryByID(de.ID)
		if err != nil {
			// dangling identifier in a corrupt directory entry
			return Entry{}, fmt.Errorf("resolving %q at segment %q: identifier %d: %w", path, segment, de.ID, err)
		}
		if i == len(segments)-1 {
			break
		}
		if entry.Kind != KindDirectory {
			return Entry{}, fmt.Errorf("resolving %q at segment %q: %w", path, segments[i+1], ErrNotADirectory)
		}
		current, err = fsys.OpenDirectory(entry)
		if err != nil {
			return Entry{}, fmt.Errorf("resolving %q: opening directory %q: %w", path, segment, err)
		}
	}
	return entry, nil
}

// ReadFile resolves path and returns the complete logical content of the
// regular file it names, holes included as zeros. The whole content is
// materialized; callers inspecting large files should Resolve and read
// ranges themselves.
func ReadFile(fsys FileSystem, path string) ([]byte, error) {
	entry, err := Resolve(fsys, path)
	if err != nil {
		return nil, err
	}
	f, err := fsys.OpenFile(entry)
	if err != nil {
		return nil, err
	}
	content := make([]byte, entry.Size)
	n, err := f.ReadAt(content, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return content[:n], err
	}
	return content[:n], nil
}
