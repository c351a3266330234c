// Package filesystem defines the capability contracts every filesystem
// driver implements, the format-independent entry descriptor model, and the
// generic path resolution and traversal logic built on top of them.
// Concrete drivers live in subpackages, e.g.
// github.com/evidfs/go-evidfs/filesystem/tarfs.
//
// The package never decodes an on-disk format itself. It is the seam
// between a raw evidence source (backend.Storage) and format-specific
// parsers: drivers produce Entry descriptors and Directory/File handles,
// and examiner code written against these contracts works unchanged no
// matter which driver is active.
package filesystem

import (
	"github.com/google/uuid"

	"github.com/evidfs/go-evidfs/backend"
)

// Type identifies a filesystem format. Drivers maintained outside this
// module should prefix the value with their module name to stay unique.
type Type string

const (
	// TypeTar is a POSIX/GNU tar archive treated as a logical evidence container
	TypeTar Type = "tar"
	// TypeDir is a host directory exposed through the driver contracts
	TypeDir Type = "dir"
)

// Info is the mount-level metadata of a mounted filesystem.
type Info struct {
	Type      Type
	Label     string
	BlockSize int64
	// UUID identifies the volume. When the format records no identifier of
	// its own, the driver synthesizes a stable one from mount-invariant
	// content, so mounting the same source twice yields the same UUID.
	UUID uuid.UUID
}

// FileSystem is a mounted, read-only view of one filesystem on an evidence
// source. A mounted instance and every handle derived from it must be safe
// for concurrent readers: mount-level state is immutable after Mount, and
// any internal cache is synchronized by the driver.
type FileSystem interface {
	// Info returns the mount-level metadata.
	Info() Info
	// Root returns the root directory, always available once mounted.
	Root() (Directory, error)
	// EntryByID looks up a descriptor by its format-native identifier,
	// bypassing path resolution. Forensic workflows recover identifiers
	// from journals and slack space without any surviving path, so this is
	// part of the core contract. Unknown identifiers return ErrNotFound.
	EntryByID(id uint64) (Entry, error)
	// OpenFile opens the content of a regular-file descriptor. Descriptors
	// of any other kind fail with ErrNotAFile; symlinks are not followed
	// implicitly.
	OpenFile(e Entry) (File, error)
	// OpenDirectory opens a directory-kind descriptor for enumeration.
	// Descriptors of any other kind fail with ErrNotADirectory.
	OpenDirectory(e Entry) (Directory, error)
}

// Driver creates FileSystem instances from evidence sources.
type Driver interface {
	// Type returns the format this driver understands.
	Type() Type
	// Probe reports whether storage plausibly holds this driver's format,
	// using a fast structural check such as a magic signature. Garbage
	// input must answer false, not fail; a non-nil error is reserved for
	// I/O failures of the source itself.
	Probe(storage backend.Storage) (bool, error)
	// Mount validates storage more deeply and returns a mounted instance.
	// Structural problems surface as a *MountError carrying the reason,
	// never as partial success.
	Mount(storage backend.Storage) (FileSystem, error)
}

// SymlinkReader is implemented by filesystems able to report symlink
// targets. Resolution never follows links on its own; callers doing their
// own resolution, with their own cycle bookkeeping, read targets through
// this interface.
type SymlinkReader interface {
	ReadLink(e Entry) (string, error)
}

// XattrReader is implemented by filesystems able to enumerate the extended
// attribute names of an entry.
type XattrReader interface {
	ListXattrs(e Entry) ([]string, error)
}
