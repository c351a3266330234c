// Package dirfs exposes a host directory tree through the filesystem
// driver contracts, for evidence that arrives already extracted rather
// than as an image. There is no byte source to probe, so the driver is
// selected explicitly with New instead of being registered for detection.
//
// Identifiers are host inode numbers where the platform exposes them, and
// a stable hash of the path elsewhere. Like any live host view, metadata
// can change between calls; descriptors are snapshots taken at call time,
// and every object reports an allocated state because the host only shows
// live objects. Physical placement is hidden by the host kernel, so extent
// maps stay empty and Size is authoritative. Name comparison in Lookup
// follows host semantics unmodified.
package dirfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/xattr"
	"gopkg.in/djherbis/times.v1"

	"github.com/evidfs/go-evidfs/filesystem"
)

// FileSystem is a mounted view of one host directory. The id-to-path cache
// is the only mutable state and is internally synchronized, so instances
// are safe for concurrent readers.
type FileSystem struct {
	root string
	info filesystem.Info

	mu    sync.RWMutex
	paths map[uint64]string
}

// filesystem interface guards
var (
	_ filesystem.FileSystem    = (*FileSystem)(nil)
	_ filesystem.SymlinkReader = (*FileSystem)(nil)
	_ filesystem.XattrReader   = (*FileSystem)(nil)
)

// New mounts the host directory at root.
func New(root string) (*FileSystem, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &filesystem.MountError{FSType: filesystem.TypeDir, Reason: "could not absolutize root", Err: err}
	}
	fi, err := os.Lstat(abs)
	if err != nil {
		return nil, &filesystem.MountError{FSType: filesystem.TypeDir, Reason: "could not stat root", Err: err}
	}
	if !fi.IsDir() {
		return nil, &filesystem.MountError{FSType: filesystem.TypeDir, Reason: fmt.Sprintf("%s is not a directory", abs)}
	}

	fs := &FileSystem{
		root:  abs,
		paths: make(map[uint64]string),
	}
	fs.info = filesystem.Info{
		Type:      filesystem.TypeDir,
		Label:     filepath.Base(abs),
		BlockSize: 4096,
		// host directories have no volume identity, derive a stable one
		// from the root path
		UUID: uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+abs)),
	}
	if _, err := fs.entryAt(abs); err != nil {
		return nil, &filesystem.MountError{FSType: filesystem.TypeDir, Reason: "could not describe root", Err: err}
	}
	return fs, nil
}

func (fs *FileSystem) Info() filesystem.Info {
	return fs.info
}

func (fs *FileSystem) Root() (filesystem.Directory, error) {
	entry, err := fs.entryAt(fs.root)
	if err != nil {
		return nil, err
	}
	return &directory{fs: fs, path: fs.root, entry: entry}, nil
}

// EntryByID resolves identifiers seen by earlier traversal. As in any
// path-cached host view, an identifier that no walk or lookup has touched
// yet is not resolvable and reports ErrNotFound.
func (fs *FileSystem) EntryByID(id uint64) (filesystem.Entry, error) {
	path, ok := fs.pathFor(id)
	if !ok {
		return filesystem.Entry{}, fmt.Errorf("identifier %d not in path cache: %w", id, filesystem.ErrNotFound)
	}
	return fs.entryAt(path)
}

func (fs *FileSystem) OpenFile(e filesystem.Entry) (filesystem.File, error) {
	if e.Kind != filesystem.KindRegular {
		return nil, fmt.Errorf("entry %d is a %s: %w", e.ID, e.Kind, filesystem.ErrNotAFile)
	}
	path, ok := fs.pathFor(e.ID)
	if !ok {
		return nil, fmt.Errorf("identifier %d not in path cache: %w", e.ID, filesystem.ErrNotFound)
	}
	return &file{path: path, entry: e}, nil
}

func (fs *FileSystem) OpenDirectory(e filesystem.Entry) (filesystem.Directory, error) {
	if e.Kind != filesystem.KindDirectory {
		return nil, fmt.Errorf("entry %d is a %s: %w", e.ID, e.Kind, filesystem.ErrNotADirectory)
	}
	path, ok := fs.pathFor(e.ID)
	if !ok {
		return nil, fmt.Errorf("identifier %d not in path cache: %w", e.ID, filesystem.ErrNotFound)
	}
	return &directory{fs: fs, path: path, entry: e}, nil
}

// ReadLink returns the target recorded in a symlink.
func (fs *FileSystem) ReadLink(e filesystem.Entry) (string, error) {
	path, ok := fs.pathFor(e.ID)
	if !ok {
		return "", fmt.Errorf("identifier %d not in path cache: %w", e.ID, filesystem.ErrNotFound)
	}
	target, err := os.Readlink(path)
	if err != nil {
		return "", fmt.Errorf("could not read link %s: %w", path, err)
	}
	return target, nil
}

// ListXattrs enumerates the extended attribute names of an entry.
func (fs *FileSystem) ListXattrs(e filesystem.Entry) ([]string, error) {
	path, ok := fs.pathFor(e.ID)
	if !ok {
		return nil, fmt.Errorf("identifier %d not in path cache: %w", e.ID, filesystem.ErrNotFound)
	}
	names, err := xattr.LList(path)
	if err != nil {
		return nil, fmt.Errorf("could not list xattrs of %s: %w", path, err)
	}
	return names, nil
}

func (fs *FileSystem) pathFor(id uint64) (string, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	path, ok := fs.paths[id]
	return path, ok
}

// entryAt snapshots the descriptor of the object at path and records its
// identifier in the path cache.
func (fs *FileSystem) entryAt(path string) (filesystem.Entry, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return filesystem.Entry{}, fmt.Errorf("%s: %w", path, filesystem.ErrNotFound)
		}
		return filesystem.Entry{}, fmt.Errorf("could not stat %s: %w", path, err)
	}

	entry := filesystem.Entry{
		ID:    identFor(path, fi),
		Kind:  kindOf(fi.Mode()),
		Size:  fi.Size(),
		State: filesystem.AllocAllocated,
	}
	entry.Perm.Mode = fi.Mode()
	entry.Perm.UID, entry.Perm.GID = ownerOf(fi)
	entry.Times.Modified = fi.ModTime()
	if ts, err := times.Lstat(path); err == nil {
		entry.Times.Accessed = ts.AccessTime()
		if ts.HasChangeTime() {
			entry.Times.Changed = ts.ChangeTime()
		}
		if ts.HasBirthTime() {
			entry.Times.Created = ts.BirthTime()
		}
	}

	fs.mu.Lock()
	fs.paths[entry.ID] = path
	fs.mu.Unlock()
	return entry, nil
}

func kindOf(mode os.FileMode) filesystem.Kind {
	switch {
	case mode.IsRegular():
		return filesystem.KindRegular
	case mode.IsDir():
		return filesystem.KindDirectory
	case mode&os.ModeSymlink != 0:
		return filesystem.KindSymlink
	case mode&os.ModeDevice != 0:
		return filesystem.KindDevice
	default:
		return filesystem.KindOther
	}
}
