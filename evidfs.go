// Package evidfs detects and mounts filesystems found in forensic disk and
// partition images, without ever modifying the evidence.
//
// A disk or partition image is opened as a read-only byte source, probed
// against the registered filesystem drivers, and mounted through the first
// driver that recognizes it. Everything the caller touches afterwards goes
// through the format-independent contracts in the filesystem package, so
// examiner code never branches on the concrete format.
//
// Some examples:
//
// 1. Detect and mount whatever filesystem an image holds, then list the root.
//
//	fsys, err := evidfs.Open("/cases/2041/partition3.img")
//	root, err := fsys.Root()
//	it := root.List()
//	for it.Next() {
//		fmt.Println(it.Entry().Name)
//	}
//
// 2. Mount a filesystem inside a larger disk image, given the partition
// offset and size recovered from the partition table.
//
//	storage, err := file.OpenFromPath("/cases/2041/disk.img")
//	fsys, err := evidfs.DetectAt(storage, 1048576, 512*20480)
//
// 3. Resolve a path and read the file it names.
//
//	entry, err := filesystem.Resolve(fsys, "/var/log/auth.log")
//	f, err := fsys.OpenFile(entry)
package evidfs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/evidfs/go-evidfs/backend"
	"github.com/evidfs/go-evidfs/backend/compressed"
	"github.com/evidfs/go-evidfs/backend/file"
	"github.com/evidfs/go-evidfs/filesystem"
	"github.com/evidfs/go-evidfs/filesystem/tarfs"
)

// ErrNoMatch is returned when no registered driver recognizes a source.
var ErrNoMatch = errors.New("no filesystem driver matched")

// Registry is an ordered collection of filesystem drivers. Probing happens
// in registration order, and when signatures could ambiguously match more
// than one format, the earliest registered driver wins; callers that need
// a different precedence build their own Registry.
type Registry struct {
	mu      sync.RWMutex
	drivers []filesystem.Driver
}

// NewRegistry returns a Registry holding drivers in the given order.
func NewRegistry(drivers ...filesystem.Driver) *Registry {
	return &Registry{drivers: drivers}
}

// Register appends a driver after all previously registered ones.
func (r *Registry) Register(d filesystem.Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers = append(r.drivers, d)
}

// Drivers returns the registered drivers in probe order.
func (r *Registry) Drivers() []filesystem.Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]filesystem.Driver(nil), r.drivers...)
}

// Detect probes storage against every registered driver in order and
// mounts the first affirmative match. A probe declining garbage moves on
// to the next driver; a probe failing on source I/O aborts, because a
// source that cannot be read will not fare better under another driver.
func (r *Registry) Detect(storage backend.Storage) (filesystem.FileSystem, error) {
	for _, d := range r.Drivers() {
		ok, err := d.Probe(storage)
		if err != nil {
			return nil, fmt.Errorf("probing for %s: %w", d.Type(), err)
		}
		if !ok {
			continue
		}
		fsys, err := d.Mount(storage)
		if err != nil {
			return nil, err
		}
		info := fsys.Info()
		logrus.WithFields(logrus.Fields{
			"type": info.Type,
			"uuid": info.UUID,
		}).Info("detected filesystem")
		return fsys, nil
	}
	return nil, ErrNoMatch
}

// Mount mounts storage with the driver for the given type, skipping
// detection.
func (r *Registry) Mount(storage backend.Storage, t filesystem.Type) (filesystem.FileSystem, error) {
	for _, d := range r.Drivers() {
		if d.Type() == t {
			return d.Mount(storage)
		}
	}
	return nil, fmt.Errorf("no driver registered for type %q: %w", t, ErrNoMatch)
}

// the default registry; tar comes built in, other drivers add themselves
// via Register
var defaultRegistry = NewRegistry(&tarfs.Driver{})

// Register adds a driver to the default registry, after the built-in ones.
func Register(d filesystem.Driver) {
	defaultRegistry.Register(d)
}

// Detect probes storage against the default registry.
func Detect(storage backend.Storage) (filesystem.FileSystem, error) {
	return defaultRegistry.Detect(storage)
}

// DetectAt probes the size bytes of storage starting at offset, the usual
// shape when a partition table locates a filesystem inside a disk image.
func DetectAt(storage backend.Storage, offset, size int64) (filesystem.FileSystem, error) {
	return defaultRegistry.Detect(backend.Sub(storage, offset, size))
}

// Mount mounts storage with the default registry's driver for type t.
func Mount(storage backend.Storage, t filesystem.Type) (filesystem.FileSystem, error) {
	return defaultRegistry.Mount(storage, t)
}

// Open opens the image file or block device at pathName and detects the
// filesystem on it. xz- and lz4-compressed images are inflated
// transparently first.
//
// The returned filesystem owns the opened source and keeps it open for as
// long as the filesystem is in use; callers needing to release the source
// earlier should open a Storage themselves and use Detect. On any error
// the source is closed before returning.
func Open(pathName string) (filesystem.FileSystem, error) {
	storage, err := file.OpenFromPath(pathName)
	if err != nil {
		return nil, err
	}
	if compressed.Detect(storage) {
		inflated, err := compressed.Open(storage)
		if err != nil {
			_ = storage.Close()
			return nil, err
		}
		// the compressed original is no longer needed
		_ = storage.Close()
		storage = inflated
	}
	fsys, err := Detect(storage)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}
	return fsys, nil
}
