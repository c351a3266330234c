// Package file opens disk image files and block devices as backend.Storage.
package file

import (
	"errors"
	"fmt"
	"os"

	"github.com/evidfs/go-evidfs/backend"
)

type fileBackend struct {
	storage *os.File
}

// New wraps an already-open file as a read-only backend.Storage. The caller
// must not write through f while the Storage is in use.
func New(f *os.File) backend.Storage {
	return &fileBackend{storage: f}
}

// OpenFromPath opens the image file or block device at pathName read-only.
// Should pass a path to a block device e.g. /dev/sda or a path to a file
// /tmp/foo.img. The provided device/file must exist at the time you call
// OpenFromPath().
func OpenFromPath(pathName string) (backend.Storage, error) {
	if pathName == "" {
		return nil, errors.New("must pass device or file name")
	}

	if _, err := os.Stat(pathName); os.IsNotExist(err) {
		return nil, fmt.Errorf("provided device/file %s does not exist", pathName)
	}

	f, err := os.OpenFile(pathName, os.O_RDONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("could not open %s read-only: %w", pathName, err)
	}

	return &fileBackend{storage: f}, nil
}

// backend.Storage interface guard
var _ backend.Storage = (*fileBackend)(nil)

func (b *fileBackend) ReadAt(p []byte, off int64) (int, error) {
	return b.storage.ReadAt(p, off)
}

func (b *fileBackend) Close() error {
	return b.storage.Close()
}

func (b *fileBackend) Size() (int64, error) {
	info, err := b.storage.Stat()
	if err != nil {
		return 0, fmt.Errorf("could not stat %s: %w", b.storage.Name(), err)
	}
	if info.Mode()&os.ModeDevice != 0 {
		return deviceSize(b.storage)
	}
	return info.Size(), nil
}
