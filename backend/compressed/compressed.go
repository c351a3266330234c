// Package compressed opens xz- and lz4-frame-compressed evidence images.
//
// A compressed stream cannot serve positioned reads, so the image is
// inflated once into an unlinked temporary file, which then backs an
// ordinary read-only Storage. Detection is by frame magic, never by file
// extension.
package compressed

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"github.com/evidfs/go-evidfs/backend"
	"github.com/evidfs/go-evidfs/backend/file"
)

var (
	xzMagic  = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	lz4Magic = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Detect reports whether storage begins with a supported compression frame.
// Garbage or truncated input answers false, never an error.
func Detect(storage backend.Storage) bool {
	header := make([]byte, len(xzMagic))
	if n, err := storage.ReadAt(header, 0); err != nil && n < len(lz4Magic) {
		return false
	}
	return bytes.HasPrefix(header, xzMagic) || bytes.HasPrefix(header, lz4Magic)
}

// Open inflates the compressed image held by storage and returns a Storage
// over the inflated bytes. The returned Storage is independent of the
// original, which the caller may close once Open returns.
func Open(storage backend.Storage) (backend.Storage, error) {
	header := make([]byte, len(xzMagic))
	if _, err := storage.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("could not read image header: %w", err)
	}

	size, err := storage.Size()
	if err != nil {
		return nil, fmt.Errorf("could not get compressed image size: %w", err)
	}

	var decompressor io.Reader
	src := io.NewSectionReader(storage, 0, size)
	switch {
	case bytes.HasPrefix(header, xzMagic):
		decompressor, err = xz.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("could not open xz stream: %w", err)
		}
	case bytes.HasPrefix(header, lz4Magic):
		decompressor = lz4.NewReader(src)
	default:
		return nil, backend.ErrNotSuitable
	}

	tmp, err := os.CreateTemp("", "evidfs-inflate-")
	if err != nil {
		return nil, fmt.Errorf("could not create scratch file: %w", err)
	}
	// unlink right away where the platform allows it, the open descriptor
	// keeps the inflated bytes alive
	_ = os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, decompressor); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("could not inflate image: %w", err)
	}

	return file.New(tmp), nil
}
