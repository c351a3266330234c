package dirfs

import (
	"errors"
	"io"
	"os"

	"github.com/evidfs/go-evidfs/filesystem"
)

// file reads host file content. Every ReadAt opens, reads, and closes the
// host file, so no descriptor is retained and concurrent readers never
// share state.
type file struct {
	path  string
	entry filesystem.Entry
}

var _ filesystem.File = (*file)(nil)

func (f *file) Entry() filesystem.Entry {
	return f.entry
}

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > f.entry.Size {
		return 0, &filesystem.OutOfRangeError{Offset: off, Size: f.entry.Size}
	}
	h, err := os.Open(f.path)
	if err != nil {
		return 0, &filesystem.IOError{Op: "open", Offset: off, Err: err}
	}
	defer h.Close()

	n, err := h.ReadAt(p, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, &filesystem.IOError{Op: "read", Offset: off, Err: err}
	}
	return n, err
}
