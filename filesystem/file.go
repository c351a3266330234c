package filesystem

import (
	"errors"
	"io"

	"github.com/evidfs/go-evidfs/backend"
)

// File is read access to one object's logical content. ReadAt follows the
// io.ReaderAt contract: reads are independently positioned and safe for
// concurrent use, and a short count is returned only at end of content,
// together with io.EOF. A read that starts beyond the content fails with
// *OutOfRangeError, and a failed or short backing read surfaces as
// *IOError, never as silently missing bytes.
type File interface {
	io.ReaderAt
	// Entry returns the object's descriptor.
	Entry() Entry
}

// ExtentFile serves a file's content straight from its extent map and is
// the shared reader for drivers whose format exposes physical placement.
// A logical offset is translated to the (extent, in-extent offset) pair
// holding it and read from the evidence source; logical runs not covered by
// any extent are sparse holes and are synthesized as zeros. No byte outside
// the declared extents is ever read.
//
// ExtentFile performs underlying I/O on every call and keeps no buffer, so
// it is safe for concurrent readers as long as the Storage is.
type ExtentFile struct {
	entry   Entry
	storage backend.Storage
}

// NewExtentFile returns a File serving entry's content from storage via the
// descriptor's extent map.
func NewExtentFile(entry Entry, storage backend.Storage) *ExtentFile {
	return &ExtentFile{
		entry:   entry,
		storage: storage,
	}
}

func (f *ExtentFile) Entry() Entry {
	return f.entry
}

// ReadAt reads up to len(p) bytes of logical content starting at off.
func (f *ExtentFile) ReadAt(p []byte, off int64) (int, error) {
	size := f.entry.Size
	if off < 0 || off > size {
		return 0, &OutOfRangeError{Offset: off, Size: size}
	}

	want := int64(len(p))
	if off+want > size {
		want = size - off
	}

	// start from zeros so holes need no explicit handling, the extent walk
	// below only fills what the map backs
	window := p[:want]
	for i := range window {
		window[i] = 0
	}

	end := off + want
	for _, x := range f.entry.Extents {
		if x.Logical+x.Length <= off || x.Logical >= end {
			continue
		}

		// clip the extent to the requested window
		start := off
		if x.Logical > start {
			start = x.Logical
		}
		stop := end
		if x.Logical+x.Length < stop {
			stop = x.Logical + x.Length
		}

		diskOffset := x.Disk + (start - x.Logical)
		n, err := f.storage.ReadAt(window[start-off:stop-off], diskOffset)
		if int64(n) < stop-start {
			if err == nil || errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return int(start-off) + n, &IOError{Op: "read extent", Offset: diskOffset, Err: err}
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return int(start-off) + n, &IOError{Op: "read extent", Offset: diskOffset, Err: err}
		}
	}

	if want < int64(len(p)) {
		return int(want), io.EOF
	}
	return int(want), nil
}
