package backend

import (
	"fmt"
	"io"
)

// SubStorage exposes a region of an underlying Storage as a Storage of its
// own. It is how a single partition of a disk image is handed to a
// filesystem driver: reads are shifted by the region offset and clipped to
// the region size, so a driver can never stray outside its partition.
type SubStorage struct {
	underlying Storage
	offset     int64
	size       int64
}

// Sub returns a view of u covering size bytes starting at offset.
func Sub(u Storage, offset, size int64) *SubStorage {
	return &SubStorage{
		underlying: u,
		offset:     offset,
		size:       size,
	}
}

func (s *SubStorage) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("invalid read offset %d", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}
	if remaining := s.size - off; int64(len(p)) > remaining {
		n, err := s.underlying.ReadAt(p[:remaining], s.offset+off)
		if err == nil {
			err = io.EOF
		}
		return n, err
	}
	return s.underlying.ReadAt(p, s.offset+off)
}

// Close closes the underlying Storage. Callers slicing several partitions
// out of one image should close the image once, not every slice.
func (s *SubStorage) Close() error {
	return s.underlying.Close()
}

func (s *SubStorage) Size() (int64, error) {
	return s.size, nil
}
