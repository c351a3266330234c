// Package testhelper provides stub implementations of backend.Storage,
// used for testing drivers and core contracts without real disk images.
package testhelper

import "bytes"

type reader func(p []byte, offset int64) (int, error)

// StorageImpl implements backend.Storage with pluggable behavior, to stub
// out evidence sources and inject read failures.
type StorageImpl struct {
	Reader  reader
	SizeVal int64
}

func (s *StorageImpl) ReadAt(p []byte, off int64) (int, error) {
	return s.Reader(p, off)
}

func (s *StorageImpl) Close() error {
	return nil
}

func (s *StorageImpl) Size() (int64, error) {
	return s.SizeVal, nil
}

// NewStorage returns a Storage serving the given bytes.
func NewStorage(data []byte) *StorageImpl {
	r := bytes.NewReader(data)
	return &StorageImpl{
		Reader:  r.ReadAt,
		SizeVal: int64(len(data)),
	}
}
