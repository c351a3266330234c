// Package backend provides read-only access to the bytes of an evidence
// source, whether a plain image file, a block device, or a slice of either
// covering a single partition.
package backend

import (
	"errors"
	"io"
)

var (
	// ErrNotSuitable is returned when a backing source cannot serve the
	// requested role, e.g. garbage bytes handed to a format-specific opener.
	ErrNotSuitable = errors.New("backing source is not suitable")
)

// Storage is a finite, read-only, byte-addressable evidence source.
// Every ReadAt call is independently positioned, so a single Storage may be
// shared by concurrent readers without locking. There is no write path:
// evidence is never modified.
type Storage interface {
	io.ReaderAt
	io.Closer
	// Size returns the total length of the source in bytes.
	Size() (int64, error)
}
