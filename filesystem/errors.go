package filesystem

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a name, path segment, or identifier does
	// not resolve to any entry.
	ErrNotFound = errors.New("entry not found")
	// ErrNotADirectory is returned when a non-directory descriptor is opened
	// as a directory, or a non-terminal path segment resolves to one.
	ErrNotADirectory = errors.New("not a directory")
	// ErrNotAFile is returned when a descriptor other than a regular file is
	// opened for content.
	ErrNotAFile = errors.New("not a file")
)

// MountError reports why a source could not be mounted: bad signature,
// unsupported version, truncated source. Mount never half-succeeds; the
// reason is carried here instead.
type MountError struct {
	FSType Type
	Reason string
	Err    error
}

func (e *MountError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot mount %s filesystem: %s: %v", e.FSType, e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot mount %s filesystem: %s", e.FSType, e.Reason)
}

func (e *MountError) Unwrap() error {
	return e.Err
}

// OutOfRangeError reports a read starting beyond an object's logical
// content.
type OutOfRangeError struct {
	Offset int64
	Size   int64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("offset %d out of range for content of %d bytes", e.Offset, e.Size)
}

// IOError wraps a failed or short read of the evidence source. It is always
// surfaced and never retried or absorbed: the examiner has to know that a
// read did not complete.
type IOError struct {
	Op     string
	Offset int64
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s at offset %d: %v", e.Op, e.Offset, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
