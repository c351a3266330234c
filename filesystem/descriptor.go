package filesystem

import (
	"bytes"
	"os"
	"time"
)

// Kind classifies a filesystem object independent of the backing format.
type Kind int

const (
	// KindRegular is a regular file
	KindRegular Kind = iota
	// KindDirectory is a directory
	KindDirectory
	// KindSymlink is a symbolic link; the target is never resolved implicitly
	KindSymlink
	// KindDevice is a block or character device node
	KindDevice
	// KindOther covers sockets, fifos, hard-link records and anything else
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	case KindDevice:
		return "device"
	default:
		return "other"
	}
}

// AllocationState records whether an object is still referenced by live
// filesystem metadata. The zero value is AllocUnknown: a driver that cannot
// read the on-disk marker reports Unknown rather than guessing, and callers
// must treat Unknown as "cannot assert either way", never as Allocated.
type AllocationState int

const (
	// AllocUnknown means the on-disk allocation marker is absent or ambiguous
	AllocUnknown AllocationState = iota
	// AllocAllocated means live metadata references the object
	AllocAllocated
	// AllocDeleted means the object is unlinked but its record survives
	AllocDeleted
)

func (s AllocationState) String() string {
	switch s {
	case AllocAllocated:
		return "allocated"
	case AllocDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Extent is one contiguous run of an object's content on the evidence
// source. Logical is the offset of the run within the object's content,
// Disk its byte offset on the source.
type Extent struct {
	Logical int64
	Disk    int64
	Length  int64
}

// Extents is the ordered extent map of one object, sorted by Logical.
// Logical runs not covered by any extent are sparse holes and read as
// zeros. The map may back fewer bytes than the object size (holes) and is
// empty for pure-metadata objects such as inline symlinks.
type Extents []Extent

// TotalLength returns the number of content bytes backed by the map, which
// is less than the object size when the object has holes.
func (xs Extents) TotalLength() int64 {
	var total int64
	for _, x := range xs {
		total += x.Length
	}
	return total
}

// Covers reports whether every byte of the logical run [off, off+length)
// is backed by an extent.
func (xs Extents) Covers(off, length int64) bool {
	pos := off
	end := off + length
	for _, x := range xs {
		if pos >= end {
			break
		}
		if x.Logical > pos {
			return false
		}
		if stop := x.Logical + x.Length; stop > pos {
			pos = stop
		}
	}
	return pos >= end
}

// Holes returns the logical runs within size bytes of content that no
// extent backs. Returned extents carry Logical and Length only; a hole has
// no location on the source, so Disk stays zero.
func (xs Extents) Holes(size int64) Extents {
	var holes Extents
	var pos int64
	for _, x := range xs {
		if x.Logical > pos {
			holes = append(holes, Extent{Logical: pos, Length: x.Logical - pos})
		}
		if stop := x.Logical + x.Length; stop > pos {
			pos = stop
		}
	}
	if pos < size {
		holes = append(holes, Extent{Logical: pos, Length: size - pos})
	}
	return holes
}

// Timestamps carries the instants a format records about an object. A zero
// time means the format does not record that instant; no timestamp is
// fabricated for it.
type Timestamps struct {
	Created  time.Time
	Modified time.Time
	Accessed time.Time
	Changed  time.Time
}

// Permissions is the normalized owner/mode subset of an object's access
// metadata plus the format-native record it was derived from. Raw is nil
// when the format keeps no native record beyond the normalized fields.
type Permissions struct {
	Mode os.FileMode
	UID  uint32
	GID  uint32
	Raw  []byte
}

// Entry describes one filesystem object independent of the backing format.
// It is a plain value: drivers populate it, the resolver and callers only
// read it. ID is the format-native identifier (inode number, record
// number); callers use it solely for equality and lookup.
type Entry struct {
	ID      uint64
	Kind    Kind
	Size    int64
	Times   Timestamps
	Perm    Permissions
	State   AllocationState
	Extents Extents
}

// Equal reports whether two descriptors describe the same object state.
func (e Entry) Equal(o Entry) bool {
	if e.ID != o.ID || e.Kind != o.Kind || e.Size != o.Size || e.State != o.State {
		return false
	}
	if e.Times != o.Times {
		return false
	}
	if e.Perm.Mode != o.Perm.Mode || e.Perm.UID != o.Perm.UID || e.Perm.GID != o.Perm.GID {
		return false
	}
	if !bytes.Equal(e.Perm.Raw, o.Perm.Raw) {
		return false
	}
	if len(e.Extents) != len(o.Extents) {
		return false
	}
	for i := range e.Extents {
		if e.Extents[i] != o.Extents[i] {
			return false
		}
	}
	return true
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == KindDirectory
}

// IsRegular reports whether the entry is a regular file.
func (e Entry) IsRegular() bool {
	return e.Kind == KindRegular
}

// IsSymlink reports whether the entry is a symbolic link.
func (e Entry) IsSymlink() bool {
	return e.Kind == KindSymlink
}

// DirEntry links a name within one directory to a descriptor elsewhere.
// Kind is a hint taken from the directory record itself; the descriptor
// fetched through EntryByID is authoritative. Name uniqueness within a
// directory is a format invariant, not enforced here: corrupt images do
// violate it, and Lookup resolves such ties deterministically.
type DirEntry struct {
	Name string
	ID   uint64
	Kind Kind
}
