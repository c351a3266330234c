// Package tarfs implements the filesystem driver contracts over POSIX
// ustar, pax, and GNU tar archives, which forensic workflows encounter as
// logical evidence containers. Pax extended headers are honored for the
// path and linkpath overrides; other pax keywords (sub-second times, large
// owner ids) are ignored and the ustar header fields stand.
//
// The driver is read-only and keeps forensic fidelity where the format
// allows it: every member's content is described by its exact byte range on
// the image, and when an appended archive supersedes an earlier member
// under the same path, the earlier record stays visible with its
// allocation state set to deleted, so prior versions remain recoverable.
// Directories that exist only implicitly, as path components of their
// members, carry no on-image record and report an unknown allocation
// state.
//
// Identifiers are 1-based header block numbers; identifier 0 names the
// root directory. Name comparison in Lookup is exact and case-sensitive,
// with no encoding normalization. Driver-native directory order is archive
// order of first appearance.
package tarfs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evidfs/go-evidfs/backend"
	"github.com/evidfs/go-evidfs/filesystem"
)

const blockSize = 512

// header field offsets per the ustar layout
const (
	posName     = 0
	lenName     = 100
	posMode     = 100
	lenMode     = 8
	posUID      = 108
	lenUID      = 8
	posGID      = 116
	lenGID      = 8
	posSize     = 124
	lenSize     = 12
	posMtime    = 136
	lenMtime    = 12
	posChksum   = 148
	lenChksum   = 8
	posTypeflag = 156
	posLinkname = 157
	lenLinkname = 100
	posMagic    = 257
	posPrefix   = 345
	lenPrefix   = 155
)

const (
	typeRegular    = '0'
	typeRegularAlt = 0x00
	typeHardLink   = '1'
	typeSymlink    = '2'
	typeCharDev    = '3'
	typeBlockDev   = '4'
	typeDirectory  = '5'
	typeFifo       = '6'
	typeContiguous = '7'
	typeLongLink   = 'K'
	typeLongName   = 'L'
	typeVolume     = 'V'
	typePaxRecord  = 'x'
	typePaxGlobal  = 'g'
)

// Driver is the tar archive driver, registered by default in the evidfs
// registry.
type Driver struct{}

// filesystem.Driver interface guard
var _ filesystem.Driver = (*Driver)(nil)

func (d *Driver) Type() filesystem.Type {
	return filesystem.TypeTar
}

// Probe checks the first header block for the ustar magic and a valid
// header checksum. Garbage, all-zero, or too-short input answers false.
func (d *Driver) Probe(storage backend.Storage) (bool, error) {
	block := make([]byte, blockSize)
	n, err := storage.ReadAt(block, 0)
	if n < blockSize {
		if err == nil || errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, &filesystem.IOError{Op: "probe", Offset: 0, Err: err}
	}
	if isZeroBlock(block) || !hasMagic(block) {
		return false, nil
	}
	return checksumValid(block), nil
}

// Mount scans the archive once, indexing every member record. A damaged
// tail truncates the index rather than failing the mount; only a source
// whose very first block is not a tar header is rejected.
func (d *Driver) Mount(storage backend.Storage) (filesystem.FileSystem, error) {
	first := make([]byte, blockSize)
	n, err := storage.ReadAt(first, 0)
	if n < blockSize {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, &filesystem.MountError{FSType: filesystem.TypeTar, Reason: "source shorter than one header block"}
		}
		return nil, &filesystem.MountError{FSType: filesystem.TypeTar, Reason: "could not read first header block", Err: err}
	}
	if isZeroBlock(first) || !hasMagic(first) || !checksumValid(first) {
		return nil, &filesystem.MountError{FSType: filesystem.TypeTar, Reason: "no tar header at offset 0"}
	}

	fs := &FileSystem{
		storage: storage,
		links:   make(map[uint64]string),
	}
	fs.info = filesystem.Info{
		Type:      filesystem.TypeTar,
		BlockSize: blockSize,
		// the format has no volume identifier, derive a stable one from
		// the first header so remounts agree
		UUID: uuid.NewSHA1(uuid.NameSpaceOID, first),
	}

	root := newDirNode(0)
	root.entry.State = filesystem.AllocUnknown
	if err := fs.scan(root); err != nil {
		return nil, err
	}
	fs.finalize(root)
	return fs, nil
}

// node is one archive member, or a directory synthesized from member
// paths. Everything is immutable once Mount returns.
type node struct {
	id       uint64
	entry    filesystem.Entry
	children []filesystem.DirEntry
	refs     []*childRef
	dirs     map[string]*node
	files    map[string]*node
}

type childRef struct {
	name string
	node *node
}

func newDirNode(id uint64) *node {
	return &node{
		id: id,
		entry: filesystem.Entry{
			Kind:  filesystem.KindDirectory,
			State: filesystem.AllocUnknown,
		},
		dirs:  make(map[string]*node),
		files: make(map[string]*node),
	}
}

// FileSystem is a mounted tar archive. The member index is built once at
// mount time and never mutated, so instances are safe for concurrent
// readers without locking.
type FileSystem struct {
	storage backend.Storage
	info    filesystem.Info
	nodes   map[uint64]*node
	links   map[uint64]string
	root    *node
}

// filesystem interface guards
var (
	_ filesystem.FileSystem    = (*FileSystem)(nil)
	_ filesystem.SymlinkReader = (*FileSystem)(nil)
)

func (fs *FileSystem) Info() filesystem.Info {
	return fs.info
}

func (fs *FileSystem) Root() (filesystem.Directory, error) {
	return &directory{fs: fs, node: fs.root}, nil
}

func (fs *FileSystem) EntryByID(id uint64) (filesystem.Entry, error) {
	n, ok := fs.nodes[id]
	if !ok {
		return filesystem.Entry{}, fmt.Errorf("identifier %d: %w", id, filesystem.ErrNotFound)
	}
	return n.entry, nil
}

func (fs *FileSystem) OpenFile(e filesystem.Entry) (filesystem.File, error) {
	if e.Kind != filesystem.KindRegular {
		return nil, fmt.Errorf("entry %d is a %s: %w", e.ID, e.Kind, filesystem.ErrNotAFile)
	}
	return filesystem.NewExtentFile(e, fs.storage), nil
}

func (fs *FileSystem) OpenDirectory(e filesystem.Entry) (filesystem.Directory, error) {
	if e.Kind != filesystem.KindDirectory {
		return nil, fmt.Errorf("entry %d is a %s: %w", e.ID, e.Kind, filesystem.ErrNotADirectory)
	}
	n, ok := fs.nodes[e.ID]
	if !ok || n.entry.Kind != filesystem.KindDirectory {
		return nil, fmt.Errorf("identifier %d: %w", e.ID, filesystem.ErrNotFound)
	}
	return &directory{fs: fs, node: n}, nil
}

// ReadLink returns the recorded target of a symlink or hard-link member.
func (fs *FileSystem) ReadLink(e filesystem.Entry) (string, error) {
	target, ok := fs.links[e.ID]
	if !ok {
		return "", fmt.Errorf("identifier %d has no link target: %w", e.ID, filesystem.ErrNotFound)
	}
	return target, nil
}

// scan walks the header chain, attaching one node per member to the tree
// rooted at root. The scan stops quietly at the end-of-archive marker, at
// truncation, and at the first structurally invalid header: a damaged tail
// yields a partial index, not a failed mount. A failing source read is
// different from a damaged tail and aborts the mount, so an examiner never
// mistakes an unreadable image for a short archive.
func (fs *FileSystem) scan(root *node) error {
	size, err := fs.storage.Size()
	if err != nil {
		return &filesystem.MountError{FSType: filesystem.TypeTar, Reason: "could not get source size", Err: err}
	}

	var (
		offset       int64
		longName     string
		longLink     string
		paxPath      string
		paxLink      string
		sawZeroBlock bool
	)
	block := make([]byte, blockSize)
	for offset+blockSize <= size {
		n, err := fs.storage.ReadAt(block, offset)
		if n < blockSize {
			if err == nil || errors.Is(err, io.EOF) {
				break
			}
			return &filesystem.MountError{FSType: filesystem.TypeTar, Reason: fmt.Sprintf("could not read header block at offset %d", offset), Err: err}
		}

		if isZeroBlock(block) {
			if sawZeroBlock {
				break // end-of-archive marker
			}
			sawZeroBlock = true
			offset += blockSize
			continue
		}
		sawZeroBlock = false

		if !checksumValid(block) {
			break
		}

		hdrSize := parseNumeric(block[posSize : posSize+lenSize])
		if hdrSize < 0 {
			break
		}
		dataOffset := offset + blockSize
		dataBlocks := (hdrSize + blockSize - 1) / blockSize

		typeflag := block[posTypeflag]
		switch typeflag {
		case typeLongName:
			longName = fs.readStringData(dataOffset, hdrSize)
		case typeLongLink:
			longLink = fs.readStringData(dataOffset, hdrSize)
		case typeVolume:
			fs.info.Label = fieldString(block[posName : posName+lenName])
		case typePaxRecord:
			paxPath, paxLink = fs.readPaxRecords(dataOffset, hdrSize)
		case typePaxGlobal:
			// global defaults are not filesystem objects, skip the data
		default:
			name := fieldString(block[posName : posName+lenName])
			if prefix := fieldString(block[posPrefix : posPrefix+lenPrefix]); prefix != "" && isPosixMagic(block) {
				name = prefix + "/" + name
			}
			if longName != "" {
				name = longName
			}
			if paxPath != "" {
				name = paxPath
			}
			linkname := fieldString(block[posLinkname : posLinkname+lenLinkname])
			if longLink != "" {
				linkname = longLink
			}
			if paxLink != "" {
				linkname = paxLink
			}
			longName, longLink = "", ""
			paxPath, paxLink = "", ""

			id := uint64(offset/blockSize) + 1
			fs.addMember(root, id, name, linkname, typeflag, hdrSize, dataOffset, block)
		}

		offset = dataOffset + dataBlocks*blockSize
	}

	return nil
}

// addMember attaches one parsed member record to the tree.
func (fs *FileSystem) addMember(root *node, id uint64, name, linkname string, typeflag byte, size, dataOffset int64, block []byte) {
	segments := memberSegments(name)
	entry := memberEntry(typeflag, size, dataOffset, block)

	if len(segments) == 0 {
		// a "." or "/" member describes the root itself
		if entry.Kind == filesystem.KindDirectory {
			state, times, perm := entry.State, entry.Times, entry.Perm
			root.entry.State = state
			root.entry.Times = times
			root.entry.Perm = perm
			if root.id == 0 {
				root.id = id
			}
		}
		return
	}

	parent := ensureDir(root, segments[:len(segments)-1])
	leaf := segments[len(segments)-1]

	if entry.Kind == filesystem.KindDirectory {
		if existing, ok := parent.dirs[leaf]; ok {
			// a re-appearing directory member refreshes metadata in place
			existing.entry.State = entry.State
			existing.entry.Times = entry.Times
			existing.entry.Perm = entry.Perm
			return
		}
		child := newDirNode(id)
		child.entry = entry
		parent.dirs[leaf] = child
		parent.refs = append(parent.refs, &childRef{name: leaf, node: child})
		return
	}

	if previous, ok := parent.files[leaf]; ok {
		// a later member under the same path supersedes this one; keep the
		// old record visible as a recoverable prior version
		previous.entry.State = filesystem.AllocDeleted
	}
	child := &node{id: id, entry: entry}
	parent.files[leaf] = child
	parent.refs = append(parent.refs, &childRef{name: leaf, node: child})
	if linkname != "" {
		fs.links[id] = linkname
	}
}

// ensureDir descends to the directory named by segments, synthesizing any
// missing intermediate directories. Synthesized directories have no
// on-image record: their identifiers are assigned at finalize and their
// allocation state stays unknown.
func ensureDir(root *node, segments []string) *node {
	current := root
	for _, segment := range segments {
		next, ok := current.dirs[segment]
		if !ok {
			next = newDirNode(0)
			current.dirs[segment] = next
			current.refs = append(current.refs, &childRef{name: segment, node: next})
		}
		current = next
	}
	return current
}

// finalize assigns identifiers to synthesized directories and freezes the
// tree into the id index and per-directory entry slices.
func (fs *FileSystem) finalize(root *node) {
	var (
		all   []*node
		maxID uint64
	)
	stack := []*node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		all = append(all, n)
		if n.id > maxID {
			maxID = n.id
		}
		for _, ref := range n.refs {
			if ref.node.entry.Kind == filesystem.KindDirectory {
				stack = append(stack, ref.node)
			} else {
				all = append(all, ref.node)
			}
		}
	}

	nextSynthetic := maxID + 1
	fs.nodes = make(map[uint64]*node, len(all))
	for _, n := range all {
		if n.id == 0 && n != root {
			n.id = nextSynthetic
			nextSynthetic++
		}
		n.entry.ID = n.id
		fs.nodes[n.id] = n
	}
	for _, n := range all {
		if n.entry.Kind != filesystem.KindDirectory {
			continue
		}
		n.children = make([]filesystem.DirEntry, 0, len(n.refs))
		for _, ref := range n.refs {
			n.children = append(n.children, filesystem.DirEntry{
				Name: ref.name,
				ID:   ref.node.id,
				Kind: ref.node.entry.Kind,
			})
		}
	}
	fs.root = root
}

// memberEntry builds the descriptor for one member record.
func memberEntry(typeflag byte, size, dataOffset int64, block []byte) filesystem.Entry {
	entry := filesystem.Entry{
		State: filesystem.AllocAllocated,
	}

	switch typeflag {
	case typeRegular, typeRegularAlt, typeContiguous:
		entry.Kind = filesystem.KindRegular
		entry.Size = size
		if size > 0 {
			entry.Extents = filesystem.Extents{{Logical: 0, Disk: dataOffset, Length: size}}
		}
	case typeDirectory:
		entry.Kind = filesystem.KindDirectory
	case typeSymlink:
		entry.Kind = filesystem.KindSymlink
	case typeCharDev, typeBlockDev:
		entry.Kind = filesystem.KindDevice
	default:
		entry.Kind = filesystem.KindOther
	}

	if mode := parseNumeric(block[posMode : posMode+lenMode]); mode >= 0 {
		entry.Perm.Mode = fileModeFor(entry.Kind, uint32(mode))
		entry.Perm.Raw = append([]byte(nil), block[posMode:posMode+lenMode]...)
	}
	if uid := parseNumeric(block[posUID : posUID+lenUID]); uid >= 0 {
		entry.Perm.UID = uint32(uid)
	}
	if gid := parseNumeric(block[posGID : posGID+lenGID]); gid >= 0 {
		entry.Perm.GID = uint32(gid)
	}
	if mtime := parseNumeric(block[posMtime : posMtime+lenMtime]); mtime > 0 {
		entry.Times.Modified = time.Unix(mtime, 0).UTC()
	}
	return entry
}

func fileModeFor(kind filesystem.Kind, mode uint32) os.FileMode {
	fm := os.FileMode(mode & 0o7777)
	switch kind {
	case filesystem.KindDirectory:
		fm |= os.ModeDir
	case filesystem.KindSymlink:
		fm |= os.ModeSymlink
	case filesystem.KindDevice:
		fm |= os.ModeDevice
	}
	return fm
}

// readData reads the payload of a metadata record, bounded so a corrupt
// size field cannot force a huge allocation.
func (fs *FileSystem) readData(offset, size int64) string {
	if size <= 0 || size > 32*1024 {
		return ""
	}
	data := make([]byte, size)
	if n, _ := fs.storage.ReadAt(data, offset); n < int(size) {
		return ""
	}
	return string(data)
}

// readStringData reads the NUL-terminated payload of a long-name record.
func (fs *FileSystem) readStringData(offset, size int64) string {
	return strings.TrimRight(fs.readData(offset, size), "\x00")
}

// readPaxRecords extracts the path and linkpath overrides for the next
// member from a pax extended header. Records are "length key=value\n" with
// length counting the whole record; other keywords are ignored and the
// ustar header fields stand.
func (fs *FileSystem) readPaxRecords(offset, size int64) (path, linkpath string) {
	data := fs.readData(offset, size)
	for len(data) > 0 {
		sp := strings.IndexByte(data, ' ')
		if sp <= 0 {
			return path, linkpath
		}
		length, err := strconv.Atoi(data[:sp])
		if err != nil || length <= sp+1 || length > len(data) {
			return path, linkpath
		}
		record := strings.TrimSuffix(data[sp+1:length], "\n")
		data = data[length:]

		eq := strings.IndexByte(record, '=')
		if eq < 0 {
			continue
		}
		switch record[:eq] {
		case "path":
			path = record[eq+1:]
		case "linkpath":
			linkpath = record[eq+1:]
		}
	}
	return path, linkpath
}

// memberSegments normalizes a member path into its segments; "." and "/"
// describe the root.
func memberSegments(name string) []string {
	name = strings.TrimPrefix(name, "./")
	if name == "." {
		return nil
	}
	return filesystem.SplitPath(name)
}

func fieldString(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimRight(string(b), " ")
}

// parseNumeric decodes a tar numeric field, either octal text or the GNU
// base-256 form used when a value overflows the field. Returns -1 for a
// field that is neither.
func parseNumeric(b []byte) int64 {
	if len(b) > 0 && b[0]&0x80 != 0 {
		var x int64
		for i, c := range b {
			if i == 0 {
				c &= 0x7f
			}
			x = x<<8 | int64(c)
		}
		return x
	}
	s := strings.Trim(fieldString(b), " ")
	if s == "" {
		return 0
	}
	x, err := strconv.ParseInt(s, 8, 64)
	if err != nil {
		return -1
	}
	return x
}

func isZeroBlock(block []byte) bool {
	for _, b := range block {
		if b != 0 {
			return false
		}
	}
	return true
}

func hasMagic(block []byte) bool {
	return string(block[posMagic:posMagic+5]) == "ustar"
}

func isPosixMagic(block []byte) bool {
	return string(block[posMagic:posMagic+6]) == "ustar\x00"
}

// checksumValid recomputes the header checksum, accepting both the
// unsigned sum the standard requires and the signed sum some historic
// writers produced.
func checksumValid(block []byte) bool {
	recorded := parseNumeric(block[posChksum : posChksum+lenChksum])
	if recorded < 0 {
		return false
	}
	var unsigned, signed int64
	for i, c := range block {
		if i >= posChksum && i < posChksum+lenChksum {
			c = ' '
		}
		unsigned += int64(c)
		signed += int64(int8(c))
	}
	return recorded == unsigned || recorded == signed
}
