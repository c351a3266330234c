package evidfs_test

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/evidfs/go-evidfs"
	"github.com/evidfs/go-evidfs/backend"
	"github.com/evidfs/go-evidfs/filesystem"
	"github.com/evidfs/go-evidfs/testhelper"
)

// fakeDriver answers Probe with a canned verdict and records whether it
// was consulted.
type fakeDriver struct {
	fsType  filesystem.Type
	match   bool
	probed  bool
	mounted bool
}

func (d *fakeDriver) Type() filesystem.Type { return d.fsType }

func (d *fakeDriver) Probe(storage backend.Storage) (bool, error) {
	d.probed = true
	return d.match, nil
}

func (d *fakeDriver) Mount(storage backend.Storage) (filesystem.FileSystem, error) {
	d.mounted = true
	return &fakeFS{info: filesystem.Info{Type: d.fsType}}, nil
}

// fakeFS is the minimal mount result a fake driver can hand back.
type fakeFS struct {
	info filesystem.Info
}

func (f *fakeFS) Info() filesystem.Info { return f.info }

func (f *fakeFS) Root() (filesystem.Directory, error) {
	return nil, filesystem.ErrNotFound
}

func (f *fakeFS) EntryByID(id uint64) (filesystem.Entry, error) {
	return filesystem.Entry{}, filesystem.ErrNotFound
}

func (f *fakeFS) OpenFile(e filesystem.Entry) (filesystem.File, error) {
	return nil, filesystem.ErrNotAFile
}

func (f *fakeFS) OpenDirectory(e filesystem.Entry) (filesystem.Directory, error) {
	return nil, filesystem.ErrNotADirectory
}

func tarImage(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	require.NoError(t, w.WriteHeader(&tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(content)),
		ModTime: time.Unix(1700000000, 0),
		Format:  tar.FormatUSTAR,
	}))
	_, err := w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDetectProbesInRegistrationOrder(t *testing.T) {
	first := &fakeDriver{fsType: "first", match: true}
	second := &fakeDriver{fsType: "second", match: true}
	r := evidfs.NewRegistry(first, second)

	_, err := r.Detect(testhelper.NewStorage(make([]byte, 512)))
	require.NoError(t, err)

	// the earliest registered driver wins an ambiguous match
	assert.True(t, first.probed)
	assert.True(t, first.mounted)
	assert.False(t, second.probed)
	assert.False(t, second.mounted)
}

func TestDetectFallsThroughDecliningDrivers(t *testing.T) {
	first := &fakeDriver{fsType: "first"}
	second := &fakeDriver{fsType: "second", match: true}
	r := evidfs.NewRegistry(first, second)

	_, err := r.Detect(testhelper.NewStorage(make([]byte, 512)))
	require.NoError(t, err)
	assert.True(t, first.probed)
	assert.False(t, first.mounted)
	assert.True(t, second.mounted)
}

func TestDetectNoMatch(t *testing.T) {
	// an all-zero source matches nothing in the default registry
	_, err := evidfs.Detect(testhelper.NewStorage(make([]byte, 4096)))
	assert.ErrorIs(t, err, evidfs.ErrNoMatch)
}

func TestDetectTarImage(t *testing.T) {
	image := tarImage(t, "note.txt", "hello")
	fsys, err := evidfs.Detect(testhelper.NewStorage(image))
	require.NoError(t, err)
	assert.Equal(t, filesystem.TypeTar, fsys.Info().Type)

	data, err := filesystem.ReadFile(fsys, "/note.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestDetectAt(t *testing.T) {
	// embed the archive mid-image, the way a partition table places a
	// filesystem inside a disk
	image := tarImage(t, "note.txt", "hello")
	disk := make([]byte, 1048576+len(image)+4096)
	copy(disk[1048576:], image)

	fsys, err := evidfs.DetectAt(testhelper.NewStorage(disk), 1048576, int64(len(image)))
	require.NoError(t, err)

	data, err := filesystem.ReadFile(fsys, "/note.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestMountByType(t *testing.T) {
	image := tarImage(t, "note.txt", "hello")
	fsys, err := evidfs.Mount(testhelper.NewStorage(image), filesystem.TypeTar)
	require.NoError(t, err)
	assert.Equal(t, filesystem.TypeTar, fsys.Info().Type)

	_, err = evidfs.Mount(testhelper.NewStorage(image), "ext9")
	assert.ErrorIs(t, err, evidfs.ErrNoMatch)
}

func TestOpenImageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.tar")
	require.NoError(t, os.WriteFile(path, tarImage(t, "note.txt", "hello"), 0o644))

	fsys, err := evidfs.Open(path)
	require.NoError(t, err)

	data, err := filesystem.ReadFile(fsys, "/note.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestOpenCompressedImage(t *testing.T) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(tarImage(t, "note.txt", "hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "evidence.tar.xz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	fsys, err := evidfs.Open(path)
	require.NoError(t, err)

	data, err := filesystem.ReadFile(fsys, "/note.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestOpenNoMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.bin")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0x5a}, 4096), 0o644))

	_, err := evidfs.Open(path)
	assert.ErrorIs(t, err, evidfs.ErrNoMatch)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := evidfs.Open(filepath.Join(t.TempDir(), "nope.img"))
	assert.Error(t, err)
}
