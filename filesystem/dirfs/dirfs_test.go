package dirfs_test

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/pkg/xattr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidfs/go-evidfs/filesystem"
	"github.com/evidfs/go-evidfs/filesystem/dirfs"
)

// fixtureTree builds a small extracted-evidence tree:
//
//	root/
//	  report.txt      "field notes\n"
//	  sub/
//	    inner.bin     256 incrementing bytes
//	  link -> report.txt
func fixtureTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "report.txt"), []byte("field notes\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	blob := make([]byte, 256)
	for i := range blob {
		blob[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "inner.bin"), blob, 0o600))

	if runtime.GOOS != "windows" {
		require.NoError(t, os.Symlink("report.txt", filepath.Join(root, "link")))
	}
	return root
}

func TestNewRejectsBadRoot(t *testing.T) {
	_, err := dirfs.New(filepath.Join(t.TempDir(), "missing"))
	var me *filesystem.MountError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, filesystem.TypeDir, me.FSType)

	regular := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(regular, []byte("x"), 0o644))
	_, err = dirfs.New(regular)
	require.ErrorAs(t, err, &me)
}

func TestInfo(t *testing.T) {
	root := fixtureTree(t)
	fsys, err := dirfs.New(root)
	require.NoError(t, err)

	info := fsys.Info()
	assert.Equal(t, filesystem.TypeDir, info.Type)
	assert.Equal(t, filepath.Base(root), info.Label)

	// volume identity is derived from the root path, so a remount agrees
	again, err := dirfs.New(root)
	require.NoError(t, err)
	assert.Equal(t, info.UUID, again.Info().UUID)
}

func TestResolveAndRead(t *testing.T) {
	fsys, err := dirfs.New(fixtureTree(t))
	require.NoError(t, err)

	entry, err := filesystem.Resolve(fsys, "/sub/inner.bin")
	require.NoError(t, err)
	assert.Equal(t, filesystem.KindRegular, entry.Kind)
	assert.Equal(t, filesystem.AllocAllocated, entry.State)
	assert.EqualValues(t, 256, entry.Size)
	assert.Empty(t, entry.Extents, "host kernels hide physical placement")
	assert.False(t, entry.Times.Modified.IsZero())

	data, err := filesystem.ReadFile(fsys, "/sub/inner.bin")
	require.NoError(t, err)
	require.Len(t, data, 256)
	assert.EqualValues(t, 0, data[0])
	assert.EqualValues(t, 255, data[255])

	_, err = filesystem.Resolve(fsys, "/sub/absent")
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
	_, err = filesystem.Resolve(fsys, "/report.txt/below")
	assert.ErrorIs(t, err, filesystem.ErrNotADirectory)
}

func TestReadAtBounds(t *testing.T) {
	fsys, err := dirfs.New(fixtureTree(t))
	require.NoError(t, err)

	entry, err := filesystem.Resolve(fsys, "/report.txt")
	require.NoError(t, err)
	f, err := fsys.OpenFile(entry)
	require.NoError(t, err)

	p := make([]byte, 5)
	n, err := f.ReadAt(p, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "notes", string(p))

	var oor *filesystem.OutOfRangeError
	_, err = f.ReadAt(p, entry.Size+1)
	require.ErrorAs(t, err, &oor)
	_, err = f.ReadAt(p, -1)
	require.ErrorAs(t, err, &oor)
}

func TestEntryByIDAfterTraversal(t *testing.T) {
	fsys, err := dirfs.New(fixtureTree(t))
	require.NoError(t, err)

	root, err := fsys.Root()
	require.NoError(t, err)
	it := root.List()
	var ids []uint64
	for it.Next() {
		ids = append(ids, it.Entry().ID)
	}
	require.NoError(t, it.Err())
	require.NotEmpty(t, ids)

	for _, id := range ids {
		entry, err := fsys.EntryByID(id)
		require.NoError(t, err)
		assert.Equal(t, id, entry.ID)
	}

	// identifiers no traversal has touched are not resolvable
	_, err = fsys.EntryByID(0xfeedbeefcafe)
	assert.ErrorIs(t, err, filesystem.ErrNotFound)
}

func TestListIsLexicalAndRestartable(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"zz", "aa", "mm"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(name), 0o644))
	}
	fsys, err := dirfs.New(root)
	require.NoError(t, err)
	dir, err := fsys.Root()
	require.NoError(t, err)

	collect := func() []string {
		it := dir.List()
		var names []string
		for it.Next() {
			names = append(names, it.Entry().Name)
		}
		require.NoError(t, it.Err())
		return names
	}

	assert.Equal(t, []string{"aa", "mm", "zz"}, collect())
	assert.Equal(t, []string{"aa", "mm", "zz"}, collect())
}

func TestLookupRejectsNonBaseNames(t *testing.T) {
	fsys, err := dirfs.New(fixtureTree(t))
	require.NoError(t, err)
	root, err := fsys.Root()
	require.NoError(t, err)

	for _, name := range []string{"", ".", "..", "sub/inner.bin", "../escape"} {
		_, err := root.Lookup(name)
		assert.ErrorIs(t, err, filesystem.ErrNotFound, "name %q", name)
	}

	de, err := root.Lookup("sub")
	require.NoError(t, err)
	assert.Equal(t, filesystem.KindDirectory, de.Kind)
}

func TestSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink fixtures need symlink support")
	}
	fsys, err := dirfs.New(fixtureTree(t))
	require.NoError(t, err)

	entry, err := filesystem.Resolve(fsys, "/link")
	require.NoError(t, err)
	assert.Equal(t, filesystem.KindSymlink, entry.Kind)

	target, err := fsys.ReadLink(entry)
	require.NoError(t, err)
	assert.Equal(t, "report.txt", target)

	// the resolver never follows links
	_, err = filesystem.Resolve(fsys, "/link/below")
	assert.ErrorIs(t, err, filesystem.ErrNotADirectory)
}

func TestListXattrs(t *testing.T) {
	root := fixtureTree(t)
	path := filepath.Join(root, "report.txt")
	if err := xattr.LSet(path, "user.evidence.case", []byte("2026-0413")); err != nil {
		t.Skipf("filesystem does not support xattrs: %v", err)
	}

	fsys, err := dirfs.New(root)
	require.NoError(t, err)
	entry, err := filesystem.Resolve(fsys, "/report.txt")
	require.NoError(t, err)

	names, err := fsys.ListXattrs(entry)
	require.NoError(t, err)
	assert.Contains(t, names, "user.evidence.case")
}

// every snapshot updates the id-to-path cache, so parallel readers
// exercise the cache lock for real
func TestConcurrentReaders(t *testing.T) {
	fsys, err := dirfs.New(fixtureTree(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				data, err := filesystem.ReadFile(fsys, "/report.txt")
				assert.NoError(t, err)
				assert.Equal(t, "field notes\n", string(data))

				entry, err := filesystem.Resolve(fsys, "/sub/inner.bin")
				assert.NoError(t, err)
				back, err := fsys.EntryByID(entry.ID)
				assert.NoError(t, err)
				assert.Equal(t, entry.ID, back.ID)
			}
		}()
	}
	wg.Wait()
}

func TestWalk(t *testing.T) {
	fsys, err := dirfs.New(fixtureTree(t))
	require.NoError(t, err)

	seen := map[string]filesystem.Kind{}
	require.NoError(t, filesystem.Walk(fsys, func(path string, entry filesystem.Entry) error {
		seen[path] = entry.Kind
		return nil
	}))

	assert.Equal(t, filesystem.KindDirectory, seen["/"])
	assert.Equal(t, filesystem.KindRegular, seen["/report.txt"])
	assert.Equal(t, filesystem.KindDirectory, seen["/sub"])
	assert.Equal(t, filesystem.KindRegular, seen["/sub/inner.bin"])
}
