// Package backendtest holds the behavioural suite every dlfs.Backend must
// pass. Backend packages call Run from their own tests.
package backendtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs"
)

// Factory returns a fresh, empty backend for a single subtest.
type Factory func(t *testing.T) dlfs.Backend

// Run executes the suite against backends produced by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Helper()

	open := func(t *testing.T) *dlfs.Client {
		c := dlfs.NewWithBackend(newBackend(t))
		t.Cleanup(func() { _ = c.Close() })
		return c
	}

	for _, tc := range []struct {
		name string
		fn   func(t *testing.T, c *dlfs.Client)
	}{
		{"ExistsOnFreshNamespace", testExistsFresh},
		{"InvalidPath", testInvalidPath},
		{"MkdirThenExists", testMkdirThenExists},
		{"MkdirConflicts", testMkdirConflicts},
		{"CreateWriteRead", testCreateWriteRead},
		{"CreateFileConflicts", testCreateFileConflicts},
		{"WriteFileCreatesMissing", testWriteFileCreates},
		{"DirectoryAsFile", testDirectoryAsFile},
		{"BinaryAndEmptyData", testBinaryAndEmptyData},
		{"RenameFile", testRenameFile},
		{"RenameDirectoryTree", testRenameTree},
		{"RenameConflicts", testRenameConflicts},
		{"DeleteDir", testDeleteDir},
		{"DeleteDirConflicts", testDeleteDirConflicts},
		{"DeleteFile", testDeleteFile},
		{"ReadDirSorted", testReadDirSorted},
		{"StatFs", testStatFs},
		{"ConcurrentWriters", testConcurrentWriters},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, open(t))
		})
	}

	t.Run("ClosedHandle", func(t *testing.T) {
		c := dlfs.NewWithBackend(newBackend(t))
		ctx := context.Background()
		require.NoError(t, c.Mkdir(ctx, "/before"))
		require.NoError(t, c.Close())

		_, err := c.Exists(ctx, "/before")
		assert.ErrorIs(t, err, dlfs.ErrClosed)
		assert.ErrorIs(t, c.Mkdir(ctx, "/after"), dlfs.ErrClosed)
		_, err = c.ReadFile(ctx, "/before")
		assert.ErrorIs(t, err, dlfs.ErrClosed)
		assert.ErrorIs(t, c.Close(), dlfs.ErrClosed)
	})
}

func requireCode(t *testing.T, err error, want *dlfs.Error) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, errors.Is(err, want), "want %v, got %v", want.Code, err)
}

func testExistsFresh(t *testing.T, c *dlfs.Client) {
	ctx := context.Background()
	ok, err := c.Exists(ctx, "/nothing/here")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Exists(ctx, "/")
	require.NoError(t, err)
	assert.True(t, ok)
}

func testInvalidPath(t *testing.T, c *dlfs.Client) {
	ctx := context.Background()
	_, err := c.Exists(ctx, "")
	requireCode(t, err, dlfs.ErrInvalidArgument)
	requireCode(t, c.Mkdir(ctx, "bad\x00name"), dlfs.ErrInvalidArgument)
}

func testMkdirThenExists(t *testing.T, c *dlfs.Client) {
	ctx := context.Background()
	require.NoError(t, c.Mkdir(ctx, "example_dir/"))

	ok, err := c.Exists(ctx, "/example_dir")
	require.NoError(t, err)
	assert.True(t, ok)

	st, err := c.Stat(ctx, "/example_dir")
	require.NoError(t, err)
	assert.True(t, st.IsDir())
	assert.Equal(t, "example_dir", st.Name)
}

func testMkdirConflicts(t *testing.T, c *dlfs.Client) {
	ctx := context.Background()
	require.NoError(t, c.Mkdir(ctx, "/d"))
	requireCode(t, c.Mkdir(ctx, "/d"), dlfs.ErrAlreadyExists)
	requireCode(t, c.Mkdir(ctx, "/"), dlfs.ErrAlreadyExists)
	requireCode(t, c.Mkdir(ctx, "/missing/child"), dlfs.ErrNotFound)

	require.NoError(t, c.CreateFile(ctx, "/d/f"))
	requireCode(t, c.Mkdir(ctx, "/d/f/sub"), dlfs.ErrNotDirectory)
}

func testCreateWriteRead(t *testing.T, c *dlfs.Client) {
	ctx := context.Background()
	require.NoError(t, c.Mkdir(ctx, "example_dir/"))
	require.NoError(t, c.CreateFile(ctx, "/example_dir/example_file.txt"))

	st, err := c.Stat(ctx, "/example_dir/example_file.txt")
	require.NoError(t, err)
	assert.Equal(t, dlfs.KindFile, st.Kind)
	assert.Equal(t, int64(0), st.Size)

	payload := []byte("Hello, Datenlord!")
	require.NoError(t, c.WriteFile(ctx, "/example_dir/example_file.txt", payload))

	got, err := c.ReadFile(ctx, "/example_dir/example_file.txt")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	st, err = c.Stat(ctx, "/example_dir/example_file.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), st.Size)

	require.NoError(t, c.WriteFile(ctx, "/example_dir/example_file.txt", []byte("hi")))
	got, err = c.ReadFile(ctx, "/example_dir/example_file.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))

	got[0] = 'X'
	again, err := c.ReadFile(ctx, "/example_dir/example_file.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(again))
}

func testCreateFileConflicts(t *testing.T, c *dlfs.Client) {
	ctx := context.Background()
	require.NoError(t, c.CreateFile(ctx, "/f"))
	requireCode(t, c.CreateFile(ctx, "/f"), dlfs.ErrAlreadyExists)
	requireCode(t, c.CreateFile(ctx, "/nope/f"), dlfs.ErrNotFound)
	requireCode(t, c.CreateFile(ctx, "/f/g"), dlfs.ErrNotDirectory)

	require.NoError(t, c.Mkdir(ctx, "/d"))
	requireCode(t, c.CreateFile(ctx, "/d"), dlfs.ErrAlreadyExists)
}

func testWriteFileCreates(t *testing.T, c *dlfs.Client) {
	ctx := context.Background()
	require.NoError(t, c.WriteFile(ctx, "/new.txt", []byte("fresh")))
	got, err := c.ReadFile(ctx, "/new.txt")
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(got))

	requireCode(t, c.WriteFile(ctx, "/absent/new.txt", []byte("x")), dlfs.ErrNotFound)
}

func testDirectoryAsFile(t *testing.T, c *dlfs.Client) {
	ctx := context.Background()
	require.NoError(t, c.Mkdir(ctx, "/dir"))
	requireCode(t, c.WriteFile(ctx, "/dir", []byte("x")), dlfs.ErrIsDirectory)
	_, err := c.ReadFile(ctx, "/dir")
	requireCode(t, err, dlfs.ErrIsDirectory)
	_, err = c.ReadFile(ctx, "/missing")
	requireCode(t, err, dlfs.ErrNotFound)
}

func testBinaryAndEmptyData(t *testing.T, c *dlfs.Client) {
	ctx := context.Background()
	bin := make([]byte, 256)
	for i := range bin {
		bin[i] = byte(i)
	}
	require.NoError(t, c.WriteFile(ctx, "/bin", bin))
	got, err := c.ReadFile(ctx, "/bin")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(bin, got))

	require.NoError(t, c.WriteFile(ctx, "/bin", nil))
	got, err = c.ReadFile(ctx, "/bin")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testRenameFile(t *testing.T, c *dlfs.Client) {
	ctx := context.Background()
	require.NoError(t, c.Mkdir(ctx, "/a"))
	require.NoError(t, c.Mkdir(ctx, "/b"))
	require.NoError(t, c.WriteFile(ctx, "/a/f.txt", []byte("moved")))

	require.NoError(t, c.Rename(ctx, "/a/f.txt", "/b/g.txt"))

	ok, err := c.Exists(ctx, "/a/f.txt")
	require.NoError(t, err)
	assert.False(t, ok)
	got, err := c.ReadFile(ctx, "/b/g.txt")
	require.NoError(t, err)
	assert.Equal(t, "moved", string(got))

	require.NoError(t, c.Rename(ctx, "/b/g.txt", "/b/g.txt"))
}

func testRenameTree(t *testing.T, c *dlfs.Client) {
	ctx := context.Background()
	require.NoError(t, c.Mkdir(ctx, "/src"))
	require.NoError(t, c.Mkdir(ctx, "/src/nested"))
	require.NoError(t, c.WriteFile(ctx, "/src/nested/leaf", []byte("leaf")))

	require.NoError(t, c.Rename(ctx, "/src", "/dst"))

	ok, err := c.Exists(ctx, "/src/nested/leaf")
	require.NoError(t, err)
	assert.False(t, ok)
	got, err := c.ReadFile(ctx, "/dst/nested/leaf")
	require.NoError(t, err)
	assert.Equal(t, "leaf", string(got))
}

func testRenameConflicts(t *testing.T, c *dlfs.Client) {
	ctx := context.Background()
	require.NoError(t, c.WriteFile(ctx, "/one", []byte("1")))
	require.NoError(t, c.WriteFile(ctx, "/two", []byte("2")))
	require.NoError(t, c.Mkdir(ctx, "/dir"))

	requireCode(t, c.Rename(ctx, "/one", "/two"), dlfs.ErrAlreadyExists)
	got, err := c.ReadFile(ctx, "/two")
	require.NoError(t, err)
	assert.Equal(t, "2", string(got))

	requireCode(t, c.Rename(ctx, "/missing", "/three"), dlfs.ErrNotFound)
	requireCode(t, c.Rename(ctx, "/one", "/absent/one"), dlfs.ErrNotFound)
	requireCode(t, c.Rename(ctx, "/dir", "/dir/inner"), dlfs.ErrInvalidArgument)
	requireCode(t, c.Rename(ctx, "/", "/root"), dlfs.ErrInvalidArgument)
}

func testDeleteDir(t *testing.T, c *dlfs.Client) {
	ctx := context.Background()
	require.NoError(t, c.Mkdir(ctx, "/tree"))
	require.NoError(t, c.Mkdir(ctx, "/tree/sub"))
	require.NoError(t, c.WriteFile(ctx, "/tree/sub/file", []byte("x")))
	require.NoError(t, c.WriteFile(ctx, "/tree/top", []byte("y")))

	requireCode(t, c.DeleteDir(ctx, "/tree", false), dlfs.ErrNotEmpty)
	ok, err := c.Exists(ctx, "/tree/sub/file")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.DeleteDir(ctx, "/tree", true))
	for _, p := range []string{"/tree", "/tree/sub", "/tree/sub/file", "/tree/top"} {
		ok, err := c.Exists(ctx, p)
		require.NoError(t, err)
		assert.False(t, ok, p)
	}

	require.NoError(t, c.Mkdir(ctx, "/empty"))
	require.NoError(t, c.DeleteDir(ctx, "/empty", false))
	ok, err = c.Exists(ctx, "/empty")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testDeleteDirConflicts(t *testing.T, c *dlfs.Client) {
	ctx := context.Background()
	require.NoError(t, c.CreateFile(ctx, "/file"))
	requireCode(t, c.DeleteDir(ctx, "/file", true), dlfs.ErrNotDirectory)
	requireCode(t, c.DeleteDir(ctx, "/missing", true), dlfs.ErrNotFound)
	requireCode(t, c.DeleteDir(ctx, "/", true), dlfs.ErrInvalidArgument)
}

func testDeleteFile(t *testing.T, c *dlfs.Client) {
	ctx := context.Background()
	require.NoError(t, c.CreateFile(ctx, "/gone"))
	require.NoError(t, c.DeleteFile(ctx, "/gone"))
	ok, err := c.Exists(ctx, "/gone")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Mkdir(ctx, "/dir"))
	requireCode(t, c.DeleteFile(ctx, "/dir"), dlfs.ErrIsDirectory)
	requireCode(t, c.DeleteFile(ctx, "/gone"), dlfs.ErrNotFound)
}

func testReadDirSorted(t *testing.T, c *dlfs.Client) {
	ctx := context.Background()
	require.NoError(t, c.Mkdir(ctx, "/list"))
	require.NoError(t, c.CreateFile(ctx, "/list/c"))
	require.NoError(t, c.Mkdir(ctx, "/list/a"))
	require.NoError(t, c.CreateFile(ctx, "/list/b"))

	entries, err := c.ReadDir(ctx, "/list")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, dlfs.KindDir, entries[0].Kind)
	assert.Equal(t, "b", entries[1].Name)
	assert.Equal(t, dlfs.KindFile, entries[1].Kind)
	assert.Equal(t, "c", entries[2].Name)

	empty, err := c.ReadDir(ctx, "/list/a")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = c.ReadDir(ctx, "/list/b")
	requireCode(t, err, dlfs.ErrNotDirectory)
}

func testStatFs(t *testing.T, c *dlfs.Client) {
	st, err := c.StatFs(context.Background())
	require.NoError(t, err)
	assert.NotZero(t, st.BSize)
	assert.NotZero(t, st.Blocks)
	assert.LessOrEqual(t, st.BFree, st.Blocks)
}

func testConcurrentWriters(t *testing.T, c *dlfs.Client) {
	ctx := context.Background()
	require.NoError(t, c.Mkdir(ctx, "/par"))

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := fmt.Sprintf("/par/f%d", i)
			if err := c.WriteFile(ctx, p, []byte(p)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	entries, err := c.ReadDir(ctx, "/par")
	require.NoError(t, err)
	assert.Len(t, entries, workers)
	for i := 0; i < workers; i++ {
		p := fmt.Sprintf("/par/f%d", i)
		got, err := c.ReadFile(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, p, string(got))
	}
}
