package sqlitefs_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datenlord/datenlord_sdk_go/internal/backendtest"
	"github.com/datenlord/datenlord_sdk_go/internal/sqlitefs"
	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs"
)

func openFS(t *testing.T, path string) *sqlitefs.FS {
	t.Helper()
	fs, err := sqlitefs.Open(context.Background(), path, zerolog.Nop())
	require.NoError(t, err)
	return fs
}

func TestSQLiteConformance(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) dlfs.Backend {
		return openFS(t, filepath.Join(t.TempDir(), "ns.db"))
	})
}

func TestInMemoryDatabase(t *testing.T) {
	fs := openFS(t, ":memory:")
	defer fs.Close()
	ctx := context.Background()

	require.NoError(t, fs.Mkdir(ctx, "/a"))
	require.NoError(t, fs.WriteFile(ctx, "/a/b", []byte("data")))
	data, err := fs.ReadFile(ctx, "/a/b")
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := sqlitefs.Open(context.Background(), "", zerolog.Nop())
	assert.Error(t, err)
}

func TestSchemaVersion(t *testing.T) {
	fs := openFS(t, filepath.Join(t.TempDir(), "ns.db"))
	defer fs.Close()

	version, err := sqlitefs.SchemaVersion(context.Background(), fs.DB())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ns.db")
	ctx := context.Background()

	first := openFS(t, path)
	require.NoError(t, first.Mkdir(ctx, "/docs"))
	require.NoError(t, first.WriteFile(ctx, "/docs/kept", []byte("still here")))
	require.NoError(t, first.Close())

	second := openFS(t, path)
	defer second.Close()
	data, err := second.ReadFile(ctx, "/docs/kept")
	require.NoError(t, err)
	assert.Equal(t, "still here", string(data))

	entries, err := second.ReadDir(ctx, "/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, dlfs.DirEntry{Name: "docs", Kind: dlfs.KindDir, Ino: entries[0].Ino}, entries[0])
}

func TestStatTracksTimesAndLinks(t *testing.T) {
	fs := openFS(t, filepath.Join(t.TempDir(), "ns.db"))
	defer fs.Close()
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	require.NoError(t, fs.Mkdir(ctx, "/d"))
	require.NoError(t, fs.Mkdir(ctx, "/d/sub1"))
	require.NoError(t, fs.Mkdir(ctx, "/d/sub2"))
	require.NoError(t, fs.CreateFile(ctx, "/d/file"))

	st, err := fs.Stat(ctx, "/d")
	require.NoError(t, err)
	assert.Equal(t, uint32(4), st.Nlink)
	assert.Equal(t, dlfs.DirMode, st.Perm)
	assert.True(t, st.MTime.After(before))

	file, err := fs.Stat(ctx, "/d/file")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), file.Nlink)
	assert.Equal(t, dlfs.FileMode, file.Perm)
	assert.NotEqual(t, st.Ino, file.Ino)
}

func TestRenameMovesDescendantRows(t *testing.T) {
	fs := openFS(t, filepath.Join(t.TempDir(), "ns.db"))
	defer fs.Close()
	ctx := context.Background()

	require.NoError(t, fs.Mkdir(ctx, "/src"))
	require.NoError(t, fs.Mkdir(ctx, "/src/inner"))
	require.NoError(t, fs.WriteFile(ctx, "/src/inner/leaf", []byte("x")))
	// A sibling sharing the prefix must not move.
	require.NoError(t, fs.Mkdir(ctx, "/srcx"))

	require.NoError(t, fs.Rename(ctx, "/src", "/dst"))

	data, err := fs.ReadFile(ctx, "/dst/inner/leaf")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	entries, err := fs.ReadDir(ctx, "/dst/inner")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "leaf", entries[0].Name)

	_, err = fs.Stat(ctx, "/srcx")
	require.NoError(t, err)
	_, err = fs.Stat(ctx, "/src/inner")
	assert.ErrorIs(t, err, dlfs.ErrNotFound)
}

func TestStatFsCountsEntries(t *testing.T) {
	fs := openFS(t, filepath.Join(t.TempDir(), "ns.db"))
	defer fs.Close()
	ctx := context.Background()

	require.NoError(t, fs.CreateFile(ctx, "/one"))
	require.NoError(t, fs.CreateFile(ctx, "/two"))

	st, err := fs.StatFs(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), st.Files)
	assert.NotZero(t, st.BSize)
	assert.Equal(t, uint32(255), st.NameLen)
}
