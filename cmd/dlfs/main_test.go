package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestDemo(t *testing.T) {
	out, err := run(t, "", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello, Datenlord!")
	assert.Contains(t, out, "size=17")
	assert.Contains(t, out, "demo complete")
}

func TestLocalRoundTrip(t *testing.T) {
	root := t.TempDir()
	cfg := "root=" + root

	_, err := run(t, "", "-c", cfg, "mkdir", "/docs")
	require.NoError(t, err)

	_, err = run(t, "", "-c", cfg, "put", "/docs/a.txt", "--data", "alpha")
	require.NoError(t, err)

	_, err = run(t, "from stdin", "-c", cfg, "put", "/docs/b.txt")
	require.NoError(t, err)

	out, err := run(t, "", "-c", cfg, "cat", "/docs/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", out)

	out, err = run(t, "", "-c", cfg, "ls", "/docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, strings.Fields(out))

	out, err = run(t, "", "-c", cfg, "exists", "/docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = run(t, "", "-c", cfg, "stat", "/docs/a.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "file")

	_, err = run(t, "", "-c", cfg, "mv", "/docs/a.txt", "/docs/c.txt")
	require.NoError(t, err)

	host := filepath.Join(t.TempDir(), "c.txt")
	_, err = run(t, "", "-c", cfg, "cp-out", "/docs/c.txt", host)
	require.NoError(t, err)
	data, err := os.ReadFile(host)
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))

	_, err = run(t, "", "-c", cfg, "cp-in", host, "/docs/b.txt")
	assert.ErrorIs(t, err, dlfs.ErrAlreadyExists)
	_, err = run(t, "", "-c", cfg, "cp-in", "--overwrite", host, "/docs/b.txt")
	require.NoError(t, err)

	_, err = run(t, "", "-c", cfg, "rm", "/docs/b.txt")
	require.NoError(t, err)

	_, err = run(t, "", "-c", cfg, "rmdir", "/docs")
	assert.ErrorIs(t, err, dlfs.ErrNotEmpty)
	_, err = run(t, "", "-c", cfg, "rmdir", "-r", "/docs")
	require.NoError(t, err)

	out, err = run(t, "", "-c", cfg, "exists", "/docs")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)

	out, err = run(t, "", "-c", cfg, "statfs")
	require.NoError(t, err)
	assert.Contains(t, out, "namelen")
}

func TestInitFailure(t *testing.T) {
	_, err := run(t, "", "-c", "mode=http", "ls")
	assert.ErrorIs(t, err, dlfs.ErrInitFailed)
}

func TestCatMissing(t *testing.T) {
	_, err := run(t, "", "cat", "/absent")
	assert.ErrorIs(t, err, dlfs.ErrNotFound)
}
