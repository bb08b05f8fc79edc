// Package localfs maps a dlfs namespace onto a directory of the host
// filesystem.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs"
)

const (
	tmpPrefix = ".dlfs-"
	tmpSuffix = ".tmp"
)

// FS stores the namespace under root. Mutations are serialised so that the
// existence checks preceding them stay valid.
type FS struct {
	root string
	log  zerolog.Logger
	mu   sync.Mutex
}

var _ dlfs.Backend = (*FS)(nil)

// New creates an FS rooted at root, creating the directory if needed.
func New(root string, log zerolog.Logger) (*FS, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, dlfs.DirMode); err != nil {
		return nil, fmt.Errorf("localfs: create root %q: %w", root, err)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("localfs: resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("localfs: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("localfs: root %q is not a directory", absRoot)
	}
	return &FS{root: absRoot, log: log.With().Str("component", "localfs").Logger()}, nil
}

// Root returns the absolute host directory backing the namespace.
func (l *FS) Root() string {
	return l.root
}

// abs resolves a cleaned namespace path to a host path under root.
func (l *FS) abs(p string) (string, error) {
	joined := filepath.Join(l.root, filepath.FromSlash(p))
	rel, err := filepath.Rel(l.root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", dlfs.NewError(dlfs.CodeInvalidArgument, "", p, "path escapes root")
	}
	return joined, nil
}

func (l *FS) Stat(ctx context.Context, p string) (*dlfs.FileStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, err := l.abs(p)
	if err != nil {
		return nil, err
	}
	st, err := lstat(a)
	if err != nil {
		return nil, mapErr(err)
	}
	st.Path = p
	_, st.Name = dlfs.Split(p)
	return st, nil
}

func (l *FS) ReadDir(ctx context.Context, p string) ([]dlfs.DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, err := l.abs(p)
	if err != nil {
		return nil, err
	}
	if err := requireDir(a); err != nil {
		return nil, err
	}
	list, err := os.ReadDir(a)
	if err != nil {
		return nil, mapErr(err)
	}
	entries := make([]dlfs.DirEntry, 0, len(list))
	for _, e := range list {
		if isTemp(e.Name()) {
			continue
		}
		kind := dlfs.KindFile
		if e.IsDir() {
			kind = dlfs.KindDir
		}
		var ino uint64
		if info, err := e.Info(); err == nil {
			ino = inodeOf(info)
		}
		entries = append(entries, dlfs.DirEntry{Name: e.Name(), Kind: kind, Ino: ino})
	}
	return entries, nil
}

func (l *FS) Mkdir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a, err := l.abs(p)
	if err != nil {
		return err
	}
	if isTemp(filepath.Base(a)) {
		return dlfs.NewError(dlfs.CodeInvalidArgument, "", p, "reserved name")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return mapErr(os.Mkdir(a, dlfs.DirMode))
}

func (l *FS) CreateFile(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a, err := l.abs(p)
	if err != nil {
		return err
	}
	if isTemp(filepath.Base(a)) {
		return dlfs.NewError(dlfs.CodeInvalidArgument, "", p, "reserved name")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(a, os.O_CREATE|os.O_EXCL|os.O_WRONLY, dlfs.FileMode)
	if err != nil {
		return mapErr(err)
	}
	return mapErr(f.Close())
}

// WriteFile writes data to a temp file next to p and renames it into place,
// so readers observe either the old or the new content.
func (l *FS) WriteFile(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a, err := l.abs(p)
	if err != nil {
		return err
	}
	if isTemp(filepath.Base(a)) {
		return dlfs.NewError(dlfs.CodeInvalidArgument, "", p, "reserved name")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	dir := filepath.Dir(a)
	if err := requireDir(dir); err != nil {
		return err
	}
	mode := dlfs.FileMode
	if info, err := os.Lstat(a); err == nil {
		if info.IsDir() {
			return dlfs.ErrIsDirectory
		}
		mode = info.Mode().Perm()
	} else if !errors.Is(err, fs.ErrNotExist) {
		return mapErr(err)
	}

	f, err := os.CreateTemp(dir, tmpPrefix+"*"+tmpSuffix)
	if err != nil {
		return mapErr(err)
	}
	tmp := f.Name()
	_, werr := f.Write(data)
	if werr == nil {
		werr = f.Sync()
	}
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Chmod(tmp, mode)
	}
	if werr != nil {
		os.Remove(tmp) //nolint:errcheck
		return &dlfs.Error{Code: dlfs.CodeIO, Message: "write temp file", Err: werr}
	}
	if err := os.Rename(tmp, a); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return mapErr(err)
	}
	return nil
}

func (l *FS) ReadFile(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, err := l.abs(p)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(a)
	if err != nil {
		return nil, mapErr(err)
	}
	if info.IsDir() {
		return nil, dlfs.ErrIsDirectory
	}
	data, err := os.ReadFile(a)
	if err != nil {
		return nil, mapErr(err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (l *FS) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if oldPath == dlfs.Root || newPath == dlfs.Root {
		return dlfs.NewError(dlfs.CodeInvalidArgument, "", "", "cannot rename the root directory")
	}
	src, err := l.abs(oldPath)
	if err != nil {
		return err
	}
	dst, err := l.abs(newPath)
	if err != nil {
		return err
	}
	if isTemp(filepath.Base(dst)) {
		return dlfs.NewError(dlfs.CodeInvalidArgument, "", newPath, "reserved name")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := os.Lstat(src)
	if err != nil {
		return mapErr(err)
	}
	if oldPath == newPath {
		return nil
	}
	if info.IsDir() && dlfs.IsWithin(newPath, oldPath) {
		return dlfs.NewError(dlfs.CodeInvalidArgument, "", "", "cannot move a directory into itself")
	}
	if err := requireDir(filepath.Dir(dst)); err != nil {
		return err
	}
	return mapErr(renameNoReplace(src, dst))
}

func (l *FS) RemoveDir(ctx context.Context, p string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == dlfs.Root {
		return dlfs.NewError(dlfs.CodeInvalidArgument, "", "", "cannot delete the root directory")
	}
	a, err := l.abs(p)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := os.Lstat(a)
	if err != nil {
		return mapErr(err)
	}
	if !info.IsDir() {
		return dlfs.ErrNotDirectory
	}
	if recursive {
		if err := os.RemoveAll(a); err != nil {
			return mapErr(err)
		}
		l.log.Debug().Str("path", p).Msg("removed directory tree")
		return nil
	}
	return mapErr(os.Remove(a))
}

func (l *FS) RemoveFile(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == dlfs.Root {
		return dlfs.ErrIsDirectory
	}
	a, err := l.abs(p)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := os.Lstat(a)
	if err != nil {
		return mapErr(err)
	}
	if info.IsDir() {
		return dlfs.ErrIsDirectory
	}
	return mapErr(os.Remove(a))
}

func (l *FS) StatFs(ctx context.Context) (*dlfs.StatFs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := statfs(l.root)
	if err != nil {
		return nil, mapErr(err)
	}
	return st, nil
}

// Close is a no-op; FS holds no open descriptors between calls.
func (l *FS) Close() error {
	return nil
}

// requireDir fails with ErrNotFound or ErrNotDirectory unless a is a directory.
func requireDir(a string) error {
	info, err := os.Stat(a)
	if err != nil {
		return mapErr(err)
	}
	if !info.IsDir() {
		return dlfs.ErrNotDirectory
	}
	return nil
}

func isTemp(name string) bool {
	return strings.HasPrefix(name, tmpPrefix) && strings.HasSuffix(name, tmpSuffix)
}
