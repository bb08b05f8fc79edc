// Package mock provides an in-memory dlfs.Backend for tests and sandboxing.
package mock

import (
	"context"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/datenlord/datenlord_sdk_go/internal/devseed"
	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs"
)

const (
	capacityBlocks = 1 << 24
	capacityFiles  = 1 << 20
	maxNameLen     = 255
)

type node struct {
	ino      uint64
	kind     dlfs.FileKind
	mode     fs.FileMode
	data     []byte
	children map[string]*node
	atime    time.Time
	mtime    time.Time
	ctime    time.Time
}

func (n *node) isDir() bool {
	return n.kind == dlfs.KindDir
}

// Mock implements dlfs.Backend over a tree held in memory.
type Mock struct {
	mu      sync.RWMutex
	root    *node
	nextIno uint64
	now     func() time.Time

	capBlocks uint64
	capFiles  uint64
}

var _ dlfs.Backend = (*Mock)(nil)

// New constructs an empty namespace holding only the root directory.
func New() *Mock {
	m := &Mock{
		now: func() time.Time {
			return time.Now().UTC()
		},
		capBlocks: capacityBlocks,
		capFiles:  capacityFiles,
	}
	m.root = m.newNode(dlfs.KindDir)
	return m
}

// SetClock replaces the time source used for entry timestamps.
func (m *Mock) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now != nil {
		m.now = now
	}
}

// SetCapacity sets the block and inode totals StatFs reports. Stored data is
// not limited by them.
func (m *Mock) SetCapacity(blocks, files uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capBlocks = blocks
	m.capFiles = files
}

// Seed loads entries, creating parent directories as needed.
func (m *Mock) Seed(entries []devseed.Entry) error {
	return devseed.Apply(context.Background(), m, entries)
}

func (m *Mock) newNode(kind dlfs.FileKind) *node {
	m.nextIno++
	ts := m.now()
	n := &node{
		ino:   m.nextIno,
		kind:  kind,
		mode:  dlfs.FileMode,
		atime: ts,
		mtime: ts,
		ctime: ts,
	}
	if kind == dlfs.KindDir {
		n.mode = dlfs.DirMode
		n.children = make(map[string]*node)
	}
	return n
}

// lookup walks p from the root. Callers hold m.mu.
func (m *Mock) lookup(p string) (*node, error) {
	cur := m.root
	if p == dlfs.Root {
		return cur, nil
	}
	for _, part := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		if !cur.isDir() {
			return nil, dlfs.ErrNotDirectory
		}
		next, ok := cur.children[part]
		if !ok {
			return nil, dlfs.ErrNotFound
		}
		cur = next
	}
	return cur, nil
}

// parentOf returns the directory that holds p and the final element of p.
func (m *Mock) parentOf(p string) (*node, string, error) {
	parentPath, name := dlfs.Split(p)
	parent, err := m.lookup(parentPath)
	if err != nil {
		return nil, "", err
	}
	if !parent.isDir() {
		return nil, "", dlfs.ErrNotDirectory
	}
	if len(name) > maxNameLen {
		return nil, "", dlfs.NewError(dlfs.CodeInvalidArgument, "", "", "name too long")
	}
	return parent, name, nil
}

func (m *Mock) Stat(ctx context.Context, p string) (*dlfs.FileStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, err := m.lookup(p)
	if err != nil {
		return nil, err
	}
	return statOf(p, n), nil
}

func (m *Mock) ReadDir(ctx context.Context, p string) ([]dlfs.DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, err := m.lookup(p)
	if err != nil {
		return nil, err
	}
	if !n.isDir() {
		return nil, dlfs.ErrNotDirectory
	}
	entries := make([]dlfs.DirEntry, 0, len(n.children))
	for name, child := range n.children {
		entries = append(entries, dlfs.DirEntry{Name: name, Kind: child.kind, Ino: child.ino})
	}
	dlfs.SortEntries(entries)
	return entries, nil
}

func (m *Mock) Mkdir(ctx context.Context, p string) error {
	return m.create(ctx, p, dlfs.KindDir)
}

func (m *Mock) CreateFile(ctx context.Context, p string) error {
	return m.create(ctx, p, dlfs.KindFile)
}

func (m *Mock) create(ctx context.Context, p string, kind dlfs.FileKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == dlfs.Root {
		return dlfs.ErrAlreadyExists
	}
	parent, name, err := m.parentOf(p)
	if err != nil {
		return err
	}
	if _, ok := parent.children[name]; ok {
		return dlfs.ErrAlreadyExists
	}
	parent.children[name] = m.newNode(kind)
	m.touch(parent)
	return nil
}

func (m *Mock) WriteFile(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == dlfs.Root {
		return dlfs.ErrIsDirectory
	}
	parent, name, err := m.parentOf(p)
	if err != nil {
		return err
	}
	n, ok := parent.children[name]
	if !ok {
		n = m.newNode(dlfs.KindFile)
		parent.children[name] = n
		m.touch(parent)
	} else if n.isDir() {
		return dlfs.ErrIsDirectory
	}
	n.data = append([]byte(nil), data...)
	m.touch(n)
	return nil
}

func (m *Mock) ReadFile(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, err := m.lookup(p)
	if err != nil {
		return nil, err
	}
	if n.isDir() {
		return nil, dlfs.ErrIsDirectory
	}
	return append([]byte{}, n.data...), nil
}

func (m *Mock) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if oldPath == dlfs.Root || newPath == dlfs.Root {
		return dlfs.NewError(dlfs.CodeInvalidArgument, "", "", "cannot rename the root directory")
	}
	srcParent, srcName, err := m.parentOf(oldPath)
	if err != nil {
		return err
	}
	n, ok := srcParent.children[srcName]
	if !ok {
		return dlfs.ErrNotFound
	}
	if oldPath == newPath {
		return nil
	}
	if n.isDir() && dlfs.IsWithin(newPath, oldPath) {
		return dlfs.NewError(dlfs.CodeInvalidArgument, "", "", "cannot move a directory into itself")
	}
	dstParent, dstName, err := m.parentOf(newPath)
	if err != nil {
		return err
	}
	if _, exists := dstParent.children[dstName]; exists {
		return dlfs.ErrAlreadyExists
	}
	delete(srcParent.children, srcName)
	dstParent.children[dstName] = n
	n.ctime = m.now()
	m.touch(srcParent)
	m.touch(dstParent)
	return nil
}

func (m *Mock) RemoveDir(ctx context.Context, p string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == dlfs.Root {
		return dlfs.NewError(dlfs.CodeInvalidArgument, "", "", "cannot delete the root directory")
	}
	parent, name, err := m.parentOf(p)
	if err != nil {
		return err
	}
	n, ok := parent.children[name]
	if !ok {
		return dlfs.ErrNotFound
	}
	if !n.isDir() {
		return dlfs.ErrNotDirectory
	}
	if len(n.children) > 0 && !recursive {
		return dlfs.ErrNotEmpty
	}
	delete(parent.children, name)
	m.touch(parent)
	return nil
}

func (m *Mock) RemoveFile(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == dlfs.Root {
		return dlfs.ErrIsDirectory
	}
	parent, name, err := m.parentOf(p)
	if err != nil {
		return err
	}
	n, ok := parent.children[name]
	if !ok {
		return dlfs.ErrNotFound
	}
	if n.isDir() {
		return dlfs.ErrIsDirectory
	}
	delete(parent.children, name)
	m.touch(parent)
	return nil
}

func (m *Mock) StatFs(ctx context.Context) (*dlfs.StatFs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var files, blocks uint64
	var walk func(n *node)
	walk = func(n *node) {
		files++
		blocks += uint64(dlfs.BlocksFor(int64(len(n.data))))
		for _, child := range n.children {
			walk(child)
		}
	}
	walk(m.root)
	return &dlfs.StatFs{
		Blocks:  m.capBlocks,
		BFree:   m.capBlocks - min(blocks, m.capBlocks),
		BAvail:  m.capBlocks - min(blocks, m.capBlocks),
		Files:   m.capFiles,
		FFree:   m.capFiles - min(files, m.capFiles),
		BSize:   dlfs.BlockSize,
		NameLen: maxNameLen,
		FrSize:  dlfs.BlockSize,
	}, nil
}

// Close is a no-op; the tree lives as long as the Mock.
func (m *Mock) Close() error {
	return nil
}

func (m *Mock) touch(n *node) {
	ts := m.now()
	n.mtime = ts
	n.ctime = ts
}

func statOf(p string, n *node) *dlfs.FileStat {
	_, name := dlfs.Split(p)
	st := &dlfs.FileStat{
		Path:   p,
		Name:   name,
		Ino:    n.ino,
		Kind:   n.kind,
		Size:   int64(len(n.data)),
		Blocks: dlfs.BlocksFor(int64(len(n.data))),
		Perm:   n.mode,
		Nlink:  1,
		ATime:  n.atime,
		MTime:  n.mtime,
		CTime:  n.ctime,
	}
	if n.isDir() {
		st.Nlink = 2
		for _, child := range n.children {
			if child.isDir() {
				st.Nlink++
			}
		}
	}
	return st
}
