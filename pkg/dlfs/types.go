package dlfs

import (
	"io/fs"
	"slices"
	"strings"
	"time"
)

// FileKind distinguishes regular files from directories.
type FileKind string

const (
	KindFile FileKind = "file"
	KindDir  FileKind = "dir"
)

// Default permission bits applied to new entries.
const (
	DirMode  fs.FileMode = 0o755
	FileMode fs.FileMode = 0o644
)

// FileStat describes a namespace entry.
type FileStat struct {
	Path   string      `json:"path"`
	Name   string      `json:"name"`
	Ino    uint64      `json:"ino"`
	Kind   FileKind    `json:"kind"`
	Size   int64       `json:"size"`
	Blocks int64       `json:"blocks"`
	Perm   fs.FileMode `json:"perm"`
	Nlink  uint32      `json:"nlink"`
	UID    uint32      `json:"uid"`
	GID    uint32      `json:"gid"`
	ATime  time.Time   `json:"atime"`
	MTime  time.Time   `json:"mtime"`
	CTime  time.Time   `json:"ctime"`
}

// IsDir reports whether the entry is a directory.
func (s *FileStat) IsDir() bool {
	return s != nil && s.Kind == KindDir
}

// DirEntry is a single child returned by ReadDir.
type DirEntry struct {
	Name string   `json:"name"`
	Kind FileKind `json:"kind"`
	Ino  uint64   `json:"ino"`
}

// SortEntries orders entries by name.
func SortEntries(entries []DirEntry) {
	slices.SortFunc(entries, func(a, b DirEntry) int {
		return strings.Compare(a.Name, b.Name)
	})
}

// StatFs reports filesystem-wide capacity figures.
type StatFs struct {
	Blocks  uint64 `json:"blocks"`
	BFree   uint64 `json:"bfree"`
	BAvail  uint64 `json:"bavail"`
	Files   uint64 `json:"files"`
	FFree   uint64 `json:"ffree"`
	BSize   uint32 `json:"bsize"`
	NameLen uint32 `json:"namelen"`
	FrSize  uint32 `json:"frsize"`
}

// BlockSize is the accounting unit used by backends that have no native
// block size.
const BlockSize = 512

// BlocksFor returns the number of BlockSize blocks needed to hold size bytes.
func BlocksFor(size int64) int64 {
	if size <= 0 {
		return 0
	}
	return (size + BlockSize - 1) / BlockSize
}
