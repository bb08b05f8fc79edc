//go:build linux

package localfs

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs"
)

// renameNoReplace renames src to dst, failing with EEXIST when dst exists.
// Filesystems without RENAME_NOREPLACE fall back to a checked rename.
func renameNoReplace(src, dst string) error {
	err := unix.Renameat2(unix.AT_FDCWD, src, unix.AT_FDCWD, dst, unix.RENAME_NOREPLACE)
	if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOSYS) {
		return checkedRename(src, dst)
	}
	if err != nil {
		return &os.LinkError{Op: "renameat2", Old: src, New: dst, Err: err}
	}
	return nil
}

func lstat(a string) (*dlfs.FileStat, error) {
	var s unix.Stat_t
	if err := unix.Lstat(a, &s); err != nil {
		return nil, &fs.PathError{Op: "lstat", Path: a, Err: err}
	}
	st := &dlfs.FileStat{
		Ino:    s.Ino,
		Kind:   dlfs.KindFile,
		Size:   s.Size,
		Blocks: s.Blocks,
		Perm:   fs.FileMode(s.Mode & 0o777),
		Nlink:  uint32(s.Nlink),
		UID:    s.Uid,
		GID:    s.Gid,
		ATime:  time.Unix(s.Atim.Unix()).UTC(),
		MTime:  time.Unix(s.Mtim.Unix()).UTC(),
		CTime:  time.Unix(s.Ctim.Unix()).UTC(),
	}
	if s.Mode&unix.S_IFMT == unix.S_IFDIR {
		st.Kind = dlfs.KindDir
	}
	return st, nil
}

func inodeOf(info fs.FileInfo) uint64 {
	if s, ok := info.Sys().(*syscall.Stat_t); ok {
		return s.Ino
	}
	return 0
}

func statfs(root string) (*dlfs.StatFs, error) {
	var s unix.Statfs_t
	if err := unix.Statfs(root, &s); err != nil {
		return nil, &fs.PathError{Op: "statfs", Path: root, Err: err}
	}
	return &dlfs.StatFs{
		Blocks:  s.Blocks,
		BFree:   s.Bfree,
		BAvail:  s.Bavail,
		Files:   s.Files,
		FFree:   s.Ffree,
		BSize:   uint32(s.Bsize),
		NameLen: uint32(s.Namelen),
		FrSize:  uint32(s.Frsize),
	}, nil
}
