//go:build !linux

package localfs

import (
	"io/fs"
	"os"

	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs"
)

func renameNoReplace(src, dst string) error {
	return checkedRename(src, dst)
}

func lstat(a string) (*dlfs.FileStat, error) {
	info, err := os.Lstat(a)
	if err != nil {
		return nil, err
	}
	st := &dlfs.FileStat{
		Kind:   dlfs.KindFile,
		Size:   info.Size(),
		Blocks: dlfs.BlocksFor(info.Size()),
		Perm:   info.Mode().Perm(),
		Nlink:  1,
		ATime:  info.ModTime().UTC(),
		MTime:  info.ModTime().UTC(),
		CTime:  info.ModTime().UTC(),
	}
	if info.IsDir() {
		st.Kind = dlfs.KindDir
		st.Nlink = 2
	}
	return st, nil
}

func inodeOf(fs.FileInfo) uint64 {
	return 0
}

func statfs(string) (*dlfs.StatFs, error) {
	return nil, dlfs.NewError(dlfs.CodeUnimplemented, "", "", "statfs is only supported on linux")
}
