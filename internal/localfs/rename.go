package localfs

import (
	"errors"
	"io/fs"
	"os"
)

// checkedRename refuses to replace an existing dst. It is only atomic with
// respect to other calls on the same FS, which hold FS.mu.
func checkedRename(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: fs.ErrExist}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Rename(src, dst)
}
