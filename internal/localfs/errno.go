package localfs

import (
	"errors"
	"io/fs"
	"syscall"

	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs"
)

// mapErr classifies a host filesystem error.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var fsErr *dlfs.Error
	if errors.As(err, &fsErr) {
		return err
	}
	code := dlfs.CodeIO
	switch {
	case errors.Is(err, syscall.ENOTEMPTY):
		// Checked first: ENOTEMPTY also matches fs.ErrExist.
		code = dlfs.CodeNotEmpty
	case errors.Is(err, fs.ErrNotExist):
		code = dlfs.CodeNotFound
	case errors.Is(err, fs.ErrExist):
		code = dlfs.CodeAlreadyExists
	case errors.Is(err, syscall.ENOTDIR):
		code = dlfs.CodeNotDirectory
	case errors.Is(err, syscall.EISDIR):
		code = dlfs.CodeIsDirectory
	case errors.Is(err, syscall.ENAMETOOLONG), errors.Is(err, syscall.EINVAL):
		code = dlfs.CodeInvalidArgument
	}
	return &dlfs.Error{Code: code, Err: err}
}
