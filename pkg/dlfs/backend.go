package dlfs

import "context"

//go:generate mockgen -source=backend.go -destination=mocks/mock_backend.go -package=mock_dlfs

// Backend is the storage engine behind a Client. Paths handed to a Backend
// are already cleaned with CleanPath. Failures are reported as *Error so the
// caller can classify them by Code.
type Backend interface {
	Stat(ctx context.Context, path string) (*FileStat, error)
	ReadDir(ctx context.Context, path string) ([]DirEntry, error)
	Mkdir(ctx context.Context, path string) error
	CreateFile(ctx context.Context, path string) error
	WriteFile(ctx context.Context, path string, data []byte) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Rename(ctx context.Context, oldPath, newPath string) error
	RemoveDir(ctx context.Context, path string, recursive bool) error
	RemoveFile(ctx context.Context, path string) error
	StatFs(ctx context.Context) (*StatFs, error)
	Close() error
}
