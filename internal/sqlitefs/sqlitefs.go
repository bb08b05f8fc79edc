// Package sqlitefs stores a dlfs namespace, metadata and file contents, in an
// embedded SQLite database.
package sqlitefs

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs"
)

const maxNameLen = 255

// FS implements dlfs.Backend on top of the entries table. Every mutation runs
// in its own transaction.
type FS struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

var _ dlfs.Backend = (*FS)(nil)

// Open opens (or creates) the database at dbPath. ":memory:" keeps the
// namespace in RAM for the life of the FS.
func Open(ctx context.Context, dbPath string, log zerolog.Logger) (*FS, error) {
	log = log.With().Str("component", "sqlitefs").Logger()
	db, err := openDB(ctx, dbPath, log)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("path", dbPath).Msg("database ready")
	return &FS{
		db:  db,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// DB exposes the underlying handle.
func (f *FS) DB() *sql.DB {
	return f.db
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type entry struct {
	ino   int64
	kind  dlfs.FileKind
	mode  uint32
	size  int64
	atime int64
	mtime int64
	ctime int64
}

func (e *entry) isDir() bool {
	return e.kind == dlfs.KindDir
}

// lookup loads p, reporting ErrNotDirectory when an ancestor is a file.
func lookup(ctx context.Context, q querier, p string) (*entry, error) {
	var e entry
	err := q.QueryRowContext(ctx,
		`SELECT ino, kind, mode, size, atime, mtime, ctime FROM entries WHERE path = ?`, p,
	).Scan(&e.ino, &e.kind, &e.mode, &e.size, &e.atime, &e.mtime, &e.ctime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, missing(ctx, q, p)
	}
	if err != nil {
		return nil, ioErr(err)
	}
	return &e, nil
}

// missing classifies an absent path: NotDirectory when its nearest existing
// ancestor is a file, NotFound otherwise.
func missing(ctx context.Context, q querier, p string) error {
	for p != dlfs.Root {
		p, _ = dlfs.Split(p)
		var kind dlfs.FileKind
		err := q.QueryRowContext(ctx, `SELECT kind FROM entries WHERE path = ?`, p).Scan(&kind)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return ioErr(err)
		}
		if kind != dlfs.KindDir {
			return dlfs.ErrNotDirectory
		}
		return dlfs.ErrNotFound
	}
	return dlfs.ErrNotFound
}

// parentDir checks that the parent of p exists and is a directory.
func parentDir(ctx context.Context, q querier, p string) (parent, name string, err error) {
	parent, name = dlfs.Split(p)
	if len(name) > maxNameLen {
		return "", "", dlfs.NewError(dlfs.CodeInvalidArgument, "", "", "name too long")
	}
	e, err := lookup(ctx, q, parent)
	if err != nil {
		return "", "", err
	}
	if !e.isDir() {
		return "", "", dlfs.ErrNotDirectory
	}
	return parent, name, nil
}

func exists(ctx context.Context, q querier, p string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM entries WHERE path = ?`, p).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, ioErr(err)
	}
	return true, nil
}

func (f *FS) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return ioErr(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return ioErr(err)
	}
	return nil
}

func (f *FS) Stat(ctx context.Context, p string) (*dlfs.FileStat, error) {
	e, err := lookup(ctx, f.db, p)
	if err != nil {
		return nil, err
	}
	_, name := dlfs.Split(p)
	st := &dlfs.FileStat{
		Path:   p,
		Name:   name,
		Ino:    uint64(e.ino),
		Kind:   e.kind,
		Size:   e.size,
		Blocks: dlfs.BlocksFor(e.size),
		Perm:   fs.FileMode(e.mode).Perm(),
		Nlink:  1,
		ATime:  time.Unix(0, e.atime).UTC(),
		MTime:  time.Unix(0, e.mtime).UTC(),
		CTime:  time.Unix(0, e.ctime).UTC(),
	}
	if e.isDir() {
		var subdirs uint32
		err := f.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM entries WHERE parent = ? AND kind = 'dir' AND path <> '/'`, p,
		).Scan(&subdirs)
		if err != nil {
			return nil, ioErr(err)
		}
		st.Nlink = 2 + subdirs
	}
	return st, nil
}

func (f *FS) ReadDir(ctx context.Context, p string) ([]dlfs.DirEntry, error) {
	e, err := lookup(ctx, f.db, p)
	if err != nil {
		return nil, err
	}
	if !e.isDir() {
		return nil, dlfs.ErrNotDirectory
	}
	rows, err := f.db.QueryContext(ctx,
		`SELECT name, kind, ino FROM entries WHERE parent = ? AND path <> '/' ORDER BY name`, p)
	if err != nil {
		return nil, ioErr(err)
	}
	defer rows.Close()

	entries := []dlfs.DirEntry{}
	for rows.Next() {
		var de dlfs.DirEntry
		if err := rows.Scan(&de.Name, &de.Kind, &de.Ino); err != nil {
			return nil, ioErr(err)
		}
		entries = append(entries, de)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr(err)
	}
	return entries, nil
}

func (f *FS) Mkdir(ctx context.Context, p string) error {
	return f.create(ctx, p, dlfs.KindDir, dlfs.DirMode)
}

func (f *FS) CreateFile(ctx context.Context, p string) error {
	return f.create(ctx, p, dlfs.KindFile, dlfs.FileMode)
}

func (f *FS) create(ctx context.Context, p string, kind dlfs.FileKind, mode fs.FileMode) error {
	if p == dlfs.Root {
		return dlfs.ErrAlreadyExists
	}
	return f.inTx(ctx, func(tx *sql.Tx) error {
		parent, name, err := parentDir(ctx, tx, p)
		if err != nil {
			return err
		}
		found, err := exists(ctx, tx, p)
		if err != nil {
			return err
		}
		if found {
			return dlfs.ErrAlreadyExists
		}
		ts := f.now().UnixNano()
		var data []byte
		if kind == dlfs.KindFile {
			data = []byte{}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO entries (path, parent, name, kind, mode, size, data, atime, mtime, ctime)
			 VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
			p, parent, name, string(kind), uint32(mode), data, ts, ts, ts)
		if err != nil {
			return ioErr(err)
		}
		return touch(ctx, tx, parent, ts)
	})
}

func (f *FS) WriteFile(ctx context.Context, p string, data []byte) error {
	if p == dlfs.Root {
		return dlfs.ErrIsDirectory
	}
	if data == nil {
		data = []byte{}
	}
	return f.inTx(ctx, func(tx *sql.Tx) error {
		parent, name, err := parentDir(ctx, tx, p)
		if err != nil {
			return err
		}
		ts := f.now().UnixNano()
		var kind dlfs.FileKind
		err = tx.QueryRowContext(ctx, `SELECT kind FROM entries WHERE path = ?`, p).Scan(&kind)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx,
				`INSERT INTO entries (path, parent, name, kind, mode, size, data, atime, mtime, ctime)
				 VALUES (?, ?, ?, 'file', ?, ?, ?, ?, ?, ?)`,
				p, parent, name, uint32(dlfs.FileMode), len(data), data, ts, ts, ts)
			if err != nil {
				return ioErr(err)
			}
			return touch(ctx, tx, parent, ts)
		case err != nil:
			return ioErr(err)
		case kind == dlfs.KindDir:
			return dlfs.ErrIsDirectory
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE entries SET data = ?, size = ?, mtime = ?, ctime = ? WHERE path = ?`,
			data, len(data), ts, ts, p)
		return ioErr(err)
	})
}

func (f *FS) ReadFile(ctx context.Context, p string) ([]byte, error) {
	var (
		kind dlfs.FileKind
		data []byte
	)
	err := f.db.QueryRowContext(ctx, `SELECT kind, data FROM entries WHERE path = ?`, p).Scan(&kind, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, missing(ctx, f.db, p)
	}
	if err != nil {
		return nil, ioErr(err)
	}
	if kind == dlfs.KindDir {
		return nil, dlfs.ErrIsDirectory
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (f *FS) Rename(ctx context.Context, oldPath, newPath string) error {
	if oldPath == dlfs.Root || newPath == dlfs.Root {
		return dlfs.NewError(dlfs.CodeInvalidArgument, "", "", "cannot rename the root directory")
	}
	return f.inTx(ctx, func(tx *sql.Tx) error {
		src, err := lookup(ctx, tx, oldPath)
		if err != nil {
			return err
		}
		if oldPath == newPath {
			return nil
		}
		if src.isDir() && dlfs.IsWithin(newPath, oldPath) {
			return dlfs.NewError(dlfs.CodeInvalidArgument, "", "", "cannot move a directory into itself")
		}
		parent, name, err := parentDir(ctx, tx, newPath)
		if err != nil {
			return err
		}
		found, err := exists(ctx, tx, newPath)
		if err != nil {
			return err
		}
		if found {
			return dlfs.ErrAlreadyExists
		}

		ts := f.now().UnixNano()
		if _, err := tx.ExecContext(ctx,
			`UPDATE entries SET path = ?, parent = ?, name = ?, ctime = ? WHERE path = ?`,
			newPath, parent, name, ts, oldPath); err != nil {
			return ioErr(err)
		}
		if src.isDir() {
			if _, err := tx.ExecContext(ctx,
				`UPDATE entries
				 SET path = ?2 || substr(path, length(?1) + 1),
				     parent = ?2 || substr(parent, length(?1) + 1)
				 WHERE substr(path, 1, length(?1) + 1) = ?1 || '/'`,
				oldPath, newPath); err != nil {
				return ioErr(err)
			}
		}
		oldParent, _ := dlfs.Split(oldPath)
		if err := touch(ctx, tx, oldParent, ts); err != nil {
			return err
		}
		return touch(ctx, tx, parent, ts)
	})
}

func (f *FS) RemoveDir(ctx context.Context, p string, recursive bool) error {
	if p == dlfs.Root {
		return dlfs.NewError(dlfs.CodeInvalidArgument, "", "", "cannot delete the root directory")
	}
	return f.inTx(ctx, func(tx *sql.Tx) error {
		e, err := lookup(ctx, tx, p)
		if err != nil {
			return err
		}
		if !e.isDir() {
			return dlfs.ErrNotDirectory
		}
		if !recursive {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM entries WHERE parent = ? LIMIT 1`, p).Scan(&one)
			if err == nil {
				return dlfs.ErrNotEmpty
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return ioErr(err)
			}
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM entries WHERE path = ?1 OR substr(path, 1, length(?1) + 1) = ?1 || '/'`, p)
		if err != nil {
			return ioErr(err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 1 {
			f.log.Debug().Str("path", p).Int64("entries", n).Msg("removed directory tree")
		}
		parent, _ := dlfs.Split(p)
		return touch(ctx, tx, parent, f.now().UnixNano())
	})
}

func (f *FS) RemoveFile(ctx context.Context, p string) error {
	if p == dlfs.Root {
		return dlfs.ErrIsDirectory
	}
	return f.inTx(ctx, func(tx *sql.Tx) error {
		e, err := lookup(ctx, tx, p)
		if err != nil {
			return err
		}
		if e.isDir() {
			return dlfs.ErrIsDirectory
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE path = ?`, p); err != nil {
			return ioErr(err)
		}
		parent, _ := dlfs.Split(p)
		return touch(ctx, tx, parent, f.now().UnixNano())
	})
}

// StatFs reports database pages as blocks and rows as inodes.
func (f *FS) StatFs(ctx context.Context) (*dlfs.StatFs, error) {
	var pageSize, pageCount, freePages, files uint64
	if err := f.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return nil, ioErr(err)
	}
	if err := f.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err != nil {
		return nil, ioErr(err)
	}
	if err := f.db.QueryRowContext(ctx, `PRAGMA freelist_count`).Scan(&freePages); err != nil {
		return nil, ioErr(err)
	}
	if err := f.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&files); err != nil {
		return nil, ioErr(err)
	}
	return &dlfs.StatFs{
		Blocks:  pageCount,
		BFree:   freePages,
		BAvail:  freePages,
		Files:   files,
		FFree:   math.MaxInt64 - files,
		BSize:   uint32(pageSize),
		NameLen: maxNameLen,
		FrSize:  uint32(pageSize),
	}, nil
}

func (f *FS) Close() error {
	if err := f.db.Close(); err != nil {
		return ioErr(err)
	}
	return nil
}

func touch(ctx context.Context, q querier, p string, ts int64) error {
	_, err := q.ExecContext(ctx, `UPDATE entries SET mtime = ?, ctime = ? WHERE path = ?`, ts, ts, p)
	return ioErr(err)
}

// ioErr wraps a database failure. Context errors pass through unchanged.
func ioErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &dlfs.Error{Code: dlfs.CodeIO, Message: "database error", Err: err}
}
