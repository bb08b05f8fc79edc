package dlfs

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/datenlord/datenlord_sdk_go/internal/dlapi"
	"github.com/datenlord/datenlord_sdk_go/internal/httpx"
)

// RetryPolicy controls how the HTTP transport retries transient failures.
type RetryPolicy = httpx.RetryPolicy

// DefaultRetryPolicy is used when no policy is supplied.
var DefaultRetryPolicy = httpx.DefaultRetryPolicy

// Client is a handle to a filesystem namespace. It is safe for concurrent use.
// A Client must be released with Close; every call after that fails with
// ErrClosed.
type Client struct {
	backend Backend
	session string
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

type options struct {
	log         zerolog.Logger
	session     string
	httpClient  *http.Client
	retryPolicy *RetryPolicy
	timeout     time.Duration
	token       string
	headers     http.Header
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the logger used to trace operations.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithSession overrides the random session identifier of the handle.
func WithSession(id string) Option {
	return func(o *options) {
		o.session = id
	}
}

// WithHTTPClient overrides the http.Client used by the HTTP backend.
func WithHTTPClient(h *http.Client) Option {
	return func(o *options) {
		o.httpClient = h
	}
}

// WithRetryPolicy overrides the retry policy of the HTTP backend.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) {
		o.retryPolicy = &p
	}
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithToken sets the shared secret sent to the filesystem service.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithHeaders adds headers to every HTTP request.
func WithHeaders(h http.Header) Option {
	return func(o *options) {
		for k, values := range h {
			for _, v := range values {
				o.headers.Add(k, v)
			}
		}
	}
}

func buildOptions(opts []Option) *options {
	o := &options{
		log:     zerolog.Nop(),
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.session == "" {
		o.session = uuid.NewString()
	}
	return o
}

// New constructs a Client talking to the filesystem service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	o := buildOptions(opts)
	b, err := newHTTPBackend(baseURL, o)
	if err != nil {
		return nil, err
	}
	return newClient(b, o), nil
}

// NewHTTPBackend returns the Backend used by New, for callers that compose
// backends themselves.
func NewHTTPBackend(baseURL string, opts ...Option) (Backend, error) {
	return newHTTPBackend(baseURL, buildOptions(opts))
}

func newHTTPBackend(baseURL string, o *options) (*httpBackend, error) {
	headers := o.headers.Clone()
	headers.Set(dlapi.HeaderSession, o.session)
	if o.token != "" {
		headers.Set(dlapi.HeaderToken, o.token)
	}
	httpOpts := []httpx.Option{
		httpx.WithHeaders(headers),
		httpx.WithLogger(o.log),
	}
	if o.httpClient != nil {
		httpOpts = append(httpOpts, httpx.WithHTTPClient(o.httpClient))
	}
	if o.timeout > 0 {
		httpOpts = append(httpOpts, httpx.WithTimeout(o.timeout))
	}
	if o.retryPolicy != nil {
		httpOpts = append(httpOpts, httpx.WithRetryPolicy(*o.retryPolicy))
	}

	cl, err := httpx.NewClient(baseURL, httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("dlfs: %w", err)
	}
	return &httpBackend{client: cl}, nil
}

// NewWithBackend wraps a custom backend (mocks, local directories, databases).
func NewWithBackend(b Backend, opts ...Option) *Client {
	return newClient(b, buildOptions(opts))
}

func newClient(b Backend, o *options) *Client {
	return &Client{
		backend: b,
		session: o.session,
		log:     o.log.With().Str("session", o.session).Logger(),
	}
}

// Session returns the identifier sent to remote services.
func (c *Client) Session() string {
	if c == nil {
		return ""
	}
	return c.session
}

// Exists reports whether path names an entry. A missing entry is not an error.
func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	var found bool
	err := c.run(ctx, "exists", path, func(p string) error {
		_, err := c.backend.Stat(ctx, p)
		switch CodeOf(err) {
		case 0:
			found = true
			return nil
		case CodeNotFound, CodeNotDirectory:
			return nil
		default:
			return err
		}
	})
	return found, err
}

// Mkdir creates a single directory. The parent must already exist.
func (c *Client) Mkdir(ctx context.Context, path string) error {
	return c.run(ctx, "mkdir", path, func(p string) error {
		if p == Root {
			return ErrAlreadyExists
		}
		return c.backend.Mkdir(ctx, p)
	})
}

// CreateFile creates an empty regular file.
func (c *Client) CreateFile(ctx context.Context, path string) error {
	return c.run(ctx, "create_file", path, func(p string) error {
		if p == Root {
			return ErrAlreadyExists
		}
		return c.backend.CreateFile(ctx, p)
	})
}

// WriteFile replaces the contents of path with data, creating the file if
// needed. data is not retained.
func (c *Client) WriteFile(ctx context.Context, path string, data []byte) error {
	return c.run(ctx, "write_file", path, func(p string) error {
		if p == Root {
			return ErrIsDirectory
		}
		return c.backend.WriteFile(ctx, p, data)
	})
}

// ReadFile returns the full contents of path. The slice is owned by the caller.
func (c *Client) ReadFile(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := c.run(ctx, "read_file", path, func(p string) error {
		var err error
		data, err = c.backend.ReadFile(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Stat returns the attributes of path.
func (c *Client) Stat(ctx context.Context, path string) (*FileStat, error) {
	var st *FileStat
	err := c.run(ctx, "stat", path, func(p string) error {
		var err error
		st, err = c.backend.Stat(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// ReadDir lists the entries of a directory sorted by name.
func (c *Client) ReadDir(ctx context.Context, path string) ([]DirEntry, error) {
	var entries []DirEntry
	err := c.run(ctx, "read_dir", path, func(p string) error {
		var err error
		entries, err = c.backend.ReadDir(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	SortEntries(entries)
	return entries, nil
}

// Rename moves oldPath to newPath. An existing newPath is never replaced.
func (c *Client) Rename(ctx context.Context, oldPath, newPath string) error {
	return c.run(ctx, "rename_path", oldPath, func(src string) error {
		dst, err := CleanPath(newPath)
		if err != nil {
			return err
		}
		switch {
		case src == Root || dst == Root:
			return NewError(CodeInvalidArgument, "", "", "cannot rename the root directory")
		case src == dst:
			_, err := c.backend.Stat(ctx, src)
			return err
		case IsWithin(dst, src):
			return NewError(CodeInvalidArgument, "", "", "cannot move a directory into itself")
		}
		return c.backend.Rename(ctx, src, dst)
	})
}

// DeleteDir removes a directory. Without recursive the directory must be
// empty.
func (c *Client) DeleteDir(ctx context.Context, path string, recursive bool) error {
	return c.run(ctx, "delete_dir", path, func(p string) error {
		if p == Root {
			return NewError(CodeInvalidArgument, "", "", "cannot delete the root directory")
		}
		return c.backend.RemoveDir(ctx, p, recursive)
	})
}

// DeleteFile removes a regular file.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	return c.run(ctx, "delete_file", path, func(p string) error {
		if p == Root {
			return ErrIsDirectory
		}
		return c.backend.RemoveFile(ctx, p)
	})
}

// StatFs reports capacity figures for the namespace.
func (c *Client) StatFs(ctx context.Context) (*StatFs, error) {
	var st *StatFs
	err := c.run(ctx, "statfs", Root, func(string) error {
		var err error
		st, err = c.backend.StatFs(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// CopyFromLocalFile uploads the host file localPath to destPath. Without
// overwrite an existing destination fails with ErrAlreadyExists.
func (c *Client) CopyFromLocalFile(ctx context.Context, overwrite bool, localPath, destPath string) error {
	return c.run(ctx, "copy_from_local_file", destPath, func(p string) error {
		if p == Root {
			return ErrIsDirectory
		}
		data, err := os.ReadFile(localPath)
		if err != nil {
			return &Error{Code: CodeIO, Message: "read local file " + localPath, Err: err}
		}
		if !overwrite {
			_, err := c.backend.Stat(ctx, p)
			switch CodeOf(err) {
			case 0:
				return ErrAlreadyExists
			case CodeNotFound:
			default:
				return err
			}
		}
		return c.backend.WriteFile(ctx, p, data)
	})
}

// CopyToLocalFile downloads srcPath into the host file localPath.
func (c *Client) CopyToLocalFile(ctx context.Context, srcPath, localPath string) error {
	return c.run(ctx, "copy_to_local_file", srcPath, func(p string) error {
		data, err := c.backend.ReadFile(ctx, p)
		if err != nil {
			return err
		}
		if err := os.WriteFile(localPath, data, FileMode); err != nil {
			return &Error{Code: CodeIO, Message: "write local file " + localPath, Err: err}
		}
		return nil
	})
}

// Close releases the handle and its backend. Closing twice returns ErrClosed.
func (c *Client) Close() error {
	if c == nil {
		return NewError(CodeClosed, "close", "", "")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return NewError(CodeClosed, "close", "", "")
	}
	c.closed = true
	if c.backend == nil {
		return nil
	}
	return WrapError("close", "", c.backend.Close())
}

// run validates the handle and path, then executes fn under the read lock so
// Close waits for in-flight calls.
func (c *Client) run(ctx context.Context, op, path string, fn func(clean string) error) error {
	if c == nil || c.backend == nil {
		return NewError(CodeInternal, op, path, "client is nil")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return NewError(CodeClosed, op, path, "")
	}
	clean, err := CleanPath(path)
	if err != nil {
		return WrapError(op, path, err)
	}
	if err := ctx.Err(); err != nil {
		return WrapError(op, clean, err)
	}

	start := time.Now()
	err = WrapError(op, clean, fn(clean))
	ev := c.log.Debug()
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Str("op", op).Str("path", clean).Dur("took", time.Since(start)).Msg("dlfs call")
	return err
}
