package dlfs_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/datenlord/datenlord_sdk_go/internal/dlapi"
	"github.com/datenlord/datenlord_sdk_go/internal/server"
	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs"
	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs/mock"
	mock_dlfs "github.com/datenlord/datenlord_sdk_go/pkg/dlfs/mocks"
)

var noRetry = dlfs.RetryPolicy{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

func newMocked(t *testing.T) (*dlfs.Client, *mock_dlfs.MockBackend) {
	t.Helper()
	ctrl := gomock.NewController(t)
	b := mock_dlfs.NewMockBackend(ctrl)
	return dlfs.NewWithBackend(b), b
}

func TestClientCleansPaths(t *testing.T) {
	c, b := newMocked(t)
	ctx := context.Background()

	b.EXPECT().Mkdir(gomock.Any(), "/example_dir").Return(nil)
	b.EXPECT().WriteFile(gomock.Any(), "/a/b.txt", []byte("x")).Return(nil)
	b.EXPECT().RemoveDir(gomock.Any(), "/a", true).Return(nil)

	require.NoError(t, c.Mkdir(ctx, "example_dir/"))
	require.NoError(t, c.WriteFile(ctx, "a//./b.txt", []byte("x")))
	require.NoError(t, c.DeleteDir(ctx, "/a/sub/..", true))
}

func TestExistsClassifiesMissing(t *testing.T) {
	c, b := newMocked(t)
	ctx := context.Background()

	b.EXPECT().Stat(gomock.Any(), "/present").Return(&dlfs.FileStat{Path: "/present"}, nil)
	b.EXPECT().Stat(gomock.Any(), "/absent").Return(nil, dlfs.ErrNotFound)
	b.EXPECT().Stat(gomock.Any(), "/file/child").Return(nil, dlfs.ErrNotDirectory)
	b.EXPECT().Stat(gomock.Any(), "/broken").Return(nil, dlfs.NewError(dlfs.CodeIO, "", "", "disk"))

	ok, err := c.Exists(ctx, "/present")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Exists(ctx, "/absent")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Exists(ctx, "/file/child")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.Exists(ctx, "/broken")
	assert.ErrorIs(t, err, dlfs.ErrIO)
}

func TestRootGuardsNeverReachBackend(t *testing.T) {
	c, _ := newMocked(t)
	ctx := context.Background()

	assert.ErrorIs(t, c.Mkdir(ctx, "/"), dlfs.ErrAlreadyExists)
	assert.ErrorIs(t, c.CreateFile(ctx, "/"), dlfs.ErrAlreadyExists)
	assert.ErrorIs(t, c.WriteFile(ctx, "/", nil), dlfs.ErrIsDirectory)
	assert.ErrorIs(t, c.DeleteFile(ctx, "/"), dlfs.ErrIsDirectory)
	assert.ErrorIs(t, c.DeleteDir(ctx, "/", true), dlfs.ErrInvalidArgument)
	assert.ErrorIs(t, c.Rename(ctx, "/", "/x"), dlfs.ErrInvalidArgument)
	assert.ErrorIs(t, c.Rename(ctx, "/a", "/a/b"), dlfs.ErrInvalidArgument)
}

func TestRenameOntoItselfStats(t *testing.T) {
	c, b := newMocked(t)
	b.EXPECT().Stat(gomock.Any(), "/same").Return(nil, dlfs.ErrNotFound)

	err := c.Rename(context.Background(), "/same", "same/")
	assert.ErrorIs(t, err, dlfs.ErrNotFound)
}

func TestErrorsCarryOpAndPath(t *testing.T) {
	c, b := newMocked(t)
	b.EXPECT().ReadFile(gomock.Any(), "/missing").Return(nil, dlfs.ErrNotFound)

	_, err := c.ReadFile(context.Background(), "missing")
	var fsErr *dlfs.Error
	require.True(t, errors.As(err, &fsErr))
	assert.Equal(t, dlfs.CodeNotFound, fsErr.Code)
	assert.Equal(t, "read_file", fsErr.Op)
	assert.Equal(t, "/missing", fsErr.Path)
	assert.Equal(t, "dlfs: read_file /missing: not found", err.Error())
}

func TestForeignErrorsBecomeInternal(t *testing.T) {
	c, b := newMocked(t)
	b.EXPECT().CreateFile(gomock.Any(), "/f").Return(errors.New("boom"))

	err := c.CreateFile(context.Background(), "/f")
	assert.ErrorIs(t, err, dlfs.ErrInternal)
	assert.Equal(t, dlfs.CodeInternal, dlfs.CodeOf(err))
}

func TestReadDirSortsEntries(t *testing.T) {
	c, b := newMocked(t)
	b.EXPECT().ReadDir(gomock.Any(), "/").Return([]dlfs.DirEntry{
		{Name: "zeta"}, {Name: "alpha"}, {Name: "mid"},
	}, nil)

	entries, err := c.ReadDir(context.Background(), "/")
	require.NoError(t, err)
	names := []string{entries[0].Name, entries[1].Name, entries[2].Name}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestCancelledContextSkipsBackend(t *testing.T) {
	c, _ := newMocked(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Mkdir(ctx, "/d")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCloseReleasesBackendOnce(t *testing.T) {
	c, b := newMocked(t)
	b.EXPECT().Close().Return(nil).Times(1)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Close(), dlfs.ErrClosed)
	assert.ErrorIs(t, c.Mkdir(context.Background(), "/x"), dlfs.ErrClosed)
}

func TestCopyLocalFiles(t *testing.T) {
	c := dlfs.NewWithBackend(mock.New())
	defer c.Close()
	ctx := context.Background()
	dir := t.TempDir()

	src := filepath.Join(dir, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("from host"), 0o644))

	require.NoError(t, c.CopyFromLocalFile(ctx, false, src, "/copied.txt"))
	err := c.CopyFromLocalFile(ctx, false, src, "/copied.txt")
	assert.ErrorIs(t, err, dlfs.ErrAlreadyExists)
	require.NoError(t, c.CopyFromLocalFile(ctx, true, src, "/copied.txt"))

	err = c.CopyFromLocalFile(ctx, true, filepath.Join(dir, "nope"), "/x")
	assert.ErrorIs(t, err, dlfs.ErrIO)

	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, c.CopyToLocalFile(ctx, "/copied.txt", dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "from host", string(data))

	err = c.CopyToLocalFile(ctx, "/missing", dst)
	assert.ErrorIs(t, err, dlfs.ErrNotFound)
}

func TestSessionIsGenerated(t *testing.T) {
	a := dlfs.NewWithBackend(mock.New())
	b := dlfs.NewWithBackend(mock.New())
	assert.NotEmpty(t, a.Session())
	assert.NotEqual(t, a.Session(), b.Session())

	fixed := dlfs.NewWithBackend(mock.New(), dlfs.WithSession("fixed"))
	assert.Equal(t, "fixed", fixed.Session())
}

func envelope(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body)) //nolint:errcheck
}

func TestHTTPSendsSessionAndToken(t *testing.T) {
	var session, token atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session.Store(r.Header.Get("X-Datenlord-Session"))
		token.Store(r.Header.Get("X-Service-Token"))
		envelope(w, http.StatusOK, `{"result":{}}`)
	}))
	defer srv.Close()

	c, err := dlfs.New(srv.URL, dlfs.WithSession("s-1"), dlfs.WithToken("secret"))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Mkdir(context.Background(), "/d"))
	assert.Equal(t, "s-1", session.Load())
	assert.Equal(t, "secret", token.Load())
}

func TestHTTPRetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		envelope(w, http.StatusOK, `{"result":{"path":"/d","name":"d","kind":"dir"}}`)
	}))
	defer srv.Close()

	c, err := dlfs.New(srv.URL, dlfs.WithRetryPolicy(dlfs.RetryPolicy{
		MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond,
	}))
	require.NoError(t, err)
	defer c.Close()

	st, err := c.Stat(context.Background(), "/d")
	require.NoError(t, err)
	assert.True(t, st.IsDir())
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPMapsRemoteErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stat":
			envelope(w, http.StatusNotFound, `{"error":{"code":3,"message":"no such entry"}}`)
		case "/mkdir":
			envelope(w, http.StatusConflict, `{"error":{"code":4,"message":"exists"}}`)
		case "/delete_dir":
			envelope(w, http.StatusInternalServerError, `{"error":{"code":999,"message":"odd"}}`)
		case "/create_file":
			http.Error(w, "conflict", http.StatusConflict)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c, err := dlfs.New(srv.URL, dlfs.WithRetryPolicy(noRetry))
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	_, err = c.Stat(ctx, "/x")
	assert.ErrorIs(t, err, dlfs.ErrNotFound)
	assert.Contains(t, err.Error(), "no such entry")

	ok, err := c.Exists(ctx, "/x")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, c.Mkdir(ctx, "/x"), dlfs.ErrAlreadyExists)
	assert.ErrorIs(t, c.DeleteDir(ctx, "/x", false), dlfs.ErrInternal)
	assert.ErrorIs(t, c.CreateFile(ctx, "/x"), dlfs.ErrAlreadyExists)
	assert.ErrorIs(t, c.DeleteFile(ctx, "/x"), dlfs.ErrInternal)
}

func TestHTTPRejectsCorruptPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		envelope(w, http.StatusOK, `{"result":{"data_base64":"aGk=","checksum":"00"}}`)
	}))
	defer srv.Close()

	c, err := dlfs.New(srv.URL, dlfs.WithRetryPolicy(noRetry))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.ReadFile(context.Background(), "/f")
	assert.ErrorIs(t, err, dlfs.ErrIO)
}

func TestHTTPUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := dlfs.New(url, dlfs.WithRetryPolicy(noRetry))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Exists(context.Background(), "/")
	assert.ErrorIs(t, err, dlfs.ErrUnavailable)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := dlfs.New("")
	assert.Error(t, err)
	_, err = dlfs.New("unix:///tmp/sock")
	assert.Error(t, err)
}

var fastRetry = dlfs.RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

// counting forwards to h and counts requests made to path.
func counting(h http.Handler, path string, calls *atomic.Int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == path {
			calls.Add(1)
		}
		h.ServeHTTP(w, r)
	})
}

// dropFirst lets h apply the first request to path, then closes the
// connection without sending the response.
func dropFirst(t *testing.T, h http.Handler, path string, calls *atomic.Int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path || calls.Add(1) > 1 {
			h.ServeHTTP(w, r)
			return
		}
		h.ServeHTTP(httptest.NewRecorder(), r)
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		conn.Close()
	})
}

func TestHTTPFinalServiceErrorsAreNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	b := mock_dlfs.NewMockBackend(ctrl)
	b.EXPECT().WriteFile(gomock.Any(), "/f", []byte("x")).
		Return(&dlfs.Error{Code: dlfs.CodeIO, Message: "disk failure"}).Times(1)
	b.EXPECT().Mkdir(gomock.Any(), "/d").
		Return(&dlfs.Error{Code: dlfs.CodeInternal, Message: "broken"}).Times(1)

	srv := httptest.NewServer(server.New(b))
	defer srv.Close()

	c, err := dlfs.New(srv.URL, dlfs.WithRetryPolicy(fastRetry))
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	err = c.WriteFile(ctx, "/f", []byte("x"))
	assert.ErrorIs(t, err, dlfs.ErrIO)
	assert.Contains(t, err.Error(), "disk failure")
	assert.ErrorIs(t, c.Mkdir(ctx, "/d"), dlfs.ErrInternal)
}

func TestHTTPDroppedMutationIsNotRepeated(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(dropFirst(t, server.New(mock.New()), dlapi.PathMkdir, &calls))
	defer srv.Close()

	c, err := dlfs.New(srv.URL, dlfs.WithRetryPolicy(fastRetry))
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	err = c.Mkdir(ctx, "/d")
	assert.ErrorIs(t, err, dlfs.ErrUnavailable)
	assert.NotErrorIs(t, err, dlfs.ErrAlreadyExists)
	assert.Equal(t, int32(1), calls.Load())

	ok, err := c.Exists(ctx, "/d")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHTTPDroppedWriteIsRepeated(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(dropFirst(t, server.New(mock.New()), dlapi.PathWriteFile, &calls))
	defer srv.Close()

	c, err := dlfs.New(srv.URL, dlfs.WithRetryPolicy(fastRetry))
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.WriteFile(ctx, "/f", []byte("payload")))
	assert.Equal(t, int32(2), calls.Load())
	data, err := c.ReadFile(ctx, "/f")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestHTTPAttemptTimeoutIsUnavailable(t *testing.T) {
	var calls atomic.Int32
	slow := server.New(mock.New(), server.WithLatency(300*time.Millisecond))
	srv := httptest.NewServer(counting(slow, dlapi.PathStat, &calls))
	defer srv.Close()

	c, err := dlfs.New(srv.URL,
		dlfs.WithTimeout(50*time.Millisecond),
		dlfs.WithRetryPolicy(dlfs.RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}),
	)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Exists(context.Background(), "/x")
	assert.ErrorIs(t, err, dlfs.ErrUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPCallerDeadlineIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	slow := server.New(mock.New(), server.WithLatency(300*time.Millisecond))
	srv := httptest.NewServer(counting(slow, dlapi.PathStat, &calls))
	defer srv.Close()

	c, err := dlfs.New(srv.URL, dlfs.WithRetryPolicy(fastRetry))
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Stat(ctx, "/x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, dlfs.ErrUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}
