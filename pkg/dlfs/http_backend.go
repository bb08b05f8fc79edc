package dlfs

import (
	"context"
	"errors"
	"fmt"

	"github.com/datenlord/datenlord_sdk_go/internal/dlapi"
	"github.com/datenlord/datenlord_sdk_go/internal/httpx"
)

type httpBackend struct {
	client *httpx.Client
}

func (b *httpBackend) Stat(ctx context.Context, path string) (*FileStat, error) {
	var st FileStat
	if err := b.call(ctx, dlapi.PathStat, dlapi.PathRequest{Path: path}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (b *httpBackend) ReadDir(ctx context.Context, path string) ([]DirEntry, error) {
	var result struct {
		Entries []DirEntry `json:"entries"`
	}
	if err := b.call(ctx, dlapi.PathReadDir, dlapi.PathRequest{Path: path}, &result); err != nil {
		return nil, err
	}
	if result.Entries == nil {
		result.Entries = []DirEntry{}
	}
	return result.Entries, nil
}

func (b *httpBackend) Mkdir(ctx context.Context, path string) error {
	return b.call(ctx, dlapi.PathMkdir, dlapi.PathRequest{Path: path}, nil)
}

func (b *httpBackend) CreateFile(ctx context.Context, path string) error {
	return b.call(ctx, dlapi.PathCreateFile, dlapi.PathRequest{Path: path}, nil)
}

func (b *httpBackend) WriteFile(ctx context.Context, path string, data []byte) error {
	p := dlapi.EncodePayload(data)
	req := dlapi.WriteRequest{Path: path, DataBase64: p.DataBase64, Checksum: p.Checksum}
	return b.call(ctx, dlapi.PathWriteFile, req, nil)
}

func (b *httpBackend) ReadFile(ctx context.Context, path string) ([]byte, error) {
	var p dlapi.Payload
	if err := b.call(ctx, dlapi.PathReadFile, dlapi.PathRequest{Path: path}, &p); err != nil {
		return nil, err
	}
	data, err := dlapi.DecodePayload(p)
	if err != nil {
		return nil, &Error{Code: CodeIO, Message: "corrupt file payload", Err: err}
	}
	return data, nil
}

func (b *httpBackend) Rename(ctx context.Context, oldPath, newPath string) error {
	return b.call(ctx, dlapi.PathRename, dlapi.RenameRequest{Src: oldPath, Dest: newPath}, nil)
}

func (b *httpBackend) RemoveDir(ctx context.Context, path string, recursive bool) error {
	return b.call(ctx, dlapi.PathDeleteDir, dlapi.DeleteDirRequest{Path: path, Recursive: recursive}, nil)
}

func (b *httpBackend) RemoveFile(ctx context.Context, path string) error {
	return b.call(ctx, dlapi.PathDeleteFile, dlapi.PathRequest{Path: path}, nil)
}

func (b *httpBackend) StatFs(ctx context.Context) (*StatFs, error) {
	var st StatFs
	if err := b.call(ctx, dlapi.PathStatFs, dlapi.StatFsRequest{}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (b *httpBackend) Close() error {
	if b != nil && b.client != nil {
		b.client.CloseIdleConnections()
	}
	return nil
}

// call posts req to endpoint and decodes the envelope result into out. A nil
// out discards the result.
func (b *httpBackend) call(ctx context.Context, endpoint string, req, out any) error {
	if b == nil || b.client == nil {
		return NewError(CodeInternal, "", "", "http backend not configured")
	}
	var opts []httpx.CallOption
	if !idempotent(endpoint) {
		opts = append(opts, httpx.NotIdempotent())
	}
	body, err := b.client.PostJSON(ctx, endpoint, req, nil, opts...)
	if err != nil {
		return transportError(ctx, err)
	}
	if out == nil {
		_, err = dlapi.ExtractResult(body)
	} else {
		err = dlapi.DecodeResult(body, out)
	}
	if err != nil {
		var remote *dlapi.ErrorBody
		if errors.As(err, &remote) {
			return remoteError(remote)
		}
		return &Error{Code: CodeInternal, Message: fmt.Sprintf("decode %s response", endpoint), Err: err}
	}
	return nil
}

// idempotent reports whether a repeated request to endpoint leaves the
// namespace as a single one would. Mkdir, create, rename and deletes fail on
// the second application, so they are not.
func idempotent(endpoint string) bool {
	switch endpoint {
	case dlapi.PathMkdir, dlapi.PathCreateFile, dlapi.PathRename,
		dlapi.PathDeleteDir, dlapi.PathDeleteFile:
		return false
	}
	return true
}

func transportError(ctx context.Context, err error) error {
	var httpErr *httpx.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.IsJSON() {
			if remote, ok := dlapi.DecodeError(httpErr.Body); ok {
				return remoteError(remote)
			}
		}
		return &Error{
			Code:    codeFromStatus(httpErr.StatusCode),
			Message: fmt.Sprintf("unexpected status %d", httpErr.StatusCode),
			Err:     httpErr,
		}
	}
	if ctx.Err() != nil {
		return err
	}
	return &Error{Code: CodeUnavailable, Message: "filesystem service unreachable", Err: err}
}

func remoteError(remote *dlapi.ErrorBody) error {
	code := Code(remote.Code)
	if !validCode(code) {
		code = CodeInternal
	}
	return &Error{Code: code, Message: remote.Message}
}
