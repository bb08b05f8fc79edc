package dlfs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCleanPath(t *testing.T) {
	cases := map[string]string{
		"/":                  "/",
		"example_dir/":       "/example_dir",
		"/a//b/./c":          "/a/b/c",
		"/a/b/../c":          "/a/c",
		"/../../etc/passwd":  "/etc/passwd",
		"relative/file.txt":  "/relative/file.txt",
		"/trailing/slash///": "/trailing/slash",
	}
	for in, want := range cases {
		got, err := CleanPath(in)
		if err != nil {
			t.Fatalf("CleanPath(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Fatalf("CleanPath(%q) = %q, want %q", in, got, want)
		}
	}

	for _, bad := range []string{"", "   ", "a\x00b"} {
		if _, err := CleanPath(bad); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("CleanPath(%q) error = %v, want invalid argument", bad, err)
		}
	}
}

func TestSplitAndWithin(t *testing.T) {
	for _, tc := range []struct {
		in, parent, name string
	}{
		{"/", "/", ""},
		{"/a", "/", "a"},
		{"/a/b/c", "/a/b", "c"},
	} {
		parent, name := Split(tc.in)
		if parent != tc.parent || name != tc.name {
			t.Fatalf("Split(%q) = (%q, %q), want (%q, %q)", tc.in, parent, name, tc.parent, tc.name)
		}
	}

	if !IsWithin("/a/b", "/a") || !IsWithin("/a", "/a") || !IsWithin("/x", "/") {
		t.Fatal("expected paths to be within their ancestors")
	}
	if IsWithin("/ab", "/a") || IsWithin("/a", "/a/b") {
		t.Fatal("sibling sharing a prefix must not count as a descendant")
	}
	if got := Join("/a", "b"); got != "/a/b" {
		t.Fatalf("Join = %q", got)
	}
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewError(CodeNotEmpty, "delete_dir", "/d", ""))
	if !errors.Is(err, ErrNotEmpty) {
		t.Fatalf("expected %v to match ErrNotEmpty", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("codes must not cross-match")
	}
	if CodeOf(err) != CodeNotEmpty {
		t.Fatalf("CodeOf = %v", CodeOf(err))
	}
	if CodeOf(nil) != 0 {
		t.Fatal("CodeOf(nil) must be 0")
	}
	if got := Code(77).String(); got != "code(77)" {
		t.Fatalf("unknown code string = %q", got)
	}
}

func TestWrapErrorKeepsExistingContext(t *testing.T) {
	inner := NewError(CodeIO, "write_file", "/inner", "disk full")
	wrapped := WrapError("copy_from_local_file", "/outer", inner)

	var fsErr *Error
	if !errors.As(wrapped, &fsErr) {
		t.Fatalf("expected *Error, got %T", wrapped)
	}
	if fsErr.Op != "write_file" || fsErr.Path != "/inner" {
		t.Fatalf("context overwritten: %+v", fsErr)
	}
	if inner.Op != "write_file" {
		t.Fatal("WrapError must not mutate its argument")
	}
}

func TestStatusMapping(t *testing.T) {
	for code := range codeNames {
		status := code.HTTPStatus()
		if status < 400 || status > 599 {
			t.Fatalf("%v maps to non-error status %d", code, status)
		}
	}
	for status, want := range map[int]Code{
		http.StatusNotFound:            CodeNotFound,
		http.StatusConflict:            CodeAlreadyExists,
		http.StatusBadRequest:          CodeInvalidArgument,
		http.StatusNotImplemented:      CodeUnimplemented,
		http.StatusUnauthorized:        CodePermissionDenied,
		http.StatusForbidden:           CodePermissionDenied,
		http.StatusServiceUnavailable:  CodeUnavailable,
		http.StatusTooManyRequests:     CodeUnavailable,
		http.StatusInternalServerError: CodeInternal,
		http.StatusTeapot:              CodeInternal,
	} {
		if got := codeFromStatus(status); got != want {
			t.Fatalf("codeFromStatus(%d) = %v, want %v", status, got, want)
		}
	}
}

func TestBlocksFor(t *testing.T) {
	for size, want := range map[int64]int64{0: 0, -1: 0, 1: 1, 512: 1, 513: 2, 4096: 8} {
		if got := BlocksFor(size); got != want {
			t.Fatalf("BlocksFor(%d) = %d, want %d", size, got, want)
		}
	}
}
