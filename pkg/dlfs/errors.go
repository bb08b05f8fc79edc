package dlfs

import (
	"errors"
	"fmt"
)

// Code classifies a filesystem error. The numeric values are part of the wire
// protocol and must not be renumbered.
type Code uint32

const (
	CodeInternal         Code = 1
	CodeInvalidArgument  Code = 2
	CodeNotFound         Code = 3
	CodeAlreadyExists    Code = 4
	CodeNotDirectory     Code = 5
	CodeIsDirectory      Code = 6
	CodeNotEmpty         Code = 7
	CodeIO               Code = 8
	CodeUnimplemented    Code = 9
	CodeClosed           Code = 10
	CodeInitFailed       Code = 11
	CodeUnavailable      Code = 12
	CodePermissionDenied Code = 13
)

var codeNames = map[Code]string{
	CodeInternal:         "internal",
	CodeInvalidArgument:  "invalid argument",
	CodeNotFound:         "not found",
	CodeAlreadyExists:    "already exists",
	CodeNotDirectory:     "not a directory",
	CodeIsDirectory:      "is a directory",
	CodeNotEmpty:         "directory not empty",
	CodeIO:               "i/o error",
	CodeUnimplemented:    "unimplemented",
	CodeClosed:           "handle closed",
	CodeInitFailed:       "init failed",
	CodeUnavailable:      "unavailable",
	CodePermissionDenied: "permission denied",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", uint32(c))
}

// Error is the structured error returned by every fallible operation.
type Error struct {
	Code    Code
	Message string
	Op      string
	Path    string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = e.Code.String()
	}
	prefix := "dlfs"
	if e.Op != "" {
		prefix += ": " + e.Op
	}
	if e.Path != "" {
		prefix += " " + e.Path
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error carrying the same code, so callers can compare
// against the sentinels below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrInternal        = &Error{Code: CodeInternal}
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument}
	// ErrNotFound indicates the entry or one of its parents is missing.
	ErrNotFound      = &Error{Code: CodeNotFound}
	ErrAlreadyExists = &Error{Code: CodeAlreadyExists}
	ErrNotDirectory  = &Error{Code: CodeNotDirectory}
	ErrIsDirectory   = &Error{Code: CodeIsDirectory}
	ErrNotEmpty      = &Error{Code: CodeNotEmpty}
	ErrIO            = &Error{Code: CodeIO}
	// ErrUnimplemented indicates the backend does not support the operation.
	ErrUnimplemented = &Error{Code: CodeUnimplemented}
	// ErrClosed is returned by every operation on a released handle.
	ErrClosed      = &Error{Code: CodeClosed}
	ErrInitFailed  = &Error{Code: CodeInitFailed}
	ErrUnavailable = &Error{Code: CodeUnavailable}
	// ErrPermissionDenied indicates the service rejected the credentials.
	ErrPermissionDenied = &Error{Code: CodePermissionDenied}
)

// NewError builds an *Error for op on path.
func NewError(code Code, op, path, message string) *Error {
	return &Error{Code: code, Op: op, Path: path, Message: message}
}

// WrapError attaches op/path context to err. An *Error keeps its code; any
// other error is classified as CodeInternal.
func WrapError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var fsErr *Error
	if errors.As(err, &fsErr) {
		out := *fsErr
		if out.Op == "" {
			out.Op = op
		}
		if out.Path == "" {
			out.Path = path
		}
		return &out
	}
	return &Error{Code: CodeInternal, Op: op, Path: path, Err: err}
}

// CodeOf extracts the code of err, or CodeInternal when err is not an *Error.
// It returns 0 for a nil error.
func CodeOf(err error) Code {
	if err == nil {
		return 0
	}
	var fsErr *Error
	if errors.As(err, &fsErr) {
		return fsErr.Code
	}
	return CodeInternal
}
