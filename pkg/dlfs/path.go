package dlfs

import (
	"path"
	"strings"
)

// Root is the namespace root.
const Root = "/"

// CleanPath normalises a caller-supplied path into its canonical absolute
// form. Relative paths resolve against Root, trailing slashes are dropped and
// ".." never climbs above Root.
func CleanPath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", &Error{Code: CodeInvalidArgument, Message: "path is required"}
	}
	if strings.IndexByte(p, 0) >= 0 {
		return "", &Error{Code: CodeInvalidArgument, Message: "path contains NUL byte", Path: p}
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p), nil
}

// Split returns the parent directory and final element of a cleaned path.
// Split("/") returns ("/", "").
func Split(p string) (parent, name string) {
	if p == Root {
		return Root, ""
	}
	parent, name = path.Split(p)
	if parent != Root {
		parent = strings.TrimSuffix(parent, "/")
	}
	return parent, name
}

// Join appends name to the cleaned directory dir.
func Join(dir, name string) string {
	return path.Join(dir, name)
}

// IsWithin reports whether p equals dir or lies beneath it. Both arguments
// must be cleaned.
func IsWithin(p, dir string) bool {
	if dir == Root {
		return true
	}
	return p == dir || strings.HasPrefix(p, dir+"/")
}
