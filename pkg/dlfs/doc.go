// Package dlfs is the client handle for a DatenLord filesystem namespace.
//
// A Client wraps a Backend: the HTTP backend returned by New talks to a
// filesystem service over the JSON protocol served by cmd/datenlord-sandbox,
// while NewWithBackend accepts any implementation (the in-memory mock, a local
// directory, an SQLite database). Paths are absolute, slash separated and
// normalised with CleanPath before reaching the backend.
//
// Every fallible call returns an *Error whose Code classifies the failure:
//
//	if errors.Is(err, dlfs.ErrNotFound) { ... }
package dlfs
