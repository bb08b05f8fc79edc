// Package devseed loads JSON seed files used to pre-populate sandbox
// backends.
package devseed

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/datenlord/datenlord_sdk_go/pkg/dlfs"
)

// Entry is a single namespace entry of a seed file. Files carry their body
// either as Base64 or as plain Text.
type Entry struct {
	Path   string `json:"path"`
	Dir    bool   `json:"dir,omitempty"`
	Base64 string `json:"base64,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Data returns the decoded file body.
func (e Entry) Data() ([]byte, error) {
	if e.Base64 != "" {
		data, err := base64.StdEncoding.DecodeString(e.Base64)
		if err != nil {
			return nil, fmt.Errorf("devseed: decode %s: %w", e.Path, err)
		}
		return data, nil
	}
	return []byte(e.Text), nil
}

// Load reads the seed file at path.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a seed document and validates every entry.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("devseed: decode: %w", err)
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Path) == "" {
			return nil, fmt.Errorf("devseed: entry %d missing path", i)
		}
		if e.Dir && (e.Base64 != "" || e.Text != "") {
			return nil, fmt.Errorf("devseed: directory %s cannot carry data", e.Path)
		}
	}
	return entries, nil
}

// Apply writes entries into b. Missing parent directories are created and
// entries that already exist are overwritten (files) or kept (directories).
func Apply(ctx context.Context, b dlfs.Backend, entries []Entry) error {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return depth(sorted[i].Path) < depth(sorted[j].Path)
	})

	for _, e := range sorted {
		p, err := dlfs.CleanPath(e.Path)
		if err != nil {
			return fmt.Errorf("devseed: %w", err)
		}
		parent, _ := dlfs.Split(p)
		if err := mkdirAll(ctx, b, parent); err != nil {
			return err
		}
		if e.Dir {
			if err := mkdirAll(ctx, b, p); err != nil {
				return err
			}
			continue
		}
		data, err := e.Data()
		if err != nil {
			return err
		}
		if err := b.WriteFile(ctx, p, data); err != nil {
			return fmt.Errorf("devseed: write %s: %w", p, err)
		}
	}
	return nil
}

func mkdirAll(ctx context.Context, b dlfs.Backend, p string) error {
	if p == dlfs.Root {
		return nil
	}
	parent, _ := dlfs.Split(p)
	if err := mkdirAll(ctx, b, parent); err != nil {
		return err
	}
	err := b.Mkdir(ctx, p)
	if err == nil || errors.Is(err, dlfs.ErrAlreadyExists) {
		return nil
	}
	return fmt.Errorf("devseed: mkdir %s: %w", p, err)
}

func depth(p string) int {
	return strings.Count(strings.Trim(p, "/"), "/")
}
