// Package pubpath maps user-supplied relative paths to safe filesystem
// paths under a single public content root. Every path that reaches the
// filesystem on behalf of a page or directive goes through Resolve, which
// rejects anything that could escape the root.
package pubpath

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IllegalPathError reports a user-supplied path that was rejected before
// touching the filesystem.
type IllegalPathError struct {
	Path string
}

func (e *IllegalPathError) Error() string {
	return fmt.Sprintf("illegal resource: %q", e.Path)
}

// Path is a validated filesystem location under a content root.
type Path struct {
	rel string
	abs string
}

// Resolve validates rel against root and returns the resulting Path.
// The input must be relative, non-empty after cleaning, and must not
// contain any parent-directory components.
func Resolve(root, rel string) (Path, error) {
	if rel == "" || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, "\\") {
		return Path{}, &IllegalPathError{Path: rel}
	}
	cleaned := path.Clean(rel)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return Path{}, &IllegalPathError{Path: rel}
	}
	// Clean above is slash-oriented; a backslash component could still
	// smuggle traversal on Windows hosts.
	if strings.Contains(cleaned, "\\") {
		return Path{}, &IllegalPathError{Path: rel}
	}
	return Path{
		rel: cleaned,
		abs: filepath.Join(root, filepath.FromSlash(cleaned)),
	}, nil
}

// Rel returns the cleaned root-relative form of the path.
func (p Path) Rel() string { return p.rel }

// String returns the absolute filesystem form of the path.
func (p Path) String() string { return p.abs }

// Ext returns the file extension without the leading dot, or "" if the
// path has none.
func (p Path) Ext() string {
	ext := path.Ext(p.rel)
	return strings.TrimPrefix(ext, ".")
}

// Exists reports whether the path currently refers to a regular file.
func (p Path) Exists() bool {
	info, err := os.Stat(p.abs)
	return err == nil && info.Mode().IsRegular()
}
