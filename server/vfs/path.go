package vfs

import (
	"fmt"
	"strings"
)

// Path is an immutable logical resource path: an ordered sequence of
// non-empty segments plus a file/directory marker. The root directory is
// the empty segment sequence.
type Path struct {
	segments []string
	isDir    bool
}

// Root is the root directory path.
var Root = Path{isDir: true}

// ParsePath builds a Path from a slash-delimited string. Empty segments
// are dropped; a trailing slash (or the bare root) marks a directory.
func ParsePath(raw string) Path {
	isDir := raw == "" || strings.HasSuffix(raw, "/")
	var segments []string
	for _, seg := range strings.Split(raw, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) == 0 {
		return Root
	}
	return Path{segments: segments, isDir: isDir}
}

// NewDir builds a directory path from segments.
func NewDir(segments ...string) Path {
	return Path{segments: append([]string(nil), segments...), isDir: true}
}

// NewFile builds a file path from segments. At least one segment is
// required; the root cannot be a file.
func NewFile(segments ...string) (Path, error) {
	if len(segments) == 0 {
		return Path{}, fmt.Errorf("a file path needs at least one segment")
	}
	return Path{segments: append([]string(nil), segments...)}, nil
}

// IsDir reports whether the path names a directory.
func (p Path) IsDir() bool { return p.isDir }

// IsRoot reports whether the path is the root directory.
func (p Path) IsRoot() bool { return len(p.segments) == 0 }

// Segments returns a copy of the path's segments.
func (p Path) Segments() []string {
	return append([]string(nil), p.segments...)
}

// String renders the canonical form: directories carry a trailing slash,
// files do not, and the root is "/".
func (p Path) String() string {
	if p.IsRoot() {
		return "/"
	}
	s := "/" + strings.Join(p.segments, "/")
	if p.isDir {
		s += "/"
	}
	return s
}

// Parent returns the containing directory; the parent of the root is the
// root itself.
func (p Path) Parent() Path {
	if p.IsRoot() {
		return Root
	}
	return Path{segments: p.segments[:len(p.segments)-1], isDir: true}
}

// Basename returns the final segment. It fails on the root directory,
// which has no name.
func (p Path) Basename() (string, error) {
	if p.IsRoot() {
		return "", fmt.Errorf("root directory has no basename")
	}
	return p.segments[len(p.segments)-1], nil
}

// Child returns a file path for the named entry in directory p.
func (p Path) Child(name string) Path {
	return Path{segments: append(p.Segments(), name)}
}

// ChildDir returns a directory path for the named entry in directory p.
func (p Path) ChildDir(name string) Path {
	return Path{segments: append(p.Segments(), name), isDir: true}
}

// AsDir returns the same path marked as a directory.
func (p Path) AsDir() Path {
	return Path{segments: p.segments, isDir: true}
}

// AsFile returns the same path marked as a file; it fails on the root.
func (p Path) AsFile() (Path, error) {
	if p.IsRoot() {
		return Path{}, fmt.Errorf("the root cannot be a file")
	}
	return Path{segments: p.segments}, nil
}

// Equal reports structural equality over the segment sequence and the
// file/directory marker.
func (p Path) Equal(other Path) bool {
	if p.isDir != other.isDir || len(p.segments) != len(other.segments) {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

// Key returns the flat backend key for the path (no slashes at either
// end; the root is "").
func (p Path) Key() string {
	return strings.Join(p.segments, "/")
}

// SidecarKey returns the backend key of the path's property sidecar: the
// resource's own last segment with the sidecar suffix appended.
func (p Path) SidecarKey() string {
	if p.IsRoot() {
		return SidecarSuffix
	}
	return p.Key() + SidecarSuffix
}
