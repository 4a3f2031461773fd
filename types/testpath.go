package types

import (
	"encoding/json"
	"slices"
	"strings"
)

// TestPath identifies a test or a suite: a file plus the ordered names of the
// suites (and the test) leading to it. A suite path with an empty Path is the
// root suite of its file.
type TestPath struct {
	File string   `json:"file"`
	Path []string `json:"path"`
}

// NewTestPath returns a TestPath for the given file and segments.
func NewTestPath(file string, segments ...string) TestPath {
	return TestPath{File: file, Path: slices.Clone(segments)}
}

// Key returns the canonical encoding of the path. Structurally equal paths
// always produce the same key, so keys can be used in maps and sets.
func (p TestPath) Key() string {
	segments := p.Path
	if segments == nil {
		segments = []string{}
	}
	// A JSON array of strings cannot fail to encode.
	b, _ := json.Marshal(append([]string{p.File}, segments...))
	return string(b)
}

// Equal reports whether both paths name the same test or suite.
func (p TestPath) Equal(other TestPath) bool {
	return p.File == other.File && slices.Equal(p.Path, other.Path)
}

// SuitePath returns the path of the enclosing suite. The root of a file has
// no enclosing suite, in which case ok is false.
func (p TestPath) SuitePath() (suite TestPath, ok bool) {
	if len(p.Path) == 0 {
		return TestPath{}, false
	}
	return TestPath{File: p.File, Path: slices.Clone(p.Path[:len(p.Path)-1])}, true
}

// Contains reports whether other lies under p, that is, both are in the same
// file and p's segments are a prefix of other's. A path contains itself.
func (p TestPath) Contains(other TestPath) bool {
	if p.File != other.File || len(p.Path) > len(other.Path) {
		return false
	}
	return slices.Equal(p.Path, other.Path[:len(p.Path)])
}

// Name returns the last segment, or the file name for a file root.
func (p TestPath) Name() string {
	if len(p.Path) == 0 {
		return p.File
	}
	return p.Path[len(p.Path)-1]
}

func (p TestPath) String() string {
	if len(p.Path) == 0 {
		return p.File
	}
	return p.File + ": " + strings.Join(p.Path, " > ")
}
