package types

import "time"

// NodeType tells suites and tests apart in a suite tree.
type NodeType string

const (
	NodeSuite NodeType = "suite"
	NodeTest  NodeType = "test"
)

// SuiteNode is one node of the tree an interface executable prints in listing
// mode. Timeout and Slow are nil when inherited from the enclosing suite; a
// zero Timeout disables the timeout.
type SuiteNode struct {
	Type       NodeType       `json:"type"`
	Name       string         `json:"name,omitempty"`
	Skipped    bool           `json:"skipped,omitempty"`
	Only       bool           `json:"only,omitempty"`
	Unstable   bool           `json:"unstable,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Timeout    *time.Duration `json:"timeout,omitempty"`
	Slow       *time.Duration `json:"slow,omitempty"`
	Contents   []*SuiteNode   `json:"contents,omitempty"`
	Before     []string       `json:"before,omitempty"`
	After      []string       `json:"after,omitempty"`
}

// TestInfo is a runnable test with every inherited setting resolved.
type TestInfo struct {
	Path          TestPath
	Skipped       bool
	Unstable      bool
	Attributes    map[string]any
	Timeout       time.Duration
	SlowThreshold time.Duration
}

// Paths returns the paths of tests in order.
func Paths(tests []TestInfo) []TestPath {
	paths := make([]TestPath, 0, len(tests))
	for _, test := range tests {
		paths = append(paths, test.Path)
	}
	return paths
}
