package registry

import (
	"maps"
	"slices"
	"time"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

// inherited carries the settings a node passes down to its contents.
type inherited struct {
	path       []string
	skipped    bool
	unstable   bool
	only       bool
	attributes map[string]any
	timeout    time.Duration
	slow       time.Duration
}

func (in inherited) apply(n *types.SuiteNode) inherited {
	out := in
	out.skipped = in.skipped || n.Skipped
	out.unstable = in.unstable || n.Unstable
	out.only = in.only || n.Only
	if n.Timeout != nil {
		out.timeout = *n.Timeout
	}
	if n.Slow != nil {
		out.slow = *n.Slow
	}
	if len(n.Attributes) > 0 {
		attrs := make(map[string]any, len(in.attributes)+len(n.Attributes))
		maps.Copy(attrs, in.attributes)
		maps.Copy(attrs, n.Attributes)
		out.attributes = attrs
	}
	return out
}

type frame struct {
	node *types.SuiteNode
	in   inherited
}

// Flatten turns the suite trees of files into the ordered list of runnable
// tests. trees[i] is the tree of files[i]. If any node in any tree is
// marked only, tests outside of an only node are dropped.
func Flatten(files []string, trees []*types.SuiteNode, opts types.RegisterOptions) []types.TestInfo {
	restrict := slices.ContainsFunc(trees, hasOnly)

	var tests []types.TestInfo
	for i, tree := range trees {
		if tree == nil {
			continue
		}
		root := inherited{timeout: opts.Timeout, slow: opts.SlowThreshold}.apply(tree)
		stack := pushContents(nil, tree, root)
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			in := f.in.apply(f.node)
			in.path = append(slices.Clone(f.in.path), f.node.Name)

			if f.node.Type == types.NodeSuite {
				stack = pushContents(stack, f.node, in)
				continue
			}
			if restrict && !in.only {
				continue
			}
			tests = append(tests, types.TestInfo{
				Path:          types.NewTestPath(files[i], in.path...),
				Skipped:       in.skipped,
				Unstable:      in.unstable,
				Attributes:    in.attributes,
				Timeout:       in.timeout,
				SlowThreshold: in.slow,
			})
		}
	}
	return tests
}

// pushContents pushes the contents of n in reverse so they pop in order.
func pushContents(stack []frame, n *types.SuiteNode, in inherited) []frame {
	for i := len(n.Contents) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: n.Contents[i], in: in})
	}
	return stack
}

func hasOnly(tree *types.SuiteNode) bool {
	if tree == nil {
		return false
	}
	stack := []*types.SuiteNode{tree}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Only {
			return true
		}
		stack = append(stack, n.Contents...)
	}
	return false
}
