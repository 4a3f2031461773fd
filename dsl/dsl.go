// Package dsl declares BDD-style suites for an interface executable.
//
//	var files = dsl.Files{
//		"arith": func(s *dsl.Suite) {
//			s.Describe("add", func(s *dsl.Suite) {
//				s.It("adds two numbers", func(t *dsl.T) error {
//					if 1+1 != 2 {
//						return errors.New("math is broken")
//					}
//					return nil
//				})
//			})
//		},
//	}
//
// Suite bodies run every time a file is loaded, in listing mode as well as
// in run mode. Test bodies and hooks only run in run mode.
package dsl

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

type (
	TestFunc      func(t *T) error
	AsyncTestFunc func(t *T, done func(error))
	HookFunc      func(t *T) error
)

// Files maps test file names to the bodies declaring their root suites.
type Files map[string]func(s *Suite)

// Names returns the declared file names, sorted.
func (f Files) Names() []string {
	return slices.Sorted(maps.Keys(f))
}

// Load builds the suite tree of file.
func (f Files) Load(file string) (root *Suite, err error) {
	body, ok := f[file]
	if !ok {
		return nil, fmt.Errorf("unknown test file %q", file)
	}
	defer func() {
		if r := recover(); r != nil {
			root, err = nil, fmt.Errorf("failed to load %s: %v", file, r)
		}
	}()
	root = &Suite{}
	body(root)
	if err := root.validate(); err != nil {
		return nil, fmt.Errorf("invalid suite in %s: %w", file, err)
	}
	return root, nil
}

type options struct {
	skipped    bool
	only       bool
	unstable   bool
	attributes map[string]any
	timeout    *time.Duration
	slow       *time.Duration
}

func (o *options) apply(n *types.SuiteNode) {
	n.Skipped = o.skipped
	n.Only = o.only
	n.Unstable = o.unstable
	n.Attributes = o.attributes
	n.Timeout = o.timeout
	n.Slow = o.slow
}

// Hook runs before or after each test of its suite.
type Hook struct {
	Name string
	Fn   HookFunc
}

// Suite groups tests and hooks.
type Suite struct {
	name string
	options
	before   []*Hook
	after    []*Hook
	children []any // *Suite or *Test, in declaration order
}

func (s *Suite) Name() string { return s.name }

// Describe declares a nested suite and runs body to populate it.
func (s *Suite) Describe(name string, body func(s *Suite)) *Suite {
	child := &Suite{name: name}
	s.children = append(s.children, child)
	body(child)
	return child
}

// It declares a test that ends when fn returns.
func (s *Suite) It(name string, fn TestFunc) *Test {
	test := &Test{name: name, fn: fn}
	s.children = append(s.children, test)
	return test
}

// ItAsync declares a test that ends when it calls done.
func (s *Suite) ItAsync(name string, fn AsyncTestFunc) *Test {
	test := &Test{name: name, async: fn}
	s.children = append(s.children, test)
	return test
}

// Before adds a hook run before each test in the suite and its descendants.
func (s *Suite) Before(name string, fn HookFunc) {
	s.before = append(s.before, &Hook{Name: name, Fn: fn})
}

// After adds a hook run after each test in the suite and its descendants,
// even when the test failed or was interrupted.
func (s *Suite) After(name string, fn HookFunc) {
	s.after = append(s.after, &Hook{Name: name, Fn: fn})
}

func (s *Suite) Skip() *Suite     { s.skipped = true; return s }
func (s *Suite) Only() *Suite     { s.only = true; return s }
func (s *Suite) Unstable() *Suite { s.unstable = true; return s }

// Timeout overrides the timeout of every test in the suite. Zero disables it.
func (s *Suite) Timeout(d time.Duration) *Suite { s.timeout = &d; return s }
func (s *Suite) Slow(d time.Duration) *Suite    { s.slow = &d; return s }

func (s *Suite) Attributes(attrs map[string]any) *Suite {
	s.attributes = attrs
	return s
}

func (s *Suite) BeforeHooks() []*Hook { return s.before }
func (s *Suite) AfterHooks() []*Hook  { return s.after }

// Node converts the suite into its listing form.
func (s *Suite) Node() *types.SuiteNode {
	n := &types.SuiteNode{Type: types.NodeSuite, Name: s.name}
	s.apply(n)
	for _, h := range s.before {
		n.Before = append(n.Before, h.Name)
	}
	for _, h := range s.after {
		n.After = append(n.After, h.Name)
	}
	for _, c := range s.children {
		switch c := c.(type) {
		case *Suite:
			n.Contents = append(n.Contents, c.Node())
		case *Test:
			tn := &types.SuiteNode{Type: types.NodeTest, Name: c.name}
			c.apply(tn)
			n.Contents = append(n.Contents, tn)
		}
	}
	return n
}

// Lookup finds the test at path. It also returns the suites enclosing the
// test, from s down to the innermost one.
func (s *Suite) Lookup(path []string) (*Test, []*Suite, error) {
	if len(path) == 0 {
		return nil, nil, fmt.Errorf("empty test path")
	}
	suites := []*Suite{s}
	current := s
	for i, name := range path {
		last := i == len(path)-1
		var found any
		for _, c := range current.children {
			switch c := c.(type) {
			case *Suite:
				if !last && c.name == name {
					found = c
				}
			case *Test:
				if last && c.name == name {
					found = c
				}
			}
			if found != nil {
				break
			}
		}
		switch f := found.(type) {
		case *Suite:
			suites = append(suites, f)
			current = f
		case *Test:
			return f, suites, nil
		default:
			return nil, nil, fmt.Errorf("no test at %v", path)
		}
	}
	return nil, nil, fmt.Errorf("no test at %v", path)
}

func (s *Suite) validate() error {
	seen := make(map[string]bool)
	for _, c := range s.children {
		var name string
		switch c := c.(type) {
		case *Suite:
			name = c.name
			if err := c.validate(); err != nil {
				return err
			}
		case *Test:
			name = c.name
		}
		if seen[name] {
			return fmt.Errorf("duplicate name %q in suite %q", name, s.name)
		}
		seen[name] = true
	}
	return nil
}

// Test is a single test case.
type Test struct {
	name string
	options
	fn    TestFunc
	async AsyncTestFunc
}

func (tc *Test) Name() string { return tc.name }

func (tc *Test) Skip() *Test                            { tc.skipped = true; return tc }
func (tc *Test) Only() *Test                            { tc.only = true; return tc }
func (tc *Test) Unstable() *Test                        { tc.unstable = true; return tc }
func (tc *Test) Timeout(d time.Duration) *Test          { tc.timeout = &d; return tc }
func (tc *Test) Slow(d time.Duration) *Test             { tc.slow = &d; return tc }
func (tc *Test) Attributes(attrs map[string]any) *Test { tc.attributes = attrs; return tc }

// Start runs the test body. done is called with its outcome; for
// asynchronous tests the body decides when, and how often, done is called.
func (tc *Test) Start(t *T, done func(error)) {
	if tc.async != nil {
		tc.async(t, done)
		return
	}
	done(tc.fn(t))
}
