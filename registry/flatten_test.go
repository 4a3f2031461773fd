package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

func dur(d time.Duration) *time.Duration { return &d }

func suite(name string, contents ...*types.SuiteNode) *types.SuiteNode {
	return &types.SuiteNode{Type: types.NodeSuite, Name: name, Contents: contents}
}

func test(name string) *types.SuiteNode {
	return &types.SuiteNode{Type: types.NodeTest, Name: name}
}

func TestFlatten_Order(t *testing.T) {
	trees := []*types.SuiteNode{
		suite("",
			test("a"),
			suite("s", test("b"), suite("t", test("c")), test("d")),
			test("e"),
		),
		suite("", test("f")),
	}
	tests := Flatten([]string{"one", "two"}, trees, types.DefaultRegisterOptions())

	assert.Equal(t, []types.TestPath{
		types.NewTestPath("one", "a"),
		types.NewTestPath("one", "s", "b"),
		types.NewTestPath("one", "s", "t", "c"),
		types.NewTestPath("one", "s", "d"),
		types.NewTestPath("one", "e"),
		types.NewTestPath("two", "f"),
	}, types.Paths(tests))
}

func TestFlatten_Inheritance(t *testing.T) {
	skipped := suite("skipped", test("x"))
	skipped.Skipped = true

	unstable := test("flaky")
	unstable.Unstable = true

	timed := suite("timed", test("inherits"), test("disabled"), test("own"))
	timed.Timeout = dur(5 * time.Second)
	timed.Slow = dur(time.Second)
	timed.Attributes = map[string]any{"owner": "infra", "tier": "1"}
	timed.Contents[1].Timeout = dur(0)
	timed.Contents[2].Timeout = dur(time.Minute)
	timed.Contents[2].Attributes = map[string]any{"tier": "2"}

	opts := types.DefaultRegisterOptions()
	tests := Flatten([]string{"f"}, []*types.SuiteNode{suite("", skipped, unstable, timed)}, opts)
	require.Len(t, tests, 5)

	assert.True(t, tests[0].Skipped)
	assert.Equal(t, opts.Timeout, tests[0].Timeout)
	assert.Equal(t, opts.SlowThreshold, tests[0].SlowThreshold)

	assert.True(t, tests[1].Unstable)
	assert.False(t, tests[1].Skipped)

	assert.Equal(t, 5*time.Second, tests[2].Timeout)
	assert.Equal(t, time.Second, tests[2].SlowThreshold)
	assert.Equal(t, map[string]any{"owner": "infra", "tier": "1"}, tests[2].Attributes)

	assert.Equal(t, time.Duration(0), tests[3].Timeout)

	assert.Equal(t, time.Minute, tests[4].Timeout)
	assert.Equal(t, map[string]any{"owner": "infra", "tier": "2"}, tests[4].Attributes)
	// The parent's map is not modified by the child's override.
	assert.Equal(t, "1", timed.Attributes["tier"])
}

func TestFlatten_Only(t *testing.T) {
	focused := suite("focused", test("a"), test("b"))
	focused.Only = true
	single := test("d")
	single.Only = true

	trees := []*types.SuiteNode{
		suite("", focused, test("c")),
		suite("", suite("nested", single, test("e"))),
		suite("", test("g")),
	}
	tests := Flatten([]string{"one", "two", "three"}, trees, types.DefaultRegisterOptions())

	assert.Equal(t, []types.TestPath{
		types.NewTestPath("one", "focused", "a"),
		types.NewTestPath("one", "focused", "b"),
		types.NewTestPath("two", "nested", "d"),
	}, types.Paths(tests))
}

func TestFlatten_Empty(t *testing.T) {
	assert.Empty(t, Flatten(nil, nil, types.DefaultRegisterOptions()))
	assert.Empty(t, Flatten([]string{"f"}, []*types.SuiteNode{suite("")}, types.DefaultRegisterOptions()))
}
