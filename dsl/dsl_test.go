package dsl

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

func sampleFiles() Files {
	return Files{
		"arith": func(s *Suite) {
			s.Before("connect", func(t *T) error { return nil })
			s.Describe("add", func(s *Suite) {
				s.After("cleanup", func(t *T) error { return nil })
				s.It("adds", func(t *T) error { return nil })
				s.It("overflows", func(t *T) error { return errors.New("overflow") }).Skip()
			}).Timeout(5 * time.Second)
			s.ItAsync("async", func(t *T, done func(error)) { done(nil) }).Attributes(map[string]any{"k": "v"})
		},
		"broken": func(s *Suite) {
			panic("syntax error")
		},
		"dup": func(s *Suite) {
			s.It("a", func(t *T) error { return nil })
			s.It("a", func(t *T) error { return nil })
		},
	}
}

func TestFiles_Load(t *testing.T) {
	files := sampleFiles()
	assert.Equal(t, []string{"arith", "broken", "dup"}, files.Names())

	_, err := files.Load("missing")
	assert.Error(t, err)

	_, err = files.Load("broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")

	_, err = files.Load("dup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestSuite_Node(t *testing.T) {
	root, err := sampleFiles().Load("arith")
	require.NoError(t, err)

	n := root.Node()
	assert.Equal(t, types.NodeSuite, n.Type)
	assert.Equal(t, []string{"connect"}, n.Before)
	require.Len(t, n.Contents, 2)

	add := n.Contents[0]
	assert.Equal(t, "add", add.Name)
	require.NotNil(t, add.Timeout)
	assert.Equal(t, 5*time.Second, *add.Timeout)
	assert.Equal(t, []string{"cleanup"}, add.After)
	require.Len(t, add.Contents, 2)
	assert.Equal(t, types.NodeTest, add.Contents[1].Type)
	assert.True(t, add.Contents[1].Skipped)

	async := n.Contents[1]
	assert.Equal(t, map[string]any{"k": "v"}, async.Attributes)
}

func TestSuite_Lookup(t *testing.T) {
	root, err := sampleFiles().Load("arith")
	require.NoError(t, err)

	test, suites, err := root.Lookup([]string{"add", "adds"})
	require.NoError(t, err)
	assert.Equal(t, "adds", test.Name())
	require.Len(t, suites, 2)
	assert.Len(t, suites[0].BeforeHooks(), 1)
	assert.Len(t, suites[1].AfterHooks(), 1)

	_, _, err = root.Lookup([]string{"add"})
	assert.Error(t, err)
	_, _, err = root.Lookup([]string{"nope", "adds"})
	assert.Error(t, err)
	_, _, err = root.Lookup(nil)
	assert.Error(t, err)
}

type chanRecorder struct {
	msgs []types.Message
}

func (c *chanRecorder) Send(m types.Message) error {
	c.msgs = append(c.msgs, m)
	return nil
}

func TestT_SendsMessages(t *testing.T) {
	ch := &chanRecorder{}
	tt := NewT(Env{Channel: ch, Parameter: []byte(`{"env":"ci"}`)})

	tt.Breadcrumb("step 1")
	tt.SetTimeout(time.Second)
	tt.SetSlowThreshold(time.Millisecond)
	require.NoError(t, tt.DebugInfo(map[string]int{"n": 1}))

	require.Len(t, ch.msgs, 4)
	assert.Equal(t, types.Breadcrumb("step 1"), ch.msgs[0])
	assert.Equal(t, time.Second, ch.msgs[1].Timeout)
	assert.Equal(t, time.Second, tt.Timeout())
	assert.Equal(t, types.MessageSetSlowThreshold, ch.msgs[2].Type)
	assert.JSONEq(t, `{"n":1}`, string(ch.msgs[3].DebugInfo))

	var param struct{ Env string }
	require.NoError(t, tt.Parameter(&param))
	assert.Equal(t, "ci", param.Env)
}
