package catalog

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_AllTypesHaveExamples(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	types := c.Types()
	require.Len(t, types, 11)
	for _, tp := range types {
		ex, ok := c.ForType(tp)
		require.True(t, ok, tp)
		assert.NotEmpty(t, strings.TrimSpace(ex.Prompt), tp)
		assert.NotEmpty(t, strings.TrimSpace(ex.Example), tp)
		assert.Equal(t, tp, ex.Type)
	}
}

func TestDefault_DeclarationOrder(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"xychart-beta", "gantt", "sequenceDiagram", "erDiagram", "mindmap", "flowchart",
		"classDiagram", "gitGraph", "journey", "pie", "stateDiagram",
	}, c.Types())
}

func TestDefault_ExamplesStartWithKeyword(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	for _, ex := range c.All() {
		assert.True(t, strings.HasPrefix(ex.Example, ex.Type), "%s example starts with %q", ex.Type, ex.Example[:12])
	}
	flow, _ := c.ForType("flowchart")
	assert.Contains(t, flow.Example, "\n    A[Christmas]")
}

func TestForType_Unknown(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	ex, ok := c.ForType("quadrantChart")
	assert.False(t, ok)
	assert.Equal(t, DiagramExample{}, ex)
}

func TestMap_MatchesTypes(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	m := c.Map()
	assert.Len(t, m, len(c.Types()))
	for _, tp := range c.Types() {
		assert.Contains(t, m, tp)
	}
}

func TestAll_ReturnsCopy(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	all := c.All()
	all[0].Prompt = "mutated"
	again, _ := c.ForType(all[0].Type)
	assert.NotEqual(t, "mutated", again.Prompt)
}

func TestDetectType(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Create a flowchart for login", "flowchart", true},
		{"draw a GANTT plan", "gantt", true},
		{"sequencediagram of checkout", "sequenceDiagram", true},
		// first match in declaration order wins
		{"a pie chart next to a flowchart", "flowchart", true},
		{"explain photosynthesis", "", false},
	}
	for _, tt := range tests {
		got, ok := c.DetectType(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("not: [a list"))
	assert.Error(t, err)

	_, err = Parse([]byte("[]"))
	assert.Error(t, err)

	_, err = Parse([]byte("- type: pie\n  prompt: p\n"))
	assert.ErrorContains(t, err, "incomplete")

	dup := "- {type: pie, prompt: p, example: pie}\n- {type: pie, prompt: q, example: pie}\n"
	_, err = Parse([]byte(dup))
	assert.ErrorContains(t, err, "duplicate")
}

func TestDefault_ConcurrentReaders(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := Default()
			if err != nil {
				t.Error(err)
				return
			}
			_, _ = c.DetectType("a mindmap")
			_ = c.All()
		}()
	}
	wg.Wait()
}
