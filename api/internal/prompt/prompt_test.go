package prompt

import (
	"strings"
	"testing"

	"ai-whiteboard/api/internal/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return c
}

func TestDiagram_Deterministic(t *testing.T) {
	cat := defaultCatalog(t)
	for _, mode := range []ExampleMode{ExamplesAll, ExamplesMatched, ExamplesNone} {
		c := NewComposer(cat, mode)
		a := c.Diagram("Create a flowchart for login")
		b := c.Diagram("Create a flowchart for login")
		assert.Equal(t, a.String(), b.String(), mode)
	}
}

func TestDiagram_Sections(t *testing.T) {
	c := NewComposer(defaultCatalog(t), ExamplesMatched)
	p := c.Diagram("Create a flowchart for login").String()

	rubric := strings.Index(p, "Supported diagram types: xychart-beta, gantt")
	example := strings.Index(p, "### flowchart")
	directive := strings.Index(p, `{"mermaid_syntax": "<Mermaid markup>"}`)
	request := strings.Index(p, "user input: Create a flowchart for login")

	require.True(t, rubric >= 0 && example >= 0 && directive >= 0 && request >= 0, p)
	assert.Less(t, rubric, example)
	assert.Less(t, example, directive)
	assert.Less(t, directive, request)
	assert.True(t, strings.HasSuffix(p, "user input: Create a flowchart for login"))
}

func TestDiagram_ExampleModes(t *testing.T) {
	cat := defaultCatalog(t)

	all := NewComposer(cat, ExamplesAll).Diagram("anything").System
	for _, tp := range cat.Types() {
		assert.Contains(t, all, "### "+tp)
	}

	matched := NewComposer(cat, ExamplesMatched).Diagram("a gantt for the release").System
	assert.Contains(t, matched, "### gantt")
	assert.NotContains(t, matched, "### flowchart")

	unmatched := NewComposer(cat, ExamplesMatched).Diagram("something vague").System
	assert.NotContains(t, unmatched, "Reference examples")

	none := NewComposer(cat, ExamplesNone).Diagram("a gantt for the release").System
	assert.NotContains(t, none, "###")
}

func TestDiagramFor_ExplicitType(t *testing.T) {
	c := NewComposer(defaultCatalog(t), ExamplesMatched)
	p := c.DiagramFor("shopping", "pie")
	assert.Contains(t, p.System, "### pie")
	assert.Equal(t, "user input: shopping", p.User)
}

func TestParseExampleMode(t *testing.T) {
	m, err := ParseExampleMode("ALL")
	require.NoError(t, err)
	assert.Equal(t, ExamplesAll, m)

	m, err = ParseExampleMode("")
	require.NoError(t, err)
	assert.Equal(t, ExamplesMatched, m)

	_, err = ParseExampleMode("some")
	assert.Error(t, err)

	assert.Equal(t, ExamplesNone, NewComposer(defaultCatalog(t), ExamplesNone).Mode())
}

func TestCalculate_StableVars(t *testing.T) {
	vars := map[string]string{"y": "2", "x": "3", "z\"": "q"}
	a := Calculate(vars)
	b := Calculate(map[string]string{"x": "3", "z\"": "q", "y": "2"})
	assert.Equal(t, a.String(), b.String())
	assert.Contains(t, a.System, `{"x": "3", "y": "2", "z\"": "q"}`)

	empty := Calculate(nil)
	assert.Contains(t, empty.System, "so far: {}")
}

func TestAsk(t *testing.T) {
	p := Ask("2+2?")
	assert.Equal(t, "2+2?", p.User)
	assert.Contains(t, p.System, `{"result":`)
}
