package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed examples.yaml
var examplesYAML []byte

// DiagramExample is a reference prompt/markup pair for one diagram type.
type DiagramExample struct {
	Type    string `yaml:"type" json:"diagram_type"`
	Prompt  string `yaml:"prompt" json:"prompt"`
	Example string `yaml:"example" json:"example"`
}

// Catalog is read-only after Parse; any number of goroutines may read it.
type Catalog struct {
	examples []DiagramExample
	index    map[string]int
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Parse(examplesYAML)
})

// Default returns the embedded catalog, parsed once per process.
func Default() (*Catalog, error) {
	return loadDefault()
}

// Parse builds a catalog from a YAML list of examples. Types must be unique
// and every field non-empty.
func Parse(doc []byte) (*Catalog, error) {
	var list []DiagramExample
	if err := yaml.Unmarshal(doc, &list); err != nil {
		return nil, fmt.Errorf("catalog: bad yaml: %w", err)
	}
	if len(list) == 0 {
		return nil, errors.New("catalog: no examples")
	}

	c := &Catalog{
		examples: make([]DiagramExample, 0, len(list)),
		index:    make(map[string]int, len(list)),
	}
	for i, ex := range list {
		ex.Type = strings.TrimSpace(ex.Type)
		ex.Prompt = strings.TrimSpace(ex.Prompt)
		ex.Example = strings.TrimRight(ex.Example, " \n")
		if ex.Type == "" || ex.Prompt == "" || ex.Example == "" {
			return nil, fmt.Errorf("catalog: entry %d is incomplete", i)
		}
		if _, dup := c.index[ex.Type]; dup {
			return nil, fmt.Errorf("catalog: duplicate diagram type %q", ex.Type)
		}
		c.index[ex.Type] = len(c.examples)
		c.examples = append(c.examples, ex)
	}
	return c, nil
}

// All returns every example in declaration order.
func (c *Catalog) All() []DiagramExample {
	out := make([]DiagramExample, len(c.examples))
	copy(out, c.examples)
	return out
}

// Map returns the examples keyed by diagram type.
func (c *Catalog) Map() map[string]DiagramExample {
	out := make(map[string]DiagramExample, len(c.examples))
	for _, ex := range c.examples {
		out[ex.Type] = ex
	}
	return out
}

// ForType reports false for unknown types.
func (c *Catalog) ForType(diagramType string) (DiagramExample, bool) {
	i, ok := c.index[diagramType]
	if !ok {
		return DiagramExample{}, false
	}
	return c.examples[i], true
}

// Types returns the recognized diagram type names in declaration order.
func (c *Catalog) Types() []string {
	out := make([]string, len(c.examples))
	for i, ex := range c.examples {
		out[i] = ex.Type
	}
	return out
}

// DetectType returns the first catalog type whose name occurs in text.
// The match is a case-insensitive substring test; there is no scoring.
func (c *Catalog) DetectType(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, ex := range c.examples {
		if strings.Contains(lower, strings.ToLower(ex.Type)) {
			return ex.Type, true
		}
	}
	return "", false
}
