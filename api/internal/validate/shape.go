package validate

import (
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Shape names for provider JSON envelopes.
const (
	ShapeDiagram  = "diagram"
	ShapeAsk      = "ask"
	ShapeCalcItem = "calc_item"
)

const schemaBase = "https://ai-whiteboard.local/schemas/"

var shapeSchemas = map[string]string{
	ShapeDiagram: `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["mermaid_syntax"],
  "properties": {
    "mermaid_syntax": {"type": "string"}
  }
}`,
	ShapeAsk: `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["result"],
  "properties": {
    "result": {"type": ["string", "number", "boolean"]}
  }
}`,
	ShapeCalcItem: `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {"type": "string", "minLength": 1},
    "expression": {"type": ["string", "number"]},
    "problem": {"type": "string"},
    "description": {"type": "string"},
    "result": {"type": ["string", "number", "boolean"]},
    "concept": {"type": "string"}
  },
  "anyOf": [
    {"required": ["result"]},
    {"required": ["concept"]}
  ]
}`,
}

// Shapes holds the compiled envelope schemas. It is read-only after
// NewShapes and safe for concurrent use.
type Shapes struct {
	schemas map[string]*jsonschema.Schema
}

func NewShapes() (*Shapes, error) {
	c := jsonschema.NewCompiler()
	s := &Shapes{schemas: make(map[string]*jsonschema.Schema, len(shapeSchemas))}
	for name, raw := range shapeSchemas {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("unmarshal %s schema: %w", name, err)
		}
		url := schemaBase + name + ".json"
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add %s schema resource: %w", name, err)
		}
		sch, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", name, err)
		}
		s.schemas[name] = sch
	}
	return s, nil
}

// Decode parses JSON the way the schemas expect it (numbers as json.Number).
func Decode(raw string) (any, error) {
	return jsonschema.UnmarshalJSON(strings.NewReader(raw))
}

// Check validates a decoded document against the named shape.
func (s *Shapes) Check(name string, doc any) error {
	sch, ok := s.schemas[name]
	if !ok {
		return fmt.Errorf("unknown shape %q", name)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("%s shape: %w", name, err)
	}
	return nil
}
