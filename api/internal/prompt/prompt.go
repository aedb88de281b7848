package prompt

import (
	"fmt"
	"strings"

	"ai-whiteboard/api/internal/catalog"
)

// ExampleMode selects which catalog examples go into a diagram prompt.
type ExampleMode string

const (
	ExamplesAll     ExampleMode = "all"
	ExamplesMatched ExampleMode = "matched"
	ExamplesNone    ExampleMode = "none"
)

func ParseExampleMode(s string) (ExampleMode, error) {
	switch m := ExampleMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ExamplesAll, ExamplesMatched, ExamplesNone:
		return m, nil
	case "":
		return ExamplesMatched, nil
	default:
		return "", fmt.Errorf("unknown example mode %q; use all|matched|none", s)
	}
}

// Prompt is a composed instruction split the way providers consume it: System
// carries the rubric, examples and output directive; User carries the request.
type Prompt struct {
	System string
	User   string
}

// String joins both halves into the single instruction string; the user
// request always comes last.
func (p Prompt) String() string {
	return p.System + "\n\n" + p.User
}

type Composer struct {
	cat  *catalog.Catalog
	mode ExampleMode
}

func NewComposer(cat *catalog.Catalog, mode ExampleMode) *Composer {
	if mode == "" {
		mode = ExamplesMatched
	}
	return &Composer{cat: cat, mode: mode}
}

func (c *Composer) Mode() ExampleMode { return c.mode }

// Diagram detects the diagram type from the request and composes the prompt.
func (c *Composer) Diagram(request string) Prompt {
	detected, _ := c.cat.DetectType(request)
	return c.DiagramFor(request, detected)
}

// DiagramFor composes a diagram prompt for an already detected type ("" for none).
func (c *Composer) DiagramFor(request, detected string) Prompt {
	var b strings.Builder

	b.WriteString("You are an assistant that turns requests into diagrams written in Mermaid syntax.\n\n")
	b.WriteString("Supported diagram types: ")
	b.WriteString(strings.Join(c.cat.Types(), ", "))
	b.WriteString(".\n\n")
	b.WriteString(diagramRules)

	examples := c.examplesFor(detected)
	if len(examples) > 0 {
		b.WriteString("\nReference examples:\n")
		for _, ex := range examples {
			fmt.Fprintf(&b, "\n### %s\nRequest: %s\nMarkup:\n%s\n", ex.Type, ex.Prompt, ex.Example)
		}
	}

	b.WriteString("\n")
	b.WriteString(diagramOutput)

	return Prompt{
		System: b.String(),
		User:   "user input: " + request,
	}
}

func (c *Composer) examplesFor(detected string) []catalog.DiagramExample {
	switch c.mode {
	case ExamplesAll:
		return c.cat.All()
	case ExamplesMatched:
		if ex, ok := c.cat.ForType(detected); ok {
			return []catalog.DiagramExample{ex}
		}
	}
	return nil
}

const diagramRules = `Rules:
- The first line of the markup is the diagram type keyword, e.g. "flowchart TD", "sequenceDiagram" or "pie".
- Pick the type that best fits the request; use flowchart when nothing else fits.
- Quote node labels that contain spaces, punctuation or non-ASCII characters.
- Encode line breaks inside the JSON string as \n. Never wrap the markup in code fences.
- Do not add explanations, titles or comments outside the markup.
`

const diagramOutput = `Respond with exactly one JSON object and nothing else:
{"mermaid_syntax": "<Mermaid markup>"}
For example:
{"mermaid_syntax": "graph TD\nA[Start] --> B[Login]\nB -->|Success| C[Dashboard]\nB -->|Fail| D[Error]"}`
