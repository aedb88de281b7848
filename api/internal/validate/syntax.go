package validate

import "strings"

// Syntax is a smoke check over generated markup, not a parser: it rejects
// blank text and, when keywords are configured, text that does not start with
// one of them. Comparison is on trimmed, case-folded text.
type Syntax struct {
	keywords []string
}

func NewSyntax(keywords ...string) *Syntax {
	s := &Syntax{}
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			s.keywords = append(s.keywords, k)
		}
	}
	return s
}

// MermaidKeywords extends the catalog type names with the aliases Mermaid
// accepts for the same diagrams.
func MermaidKeywords(types []string) []string {
	out := make([]string, 0, len(types)+2)
	out = append(out, types...)
	return append(out, "graph", "stateDiagram-v2")
}

func (s *Syntax) Valid(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return false
	}
	if len(s.keywords) == 0 {
		return true
	}
	for _, k := range s.keywords {
		if strings.HasPrefix(t, k) {
			return true
		}
	}
	return false
}
