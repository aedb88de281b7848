package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider is one upstream model. Implementations own their request envelope,
// make exactly one network call per invocation and return *ProviderError on
// failure.
type Provider interface {
	Name() string
	// Generate sends the instruction (system part) and the user text.
	Generate(ctx context.Context, instruction, userText string) (string, error)
	// Vision sends the instruction, user text and one image.
	Vision(ctx context.Context, instruction, userText string, img Image) (string, error)
}

type Image struct {
	Data []byte
	MIME string
}

// OutcomeKind is the per-attempt result that drives the fallback decision.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeEmpty
	OutcomeInvalidSyntax
	OutcomeProviderError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmpty:
		return "empty"
	case OutcomeInvalidSyntax:
		return "invalid_syntax"
	case OutcomeProviderError:
		return "provider_error"
	default:
		return "unknown"
	}
}

// Outcome records one provider attempt within a single request.
type Outcome struct {
	Provider string
	Kind     OutcomeKind
	Text     string
	Err      error
}

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s: %s: %v", o.Provider, o.Kind, o.Err)
	}
	return o.Provider + ": " + o.Kind.String()
}

func (o Outcome) errKind() Kind {
	if o.Err == nil {
		return KindUnknown
	}
	return KindOf(o.Err)
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
