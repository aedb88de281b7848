package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failure for fallback decisions and for the HTTP status
// reported to the caller.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransient covers network errors, 5xx, overload and rate limits.
	KindTransient
	// KindCredential is an expired, invalid or out-of-quota key; retrying
	// the same provider will not help.
	KindCredential
	// KindMalformed means the provider answered but the answer was unusable.
	KindMalformed
	// KindExhausted means every provider answered and none passed validation.
	KindExhausted
	// KindCanceled means the caller went away or the deadline passed.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindCredential:
		return "credential"
	case KindMalformed:
		return "malformed"
	case KindExhausted:
		return "exhausted"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// HTTPStatus maps a kind to the status surfaced by the HTTP layer.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindCredential:
		return http.StatusUnauthorized
	case KindTransient, KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ProviderError is what adapters return for any upstream failure. Message is
// diagnostic only; control flow looks at Kind.
type ProviderError struct {
	Provider string
	Kind     Kind
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Status > 0 {
		fmt.Fprintf(&b, " %d", e.Status)
	}
	b.WriteString(" (")
	b.WriteString(e.Kind.String())
	b.WriteString(")")
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError classifies an upstream status and message.
func NewProviderError(provider string, status int, message string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Kind:     ClassifyStatus(status, message),
		Status:   status,
		Message:  strings.TrimSpace(message),
	}
}

// TransportError wraps a failure that happened before any status was seen.
func TransportError(ctx context.Context, provider string, err error) *ProviderError {
	kind := KindTransient
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = KindCanceled
	}
	return &ProviderError{Provider: provider, Kind: kind, Message: err.Error(), Err: err}
}

var credentialMarkers = []string{
	"api key expired",
	"api_key_invalid",
	"api key not valid",
	"invalid api key",
	"invalid_api_key",
	"incorrect api key",
	"insufficient_quota",
	"exceeded your current quota",
	"quota exceeded",
	"billing",
	"permission denied",
	"unauthenticated",
}

// ClassifyStatus turns an upstream status and error text into a Kind. Auth
// statuses and any quota or key-expiry wording are credential failures even
// when the provider reports them as 400 or 429.
func ClassifyStatus(status int, message string) Kind {
	msg := strings.ToLower(message)
	for _, m := range credentialMarkers {
		if strings.Contains(msg, m) {
			return KindCredential
		}
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindCredential
	case status == 499:
		return KindCanceled
	default:
		return KindTransient
	}
}

// ExhaustedError is returned when no provider produced an accepted answer.
type ExhaustedError struct {
	Attempts []Outcome
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.String())
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}

func (e *ExhaustedError) Unwrap() []error {
	var errs []error
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// Kind picks the classification reported to the caller. A credential failure
// on any provider wins so operators see that a key needs rotating; otherwise
// the last attempt decides between unavailable, malformed and exhausted.
func (e *ExhaustedError) Kind() Kind {
	for _, a := range e.Attempts {
		if a.Kind == OutcomeProviderError && a.errKind() == KindCredential {
			return KindCredential
		}
	}
	if len(e.Attempts) == 0 {
		return KindExhausted
	}
	last := e.Attempts[len(e.Attempts)-1]
	switch last.Kind {
	case OutcomeProviderError:
		if k := last.errKind(); k == KindCanceled {
			return KindCanceled
		}
		return KindTransient
	case OutcomeEmpty:
		return KindMalformed
	default:
		return KindExhausted
	}
}

// KindOf extracts the classification of any error produced by this package
// or its adapters.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ex *ExhaustedError
	if errors.As(err, &ex) {
		return ex.Kind()
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindUnknown
}
