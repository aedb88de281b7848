package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ai-whiteboard/api/internal/logging"
)

// Call performs one request against a provider.
type Call func(ctx context.Context, p Provider) (string, error)

// Accept validates raw provider text and returns the payload to hand back to
// the caller.
type Accept func(raw string) (string, bool)

type Result struct {
	Value    string
	Provider string
	Attempts []Outcome
}

// CredentialFailures lists attempts that failed on an expired or invalid key,
// including ones that were followed by a successful fallback.
func (r Result) CredentialFailures() []Outcome {
	var out []Outcome
	for _, a := range r.Attempts {
		if a.Kind == OutcomeProviderError && a.errKind() == KindCredential {
			out = append(out, a)
		}
	}
	return out
}

// Fallback runs a call against Primary and, only when that fails or produces
// unusable output, against Secondary. The two calls never overlap.
type Fallback struct {
	Primary   Provider
	Secondary Provider
	Logger    *slog.Logger
}

func (f *Fallback) providers() []Provider {
	ps := make([]Provider, 0, 2)
	if f.Primary != nil {
		ps = append(ps, f.Primary)
	}
	if f.Secondary != nil {
		ps = append(ps, f.Secondary)
	}
	return ps
}

func (f *Fallback) logger(ctx context.Context) *slog.Logger {
	l := f.Logger
	if l == nil {
		l = slog.Default()
	}
	return logging.LogWith(ctx, l)
}

// Run returns the first accepted payload, or *ExhaustedError with every
// attempt when no provider produced one. A cancelled context stops the
// pipeline before the next provider is tried.
func (f *Fallback) Run(ctx context.Context, op string, call Call, accept Accept) (Result, error) {
	var attempts []Outcome
	for _, p := range f.providers() {
		if err := ctx.Err(); err != nil {
			return Result{Attempts: attempts}, &ProviderError{Provider: p.Name(), Kind: KindCanceled, Message: err.Error(), Err: err}
		}

		out := f.attempt(ctx, op, p, call, accept)
		attempts = append(attempts, out)
		if out.Kind == OutcomeSuccess {
			return Result{Value: out.Text, Provider: p.Name(), Attempts: attempts}, nil
		}
		if out.Kind == OutcomeProviderError && out.errKind() == KindCredential {
			f.logger(ctx).Error("provider credentials rejected; rotate the key",
				slog.String("op", op), slog.String("provider", p.Name()), slog.Any("err", out.Err))
		}
	}
	return Result{Attempts: attempts}, &ExhaustedError{Attempts: attempts}
}

func (f *Fallback) attempt(ctx context.Context, op string, p Provider, call Call, accept Accept) Outcome {
	start := time.Now()
	raw, err := call(ctx, p)

	out := Outcome{Provider: p.Name()}
	switch {
	case err != nil:
		out.Kind = OutcomeProviderError
		out.Err = asProviderError(ctx, p.Name(), err)
	case isBlank(raw):
		out.Kind = OutcomeEmpty
	default:
		if v, ok := accept(raw); ok {
			out.Kind = OutcomeSuccess
			out.Text = v
		} else {
			out.Kind = OutcomeInvalidSyntax
			out.Text = raw
		}
	}

	attrs := []any{
		slog.String("op", op),
		slog.String("provider", p.Name()),
		slog.String("outcome", out.Kind.String()),
		slog.Duration("latency", time.Since(start)),
	}
	if out.Err != nil {
		attrs = append(attrs, slog.Any("err", out.Err))
	}
	level := slog.LevelInfo
	if out.Kind != OutcomeSuccess {
		level = slog.LevelWarn
	}
	f.logger(ctx).Log(ctx, level, "provider attempt", attrs...)
	return out
}

func asProviderError(ctx context.Context, provider string, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return TransportError(ctx, provider, err)
}
