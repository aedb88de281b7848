package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type limited struct {
	p   Provider
	lim *rate.Limiter
}

// WithRateLimit caps the request rate toward one provider for the whole
// process. rps <= 0 returns p unchanged.
func WithRateLimit(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &limited{p: p, lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *limited) Name() string { return l.p.Name() }

func (l *limited) Generate(ctx context.Context, instruction, userText string) (string, error) {
	if err := l.wait(ctx); err != nil {
		return "", err
	}
	return l.p.Generate(ctx, instruction, userText)
}

func (l *limited) Vision(ctx context.Context, instruction, userText string, img Image) (string, error) {
	if err := l.wait(ctx); err != nil {
		return "", err
	}
	return l.p.Vision(ctx, instruction, userText, img)
}

func (l *limited) wait(ctx context.Context) error {
	if err := l.lim.Wait(ctx); err != nil {
		return TransportError(ctx, l.p.Name(), fmt.Errorf("rate limit: %w", err))
	}
	return nil
}
