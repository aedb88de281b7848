// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"

	"ai-whiteboard/api/internal/llm"
)

// Response is one scripted answer. Block makes the call wait for the
// context to end and return the cancellation as a provider error.
type Response struct {
	Text  string
	Err   error
	Block bool
}

func Text(s string) Response { return Response{Text: s} }
func Fail(err error) Response { return Response{Err: err} }
func Blocking() Response { return Response{Block: true} }
func Transient(name string) Response {
	return Fail(llm.NewProviderError(name, 503, "model is overloaded"))
}
func Credential(name string) Response {
	return Fail(llm.NewProviderError(name, 400, "API key expired. Please renew the API key."))
}

// Stub replays its responses in order; the last one repeats.
type Stub struct {
	ProviderName string

	mu              sync.Mutex
	responses       []Response
	calls           int
	LastInstruction string
	LastUser        string
	LastImage       llm.Image
}

func New(name string, rs ...Response) *Stub {
	return &Stub{ProviderName: name, responses: rs}
}

func (s *Stub) Name() string { return s.ProviderName }

func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Stub) Generate(ctx context.Context, instruction, userText string) (string, error) {
	return s.next(ctx, instruction, userText, llm.Image{})
}

func (s *Stub) Vision(ctx context.Context, instruction, userText string, img llm.Image) (string, error) {
	return s.next(ctx, instruction, userText, img)
}

func (s *Stub) next(ctx context.Context, instruction, userText string, img llm.Image) (string, error) {
	s.mu.Lock()
	s.calls++
	s.LastInstruction, s.LastUser, s.LastImage = instruction, userText, img
	var r Response
	if n := len(s.responses); n > 0 {
		i := s.calls - 1
		if i >= n {
			i = n - 1
		}
		r = s.responses[i]
	}
	s.mu.Unlock()

	if r.Block {
		<-ctx.Done()
		return "", llm.TransportError(ctx, s.ProviderName, ctx.Err())
	}
	return r.Text, r.Err
}
