package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-whiteboard/api/internal/llm"
	"ai-whiteboard/api/internal/util"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const providerName = "gemini"

type generateFunc func(ctx context.Context, m *genai.GenerativeModel, parts ...genai.Part) (*genai.GenerateContentResponse, error)

// Engine is the primary provider. The client is created once and shared by
// every request; a model handle is built per call so concurrent requests
// never share a SystemInstruction.
type Engine struct {
	Model       string
	Temperature float32

	client   *genai.Client
	generate generateFunc
}

func New(ctx context.Context, apiKey, model string) (*Engine, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Engine{
		Model:    strings.TrimSpace(model),
		client:   cl,
		generate: defaultGenerate,
	}, nil
}

func defaultGenerate(ctx context.Context, m *genai.GenerativeModel, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	return m.GenerateContent(ctx, parts...)
}

func (e *Engine) Name() string     { return providerName }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

func (e *Engine) Generate(ctx context.Context, instruction, userText string) (string, error) {
	return e.run(ctx, instruction, genai.Text(userText))
}

func (e *Engine) Vision(ctx context.Context, instruction, userText string, img llm.Image) (string, error) {
	mime := util.PickMIME(img.MIME, "", img.Data)
	return e.run(ctx, instruction,
		genai.Text(userText),
		&genai.Blob{MIMEType: mime, Data: img.Data},
	)
}

func (e *Engine) run(ctx context.Context, instruction string, parts ...genai.Part) (string, error) {
	m := e.model()
	if m == nil {
		return "", &llm.ProviderError{Provider: providerName, Kind: llm.KindTransient, Message: "model is nil"}
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(e.Temperature),
		ResponseMIMEType: "application/json",
	}
	if strings.TrimSpace(instruction) != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(instruction)}}
	}

	gen := e.generate
	if gen == nil {
		gen = defaultGenerate
	}
	resp, err := gen(ctx, m, parts...)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			// A safety block carries no usable text.
			return "", nil
		}
		return "", classify(ctx, err)
	}
	return firstText(resp), nil
}

func (e *Engine) model() *genai.GenerativeModel {
	if e.client == nil {
		return &genai.GenerativeModel{}
	}
	return e.client.GenerativeModel(e.Model)
}

// firstText concatenates the text parts of the first candidate that has any.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
