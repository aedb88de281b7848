package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"ai-whiteboard/api/internal/llm"
	"ai-whiteboard/api/internal/util"
)

const DefaultBaseURL = "https://api.groq.com/openai/v1"

// Engine talks to any OpenAI-compatible chat/completions endpoint. It is
// used as the secondary provider against Groq.
type Engine struct {
	ProviderName string
	APIKey       string
	BaseURL      string
	Model        string
	VisionModel  string
	Temperature  float64
	MaxTokens    int

	httpc *http.Client
}

func New(name, key, baseURL, model, visionModel string) *Engine {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 120 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(visionModel) == "" {
		visionModel = model
	}
	return &Engine{
		ProviderName: name,
		APIKey:       strings.TrimSpace(key),
		BaseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Model:        strings.TrimSpace(model),
		VisionModel:  strings.TrimSpace(visionModel),
		MaxTokens:    2048,
		// Deadlines come from the request context.
		httpc: &http.Client{Timeout: 0, Transport: tr},
	}
}

// WithHTTPClient overrides the internal HTTP client, for example to add a proxy
// or tracing transport.
func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	if c != nil {
		e.httpc = c
	}
	return e
}

func (e *Engine) Name() string     { return e.ProviderName }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Generate(ctx context.Context, instruction, userText string) (string, error) {
	messages := []any{}
	if strings.TrimSpace(instruction) != "" {
		messages = append(messages, map[string]any{"role": "system", "content": instruction})
	}
	messages = append(messages, map[string]any{"role": "user", "content": userText})

	body := map[string]any{
		"model":           e.Model,
		"messages":        messages,
		"temperature":     e.Temperature,
		"response_format": map[string]any{"type": "json_object"},
	}
	return e.complete(ctx, body)
}

// Vision sends the image inline as a data URL. Vision models on Groq reject
// a separate system message next to an image, so the instruction is folded
// into the user turn.
func (e *Engine) Vision(ctx context.Context, instruction, userText string, img llm.Image) (string, error) {
	mime := util.PickMIME(img.MIME, "", img.Data)
	text := userText
	if strings.TrimSpace(instruction) != "" {
		text = instruction + "\n\n" + userText
	}
	body := map[string]any{
		"model": e.VisionModel,
		"messages": []any{
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "text", "text": text},
					map[string]any{"type": "image_url", "image_url": map[string]any{"url": util.MakeDataURL(mime, img.Data)}},
				},
			},
		},
		"temperature":     e.Temperature,
		"max_tokens":      e.MaxTokens,
		"response_format": map[string]any{"type": "json_object"},
	}
	return e.complete(ctx, body)
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func (e *Engine) complete(ctx context.Context, body map[string]any) (string, error) {
	if e.APIKey == "" {
		return "", llm.NewProviderError(e.ProviderName, http.StatusUnauthorized, "api key is empty")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%s: marshal: %w", e.ProviderName, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", llm.TransportError(ctx, e.ProviderName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return "", llm.TransportError(ctx, e.ProviderName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llm.TransportError(ctx, e.ProviderName, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", e.statusError(resp.StatusCode, raw)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		// The provider answered but the envelope is not what we expect.
		return "", nil
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (e *Engine) statusError(status int, raw []byte) *llm.ProviderError {
	msg := strings.TrimSpace(string(raw))
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
		msg = env.Error.Message
		if c, ok := env.Error.Code.(string); ok && c != "" {
			msg += " (" + c + ")"
		}
	}
	return llm.NewProviderError(e.ProviderName, status, util.Truncate(msg, 512))
}
