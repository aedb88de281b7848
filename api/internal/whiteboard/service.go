// Package whiteboard runs the three whiteboard operations (diagram, ask and
// calculate) through the primary/secondary fallback pipeline.
package whiteboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ai-whiteboard/api/internal/catalog"
	"ai-whiteboard/api/internal/llm"
	"ai-whiteboard/api/internal/logging"
	"ai-whiteboard/api/internal/prompt"
	"ai-whiteboard/api/internal/store"
	"ai-whiteboard/api/internal/util"
	"ai-whiteboard/api/internal/validate"
)

const (
	OpDiagram   = "generate_mermaid"
	OpAsk       = "ask_ai"
	OpCalculate = "calculate"
)

// Recorder persists one pipeline run. It is optional.
type Recorder interface {
	Record(ctx context.Context, g store.Generation) error
}

type Deps struct {
	Primary   llm.Provider
	Secondary llm.Provider
	Catalog   *catalog.Catalog
	Composer  *prompt.Composer
	Syntax    *validate.Syntax
	Shapes    *validate.Shapes
	Recorder  Recorder
	Logger    *slog.Logger
}

type Service struct {
	d  Deps
	fb *llm.Fallback
}

func New(d Deps) (*Service, error) {
	var missing []string
	if d.Primary == nil {
		missing = append(missing, "primary provider")
	}
	if d.Secondary == nil {
		missing = append(missing, "secondary provider")
	}
	if d.Catalog == nil {
		missing = append(missing, "catalog")
	}
	if d.Composer == nil {
		missing = append(missing, "composer")
	}
	if d.Syntax == nil {
		missing = append(missing, "syntax validator")
	}
	if d.Shapes == nil {
		missing = append(missing, "shapes")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("whiteboard: missing %s", strings.Join(missing, ", "))
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{
		d:  d,
		fb: &llm.Fallback{Primary: d.Primary, Secondary: d.Secondary, Logger: d.Logger},
	}, nil
}

// Meta describes how a result was produced.
type Meta struct {
	Provider string
	// CredentialFailures names providers whose key was rejected on the way
	// to this result.
	CredentialFailures []string
}

func metaOf(res llm.Result) Meta {
	m := Meta{Provider: res.Provider}
	for _, o := range res.CredentialFailures() {
		m.CredentialFailures = append(m.CredentialFailures, o.Provider)
	}
	return m
}

type DiagramResult struct {
	MermaidSyntax string `json:"mermaid_syntax"`
	DiagramType   string `json:"-"`
	Meta          `json:"-"`
}

// GenerateMermaid turns a free-text request into validated Mermaid markup.
func (s *Service) GenerateMermaid(ctx context.Context, request string) (DiagramResult, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return DiagramResult{}, invalidInput("prompt must not be empty")
	}

	detected, _ := s.d.Catalog.DetectType(request)
	pr := s.d.Composer.DiagramFor(request, detected)

	start := time.Now()
	res, err := s.fb.Run(ctx, OpDiagram,
		func(ctx context.Context, p llm.Provider) (string, error) {
			return p.Generate(ctx, pr.System, pr.User)
		},
		s.acceptDiagram,
	)
	s.record(ctx, OpDiagram, detected, request, res, err, start)
	if err != nil {
		return DiagramResult{}, err
	}
	return DiagramResult{MermaidSyntax: res.Value, DiagramType: detected, Meta: metaOf(res)}, nil
}

// acceptDiagram pulls mermaid_syntax out of the JSON envelope. A reply that is
// bare markup is accepted as the payload when it passes the syntax check.
func (s *Service) acceptDiagram(raw string) (string, bool) {
	text := util.StripCodeFences(raw)
	if doc, err := validate.Decode(text); err == nil {
		if err := s.d.Shapes.Check(validate.ShapeDiagram, doc); err != nil {
			return "", false
		}
		text = doc.(map[string]any)["mermaid_syntax"].(string)
		text = util.StripCodeFences(text)
	}
	text = strings.TrimSpace(text)
	if !s.d.Syntax.Valid(text) {
		return "", false
	}
	return text, true
}

type AskResult struct {
	Result string `json:"result"`
	Meta   `json:"-"`
}

// Ask answers a short question.
func (s *Service) Ask(ctx context.Context, question string) (AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return AskResult{}, invalidInput("question must not be empty")
	}

	pr := prompt.Ask(question)
	start := time.Now()
	res, err := s.fb.Run(ctx, OpAsk,
		func(ctx context.Context, p llm.Provider) (string, error) {
			return p.Generate(ctx, pr.System, pr.User)
		},
		s.acceptAsk,
	)
	s.record(ctx, OpAsk, "", question, res, err, start)
	if err != nil {
		return AskResult{}, err
	}
	return AskResult{Result: res.Value, Meta: metaOf(res)}, nil
}

func (s *Service) acceptAsk(raw string) (string, bool) {
	doc, err := validate.Decode(util.StripCodeFences(raw))
	if err != nil {
		return "", false
	}
	if err := s.d.Shapes.Check(validate.ShapeAsk, doc); err != nil {
		return "", false
	}
	out := stringify(doc.(map[string]any)["result"])
	if strings.TrimSpace(out) == "" {
		return "", false
	}
	return out, true
}

type CalcItem struct {
	Type        string `json:"type"`
	Expression  string `json:"expression,omitempty"`
	Problem     string `json:"problem,omitempty"`
	Description string `json:"description,omitempty"`
	Result      string `json:"result,omitempty"`
	Concept     string `json:"concept,omitempty"`
}

type CalcResult struct {
	Items []CalcItem
	Meta
}

type CalculateRequest struct {
	Image string
	Vars  map[string]string
}

// Calculate solves what is drawn on a whiteboard image. The image must be a
// base64 data URL; anything else fails before any provider is called.
func (s *Service) Calculate(ctx context.Context, in CalculateRequest) (CalcResult, error) {
	data, hint, err := util.DecodeDataURL(in.Image)
	if err != nil {
		return CalcResult{}, invalidInput("invalid image format: " + err.Error())
	}
	mime := util.PickMIME("", hint, data)
	if !util.IsImageMIME(mime) {
		return CalcResult{}, invalidInput("invalid image format: unsupported MIME " + mime)
	}
	img := llm.Image{Data: data, MIME: mime}

	pr := prompt.Calculate(in.Vars)
	start := time.Now()
	res, err := s.fb.Run(ctx, OpCalculate,
		func(ctx context.Context, p llm.Provider) (string, error) {
			return p.Vision(ctx, pr.System, pr.User, img)
		},
		s.acceptCalc,
	)
	s.record(ctx, OpCalculate, "", fmt.Sprintf("image %s %d bytes, %d vars", mime, len(data), len(in.Vars)), res, err, start)
	if err != nil {
		return CalcResult{}, err
	}

	var items []CalcItem
	if err := json.Unmarshal([]byte(res.Value), &items); err != nil {
		return CalcResult{}, fmt.Errorf("calculate: decode accepted items: %w", err)
	}
	return CalcResult{Items: items, Meta: metaOf(res)}, nil
}

// acceptCalc accepts one item, a list of items or {"data": [...]}, and
// re-encodes the validated items as a JSON array.
func (s *Service) acceptCalc(raw string) (string, bool) {
	doc, err := validate.Decode(util.StripCodeFences(raw))
	if err != nil {
		return "", false
	}

	var list []any
	switch v := doc.(type) {
	case []any:
		list = v
	case map[string]any:
		if data, ok := v["data"].([]any); ok {
			list = data
		} else {
			list = []any{v}
		}
	default:
		return "", false
	}
	if len(list) == 0 {
		return "", false
	}

	items := make([]CalcItem, 0, len(list))
	for _, it := range list {
		if err := s.d.Shapes.Check(validate.ShapeCalcItem, it); err != nil {
			return "", false
		}
		m := it.(map[string]any)
		items = append(items, CalcItem{
			Type:        stringify(m["type"]),
			Expression:  stringify(m["expression"]),
			Problem:     stringify(m["problem"]),
			Description: stringify(m["description"]),
			Result:      stringify(m["result"]),
			Concept:     stringify(m["concept"]),
		})
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", false
	}
	return string(b), true
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(x)
	}
}

func (s *Service) record(ctx context.Context, op, diagramType, input string, res llm.Result, err error, start time.Time) {
	if s.d.Recorder == nil {
		return
	}
	g := store.Generation{
		RequestID:   logging.RequestID(ctx),
		Op:          op,
		DiagramType: diagramType,
		Input:       util.Truncate(input, 2000),
		Provider:    res.Provider,
		Output:      util.Truncate(res.Value, 8000),
		LatencyMS:   time.Since(start).Milliseconds(),
	}
	if err != nil {
		g.ErrorKind = llm.KindOf(err).String()
	}
	for _, a := range res.Attempts {
		at := store.Attempt{Provider: a.Provider, Outcome: a.Kind.String()}
		if a.Err != nil {
			at.Error = util.Truncate(a.Err.Error(), 500)
		}
		g.Attempts = append(g.Attempts, at)
	}

	// The caller may already be gone; the audit row should still land.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if rerr := s.d.Recorder.Record(rctx, g); rerr != nil {
		logging.LogWith(ctx, s.d.Logger).Warn("record generation failed",
			slog.String("op", op), slog.Any("err", rerr))
	}
}
