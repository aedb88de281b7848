package handle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ai-whiteboard/api/internal/whiteboard"
)

type DiagramRequest struct {
	Prompt string `json:"prompt"`
}

func (h *Handle) GenerateMermaid(w http.ResponseWriter, r *http.Request) {
	if !postOnly(w, r) {
		return
	}
	var req DiagramRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.deadline(r))
	defer cancel()

	out, err := h.svc.GenerateMermaid(ctx, req.Prompt)
	if err != nil {
		h.fail(w, r, whiteboard.OpDiagram, err)
		return
	}
	markCredentialFailures(w, out.Meta)
	writeJSON(w, http.StatusOK, out)
}

type QuestionRequest struct {
	Question string `json:"question"`
}

type successEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (h *Handle) Ask(w http.ResponseWriter, r *http.Request) {
	if !postOnly(w, r) {
		return
	}
	var req QuestionRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.deadline(r))
	defer cancel()

	out, err := h.svc.Ask(ctx, req.Question)
	if err != nil {
		h.fail(w, r, whiteboard.OpAsk, err)
		return
	}
	markCredentialFailures(w, out.Meta)
	writeJSON(w, http.StatusOK, successEnvelope{Status: "success", Message: "Answer generated", Data: out})
}

type ImageRequest struct {
	Image      string         `json:"image"`
	DictOfVars map[string]any `json:"dict_of_vars"`
}

func (h *Handle) Calculate(w http.ResponseWriter, r *http.Request) {
	if !postOnly(w, r) {
		return
	}
	var req ImageRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.deadline(r))
	defer cancel()

	out, err := h.svc.Calculate(ctx, whiteboard.CalculateRequest{
		Image: req.Image,
		Vars:  stringVars(req.DictOfVars),
	})
	if err != nil {
		h.fail(w, r, whiteboard.OpCalculate, err)
		return
	}
	markCredentialFailures(w, out.Meta)
	writeJSON(w, http.StatusOK, successEnvelope{Status: "success", Message: "Image processed", Data: out.Items})
}

// stringVars flattens dict_of_vars; the front end sends numbers and strings.
func stringVars(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch x := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = x
		case json.Number:
			out[k] = x.String()
		case bool, float64:
			out[k] = fmt.Sprint(x)
		default:
			b, _ := json.Marshal(x)
			out[k] = string(b)
		}
	}
	return out
}
