package handle

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"ai-whiteboard/api/internal/llm"
	"ai-whiteboard/api/internal/logging"
	"ai-whiteboard/api/internal/whiteboard"
)

type errorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func writeError(w http.ResponseWriter, code int, message, details string) {
	writeJSON(w, code, errorEnvelope{Status: "error", Message: message, Details: details})
}

var kindMessages = map[llm.Kind]string{
	llm.KindCredential: "upstream provider rejected its credentials",
	llm.KindTransient:  "upstream providers are unavailable, try again later",
	llm.KindCanceled:   "request timed out or was cancelled",
	llm.KindMalformed:  "upstream providers returned an empty or malformed response",
	llm.KindExhausted:  "could not produce valid output after exhausting providers",
}

// fail maps a service error to the error envelope. Upstream text only ever
// goes into details.
func (h *Handle) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, whiteboard.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	kind := llm.KindOf(err)
	code := kind.HTTPStatus()
	msg, ok := kindMessages[kind]
	if !ok {
		msg = "internal error"
	}

	level := slog.LevelWarn
	if code >= 500 && kind != llm.KindTransient && kind != llm.KindCanceled {
		level = slog.LevelError
	}
	logging.LogWith(r.Context(), h.log).Log(r.Context(), level, "request failed",
		slog.String("op", op), slog.String("kind", kind.String()), slog.Int("status", code), slog.Any("err", err))

	writeError(w, code, msg, err.Error())
}

// markCredentialFailures tells the caller that a key was rejected even
// though a fallback provider answered.
func markCredentialFailures(w http.ResponseWriter, m whiteboard.Meta) {
	if m.Provider != "" {
		w.Header().Set("X-Provider", m.Provider)
	}
	if len(m.CredentialFailures) > 0 {
		w.Header().Set("X-Credential-Failure", strings.Join(m.CredentialFailures, ","))
	}
}
