package handle

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ai-whiteboard/api/internal/whiteboard"
)

// Service is what the HTTP surface needs from the whiteboard pipeline.
type Service interface {
	GenerateMermaid(ctx context.Context, request string) (whiteboard.DiagramResult, error)
	Ask(ctx context.Context, question string) (whiteboard.AskResult, error)
	Calculate(ctx context.Context, in whiteboard.CalculateRequest) (whiteboard.CalcResult, error)
}

type Options struct {
	// Timeout bounds each pipeline call; X-Request-Timeout may shorten or
	// extend it per request up to MaxTimeout.
	Timeout     time.Duration
	MaxTimeout  time.Duration
	CORSOrigins []string
	// MaxBodyBytes caps request bodies; whiteboard images are large.
	MaxBodyBytes int64
	Logger       *slog.Logger
	// Ready reports dependency health for /healthz. nil means always ready.
	Ready func(ctx context.Context) error
}

type Handle struct {
	svc  Service
	opts Options
	log  *slog.Logger
}

func New(svc Service, opts Options) *Handle {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxTimeout < opts.Timeout {
		opts.MaxTimeout = 3 * opts.Timeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 20 << 20
	}
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	return &Handle{svc: svc, opts: opts, log: l}
}

// Routes returns the full HTTP surface with middleware applied.
func (h *Handle) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/generate-mermaid", h.GenerateMermaid)
	mux.HandleFunc("/ask-ai", h.Ask)
	mux.HandleFunc("/calculate", h.Calculate)
	mux.HandleFunc("/healthz", h.Healthz)
	mux.HandleFunc("/", h.Root)

	var root http.Handler = mux
	root = h.cors(root)
	root = h.accessLog(root)
	root = h.recoverer(root)
	root = requestID(root)
	return root
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// deadline picks the per-request timeout: X-Request-Timeout (seconds) or
// ?timeoutSec=, else the configured default.
func (h *Handle) deadline(r *http.Request) time.Duration {
	d := h.opts.Timeout
	ts := r.Header.Get("X-Request-Timeout")
	if ts == "" {
		ts = r.URL.Query().Get("timeoutSec")
	}
	if ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			d = time.Duration(v) * time.Second
		}
	}
	if d > h.opts.MaxTimeout {
		d = h.opts.MaxTimeout
	}
	return d
}

// decode reads a JSON body into dst. It writes the 400 itself and reports
// whether the handler should continue.
func (h *Handle) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad json", err.Error())
		return false
	}
	return true
}

func postOnly(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "POST only", "")
		return false
	}
	return true
}

// Root serves the welcome message; any other unmatched path is a 404.
func (h *Handle) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to AI Whiteboard Backend"})
}

func (h *Handle) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if h.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.opts.Ready(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ok\n" + err.Error()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
