package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var defaultCORSOrigins = []string{
	"http://localhost:5173",
	"https://ai-whiteboard-frontend.vercel.app",
	"https://ai-whiteboard.vercel.app",
}

type Config struct {
	Port string

	GeminiAPIKey string
	GeminiModel  string
	GeminiRPS    float64

	GroqAPIKey      string
	GroqModel       string
	GroqVisionModel string
	GroqBaseURL     string
	GroqRPS         float64

	ExampleMode    string
	CORSOrigins    []string
	RequestTimeout time.Duration

	DatabaseURL      string
	TelegramBotToken string

	LogLevel  string
	LogFormat string
}

// env collects lookups so that every missing or malformed key is reported
// at once instead of failing on the first.
type env struct {
	problems []string
}

func (e *env) must(k string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		e.problems = append(e.problems, "missing required env "+k)
	}
	return v
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func (e *env) float(k string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		e.problems = append(e.problems, fmt.Sprintf("env %s: want a non-negative number, got %q", k, v))
		return def
	}
	return f
}

func (e *env) duration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		e.problems = append(e.problems, fmt.Sprintf("env %s: want a positive duration like 60s, got %q", k, v))
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads the process environment once. Provider keys are always
// required; the database and Telegram settings are optional.
func Load() (*Config, error) {
	e := &env{}
	cfg := &Config{
		Port: getEnv("PORT", "8000"),

		GeminiAPIKey: e.must("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiRPS:    e.float("GEMINI_RPS", 0),

		GroqAPIKey:      e.must("GROQ_API_KEY"),
		GroqModel:       getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
		GroqVisionModel: getEnv("GROQ_VISION_MODEL", "llama-3.2-11b-vision-preview"),
		GroqBaseURL:     getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GroqRPS:         e.float("GROQ_RPS", 0),

		ExampleMode:    getEnv("EXAMPLE_MODE", "matched"),
		CORSOrigins:    defaultCORSOrigins,
		RequestTimeout: e.duration("REQUEST_TIMEOUT", 60*time.Second),

		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		TelegramBotToken: strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
	if v := os.Getenv("CORS_ORIGINS"); strings.TrimSpace(v) != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if len(e.problems) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(e.problems, "; "))
	}
	return cfg, nil
}

func (c *Config) Addr() string { return "0.0.0.0:" + c.Port }
