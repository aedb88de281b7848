package telegram

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-whiteboard/api/internal/llm"
	"ai-whiteboard/api/internal/store"
	"ai-whiteboard/api/internal/whiteboard"
)

type fakeBot struct {
	mu    sync.Mutex
	sent  []string
	fileU string
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, m.Text)
	}
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) GetFileDirectURL(string) (string, error) {
	if b.fileU == "" {
		return "", errors.New("no file")
	}
	return b.fileU, nil
}

func (b *fakeBot) last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sent) == 0 {
		return ""
	}
	return b.sent[len(b.sent)-1]
}

type fakeService struct {
	diagramErr error
	calcIn     whiteboard.CalculateRequest
	askQ       string
}

func (f *fakeService) GenerateMermaid(_ context.Context, r string) (whiteboard.DiagramResult, error) {
	if f.diagramErr != nil {
		return whiteboard.DiagramResult{}, f.diagramErr
	}
	return whiteboard.DiagramResult{MermaidSyntax: "flowchart TD\n  A[" + r + "]"}, nil
}

func (f *fakeService) Ask(_ context.Context, q string) (whiteboard.AskResult, error) {
	f.askQ = q
	return whiteboard.AskResult{Result: "4"}, nil
}

func (f *fakeService) Calculate(_ context.Context, in whiteboard.CalculateRequest) (whiteboard.CalcResult, error) {
	f.calcIn = in
	return whiteboard.CalcResult{Items: []whiteboard.CalcItem{{Type: "simple_expression", Expression: "2 + 2", Result: "4"}}}, nil
}

type fakeStats struct {
	rows   []store.OpStats
	gens   []store.Generation
	lastOp *string
}

func (f fakeStats) Stats(context.Context, time.Time) ([]store.OpStats, error) { return f.rows, nil }

func (f fakeStats) Recent(_ context.Context, op string, _ int) ([]store.Generation, error) {
	if f.lastOp != nil {
		*f.lastOp = op
	}
	return f.gens, nil
}

func newRouter(bot *fakeBot, svc Service) *Router {
	return &Router{
		Bot:     bot,
		Service: svc,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Timeout: 5 * time.Second,
	}
}

func command(text string) tgbotapi.Update {
	cmd, _, _ := strings.Cut(text, " ")
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 42},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func TestDiagramCommand(t *testing.T) {
	bot := &fakeBot{}
	r := newRouter(bot, &fakeService{})

	r.HandleUpdate(context.Background(), command("/diagram login flow"))
	assert.Equal(t, "flowchart TD\n  A[login flow]", bot.last())

	r.HandleUpdate(context.Background(), command("/diagram"))
	assert.Equal(t, "Usage: /diagram <what to draw>", bot.last())
}

func TestPlainTextIsDiagramRequest(t *testing.T) {
	bot := &fakeBot{}
	r := newRouter(bot, &fakeService{})

	r.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "cache"}})
	assert.Contains(t, bot.last(), "A[cache]")
}

func TestAskCommand(t *testing.T) {
	bot := &fakeBot{}
	svc := &fakeService{}
	r := newRouter(bot, svc)

	r.HandleUpdate(context.Background(), command("/ask what is 2+2"))
	assert.Equal(t, "what is 2+2", svc.askQ)
	assert.Equal(t, "4", bot.last())
}

func TestErrorsAreSummarized(t *testing.T) {
	bot := &fakeBot{}
	r := newRouter(bot, &fakeService{diagramErr: &llm.ExhaustedError{Attempts: []llm.Outcome{
		{Provider: "gemini", Kind: llm.OutcomeInvalidSyntax},
		{Provider: "groq", Kind: llm.OutcomeInvalidSyntax},
	}}})

	r.HandleUpdate(context.Background(), command("/diagram x"))
	assert.Equal(t, userMessage(llm.KindExhausted), bot.last())
}

func TestStatsCommand(t *testing.T) {
	bot := &fakeBot{}
	r := newRouter(bot, &fakeService{})

	r.HandleUpdate(context.Background(), command("/stats"))
	assert.Contains(t, bot.last(), "no database")

	r.Stats = fakeStats{rows: []store.OpStats{{Op: "ask_ai", Total: 3, Failed: 1, Fallbacks: 1, AvgMS: 812.4}}}
	r.HandleUpdate(context.Background(), command("/stats"))
	assert.Equal(t, "Last 24h:\nask_ai: 3 total, 1 failed, 1 fallbacks, avg 812 ms", bot.last())
}

func TestRecentCommand(t *testing.T) {
	bot := &fakeBot{}
	r := newRouter(bot, &fakeService{})

	r.HandleUpdate(context.Background(), command("/recent"))
	assert.Contains(t, bot.last(), "no database")

	var op string
	at := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	r.Stats = fakeStats{lastOp: &op, gens: []store.Generation{
		{CreatedAt: at, Op: "ask_ai", Provider: "groq", Input: "what is 2+2", LatencyMS: 640},
		{CreatedAt: at, Op: "ask_ai", ErrorKind: "transient", Input: "capital of France", LatencyMS: 1200},
	}}
	r.HandleUpdate(context.Background(), command("/recent ask_ai"))
	assert.Equal(t, "ask_ai", op)
	assert.Equal(t, "03-04 10:30 ask_ai via groq, 640 ms: what is 2+2\n"+
		"03-04 10:30 ask_ai failed (transient), 1200 ms: capital of France", bot.last())

	r.HandleUpdate(context.Background(), command("/recent everything"))
	assert.Contains(t, bot.last(), "Usage: /recent")
}

func TestPhotoIsCalculated(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(png)
	}))
	defer srv.Close()

	bot := &fakeBot{fileU: srv.URL + "/photo.png"}
	svc := &fakeService{}
	r := newRouter(bot, svc)

	r.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:    &tgbotapi.Chat{ID: 7},
		Photo:   []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "big"}},
		Caption: "x=3, y = 4",
	}})

	require.True(t, strings.HasPrefix(svc.calcIn.Image, "data:image/png;base64,"))
	assert.Equal(t, map[string]string{"x": "3", "y": "4"}, svc.calcIn.Vars)
	assert.Equal(t, "2 + 2 = 4", bot.last())
}

func TestPhotoDownloadFailure(t *testing.T) {
	bot := &fakeBot{}
	svc := &fakeService{}
	r := newRouter(bot, svc)

	r.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 7},
		Photo: []tgbotapi.PhotoSize{{FileID: "big"}},
	}})
	assert.Empty(t, svc.calcIn.Image)
	assert.Equal(t, "Something went wrong.", bot.last())
}

func TestPhotoTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte{0xFF}, 2048))
	}))
	defer srv.Close()

	bot := &fakeBot{fileU: srv.URL + "/photo.jpg"}
	svc := &fakeService{}
	r := newRouter(bot, svc)
	r.MaxPhotoBytes = 1024

	_, err := r.download(context.Background(), bot.fileU)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "larger than 1024 bytes")

	r.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 7},
		Photo: []tgbotapi.PhotoSize{{FileID: "big"}},
	}})
	assert.Empty(t, svc.calcIn.Image)
	assert.Equal(t, "Something went wrong.", bot.last())

	r.MaxPhotoBytes = 2048
	b, err := r.download(context.Background(), bot.fileU)
	require.NoError(t, err)
	assert.Len(t, b, 2048)
}

type scriptedUpdater struct {
	calls  int
	cancel context.CancelFunc
}

func (s *scriptedUpdater) GetUpdates(c tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	s.calls++
	if s.calls == 1 {
		u := command("/health")
		u.UpdateID = 10
		return []tgbotapi.Update{u}, nil
	}
	s.cancel()
	return nil, nil
}

func TestRunHandlesUpdatesUntilCancelled(t *testing.T) {
	bot := &fakeBot{}
	r := newRouter(bot, &fakeService{})
	ctx, cancel := context.WithCancel(context.Background())
	up := &scriptedUpdater{cancel: cancel}

	require.NoError(t, r.Run(ctx, up))
	assert.Equal(t, 2, up.calls)
	assert.Equal(t, "OK", bot.last())
}

func TestRetryDelayFromError(t *testing.T) {
	assert.Equal(t, 7*time.Second, retryDelayFromError(errors.New("Too Many Requests: retry after 7")))
	assert.Equal(t, 3*time.Second, retryDelayFromError(errors.New("too many requests")))
	assert.Equal(t, time.Second, retryDelayFromError(errors.New("bad gateway")))
	assert.Zero(t, retryDelayFromError(nil))
}
