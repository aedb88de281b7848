// Package telegram is the chat front end: /diagram and /ask commands, and
// photos of a whiteboard solved through calculate.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ai-whiteboard/api/internal/llm"
	"ai-whiteboard/api/internal/logging"
	"ai-whiteboard/api/internal/store"
	"ai-whiteboard/api/internal/util"
	"ai-whiteboard/api/internal/whiteboard"
)

const (
	maxMessage    = 3900
	recentLimit   = 10
	maxPhotoBytes = 20 << 20
)

type Service interface {
	GenerateMermaid(ctx context.Context, request string) (whiteboard.DiagramResult, error)
	Ask(ctx context.Context, question string) (whiteboard.AskResult, error)
	Calculate(ctx context.Context, in whiteboard.CalculateRequest) (whiteboard.CalcResult, error)
}

// StatsSource backs /stats and /recent. *store.GenerationRepo satisfies it.
type StatsSource interface {
	Stats(ctx context.Context, since time.Time) ([]store.OpStats, error)
	Recent(ctx context.Context, op string, limit int) ([]store.Generation, error)
}

// Bot is the part of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Router struct {
	Bot     Bot
	Service Service
	Stats   StatsSource // optional
	Logger  *slog.Logger
	Timeout time.Duration
	HTTP    *http.Client
	// MaxPhotoBytes caps photo downloads; 0 means 20 MiB.
	MaxPhotoBytes int64
}

func (r *Router) log(ctx context.Context) *slog.Logger {
	l := r.Logger
	if l == nil {
		l = slog.Default()
	}
	return logging.LogWith(ctx, l)
}

func (r *Router) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return 60 * time.Second
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	ctx = logging.WithSource(logging.WithRequestID(ctx, logging.NewRequestID()), "telegram")
	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	switch {
	case msg.IsCommand():
		r.HandleCommand(ctx, msg)
	case len(msg.Photo) > 0:
		r.acceptPhoto(ctx, msg)
	case strings.TrimSpace(msg.Text) != "":
		// plain text is treated as a diagram request
		r.diagram(ctx, msg.Chat.ID, msg.Text)
	}
}

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		r.send(cid, helpText)
	case "health":
		r.send(cid, "OK")
	case "diagram":
		if args == "" {
			r.send(cid, "Usage: /diagram <what to draw>")
			return
		}
		r.diagram(ctx, cid, args)
	case "ask":
		if args == "" {
			r.send(cid, "Usage: /ask <question>")
			return
		}
		out, err := r.Service.Ask(ctx, args)
		if err != nil {
			r.SendError(ctx, cid, whiteboard.OpAsk, err)
			return
		}
		r.send(cid, out.Result)
	case "stats":
		r.stats(ctx, cid)
	case "recent":
		r.recent(ctx, cid, args)
	default:
		r.send(cid, "Unknown command. Try /help")
	}
}

const helpText = `Send a description and I'll draw it as a Mermaid diagram.
Send a photo of a whiteboard and I'll solve the math on it. Put variables in the caption: x=3, y=4
Commands:
/diagram <description>
/ask <question>
/stats
/recent [operation]
/health`

func (r *Router) diagram(ctx context.Context, cid int64, text string) {
	out, err := r.Service.GenerateMermaid(ctx, text)
	if err != nil {
		r.SendError(ctx, cid, whiteboard.OpDiagram, err)
		return
	}
	r.send(cid, out.MermaidSyntax)
}

func (r *Router) acceptPhoto(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	ph := msg.Photo[len(msg.Photo)-1]
	url, err := r.Bot.GetFileDirectURL(ph.FileID)
	if err != nil {
		r.SendError(ctx, cid, whiteboard.OpCalculate, fmt.Errorf("get file: %w", err))
		return
	}
	img, err := r.download(ctx, url)
	if err != nil {
		r.SendError(ctx, cid, whiteboard.OpCalculate, fmt.Errorf("download photo: %w", err))
		return
	}
	r.send(cid, "Got the photo, solving...")

	dataURL := util.MakeDataURL(util.PickMIME("", "", img), img)
	out, err := r.Service.Calculate(ctx, whiteboard.CalculateRequest{
		Image: dataURL,
		Vars:  ParseVars(msg.Caption),
	})
	if err != nil {
		r.SendError(ctx, cid, whiteboard.OpCalculate, err)
		return
	}
	r.send(cid, FormatCalc(out.Items))
}

func (r *Router) download(ctx context.Context, url string) ([]byte, error) {
	httpc := r.HTTP
	if httpc == nil {
		httpc = &http.Client{Timeout: 60 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	limit := r.MaxPhotoBytes
	if limit <= 0 {
		limit = maxPhotoBytes
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("photo is larger than %d bytes", limit)
	}
	return b, nil
}

func (r *Router) stats(ctx context.Context, cid int64) {
	if r.Stats == nil {
		r.send(cid, "Stats are not available: no database configured.")
		return
	}
	rows, err := r.Stats.Stats(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		r.log(ctx).Warn("stats query failed", slog.Any("err", err))
		r.send(cid, "Could not load stats.")
		return
	}
	r.send(cid, FormatStats(rows))
}

// recent lists the latest runs; args may name one operation
// (generate_mermaid, ask_ai, calculate).
func (r *Router) recent(ctx context.Context, cid int64, op string) {
	if r.Stats == nil {
		r.send(cid, "History is not available: no database configured.")
		return
	}
	switch op {
	case "", whiteboard.OpDiagram, whiteboard.OpAsk, whiteboard.OpCalculate:
	default:
		r.send(cid, "Usage: /recent [generate_mermaid|ask_ai|calculate]")
		return
	}
	gens, err := r.Stats.Recent(ctx, op, recentLimit)
	if err != nil {
		r.log(ctx).Warn("recent query failed", slog.Any("err", err))
		r.send(cid, "Could not load history.")
		return
	}
	r.send(cid, FormatRecent(gens))
}

func (r *Router) send(chatID int64, text string) {
	if strings.TrimSpace(text) == "" {
		text = "(empty)"
	}
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, util.Truncate(text, maxMessage))); err != nil {
		r.log(context.Background()).Warn("telegram send failed", slog.Int64("chat_id", chatID), slog.Any("err", err))
	}
}

// SendError reports a failed operation to the chat without leaking provider details.
func (r *Router) SendError(ctx context.Context, chatID int64, op string, err error) {
	if errors.Is(err, whiteboard.ErrInvalidInput) {
		r.send(chatID, err.Error())
		return
	}
	kind := llm.KindOf(err)
	r.log(ctx).Warn("telegram op failed", slog.String("op", op), slog.String("kind", kind.String()), slog.Any("err", err))
	r.send(chatID, userMessage(kind))
}

func userMessage(k llm.Kind) string {
	switch k {
	case llm.KindCredential:
		return "The AI providers rejected our credentials. Please tell the operator."
	case llm.KindTransient, llm.KindCanceled:
		return "The AI providers are busy right now. Try again in a minute."
	case llm.KindExhausted:
		return "Couldn't produce a valid answer. Try rephrasing."
	default:
		return "Something went wrong."
	}
}
