package main

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"ai-whiteboard/api/internal/httpserver"
	"ai-whiteboard/api/internal/telegram"
)

func newBotCmd() *cobra.Command {
	var withHealth bool
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot (long polling)",
		Long: `Run the Telegram front end. Text and /diagram produce Mermaid markup,
/ask answers a question, and a photo is solved like /calculate.

Required env: TELEGRAM_BOT_TOKEN in addition to the provider keys.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{withStore: true})
			if err != nil {
				return err
			}
			defer a.Close()
			if a.cfg.TelegramBotToken == "" {
				return fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
			}

			bot, err := tgbotapi.NewBotAPI(a.cfg.TelegramBotToken)
			if err != nil {
				return fmt.Errorf("telegram: %w", err)
			}
			bot.Debug = false
			a.log.Info("telegram authorized", slog.String("bot", bot.Self.UserName))

			r := &telegram.Router{
				Bot:     bot,
				Service: a.svc,
				Logger:  a.log,
				Timeout: a.cfg.RequestTimeout,
			}
			if a.repo != nil {
				r.Stats = a.repo
			}

			if withHealth {
				srv := httpserver.New(a.cfg.Addr(), httpserver.Health("ok", a.ready), a.cfg.RequestTimeout)
				go func() {
					if err := httpserver.Run(ctx, srv, a.log); err != nil {
						a.log.Error("health server stopped", slog.Any("err", err))
					}
				}()
			}
			return r.Run(ctx, bot)
		},
	}
	cmd.Flags().BoolVar(&withHealth, "health", true, "Serve /healthz on PORT while polling")
	return cmd
}
