package main

import (
	"time"

	"github.com/spf13/cobra"

	"ai-whiteboard/api/internal/handle"
	"ai-whiteboard/api/internal/httpserver"
)

func newServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve /generate-mermaid, /ask-ai and /calculate over HTTP.

Required env: GEMINI_API_KEY, GROQ_API_KEY. DATABASE_URL enables the generation log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{withStore: true})
			if err != nil {
				return err
			}
			defer a.Close()
			if port != "" {
				a.cfg.Port = port
			}

			h := handle.New(a.svc, handle.Options{
				Timeout:     a.cfg.RequestTimeout,
				CORSOrigins: a.cfg.CORSOrigins,
				Logger:      a.log,
				Ready:       a.ready,
			})
			// room for the longest X-Request-Timeout override
			srv := httpserver.New(a.cfg.Addr(), h.Routes(), 3*a.cfg.RequestTimeout+10*time.Second)
			return httpserver.Run(ctx, srv, a.log)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (overrides PORT)")
	return cmd
}
