package main

import (
	"os"

	"github.com/spf13/cobra"

	"ai-whiteboard/api/internal/mcpserver"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the whiteboard tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, appOptions{withStore: true})
			if err != nil {
				return err
			}
			defer a.Close()

			s := mcpserver.New(mcpserver.Deps{
				Service: a.svc,
				Catalog: a.catalog,
				Version: version,
				Logger:  a.log,
			})
			return s.Serve(ctx, os.Stdin, os.Stdout)
		},
	}
}
