package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ai-whiteboard/api/internal/catalog"
)

func newDiagramCmd() *cobra.Command {
	var (
		listTypes bool
		asJSON    bool
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "diagram DESCRIPTION",
		Short: "Generate one Mermaid diagram from the command line",
		Long: `Run the diagram pipeline once and print the markup.

Examples:
  # Flowchart from a description
  whiteboard diagram "login process with 2FA"

  # List the supported diagram types
  whiteboard diagram --types`,
		Args: func(cmd *cobra.Command, args []string) error {
			if listTypes {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if listTypes {
				cat, err := catalog.Default()
				if err != nil {
					return err
				}
				printTypes(out, cat)
				return nil
			}

			a, err := newApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			request := strings.Join(args, " ")
			printHeader(out, request)

			s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
			s.Suffix = " Generating diagram..."
			s.Start()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			res, err := a.svc.GenerateMermaid(ctx, request)
			s.Stop()
			if err != nil {
				printFailure(out, "Generation failed")
				return err
			}

			kind := res.DiagramType
			if kind == "" {
				kind = "diagram"
			}
			printSuccess(out, fmt.Sprintf("Generated %s via %s", kind, res.Meta.Provider))
			for _, p := range res.Meta.CredentialFailures {
				printWarning(out, "credential failure on "+p)
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, res.MermaidSyntax)
			return nil
		},
	}
	cmd.Flags().BoolVar(&listTypes, "types", false, "List supported diagram types and exit")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the response body instead of bare markup")
	cmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "Deadline for the whole pipeline")
	return cmd
}

func printHeader(w io.Writer, request string) {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintln(w, "\nMermaid diagram")
	fmt.Fprintf(w, "Request: %s\n\n", request)
}

func printSuccess(w io.Writer, msg string) {
	color.New(color.FgGreen).Fprintf(w, "✓ %s\n", msg)
}

func printWarning(w io.Writer, msg string) {
	color.New(color.FgYellow).Fprintf(w, "! %s\n", msg)
}

func printFailure(w io.Writer, msg string) {
	color.New(color.FgRed).Fprintf(w, "✗ %s\n", msg)
}

func printTypes(w io.Writer, cat *catalog.Catalog) {
	bold := color.New(color.Bold)
	for _, ex := range cat.All() {
		bold.Fprintf(w, "%-16s", ex.Type)
		fmt.Fprintf(w, " %s\n", ex.Prompt)
	}
}
