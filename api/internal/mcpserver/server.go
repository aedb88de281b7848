// Package mcpserver exposes the whiteboard operations as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"ai-whiteboard/api/internal/catalog"
	"ai-whiteboard/api/internal/llm"
	"ai-whiteboard/api/internal/logging"
	"ai-whiteboard/api/internal/whiteboard"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type Service interface {
	GenerateMermaid(ctx context.Context, request string) (whiteboard.DiagramResult, error)
	Ask(ctx context.Context, question string) (whiteboard.AskResult, error)
	Calculate(ctx context.Context, in whiteboard.CalculateRequest) (whiteboard.CalcResult, error)
}

type Deps struct {
	Service Service
	Catalog *catalog.Catalog
	Version string
	Logger  *slog.Logger
}

type Server struct {
	svc       Service
	cat       *catalog.Catalog
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

func New(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		// stdout carries the protocol; logs go to stderr.
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	version := d.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{svc: d.Service, cat: d.Catalog, logger: logger}
	mcpSrv := server.NewMCPServer(
		"ai-whiteboard",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("AI whiteboard tools. Use generate_mermaid to turn a description into Mermaid markup, ask_ai for short answers, calculate to solve math drawn on a whiteboard image, and diagram_types to list supported diagrams."),
	)
	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve runs the stdio transport until ctx is cancelled or in closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, in, out)
}

// MCPServer returns the underlying server for tests or other transports.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: generateMermaidTool(), Handler: s.handleGenerateMermaid},
		{Tool: askTool(), Handler: s.handleAsk},
		{Tool: calculateTool(), Handler: s.handleCalculate},
		{Tool: diagramTypesTool(), Handler: s.handleDiagramTypes},
	}
}

func generateMermaidTool() mcp.Tool {
	return mcp.NewTool("generate_mermaid",
		mcp.WithDescription("Generate a Mermaid diagram from a natural language description"),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("What the diagram should show, e.g. 'flowchart of a login process'")),
	)
}

func askTool() mcp.Tool {
	return mcp.NewTool("ask_ai",
		mcp.WithDescription("Answer a question as briefly as possible"),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question to answer")),
	)
}

func calculateTool() mcp.Tool {
	return mcp.NewTool("calculate",
		mcp.WithDescription("Solve the math expression or drawing in a whiteboard image"),
		mcp.WithString("image", mcp.Required(), mcp.Description("Image as a base64 data URL (data:image/png;base64,...)")),
		mcp.WithObject("dict_of_vars", mcp.Description("Variables assigned so far, name to value")),
	)
}

func diagramTypesTool() mcp.Tool {
	return mcp.NewTool("diagram_types",
		mcp.WithDescription("List supported diagram types with an example request and markup for each"),
	)
}

func (s *Server) handleGenerateMermaid(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError("prompt is required"), nil
	}
	ctx = logging.WithSource(logging.WithRequestID(ctx, logging.NewRequestID()), "mcp")
	out, err := s.svc.GenerateMermaid(ctx, p)
	if err != nil {
		return s.toolError(ctx, whiteboard.OpDiagram, err), nil
	}
	return mcp.NewToolResultText(out.MermaidSyntax), nil
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question is required"), nil
	}
	ctx = logging.WithSource(logging.WithRequestID(ctx, logging.NewRequestID()), "mcp")
	out, err := s.svc.Ask(ctx, q)
	if err != nil {
		return s.toolError(ctx, whiteboard.OpAsk, err), nil
	}
	return mcp.NewToolResultText(out.Result), nil
}

func (s *Server) handleCalculate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	img, err := req.RequireString("image")
	if err != nil {
		return mcp.NewToolResultError("image is required"), nil
	}
	raw := mcp.ParseStringMap(req, "dict_of_vars", nil)
	vars := make(map[string]string, len(raw))
	for k, v := range raw {
		vars[k] = fmt.Sprint(v)
	}

	ctx = logging.WithSource(logging.WithRequestID(ctx, logging.NewRequestID()), "mcp")
	out, err := s.svc.Calculate(ctx, whiteboard.CalculateRequest{Image: img, Vars: vars})
	if err != nil {
		return s.toolError(ctx, whiteboard.OpCalculate, err), nil
	}
	return marshalResult(out.Items)
}

func (s *Server) handleDiagramTypes(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.cat == nil {
		return mcp.NewToolResultError("catalog is not configured"), nil
	}
	return marshalResult(s.cat.All())
}

func (s *Server) toolError(ctx context.Context, op string, err error) *mcp.CallToolResult {
	if errors.Is(err, whiteboard.ErrInvalidInput) {
		return mcp.NewToolResultError(err.Error())
	}
	kind := llm.KindOf(err)
	logging.LogWith(ctx, s.logger).Warn("tool failed",
		slog.String("op", op), slog.String("kind", kind.String()), slog.Any("err", err))
	return mcp.NewToolResultError(fmt.Sprintf("%s failed (%s): %v", op, kind, err))
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
