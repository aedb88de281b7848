package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"ai-whiteboard/api/internal/catalog"
	"ai-whiteboard/api/internal/config"
	"ai-whiteboard/api/internal/llm"
	"ai-whiteboard/api/internal/llm/gemini"
	"ai-whiteboard/api/internal/llm/openai"
	"ai-whiteboard/api/internal/logging"
	"ai-whiteboard/api/internal/prompt"
	"ai-whiteboard/api/internal/store"
	"ai-whiteboard/api/internal/validate"
	"ai-whiteboard/api/internal/whiteboard"
)

// app is everything a subcommand needs, built once from the environment.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	catalog *catalog.Catalog
	svc     *whiteboard.Service
	repo    *store.GenerationRepo // nil without a database

	closers []func() error
}

type appOptions struct {
	// withStore opens the database when one is configured.
	withStore bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// stdout belongs to the MCP transport and CLI output.
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, log: logger}
	if err := a.build(ctx, opts); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context, opts appOptions) error {
	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	a.catalog = cat

	mode, err := prompt.ParseExampleMode(a.cfg.ExampleMode)
	if err != nil {
		return err
	}
	shapes, err := validate.NewShapes()
	if err != nil {
		return fmt.Errorf("shapes: %w", err)
	}

	gem, err := gemini.New(ctx, a.cfg.GeminiAPIKey, a.cfg.GeminiModel)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, gem.Close)
	groq := openai.New("groq", a.cfg.GroqAPIKey, a.cfg.GroqBaseURL, a.cfg.GroqModel, a.cfg.GroqVisionModel)

	composer := prompt.NewComposer(cat, mode)
	deps := whiteboard.Deps{
		Primary:   llm.WithRateLimit(gem, a.cfg.GeminiRPS, 2),
		Secondary: llm.WithRateLimit(groq, a.cfg.GroqRPS, 2),
		Catalog:   cat,
		Composer:  composer,
		Syntax:    validate.NewSyntax(validate.MermaidKeywords(cat.Types())...),
		Shapes:    shapes,
		Logger:    a.log,
	}

	if opts.withStore {
		if err := a.openStore(ctx); err != nil {
			return err
		}
		if a.repo != nil {
			deps.Recorder = a.repo
		}
	}

	svc, err := whiteboard.New(deps)
	if err != nil {
		return err
	}
	a.svc = svc
	a.log.Info("pipeline ready",
		slog.String("primary", gem.Name()+"/"+gem.GetModel()),
		slog.String("secondary", groq.Name()+"/"+groq.GetModel()),
		slog.String("example_mode", string(composer.Mode())),
		slog.Bool("store", a.repo != nil),
	)
	return nil
}

func (a *app) openStore(ctx context.Context) error {
	dsn := a.cfg.DatabaseURL
	if dsn == "" {
		dsn = store.ResolveDSN()
	}
	if dsn == "" {
		a.log.Info("no database configured; generations are not recorded")
		return nil
	}
	a.log.Info("connecting to database", slog.String("dsn", store.SafeDSNSummary(dsn)))
	db, err := store.Open(ctx, dsn)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, db.Close)

	repo := store.NewGenerationRepo(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	a.repo = repo
	return nil
}

// ready backs /healthz: the process is ready when its database, if any, answers.
func (a *app) ready(ctx context.Context) error {
	if a.repo == nil {
		return nil
	}
	return pingDB(ctx, a.repo.DB)
}

func pingDB(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
