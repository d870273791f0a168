// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/Savwangs/course-database/services/assistant"
	"github.com/Savwangs/course-database/services/assistant/catalog"
	"github.com/Savwangs/course-database/services/assistant/config"
	"github.com/Savwangs/course-database/services/assistant/logstore"
	"github.com/Savwangs/course-database/services/assistant/providers"
	"github.com/Savwangs/course-database/services/assistant/query"
	"github.com/Savwangs/course-database/services/assistant/session"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagCatalog != "" {
		cfg.Catalog.Path = flagCatalog
	}

	svc, provider, loader, interactions, sessions, err := buildService(cfg, logger)
	if err != nil {
		return err
	}
	defer interactions.Close()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("coursedb"))
	router.Use(assistant.SessionMiddleware())
	assistant.RegisterRoutes(router.Group("/api"), assistant.NewHandlers(svc, logger))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("coursedb assistant listening",
		slog.String("addr", cfg.Server.Addr),
		slog.Int("courses", svc.CoursesLoaded()),
		slog.String("catalog", cfg.Catalog.Path))

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.Catalog.Watch {
		watcher := catalog.NewWatcher(cfg.Catalog.Path, loader, provider, logger)
		group.Go(func() error {
			if err := watcher.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		if err := sessions.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	err = group.Wait()
	logger.Info("coursedb assistant stopped")
	return err
}

// buildService wires the full answer pipeline from configuration.
func buildService(cfg config.Config, logger *slog.Logger) (*assistant.Service, *catalog.Provider, *catalog.Loader, logstore.Logger, *session.Store, error) {
	loader := catalog.NewLoader(logger)
	idx, _, err := loader.LoadFile(cfg.Catalog.Path)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	provider := catalog.NewProvider(idx)

	rules, err := config.LoadRules(flagRules)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	ruleParser := query.NewRuleParser(query.RuleSet{
		SubjectSynonyms:      rules.SubjectSynonyms,
		FuzzySubjectDistance: rules.FuzzySubjectDistance,
	})

	providerCfg, err := providers.LoadParserConfig()
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	chatClient, err := providers.NewChatClient(providerCfg, logger)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	var llmParser query.Parser
	if chatClient != nil {
		llmCfg := query.DefaultLLMParserConfig()
		llmCfg.Model = providerCfg.Model
		llmCfg.Timeout = cfg.Interpreter.LLMTimeout.Std()
		llmParser = query.NewLLMParser(chatClient, llmCfg)
	}

	interpreter := query.NewInterpreter(ruleParser, llmParser, query.InterpreterConfig{
		ConfidenceThreshold: cfg.Interpreter.ConfidenceThreshold,
		LLMRateLimit:        cfg.Interpreter.LLMRateLimit,
		LLMCooldown:         cfg.Interpreter.LLMCooldown.Std(),
	}, logger)

	interactions, err := buildInteractionLog(cfg.Log)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	sessions := session.NewStore(cfg.Session.TTL.Std(), logger)
	svc := assistant.NewService(provider, interpreter, sessions, interactions, logger)
	return svc, provider, loader, interactions, sessions, nil
}

func buildInteractionLog(cfg config.LogConfig) (logstore.Logger, error) {
	switch cfg.Backend {
	case "file":
		return logstore.NewFileLogger(cfg.Path)
	case "badger":
		return logstore.NewBadgerLogger(cfg.Path)
	default:
		return logstore.NopLogger{}, nil
	}
}
