// Package server provides the public entry point for initializing the
// canvas-agent service: configuration, telemetry, cache, embedding and
// vector backends, the endpoint registry, the LLM driver, and the HTTP
// router, wired together in one explicit startup sequence.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/datacanvas/datacanvas/canvas-agent/internal/agent"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/api"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/api/handlers"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/cache"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/catalog"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/config"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/embeddings"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/llm"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/memory"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/registry"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/telemetry"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/tools"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/vectorstore"
)

// Server holds the initialized canvas-agent service.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush
	// telemetry and release connections.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from environment configuration and
// returns a ready Server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the service with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	responseCache := cache.New(ctx, cfg.Redis.URL, time.Duration(cfg.Redis.DefaultTTL)*time.Second)
	log.Info().Bool("redis", responseCache.Connected()).Msg("response cache initialized")

	embedder, err := embeddings.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("init embeddings: %w", err)
	}
	log.Info().Str("driver", embedder.Kind()).Msg("embedding driver initialized")

	vectors, err := vectorstore.New(cfg.Vector)
	if err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	log.Info().Str("driver", vectors.Kind()).Msg("vector store initialized")

	reg := registry.New(embedder, vectors)

	// A failed catalog load leaves the registry empty rather than
	// aborting startup; search then returns no results until a reload.
	if c, err := catalog.Load(ctx, cfg.Swagger.URL); err != nil {
		log.Warn().Err(err).Str("url", cfg.Swagger.URL).Msg("catalog load failed, registry is empty")
	} else if err := reg.Load(ctx, c); err != nil {
		log.Warn().Err(err).Msg("registry load failed, registry is empty")
	}

	chatDriver, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("init llm driver: %w", err)
	}
	log.Info().Str("provider", chatDriver.Kind()).Msg("chat driver initialized")

	mem := memory.NewStore(responseCache)
	runner := tools.NewRunner(reg, responseCache)
	canvasAgent := agent.New(chatDriver, runner, mem)

	h := handlers.New(canvasAgent, reg, mem, responseCache, cfg.Version)
	router := api.NewRouter(cfg, h)

	shutdown := func(ctx context.Context) error {
		if err := responseCache.Close(); err != nil {
			log.Warn().Err(err).Msg("cache close failed")
		}
		return shutdownTelemetry(ctx)
	}

	return &Server{
		Handler:      router,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}
