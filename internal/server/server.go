// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/mia-platform/odp/internal/info"
	"github.com/mia-platform/odp/internal/logger"
	"github.com/mia-platform/odp/internal/pipeline"
	"github.com/mia-platform/odp/internal/service"
)

const (
	loggerName = "odp:server"

	statusPrefix = "/-/"
)

// Server is an HTTP listener bound to a set of pipelines.
type Server interface {
	Start() error
	Stop() error
	StartAsync(ctx context.Context)
}

// Pipelines is the view of the loaded pipelines the routes operate on.
type Pipelines interface {
	Pipelines() []service.Status
	Start(ctx context.Context, name string, opts pipeline.RunOptions) error
	Runs(ctx context.Context, pipelineName string, limit int) ([]*pipeline.Report, error)
}

type impServer struct {
	Config

	app *fiber.App
}

var (
	ErrServerListen   = errors.New("server listen error")
	ErrServerShutdown = errors.New("server shutdown error")
)

// NewServer builds the HTTP server. Runs triggered through it are bound to ctx
// instead of the request, so they outlive the response.
func NewServer(ctx context.Context, cfg Config, pipelines Pipelines) Server {
	return &impServer{
		Config: cfg,
		app:    newApp(ctx, cfg, pipelines),
	}
}

func newApp(ctx context.Context, cfg Config, pipelines Pipelines) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               info.AppName,
		DisableStartupMessage: cfg.DisableStartupMessage,
		Immutable:             true,
		ErrorHandler:          errorHandler,
	})
	log := logger.FromContext(ctx)
	app.Use(logger.RequestMiddlewareLogger(log, []string{statusPrefix}))

	statusRoutes(app, pipelines)
	pipelineRoutes(ctx, app, pipelines)

	return app
}

func (s *impServer) Start() error {
	if err := s.app.Listen(fmt.Sprintf("%s:%d", s.HTTPHost, s.HTTPPort)); err != nil {
		return fmt.Errorf("%w: %w", ErrServerListen, err)
	}
	return nil
}

func (s *impServer) Stop() error {
	if err := s.app.Shutdown(); err != nil {
		return fmt.Errorf("%w: %w", ErrServerShutdown, err)
	}
	return nil
}

func (s *impServer) StartAsync(ctx context.Context) {
	log := logger.Named(ctx, loggerName)
	go func() {
		if err := s.Start(); err != nil {
			log.Error(err.Error())
		}
	}()
}
