// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/gofiber/fiber/v2"

	"github.com/mia-platform/odp/internal/logger"
	"github.com/mia-platform/odp/internal/pipeline"
	"github.com/mia-platform/odp/internal/service"
)

const (
	queryTest     = "test"
	querySource   = "source"
	queryPipeline = "pipeline"
	queryLimit    = "limit"
)

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

type triggerResponse struct {
	Pipeline string `json:"pipeline"`
	Status   string `json:"status"`
}

func pipelineRoutes(ctx context.Context, app *fiber.App, pipelines Pipelines) {
	app.Get("/pipelines", func(c *fiber.Ctx) error {
		return c.JSON(pipelines.Pipelines())
	})

	app.Post("/pipelines/:name/runs", func(c *fiber.Ctx) error {
		name := c.Params("name")
		opts := pipeline.RunOptions{
			TestMode: c.QueryBool(queryTest, false),
		}
		for _, value := range c.Context().QueryArgs().PeekMulti(querySource) {
			opts.Sources = append(opts.Sources, string(value))
		}

		if err := checkSources(pipelines, name, opts.Sources); err != nil {
			return err
		}

		runCtx := logger.WithContext(ctx, logger.FromContext(c.UserContext()))
		if err := pipelines.Start(runCtx, name, opts); err != nil {
			return err
		}
		return c.Status(http.StatusAccepted).JSON(triggerResponse{Pipeline: name, Status: "accepted"})
	})

	app.Get("/pipelines/:name/runs", func(c *fiber.Ctx) error {
		return listRuns(c, pipelines, c.Params("name"))
	})

	app.Get("/runs", func(c *fiber.Ctx) error {
		return listRuns(c, pipelines, c.Query(queryPipeline))
	})
}

// checkSources rejects a trigger naming sources the pipeline does not declare, as
// the run itself fails only after the response is sent.
func checkSources(pipelines Pipelines, name string, sources []string) error {
	for _, status := range pipelines.Pipelines() {
		if status.Name != name {
			continue
		}
		for _, requested := range sources {
			if !slices.Contains(status.Sources, requested) {
				return fiber.NewError(http.StatusBadRequest, pipeline.ErrSourceNotConfigured.Error()+": "+requested)
			}
		}
	}
	return nil
}

func listRuns(c *fiber.Ctx, pipelines Pipelines, pipelineName string) error {
	limit := c.QueryInt(queryLimit, 0)
	if limit < 0 {
		return fiber.NewError(http.StatusBadRequest, "limit must not be negative")
	}

	reports, err := pipelines.Runs(c.UserContext(), pipelineName, limit)
	if err != nil {
		return err
	}
	return c.JSON(reports)
}

// errorHandler maps the service errors to their status code and renders every
// error with the same body.
func errorHandler(c *fiber.Ctx, err error) error {
	code := http.StatusInternalServerError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
	case errors.Is(err, service.ErrPipelineNotFound):
		code = http.StatusNotFound
	case errors.Is(err, service.ErrRunInProgress):
		code = http.StatusConflict
	default:
		logger.Named(c.UserContext(), loggerName).Error("request failed", "error", err.Error())
	}

	return c.Status(code).JSON(errorResponse{
		StatusCode: code,
		Error:      http.StatusText(code),
		Message:    err.Error(),
	})
}
