// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"net/http"
	"runtime"

	"github.com/gofiber/fiber/v2"

	"github.com/mia-platform/odp/internal/info"
)

type statusResponse struct {
	Status  string `json:"status"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

type versionResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	BuildDate string `json:"buildDate,omitempty"`
	GoVersion string `json:"goVersion"`
}

// statusRoutes registers the health and readiness routes. The service is ready once at least one
// pipeline is loaded.
func statusRoutes(app *fiber.App, pipelines Pipelines) {
	app.Get(statusPrefix+"healthz", func(c *fiber.Ctx) error {
		return c.JSON(statusResponse{Status: "OK", Name: info.AppName, Version: info.Version})
	})

	app.Get(statusPrefix+"ready", func(c *fiber.Ctx) error {
		if len(pipelines.Pipelines()) == 0 {
			return c.Status(http.StatusServiceUnavailable).JSON(statusResponse{Status: "KO", Name: info.AppName, Version: info.Version})
		}
		return c.JSON(statusResponse{Status: "OK", Name: info.AppName, Version: info.Version})
	})

	app.Get(statusPrefix+"version", func(c *fiber.Ctx) error {
		return c.JSON(versionResponse{
			Name:      info.AppName,
			Version:   info.Version,
			BuildDate: info.BuildDate,
			GoVersion: runtime.Version(),
		})
	})
}
