// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	requestIDHeaderName    = "X-Request-Id"
	forwardedHostHeaderKey = "X-Forwarded-Host"
	forwardedForHeaderKey  = "X-Forwarded-For"
	requestLoggerName      = "odp:request"

	IncomingRequestMessage  = "incoming request"
	RequestCompletedMessage = "request completed"
)

// httpRequest is the request part of the access log line.
type httpRequest struct {
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// httpResponse is the response part of the access log line.
type httpResponse struct {
	StatusCode int `json:"statusCode,omitempty"`
	Bytes      int `json:"bytes,omitempty"`
}

type httpHost struct {
	Hostname      string `json:"hostname,omitempty"`
	ForwardedHost string `json:"forwardedHost,omitempty"`
	IP            string `json:"ip,omitempty"`
}

// RequestID returns the id sent by the client in the X-Request-Id header, or a new
// random one.
func RequestID(c *fiber.Ctx) string {
	if requestID := c.Get(requestIDHeaderName); requestID != "" {
		return requestID
	}
	return uuid.NewString()
}

// RequestMiddlewareLogger logs every request whose path does not start with one of
// excludedPrefix. The handler sees a logger carrying the request id in its user context,
// and the id is echoed back in the X-Request-Id response header.
func RequestMiddlewareLogger(logger Logger, excludedPrefix []string) func(*fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, prefix := range excludedPrefix {
			if strings.HasPrefix(path, prefix) {
				return c.Next()
			}
		}

		start := time.Now()
		requestID := RequestID(c)
		log := logger.WithName(requestLoggerName).With("reqId", requestID)
		c.Set(requestIDHeaderName, requestID)
		c.SetUserContext(WithContext(c.UserContext(), log))

		request := httpRequest{
			Method:    c.Method(),
			Path:      string(c.Request().URI().RequestURI()),
			UserAgent: c.Get(fiber.HeaderUserAgent),
		}
		host := httpHost{
			Hostname:      c.Hostname(),
			ForwardedHost: c.Get(forwardedHostHeaderKey),
			IP:            c.Get(forwardedForHeaderKey),
		}
		log.Trace(IncomingRequestMessage, "request", request, "host", host)

		err := c.Next()

		log.Info(RequestCompletedMessage,
			"request", request,
			"response", completedResponse(c, err),
			"host", host,
			"responseTime", float64(time.Since(start).Milliseconds()),
		)
		return err
	}
}

// completedResponse reads the status from a handler error when the error handler has not
// written the response yet.
func completedResponse(c *fiber.Ctx, err error) httpResponse {
	if fiberErr := (*fiber.Error)(nil); errors.As(err, &fiberErr) {
		return httpResponse{StatusCode: fiberErr.Code, Bytes: len(fiberErr.Message)}
	}
	return httpResponse{
		StatusCode: c.Response().StatusCode(),
		Bytes:      len(c.Response().Body()),
	}
}
