package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	ListenPort int
}

const contextKeyRequestID = "_tubecast_request_id"

// NewApp builds a Fiber application with request-ID tagging, panic recovery
// and structured request logging. Routes are registered separately.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts))

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID 并输出访问日志。
func requestContextMiddleware(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		if !isDiagnosticsPath(string(c.Request().URI().Path())) {
			opts.Logger.WithFields(logrus.Fields{
				"action":     "http_request",
				"method":     c.Method(),
				"url":        string(c.Request().URI().RequestURI()),
				"request_id": reqID,
			}).Info("request")
		}
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

// HostBase derives the externally visible base URL for the current request.
// An explicit override wins; otherwise scheme and Host header are used.
func HostBase(c fiber.Ctx, override string) string {
	if override != "" {
		return strings.TrimSuffix(override, "/")
	}

	scheme := string(c.Request().URI().Scheme())
	if scheme == "" {
		scheme = "http"
	}
	host := strings.TrimSpace(getHostHeader(c))
	if host == "" {
		host = "localhost"
	}
	return scheme + "://" + host
}

func getHostHeader(c fiber.Ctx) string {
	if raw := c.Request().Header.Peek(fiber.HeaderHost); len(raw) > 0 {
		return string(raw)
	}
	return c.Hostname()
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
