// Package webserver hosts the embedded echo server for the admin API. Route
// registration goes through the package-level Api helpers so feature packages
// never hold the echo instance themselves.
package webserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/talkincode/waconsole/config"
	"go.uber.org/zap"
)

type WebServer struct {
	root *echo.Echo
	api  *echo.Group
	cfg  *config.AppConfig
}

var server *WebServer

// Init builds the echo instance and the /api route group. Must be called
// before any Api* registration.
func Init(cfg *config.AppConfig) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Web.Debug

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	}))
	e.Use(requestLogger())

	server = &WebServer{
		root: e,
		api:  e.Group("/api"),
		cfg:  cfg,
	}
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			zap.L().Debug("webserver: request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	})
}

// ApiGET registers a GET handler under /api.
func ApiGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.GET(path, h, m...)
}

// ApiPOST registers a POST handler under /api.
func ApiPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.POST(path, h, m...)
}

// ApiPUT registers a PUT handler under /api.
func ApiPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.PUT(path, h, m...)
}

// ApiDELETE registers a DELETE handler under /api.
func ApiDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.DELETE(path, h, m...)
}

// Start blocks serving HTTP until Shutdown or a listener error.
func Start() error {
	addr := fmt.Sprintf("%s:%d", server.cfg.Web.Host, server.cfg.Web.Port)
	zap.L().Info("webserver: listening", zap.String("addr", addr))
	err := server.root.Start(addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func Shutdown() {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.root.Shutdown(ctx); err != nil {
		zap.L().Warn("webserver: shutdown error", zap.Error(err))
	}
}
