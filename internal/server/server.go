package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// UpdateHandler consumes decoded Telegram updates.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// Server exposes the Telegram webhook endpoint and a liveness route.
// The webhook path embeds the bot token the same way Telegram's own
// examples do, so unauthenticated posts never reach the dispatcher.
type Server struct {
	echo    *echo.Echo
	handler UpdateHandler
	token   string
	logger  *slog.Logger
}

func New(h UpdateHandler, token string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{handler: h, token: token, logger: logger}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Bot is running!")
	})
	e.POST("/webhook/:token", s.handleWebhook)

	s.echo = e
	return s
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	s.logger.Info("server.listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleWebhook(c echo.Context) error {
	if c.Param("token") != s.token {
		return c.NoContent(http.StatusNotFound)
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(c.Request().Body).Decode(&update); err != nil {
		s.logger.Warn("server.webhook.bad_payload", "err", err)
		return c.NoContent(http.StatusBadRequest)
	}

	s.handler.HandleUpdate(c.Request().Context(), update)
	return c.String(http.StatusOK, "OK")
}
