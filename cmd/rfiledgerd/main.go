package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"rfiledger/internal/bot"
	"rfiledger/internal/common"
	"rfiledger/internal/extract"
	"rfiledger/internal/ledger"
	"rfiledger/internal/parser"
	"rfiledger/internal/server"
	"rfiledger/internal/session"
	"rfiledger/internal/workflow"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		logger.Error("create data dir", "dir", cfg.Storage.DataDir, "err", err)
		os.Exit(1)
	}

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := session.NewStore(cfg.Storage.DBPath, logger)
	if err != nil {
		logger.Error("open session store", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	dialect, err := ledger.ParseDialect(cfg.Ledger.Dialect)
	if err != nil {
		logger.Error("invalid ledger dialect", "err", err)
		os.Exit(1)
	}

	profile := ledger.DefaultProfile()
	if cfg.Ledger.ProfilePath != "" {
		if profile, err = ledger.LoadProfile(cfg.Ledger.ProfilePath); err != nil {
			logger.Error("load merge profile", "path", cfg.Ledger.ProfilePath, "err", err)
			os.Exit(1)
		}
	}

	extractor := extract.NewExtractor(extract.Config{
		Pdftotext: cfg.Extract.PdftotextBin,
		Timeout:   cfg.Extract.Timeout,
	}, logger)
	fields := parser.New(profile.SiteTokens, logger)
	engine := ledger.NewEngine(cfg.Storage.DataDir, logger)
	ctrl := workflow.NewController(store, extractor, fields, engine, dialect, profile, logger)

	tg, err := bot.New(cfg.Bot.Token, ctrl, cfg.Storage.DataDir, logger)
	if err != nil {
		logger.Error("start bot", "err", err)
		os.Exit(1)
	}
	if cfg.Server.WebhookBaseURL != "" {
		url := strings.TrimRight(cfg.Server.WebhookBaseURL, "/") + "/webhook/" + cfg.Bot.Token
		if err := tg.RegisterWebhook(url); err != nil {
			logger.Error("register webhook", "err", err)
			os.Exit(1)
		}
	}

	srv := server.New(tg, cfg.Bot.Token, logger)
	go func() {
		if err := srv.Start(cfg.Server.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
	logger.Info("stopped.")
}
