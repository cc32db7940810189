package main

import (
	"context"
	"errors"
	"net/http"
	"time"
	_ "time/tzdata"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/graff012/finance-bot/internal/amqp"
	"github.com/graff012/finance-bot/internal/bot"
	"github.com/graff012/finance-bot/internal/cli"
	apphttp "github.com/graff012/finance-bot/internal/http"
	applog "github.com/graff012/finance-bot/internal/log"
	"github.com/graff012/finance-bot/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Failed to load timezone",
			applog.FieldError, err,
			"timezone", cfg.Timezone)
		return
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close storage", applog.FieldError, err)
		}
	}()

	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP", applog.FieldError, err)
			return
		}
		defer func() {
			if err := events.Close(); err != nil {
				logger.Error("Failed to close AMQP client", applog.FieldError, err)
			}
		}()
		logger.Info("AMQP event publishing enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP not configured, events disabled")
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Error("Failed to create Telegram client", applog.FieldError, err)
		return
	}
	logger.Info("Authorized on Telegram", "bot_username", api.Self.UserName)

	ledger := services.NewLedger(repo, events, loc)
	handler := bot.NewHandler(api, ledger, logger.WithComponent(applog.ComponentBot))

	srv := apphttp.NewServer(":"+cfg.Port, cfg.WebhookPath(), handler, logger.WithComponent(applog.ComponentHTTP))

	webhookLogger := logger.WithComponent(applog.ComponentWebhook)
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		// Detach from Telegram before the listener goes away, so no
		// updates are delivered into a closed port.
		bot.DeleteWebhook(api, webhookLogger)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", applog.FieldError, err)
		}
	})

	go func() {
		logger.Info("HTTP server listening",
			"addr", srv.Addr,
			applog.FieldPath, cfg.WebhookPath())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", applog.FieldError, err)
		}
	}()

	// Periodically drop expired user cache entries.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ledger.UserCache().CleanExpired()
			case <-ctx.Done():
				return
			}
		}
	}()

	// A failed registration is logged but does not kill the process:
	// the operator can re-point the webhook while the server keeps
	// serving health checks.
	if err := bot.RegisterWebhook(ctx, api, cfg.FullWebhookURL(), webhookLogger); err != nil {
		webhookLogger.Error("Webhook registration failed", applog.FieldError, err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Shutdown complete")
}
