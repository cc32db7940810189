package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	applog "github.com/graff012/finance-bot/internal/log"
)

// webhookAPI is the part of the Telegram client the webhook lifecycle
// needs. *tgbotapi.BotAPI satisfies it.
type webhookAPI interface {
	GetWebhookInfo() (tgbotapi.WebhookInfo, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// RegisterWebhook points Telegram at fullURL. Registration is skipped
// when Telegram already has that exact URL, so restarts don't burn
// setWebhook rate-limit budget. On a rate-limited response the call is
// retried once after the server-indicated delay.
func RegisterWebhook(ctx context.Context, api webhookAPI, fullURL string, logger *applog.Logger) error {
	info, err := api.GetWebhookInfo()
	if err != nil {
		logger.Warn("Failed to read current webhook info, registering anyway",
			applog.FieldError, err)
	} else if info.URL == fullURL {
		logger.Info("Webhook already registered", applog.FieldWebhookURL, fullURL)
		return nil
	}

	wh, err := tgbotapi.NewWebhook(fullURL)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}

	if _, err := api.Request(wh); err != nil {
		var tgErr *tgbotapi.Error
		if !errors.As(err, &tgErr) || tgErr.RetryAfter <= 0 {
			return fmt.Errorf("set webhook: %w", err)
		}

		delay := time.Duration(tgErr.RetryAfter) * time.Second
		logger.Warn("Webhook registration rate limited, retrying once",
			applog.FieldWebhookURL, fullURL,
			"retry_after", delay.String())

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		if _, err := api.Request(wh); err != nil {
			return fmt.Errorf("set webhook after retry: %w", err)
		}
	}

	logger.Info("Webhook registered", applog.FieldWebhookURL, fullURL)
	return nil
}

// DeleteWebhook detaches the bot from its webhook so a stopped
// instance does not keep receiving updates it will never acknowledge.
func DeleteWebhook(api webhookAPI, logger *applog.Logger) {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		logger.Error("Failed to delete webhook", applog.FieldError, err)
		return
	}
	logger.Info("Webhook deleted")
}
