package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Telegram
	BotToken      string
	WebhookURL    string
	WebhookSecret string

	// HTTP Server
	Port string

	// Reporting timezone
	Timezone string

	// Database
	SQLiteDBPath string

	// AMQP (optional; empty URL disables event publishing)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

func Load() *Config {
	cfg := &Config{
		BotToken:      getEnv("BOT_TOKEN", ""),
		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", "finance-bot-secret"),

		Port:     getEnv("PORT", "3000"),
		Timezone: getEnv("TZ", "Asia/Tashkent"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finance-bot.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finance_bot"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),
	}

	return cfg
}

// WebhookPath is the secret-bearing path Telegram posts updates to.
func (c *Config) WebhookPath() string {
	return "/webhook/" + c.WebhookSecret
}

// FullWebhookURL is the externally reachable update endpoint registered
// with Telegram.
func (c *Config) FullWebhookURL() string {
	return strings.TrimRight(c.WebhookURL, "/") + c.WebhookPath()
}

// Location resolves the configured timezone. Validate has already
// checked resolvability, so callers treat an error here as a bug.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Validate validates the configuration and returns an error listing
// every problem found. The process fails fast on any of them.
func (c *Config) Validate() error {
	var errors []string

	if c.BotToken == "" {
		errors = append(errors, "BOT_TOKEN is required")
	}

	if c.WebhookURL == "" {
		errors = append(errors, "WEBHOOK_URL is required (e.g. https://your-app.onrender.com)")
	} else if parsedURL, err := url.Parse(c.WebhookURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid webhook URL '%s': %v", c.WebhookURL, err))
	} else if parsedURL.Scheme != "https" && parsedURL.Scheme != "http" {
		errors = append(errors, fmt.Sprintf("invalid webhook URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}

	if c.WebhookSecret == "" {
		errors = append(errors, "webhook secret cannot be empty")
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
