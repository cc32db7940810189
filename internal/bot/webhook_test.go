package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	applog "github.com/graff012/finance-bot/internal/log"
)

type fakeWebhookAPI struct {
	infoURL     string
	infoErr     error
	requests    []tgbotapi.Chattable
	requestErrs []error
}

func (f *fakeWebhookAPI) GetWebhookInfo() (tgbotapi.WebhookInfo, error) {
	return tgbotapi.WebhookInfo{URL: f.infoURL}, f.infoErr
}

func (f *fakeWebhookAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	if len(f.requestErrs) > 0 {
		err := f.requestErrs[0]
		f.requestErrs = f.requestErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{
		Component: applog.ComponentWebhook,
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})
}

const testWebhookURL = "https://bot.example.com/webhook/secret"

func TestRegisterWebhookSkipsWhenAlreadySet(t *testing.T) {
	api := &fakeWebhookAPI{infoURL: testWebhookURL}

	if err := RegisterWebhook(context.Background(), api, testWebhookURL, quietLogger()); err != nil {
		t.Fatalf("RegisterWebhook: %v", err)
	}
	if len(api.requests) != 0 {
		t.Fatalf("expected no setWebhook call, got %d requests", len(api.requests))
	}
}

func TestRegisterWebhookSetsWhenURLDiffers(t *testing.T) {
	api := &fakeWebhookAPI{infoURL: "https://old.example.com/webhook/x"}

	if err := RegisterWebhook(context.Background(), api, testWebhookURL, quietLogger()); err != nil {
		t.Fatalf("RegisterWebhook: %v", err)
	}
	if len(api.requests) != 1 {
		t.Fatalf("expected 1 setWebhook call, got %d", len(api.requests))
	}
	wh, ok := api.requests[0].(tgbotapi.WebhookConfig)
	if !ok {
		t.Fatalf("request %T, want WebhookConfig", api.requests[0])
	}
	if wh.URL == nil || wh.URL.String() != testWebhookURL {
		t.Errorf("webhook URL = %v, want %q", wh.URL, testWebhookURL)
	}
}

func TestRegisterWebhookRegistersWhenInfoFails(t *testing.T) {
	api := &fakeWebhookAPI{infoErr: errors.New("telegram down")}

	if err := RegisterWebhook(context.Background(), api, testWebhookURL, quietLogger()); err != nil {
		t.Fatalf("RegisterWebhook: %v", err)
	}
	if len(api.requests) != 1 {
		t.Fatalf("expected 1 setWebhook call, got %d", len(api.requests))
	}
}

func TestRegisterWebhookRetriesOnceAfterRateLimit(t *testing.T) {
	rateLimited := &tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 0},
	}
	// RetryAfter 0 means no retry guidance: fail immediately.
	api := &fakeWebhookAPI{requestErrs: []error{rateLimited}}
	if err := RegisterWebhook(context.Background(), api, testWebhookURL, quietLogger()); err == nil {
		t.Fatal("expected error when rate limited without retry_after")
	}

	rateLimited = &tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 1},
	}
	api = &fakeWebhookAPI{requestErrs: []error{rateLimited, nil}}
	if err := RegisterWebhook(context.Background(), api, testWebhookURL, quietLogger()); err != nil {
		t.Fatalf("RegisterWebhook after retry: %v", err)
	}
	if len(api.requests) != 2 {
		t.Fatalf("expected 2 setWebhook calls, got %d", len(api.requests))
	}

	// A second rate limit after the single retry is final.
	api = &fakeWebhookAPI{requestErrs: []error{rateLimited, rateLimited}}
	if err := RegisterWebhook(context.Background(), api, testWebhookURL, quietLogger()); err == nil {
		t.Fatal("expected error after exhausted retry")
	}
}

func TestRegisterWebhookHonorsContextDuringBackoff(t *testing.T) {
	rateLimited := &tgbotapi.Error{
		Code:               429,
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 60},
	}
	api := &fakeWebhookAPI{requestErrs: []error{rateLimited}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RegisterWebhook(ctx, api, testWebhookURL, quietLogger())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(api.requests) != 1 {
		t.Fatalf("expected 1 setWebhook call before cancellation, got %d", len(api.requests))
	}
}

func TestDeleteWebhook(t *testing.T) {
	api := &fakeWebhookAPI{}
	DeleteWebhook(api, quietLogger())

	if len(api.requests) != 1 {
		t.Fatalf("expected 1 deleteWebhook call, got %d", len(api.requests))
	}
	if _, ok := api.requests[0].(tgbotapi.DeleteWebhookConfig); !ok {
		t.Fatalf("request %T, want DeleteWebhookConfig", api.requests[0])
	}
}
