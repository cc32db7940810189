// Package http exposes the webhook and health endpoints.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	applog "github.com/graff012/finance-bot/internal/log"
)

// UpdateHandler consumes decoded Telegram updates. *bot.Handler
// satisfies it.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

const maxUpdateBody = 1 << 20 // Telegram updates are tiny, anything near 1MB is garbage

type Server struct {
	http.Server
	updates UpdateHandler
	logger  *applog.Logger
}

// NewServer configures routes and returns a ready-to-run server.
// webhookPath carries the secret segment, so only Telegram (and anyone
// holding the secret) reaches the update handler.
func NewServer(addr, webhookPath string, updates UpdateHandler, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:           addr,
			Handler:        mux,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 16,
		},
		updates: updates,
		logger:  logger,
	}

	mux.HandleFunc(webhookPath, s.withLogging(s.handleWebhook))
	mux.HandleFunc("/", s.withLogging(s.handleHealth))

	return s
}

// handleWebhook decodes one Telegram update and dispatches it. The
// response is 200 even when the payload is malformed or processing
// panics: a non-2xx answer makes Telegram redeliver the same broken
// update in a retry loop.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateBody))
	if err != nil {
		s.logger.WarnContext(r.Context(), "Failed to read update body",
			applog.FieldError, err)
		w.WriteHeader(http.StatusOK)
		return
	}

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		s.logger.WarnContext(r.Context(), "Malformed update payload",
			applog.FieldError, err,
			"payload_preview", preview(body, 256))
		w.WriteHeader(http.StatusOK)
		return
	}

	s.dispatch(r.Context(), update)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.ErrorContext(ctx, "Panic while handling update",
				applog.FieldUpdateID, update.UpdateID,
				"panic", rec)
		}
	}()
	s.updates.HandleUpdate(ctx, update)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// withLogging adds request start/completion logging with a request ID.
func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()

		s.logger.Debug("Request started",
			"request_id", requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.Info("Request completed",
			"request_id", requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, time.Since(start).Milliseconds(),
			applog.FieldClientIP, clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}

// preview renders the first n bytes of a payload for log output.
func preview(body []byte, n int) string {
	if len(body) > n {
		body = body[:n]
	}
	return string(body)
}
