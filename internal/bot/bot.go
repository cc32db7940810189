package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	applog "github.com/graff012/finance-bot/internal/log"
	"github.com/graff012/finance-bot/internal/services"
)

// Sender is the slice of the Telegram client the handler needs.
// *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Handler routes Telegram updates to commands, inline-button callbacks
// and in-progress dialogs.
type Handler struct {
	api      Sender
	ledger   *services.Ledger
	sessions *sessionRegistry
	logger   *applog.Logger
}

func NewHandler(api Sender, ledger *services.Ledger, logger *applog.Logger) *Handler {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentBot)
	}
	return &Handler{
		api:      api,
		ledger:   ledger,
		sessions: newSessionRegistry(),
		logger:   logger,
	}
}

// HandleUpdate processes a single webhook update. Errors are handled
// internally: the transport layer acknowledges Telegram regardless.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	default:
		h.logger.Debug("Ignoring update without message or callback",
			applog.FieldUpdateID, update.UpdateID)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		h.handleCommand(ctx, msg)
		return
	}
	h.resumeSession(ctx, msg)
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	h.logger.Info("Command received",
		applog.FieldCommand, cmd,
		applog.FieldChatID, msg.Chat.ID)

	switch cmd {
	case "start":
		welcome := tgbotapi.NewMessage(msg.Chat.ID, msgWelcome)
		welcome.ReplyMarkup = mainMenu()
		h.send(welcome)
	case "help":
		help := tgbotapi.NewMessage(msg.Chat.ID, msgHelp)
		help.ParseMode = tgbotapi.ModeMarkdown
		h.send(help)
	case "add_income":
		h.beginFlowFromMessage(msg, flowAddIncome)
	case "add_expense":
		h.beginFlowFromMessage(msg, flowAddExpense)
	case "set_limit":
		h.beginFlowFromMessage(msg, flowSetLimit)
	case "report_today":
		h.commandReport(ctx, msg, periodToday)
	case "report_month":
		h.commandReport(ctx, msg, periodMonth)
	case "balance":
		h.commandBalance(ctx, msg)
	default:
		h.logger.Debug("Unknown command ignored", applog.FieldCommand, cmd)
	}
}

func (h *Handler) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// Acknowledge first so the client stops showing the spinner even
	// if the action below fails.
	if _, err := h.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		h.logger.Warn("Failed to answer callback query", applog.FieldError, err)
	}

	if cq.Message == nil || cq.From == nil {
		h.logger.Debug("Callback without message or sender ignored")
		return
	}
	chatID := cq.Message.Chat.ID

	h.logger.Info("Callback received",
		applog.FieldCommand, cq.Data,
		applog.FieldChatID, chatID)

	ident := identityFromUser(cq.From)

	switch cq.Data {
	case cbAddIncome:
		h.beginFlow(sessionKey{ChatID: chatID, UserID: cq.From.ID}, ident, flowAddIncome)
	case cbAddExpense:
		h.beginFlow(sessionKey{ChatID: chatID, UserID: cq.From.ID}, ident, flowAddExpense)
	case cbReportToday:
		h.buttonReport(ctx, chatID, ident, periodToday)
	case cbReportMonth:
		h.buttonReport(ctx, chatID, ident, periodMonth)
	default:
		h.logger.Debug("Unknown callback data ignored", applog.FieldCommand, cq.Data)
	}
}

func (h *Handler) beginFlowFromMessage(msg *tgbotapi.Message, flow flowKind) {
	if msg.From == nil {
		h.logger.Warn("Dialog command without sender ignored",
			applog.FieldChatID, msg.Chat.ID)
		return
	}
	key := sessionKey{ChatID: msg.Chat.ID, UserID: msg.From.ID}
	h.beginFlow(key, identityFromUser(msg.From), flow)
}

func identityFromUser(u *tgbotapi.User) services.Identity {
	return services.Identity{
		TelegramID: u.ID,
		FirstName:  strings.TrimSpace(u.FirstName),
		Username:   u.UserName,
	}
}

func (h *Handler) send(c tgbotapi.Chattable) {
	if _, err := h.api.Send(c); err != nil {
		h.logger.Error("Failed to send message", applog.FieldError, err)
	}
}

func (h *Handler) reply(chatID int64, text string) {
	h.send(tgbotapi.NewMessage(chatID, text))
}
