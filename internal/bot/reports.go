package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/graff012/finance-bot/internal/core"
	applog "github.com/graff012/finance-bot/internal/log"
	"github.com/graff012/finance-bot/internal/services"
)

const (
	periodToday = core.PeriodToday
	periodMonth = core.PeriodThisMonth
)

// commandReport serves /report_today and /report_month. When the
// message carries no sender the report falls back to an unfiltered
// aggregate over every user, matching how channel posts behave.
func (h *Handler) commandReport(ctx context.Context, msg *tgbotapi.Message, period core.Period) {
	var userID *int64
	if msg.From != nil {
		user, err := h.ledger.EnsureUser(ctx, identityFromUser(msg.From))
		if err != nil {
			h.logger.Error("Failed to resolve user for report", applog.FieldError, err)
			h.reply(msg.Chat.ID, msgInternalError)
			return
		}
		userID = &user.ID
	}
	h.sendReport(ctx, msg.Chat.ID, userID, period)
}

// buttonReport serves the inline keyboard report buttons. Callback
// queries always carry a sender, so the report is always per-user.
func (h *Handler) buttonReport(ctx context.Context, chatID int64, ident services.Identity, period core.Period) {
	user, err := h.ledger.EnsureUser(ctx, ident)
	if err != nil {
		h.logger.Error("Failed to resolve user for report", applog.FieldError, err)
		h.reply(chatID, msgInternalError)
		return
	}
	h.sendReport(ctx, chatID, &user.ID, period)
}

func (h *Handler) sendReport(ctx context.Context, chatID int64, userID *int64, period core.Period) {
	summary, err := h.ledger.Summary(ctx, userID, period)
	if err != nil {
		h.logger.Error("Failed to build report",
			applog.FieldChatID, chatID,
			applog.FieldError, err)
		h.reply(chatID, msgInternalError)
		return
	}

	now := h.ledger.Now()
	var text string
	switch period {
	case core.PeriodToday:
		text = fmt.Sprintf(fmtTodayReport, now.Format("2006-01-02"),
			summary.Income.Format(), summary.Expense.Format())
	case core.PeriodThisMonth:
		text = fmt.Sprintf(fmtMonthReport, now.Format("2006-01"),
			summary.Income.Format(), summary.Expense.Format())
	default:
		h.logger.Error("Unknown report period", applog.FieldChatID, chatID)
		return
	}
	h.reply(chatID, text)
}

// commandBalance serves /balance: all-time income, expense and the
// difference. Unlike the report commands it has no global fallback, a
// balance only makes sense for a concrete user.
func (h *Handler) commandBalance(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		h.logger.Warn("Balance command without sender ignored",
			applog.FieldChatID, msg.Chat.ID)
		return
	}

	user, err := h.ledger.EnsureUser(ctx, identityFromUser(msg.From))
	if err != nil {
		h.logger.Error("Failed to resolve user for balance", applog.FieldError, err)
		h.reply(msg.Chat.ID, msgInternalError)
		return
	}

	summary, err := h.ledger.Summary(ctx, &user.ID, core.PeriodAllTime)
	if err != nil {
		h.logger.Error("Failed to compute balance",
			applog.FieldUserID, user.ID,
			applog.FieldError, err)
		h.reply(msg.Chat.ID, msgInternalError)
		return
	}

	h.reply(msg.Chat.ID, fmt.Sprintf(fmtBalance,
		summary.Income.Format(),
		summary.Expense.Format(),
		summary.Balance().Format()))
}
