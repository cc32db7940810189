package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/graff012/finance-bot/internal/core"
	applog "github.com/graff012/finance-bot/internal/log"
	"github.com/graff012/finance-bot/internal/services"
)

// beginFlow installs a fresh dialog session and sends the first prompt.
// Any dialog the user left hanging for this chat is discarded.
func (h *Handler) beginFlow(key sessionKey, ident services.Identity, flow flowKind) {
	s := &session{flow: flow, from: ident}

	var prompt string
	switch flow {
	case flowAddIncome:
		s.step = stepIncomeSource
		prompt = msgAskIncomeSource
	case flowAddExpense:
		s.step = stepExpenseTitle
		prompt = msgAskExpenseTitle
	case flowSetLimit:
		s.step = stepLimitAmount
		prompt = msgAskLimitAmount
	default:
		return
	}

	h.sessions.begin(key, s)
	h.logger.Info("Dialog started",
		applog.FieldFlow, int(flow),
		applog.FieldChatID, key.ChatID,
		applog.FieldTelegramID, ident.TelegramID)
	h.reply(key.ChatID, prompt)
}

// resumeSession feeds a plain-text message into the user's active
// dialog. Text arriving outside any dialog is ignored.
func (h *Handler) resumeSession(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	key := sessionKey{ChatID: msg.Chat.ID, UserID: msg.From.ID}
	s, ok := h.sessions.lookup(key)
	if !ok {
		h.logger.Debug("Text outside a dialog ignored", applog.FieldChatID, msg.Chat.ID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the lock: while this resume waited, a parallel
	// reply may have completed or aborted the dialog, or a new command
	// may have replaced it. A stale resume must not replay a step
	// against the dead session.
	if cur, live := h.sessions.lookup(key); !live || cur != s {
		h.logger.Debug("Stale dialog resume dropped", applog.FieldChatID, msg.Chat.ID)
		return
	}

	text := strings.TrimSpace(msg.Text)

	switch s.step {
	case stepIncomeSource:
		if text == "" {
			text = defaultIncomeSource
		}
		s.title = text
		s.step = stepIncomeAmount
		h.reply(key.ChatID, msgAskIncomeAmount)

	case stepIncomeAmount:
		amount, ok := h.takeAmount(key, s, text)
		if !ok {
			return
		}
		h.sessions.end(key, s)
		h.finishIncome(ctx, key.ChatID, s.from, s.title, amount)

	case stepExpenseTitle:
		if text == "" {
			text = defaultExpenseTitle
		}
		s.title = text
		s.step = stepExpenseAmount
		h.reply(key.ChatID, msgAskExpenseAmount)

	case stepExpenseAmount:
		amount, ok := h.takeAmount(key, s, text)
		if !ok {
			return
		}
		s.amount = amount
		s.step = stepExpenseCategory
		h.reply(key.ChatID, msgAskExpenseCategory)

	case stepExpenseCategory:
		if text == "" {
			text = defaultCategory
		}
		h.sessions.end(key, s)
		h.finishExpense(ctx, key.ChatID, s.from, s.title, s.amount, text)

	case stepLimitAmount:
		amount, ok := h.takeAmount(key, s, text)
		if !ok {
			return
		}
		h.sessions.end(key, s)
		h.finishLimit(ctx, key.ChatID, s.from, amount)

	default:
		h.logger.Error("Dialog in unknown step, aborting",
			applog.FieldStep, int(s.step),
			applog.FieldChatID, key.ChatID)
		h.sessions.end(key, s)
	}
}

// takeAmount parses an amount answer. An unparsable answer aborts the
// whole dialog: the user is told and the session is torn down.
func (h *Handler) takeAmount(key sessionKey, s *session, text string) (core.Money, bool) {
	amount, err := core.ParseAmount(text)
	if err != nil {
		h.logger.Info("Dialog aborted on invalid amount",
			applog.FieldChatID, key.ChatID,
			applog.FieldError, err)
		h.sessions.end(key, s)
		h.reply(key.ChatID, msgInvalidAmount)
		return core.Money{}, false
	}
	return amount, true
}

func (h *Handler) finishIncome(ctx context.Context, chatID int64, ident services.Identity, source string, amount core.Money) {
	user, err := h.ledger.EnsureUser(ctx, ident)
	if err != nil {
		h.logger.Error("Failed to resolve user", applog.FieldError, err)
		h.reply(chatID, msgInternalError)
		return
	}

	_, err = h.ledger.AddTransaction(ctx, user, core.Income, source, amount, incomeCategory)
	if err != nil {
		h.logger.Error("Failed to save income",
			applog.FieldUserID, user.ID,
			applog.FieldError, err)
		h.reply(chatID, msgInternalError)
		return
	}

	h.reply(chatID, fmt.Sprintf(fmtIncomeSaved, source, amount.Format()))
}

func (h *Handler) finishExpense(ctx context.Context, chatID int64, ident services.Identity, title string, amount core.Money, category string) {
	user, err := h.ledger.EnsureUser(ctx, ident)
	if err != nil {
		h.logger.Error("Failed to resolve user", applog.FieldError, err)
		h.reply(chatID, msgInternalError)
		return
	}

	_, err = h.ledger.AddTransaction(ctx, user, core.Expense, title, amount, category)
	if err != nil {
		h.logger.Error("Failed to save expense",
			applog.FieldUserID, user.ID,
			applog.FieldError, err)
		h.reply(chatID, msgInternalError)
		return
	}

	h.reply(chatID, fmt.Sprintf(fmtExpenseSaved, title, amount.Format(), category))
	h.expensePostSaveCheck(ctx, chatID, user.ID)
}

// expensePostSaveCheck runs after every saved expense: an optional
// limit warning, then exactly one budget-state message for the current
// month. The expense is already saved, so failures here are only
// logged, never surfaced to the user.
func (h *Handler) expensePostSaveCheck(ctx context.Context, chatID int64, userID int64) {
	limit, err := h.ledger.LimitFor(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to load monthly limit",
			applog.FieldUserID, userID,
			applog.FieldError, err)
		limit = nil
	}

	totals, err := h.ledger.MonthlyTotals(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to compute monthly totals",
			applog.FieldUserID, userID,
			applog.FieldError, err)
		return
	}

	if limit != nil && totals.Expense.GreaterThan(limit.Amount) {
		h.reply(chatID, fmt.Sprintf(fmtLimitExceeded,
			limit.Amount.Format(), totals.Expense.Format()))
	}

	if totals.Expense.GreaterThan(totals.Income) {
		over := totals.Expense.Sub(totals.Income)
		h.reply(chatID, fmt.Sprintf(fmtOverBudget,
			totals.Expense.Format(), totals.Income.Format(), over.Format()))
	} else {
		left := totals.Income.Sub(totals.Expense)
		h.reply(chatID, fmt.Sprintf(fmtPositiveBalance, left.Format()))
	}
}

func (h *Handler) finishLimit(ctx context.Context, chatID int64, ident services.Identity, amount core.Money) {
	user, err := h.ledger.EnsureUser(ctx, ident)
	if err != nil {
		h.logger.Error("Failed to resolve user", applog.FieldError, err)
		h.reply(chatID, msgInternalError)
		return
	}

	if err := h.ledger.SetLimit(ctx, user.ID, amount); err != nil {
		h.logger.Error("Failed to save monthly limit",
			applog.FieldUserID, user.ID,
			applog.FieldError, err)
		h.reply(chatID, msgInternalError)
		return
	}

	h.reply(chatID, fmt.Sprintf(fmtLimitSaved, amount.Format()))
}
