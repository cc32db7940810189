package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/graff012/finance-bot/internal/core"
	applog "github.com/graff012/finance-bot/internal/log"
	"github.com/graff012/finance-bot/internal/services"
	"github.com/graff012/finance-bot/internal/storage"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// texts returns the text of every plain message sent so far.
func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeSender) lastText(t *testing.T) string {
	t.Helper()
	texts := f.texts()
	if len(texts) == 0 {
		t.Fatal("expected at least one sent message")
	}
	return texts[len(texts)-1]
}

type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*core.User
	txs    []core.Transaction
	limits map[int64]core.Money
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  make(map[int64]*core.User),
		limits: make(map[int64]core.Money),
	}
}

func (s *fakeStore) UserByTelegramID(_ context.Context, telegramID int64) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[telegramID]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (s *fakeStore) CreateUser(_ context.Context, telegramID int64, firstName, username string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[telegramID]; ok {
		return u, nil
	}
	s.nextID++
	u := &core.User{ID: s.nextID, TelegramID: telegramID, FirstName: firstName, Username: username}
	s.users[telegramID] = u
	return u, nil
}

func (s *fakeStore) CreateTransaction(_ context.Context, tx core.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	tx.ID = s.nextID
	s.txs = append(s.txs, tx)
	return tx.ID, nil
}

func (s *fakeStore) SumAmountCents(_ context.Context, f storage.SumFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, tx := range s.txs {
		if f.UserID != nil && tx.UserID != *f.UserID {
			continue
		}
		if tx.Kind != f.Kind {
			continue
		}
		if f.Range != nil && (tx.Date.Before(f.Range.Start) || tx.Date.After(f.Range.End)) {
			continue
		}
		total += tx.Amount.Cents
	}
	return total, nil
}

func (s *fakeStore) LimitByUser(_ context.Context, userID int64) (*core.Limit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	amount, ok := s.limits[userID]
	if !ok {
		return nil, nil
	}
	return &core.Limit{UserID: userID, Amount: amount}, nil
}

func (s *fakeStore) UpsertLimit(_ context.Context, userID int64, amount core.Money) error {
	if err := amount.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits[userID] = amount
	return nil
}

func (s *fakeStore) transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, len(s.txs))
	copy(out, s.txs)
	return out
}

func newTestHandler(t *testing.T) (*Handler, *fakeSender, *fakeStore) {
	t.Helper()
	sender := &fakeSender{}
	store := newFakeStore()
	ledger := services.NewLedger(store, nil, time.UTC)
	logger := applog.New(applog.Config{
		Component: applog.ComponentBot,
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})
	return NewHandler(sender, ledger, logger), sender, store
}

const (
	testChatID = int64(1001)
	testUserID = int64(4242)
)

func commandUpdate(text string) tgbotapi.Update {
	cmdLen := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		cmdLen = i
	}
	return tgbotapi.Update{
		UpdateID: 1,
		Message: &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: testChatID},
			From: &tgbotapi.User{ID: testUserID, FirstName: "Test"},
			Text: text,
			Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: cmdLen},
			},
		},
	}
}

func textUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 2,
		Message: &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: testChatID},
			From: &tgbotapi.User{ID: testUserID, FirstName: "Test"},
			Text: text,
		},
	}
}

func callbackUpdate(data string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 3,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb-1",
			From:    &tgbotapi.User{ID: testUserID, FirstName: "Test"},
			Data:    data,
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: testChatID}},
		},
	}
}

func runDialog(t *testing.T, h *Handler, command string, answers ...string) {
	t.Helper()
	ctx := context.Background()
	h.HandleUpdate(ctx, commandUpdate(command))
	for _, a := range answers {
		h.HandleUpdate(ctx, textUpdate(a))
	}
}

func TestIncomeDialogSavesTransaction(t *testing.T) {
	h, sender, store := newTestHandler(t)

	runDialog(t, h, "/add_income", "ish haqi", "500000")

	txs := store.transactions()
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	tx := txs[0]
	if tx.Kind != core.Income {
		t.Errorf("kind = %s, want %s", tx.Kind, core.Income)
	}
	if tx.Amount.Cents != 50_000_000 {
		t.Errorf("amount = %d cents, want 50000000", tx.Amount.Cents)
	}
	if tx.Title != "ish haqi" {
		t.Errorf("title = %q, want %q", tx.Title, "ish haqi")
	}
	if tx.Category != incomeCategory {
		t.Errorf("category = %q, want %q", tx.Category, incomeCategory)
	}

	want := fmt.Sprintf(fmtIncomeSaved, "ish haqi", "500000.00")
	if got := sender.lastText(t); got != want {
		t.Errorf("confirmation = %q, want %q", got, want)
	}
}

func TestIncomeDialogEmptySourceUsesDefault(t *testing.T) {
	h, _, store := newTestHandler(t)

	runDialog(t, h, "/add_income", "", "1000")

	txs := store.transactions()
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	if txs[0].Title != defaultIncomeSource {
		t.Errorf("title = %q, want default %q", txs[0].Title, defaultIncomeSource)
	}
}

func TestInvalidAmountAbortsDialog(t *testing.T) {
	h, sender, store := newTestHandler(t)

	runDialog(t, h, "/add_income", "ish haqi", "abc")

	if got := sender.lastText(t); got != msgInvalidAmount {
		t.Errorf("reply = %q, want %q", got, msgInvalidAmount)
	}
	if n := len(store.transactions()); n != 0 {
		t.Fatalf("expected no transactions after abort, got %d", n)
	}

	// The aborted dialog must not linger: a new one starts clean.
	runDialog(t, h, "/add_income", "ish haqi", "1000")
	if n := len(store.transactions()); n != 1 {
		t.Fatalf("expected 1 transaction after fresh dialog, got %d", n)
	}
}

func TestExpenseDialogSavesAndWarnsOverBudget(t *testing.T) {
	h, sender, store := newTestHandler(t)

	runDialog(t, h, "/add_expense", "non", "20000", "oziq-ovqat")

	txs := store.transactions()
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	if txs[0].Kind != core.Expense {
		t.Errorf("kind = %s, want %s", txs[0].Kind, core.Expense)
	}
	if txs[0].Category != "oziq-ovqat" {
		t.Errorf("category = %q, want %q", txs[0].Category, "oziq-ovqat")
	}

	texts := sender.texts()
	confirm := fmt.Sprintf(fmtExpenseSaved, "non", "20000.00", "oziq-ovqat")
	overBudget := fmt.Sprintf(fmtOverBudget, "20000.00", "0.00", "20000.00")
	positive := fmt.Sprintf(fmtPositiveBalance, "0.00")
	if !contains(texts, confirm) {
		t.Errorf("missing confirmation %q in %q", confirm, texts)
	}
	if !contains(texts, overBudget) {
		t.Errorf("missing over-budget warning %q in %q", overBudget, texts)
	}
	if contains(texts, positive) {
		t.Errorf("got both budget messages, positive-balance must be absent: %q", texts)
	}
}

func TestExpenseDialogPositiveBalance(t *testing.T) {
	h, sender, _ := newTestHandler(t)

	runDialog(t, h, "/add_income", "ish haqi", "500000")
	runDialog(t, h, "/add_expense", "non", "20000", "oziq-ovqat")

	want := fmt.Sprintf(fmtPositiveBalance, "480000.00")
	if got := sender.lastText(t); got != want {
		t.Errorf("last reply = %q, want %q", got, want)
	}
}

func TestExpenseDialogLimitExceeded(t *testing.T) {
	h, sender, _ := newTestHandler(t)

	runDialog(t, h, "/set_limit", "100000")
	runDialog(t, h, "/add_expense", "kiyim", "90000", "other")

	// Still under the limit: no warning yet.
	warn90 := fmt.Sprintf(fmtLimitExceeded, "100000.00", "90000.00")
	if contains(sender.texts(), warn90) {
		t.Fatalf("limit warning sent while under the limit: %q", sender.texts())
	}

	runDialog(t, h, "/add_expense", "transport", "20000", "other")

	want := fmt.Sprintf(fmtLimitExceeded, "100000.00", "110000.00")
	if !contains(sender.texts(), want) {
		t.Errorf("missing limit warning %q in %q", want, sender.texts())
	}
}

func TestSetLimitDialog(t *testing.T) {
	h, sender, store := newTestHandler(t)

	runDialog(t, h, "/set_limit", "150000")

	want := fmt.Sprintf(fmtLimitSaved, "150000.00")
	if got := sender.lastText(t); got != want {
		t.Errorf("confirmation = %q, want %q", got, want)
	}

	limit, err := store.LimitByUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("LimitByUser: %v", err)
	}
	if limit == nil || limit.Amount.Cents != 15_000_000 {
		t.Errorf("stored limit = %+v, want 15000000 cents", limit)
	}
}

func TestRapidDuplicateFinalRepliesSaveOnce(t *testing.T) {
	h, _, store := newTestHandler(t)

	ctx := context.Background()
	h.HandleUpdate(ctx, commandUpdate("/add_income"))
	h.HandleUpdate(ctx, textUpdate("ish haqi"))

	key := sessionKey{ChatID: testChatID, UserID: testUserID}
	s, ok := h.sessions.lookup(key)
	if !ok {
		t.Fatal("expected an active dialog at the amount step")
	}

	// Hold the session lock so both replies pass the registry lookup
	// and park before either consumes the amount step. The first to
	// run completes the dialog; the second resumes against a session
	// that is no longer registered and must be dropped.
	s.mu.Lock()
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.HandleUpdate(ctx, textUpdate("500000"))
		}()
	}
	s.mu.Unlock()
	wg.Wait()

	txs := store.transactions()
	if len(txs) != 1 {
		t.Fatalf("one dialog saved %d transactions, want exactly 1", len(txs))
	}
	if txs[0].Amount.Cents != 50_000_000 {
		t.Errorf("amount = %d cents, want 50000000", txs[0].Amount.Cents)
	}
}

func TestReplyAfterAbortedDialogIgnored(t *testing.T) {
	h, _, store := newTestHandler(t)

	ctx := context.Background()
	h.HandleUpdate(ctx, commandUpdate("/add_income"))
	h.HandleUpdate(ctx, textUpdate("ish haqi"))

	key := sessionKey{ChatID: testChatID, UserID: testUserID}
	s, ok := h.sessions.lookup(key)
	if !ok {
		t.Fatal("expected an active dialog at the amount step")
	}

	// One reply aborts the dialog, a parked duplicate must not replay
	// the amount step against the torn-down session.
	s.mu.Lock()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.HandleUpdate(ctx, textUpdate("abc"))
	}()
	go func() {
		defer wg.Done()
		h.HandleUpdate(ctx, textUpdate("500000"))
	}()
	s.mu.Unlock()
	wg.Wait()

	// Schedule-dependent: if the valid reply ran first, the dialog
	// completed with one transaction; if the abort ran first, there is
	// none. More than one means a stale resume got through.
	if n := len(store.transactions()); n > 1 {
		t.Fatalf("got %d transactions, want at most 1", n)
	}
}

func TestNewDialogCommandReplacesActiveDialog(t *testing.T) {
	h, _, store := newTestHandler(t)

	ctx := context.Background()
	h.HandleUpdate(ctx, commandUpdate("/add_expense"))
	h.HandleUpdate(ctx, commandUpdate("/add_income"))
	h.HandleUpdate(ctx, textUpdate("ish haqi"))
	h.HandleUpdate(ctx, textUpdate("1000"))

	txs := store.transactions()
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	if txs[0].Kind != core.Income {
		t.Errorf("kind = %s, want %s (the replacing dialog)", txs[0].Kind, core.Income)
	}
}

func TestTextOutsideDialogIgnored(t *testing.T) {
	h, sender, store := newTestHandler(t)

	h.HandleUpdate(context.Background(), textUpdate("just chatting"))

	if n := len(sender.texts()); n != 0 {
		t.Errorf("expected no replies, got %q", sender.texts())
	}
	if n := len(store.transactions()); n != 0 {
		t.Errorf("expected no transactions, got %d", n)
	}
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
