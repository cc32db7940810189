// Package services orchestrates ledger operations across the store,
// the user cache and the optional event publisher.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/graff012/finance-bot/internal/amqp"
	"github.com/graff012/finance-bot/internal/cache"
	"github.com/graff012/finance-bot/internal/core"
	"github.com/graff012/finance-bot/internal/storage"
	"github.com/graff012/finance-bot/internal/timerange"
)

// Store is the ledger persistence contract the service needs.
// *storage.SQLiteRepository satisfies it.
type Store interface {
	UserByTelegramID(ctx context.Context, telegramID int64) (*core.User, error)
	CreateUser(ctx context.Context, telegramID int64, firstName, username string) (*core.User, error)
	CreateTransaction(ctx context.Context, tx core.Transaction) (int64, error)
	SumAmountCents(ctx context.Context, f storage.SumFilter) (int64, error)
	LimitByUser(ctx context.Context, userID int64) (*core.Limit, error)
	UpsertLimit(ctx context.Context, userID int64, amount core.Money) error
}

// Identity is the platform-provided caller identity.
type Identity struct {
	TelegramID int64
	FirstName  string
	Username   string
}

// Ledger is the finance service behind the dialog and reporting
// engines.
type Ledger struct {
	store  Store
	events *amqp.Client // nil when AMQP is not configured
	users  *cache.LRUCache[*core.User]
	loc    *time.Location
	clock  func() time.Time
}

func NewLedger(store Store, events *amqp.Client, loc *time.Location) *Ledger {
	return &Ledger{
		store:  store,
		events: events,
		users:  cache.NewLRUCache[*core.User](500, 10*time.Minute),
		loc:    loc,
		clock:  time.Now,
	}
}

// Location returns the reporting timezone.
func (l *Ledger) Location() *time.Location {
	return l.loc
}

// UserCache exposes the user cache for lifecycle management (periodic
// expiry cleanup).
func (l *Ledger) UserCache() *cache.LRUCache[*core.User] {
	return l.users
}

// EnsureUser returns the user for the platform identity, creating it
// on first contact. Idempotent; repeated calls hit the cache.
func (l *Ledger) EnsureUser(ctx context.Context, id Identity) (*core.User, error) {
	key := strconv.FormatInt(id.TelegramID, 10)
	if u, ok := l.users.Get(key); ok {
		return u, nil
	}

	u, err := l.store.UserByTelegramID(ctx, id.TelegramID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		u, err = l.store.CreateUser(ctx, id.TelegramID, id.FirstName, id.Username)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		slog.InfoContext(ctx, "User registered", "telegram_id", id.TelegramID, "user_id", u.ID)
	}

	l.users.Set(key, u)
	return u, nil
}

// AddTransaction validates and persists one ledger entry, then
// publishes a transaction-created event best effort.
func (l *Ledger) AddTransaction(ctx context.Context, user *core.User, kind core.TransactionKind, title string, amount core.Money, category string) (int64, error) {
	tx := core.Transaction{
		UserID:   user.ID,
		Kind:     kind,
		Title:    title,
		Amount:   amount,
		Category: category,
		Date:     l.clock(),
	}
	if err := tx.Validate(); err != nil {
		return 0, err
	}

	id, err := l.store.CreateTransaction(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("save transaction: %w", err)
	}

	if err := l.publishEvent(ctx, id, tx); err != nil {
		// The save already committed; the event is a bonus.
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"transaction_id", id, "error", err)
	}

	return id, nil
}

func (l *Ledger) publishEvent(ctx context.Context, id int64, tx core.Transaction) error {
	if l.events == nil {
		return nil
	}
	return l.events.PublishTransactionCreated(ctx, amqp.NewTransactionEvent(id, tx))
}

// MonthlyTotals sums the current civil month's income and expense for
// one user. The two kind sums read disjoint rows and run concurrently.
func (l *Ledger) MonthlyTotals(ctx context.Context, userID int64) (core.Summary, error) {
	month := timerange.Month(l.clock(), l.loc)

	var s core.Summary
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cents, err := l.store.SumAmountCents(ctx, storage.SumFilter{UserID: &userID, Kind: core.Income, Range: &month})
		s.Income = core.Money{Cents: cents}
		return err
	})
	g.Go(func() error {
		cents, err := l.store.SumAmountCents(ctx, storage.SumFilter{UserID: &userID, Kind: core.Expense, Range: &month})
		s.Expense = core.Money{Cents: cents}
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Summary{}, fmt.Errorf("monthly totals: %w", err)
	}
	return s, nil
}

// Summary aggregates income and expense for the period. A nil userID
// drops the per-user filter and aggregates across all users, which is
// how the text-command report paths behave when the sender identity is
// missing.
func (l *Ledger) Summary(ctx context.Context, userID *int64, period core.Period) (core.Summary, error) {
	var rng *timerange.Range
	switch period {
	case core.PeriodToday:
		day := timerange.Day(l.clock(), l.loc)
		rng = &day
	case core.PeriodThisMonth:
		month := timerange.Month(l.clock(), l.loc)
		rng = &month
	case core.PeriodAllTime:
		// no date filter
	default:
		return core.Summary{}, fmt.Errorf("unknown report period %q", period)
	}

	income, err := l.store.SumAmountCents(ctx, storage.SumFilter{UserID: userID, Kind: core.Income, Range: rng})
	if err != nil {
		return core.Summary{}, fmt.Errorf("sum income: %w", err)
	}
	expense, err := l.store.SumAmountCents(ctx, storage.SumFilter{UserID: userID, Kind: core.Expense, Range: rng})
	if err != nil {
		return core.Summary{}, fmt.Errorf("sum expense: %w", err)
	}

	return core.Summary{
		Income:  core.Money{Cents: income},
		Expense: core.Money{Cents: expense},
	}, nil
}

// LimitFor returns the user's monthly limit, nil when none configured.
func (l *Ledger) LimitFor(ctx context.Context, userID int64) (*core.Limit, error) {
	return l.store.LimitByUser(ctx, userID)
}

// SetLimit creates or replaces the user's monthly limit.
func (l *Ledger) SetLimit(ctx context.Context, userID int64, amount core.Money) error {
	if err := amount.Validate(); err != nil {
		return err
	}
	if err := l.store.UpsertLimit(ctx, userID, amount); err != nil {
		return fmt.Errorf("set limit: %w", err)
	}
	return nil
}

// Now returns the service clock reading in the reporting timezone.
func (l *Ledger) Now() time.Time {
	return l.clock().In(l.loc)
}
