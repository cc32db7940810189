package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/graff012/finance-bot/internal/core"
	"github.com/graff012/finance-bot/internal/timerange"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the ledger store: users, transactions and
// per-user monthly limits. All operations are independent calls with
// no cross-operation transaction.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// UserByTelegramID returns the user owning the platform identity, or
// (nil, nil) when none exists.
func (r *SQLiteRepository) UserByTelegramID(ctx context.Context, telegramID int64) (*core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, telegram_id, first_name, username FROM users WHERE telegram_id = ?`,
		telegramID,
	).Scan(&u.ID, &u.TelegramID, &u.FirstName, &u.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user by telegram id: %w", err)
	}
	return &u, nil
}

// CreateUser inserts the user if the telegram id is not registered yet
// and returns the stored row either way, so concurrent first contacts
// cannot produce duplicates.
func (r *SQLiteRepository) CreateUser(ctx context.Context, telegramID int64, firstName, username string) (*core.User, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (telegram_id, first_name, username) VALUES (?, ?, ?)
		 ON CONFLICT (telegram_id) DO NOTHING`,
		telegramID, firstName, username,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	u, err := r.UserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %d missing after insert", telegramID)
	}
	return u, nil
}

// CreateTransaction persists one immutable ledger entry and returns
// its id. The dialog engine validates before saving; the store still
// defends against non-positive amounts.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}

	date := tx.Date
	if date.IsZero() {
		date = time.Now()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, type, title, amount_cents, category, date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tx.UserID, string(tx.Kind), tx.Title, tx.Amount.Cents, tx.Category, date.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	slog.DebugContext(ctx, "Transaction stored",
		"id", id, "user_id", tx.UserID, "kind", tx.Kind, "amount_cents", tx.Amount.Cents)

	return id, nil
}

// SumFilter narrows a transaction sum. A nil UserID aggregates across
// all users; a nil Range covers all time.
type SumFilter struct {
	UserID *int64
	Kind   core.TransactionKind
	Range  *timerange.Range
}

// SumAmountCents returns the summed amount of matching transactions in
// cents. No matching rows is zero, not an error.
func (r *SQLiteRepository) SumAmountCents(ctx context.Context, f SumFilter) (int64, error) {
	if err := f.Kind.Validate(); err != nil {
		return 0, err
	}

	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE type = ?`
	args := []any{string(f.Kind)}

	if f.UserID != nil {
		query += ` AND user_id = ?`
		args = append(args, *f.UserID)
	}
	if f.Range != nil {
		query += ` AND date BETWEEN ? AND ?`
		args = append(args, f.Range.Start.UnixMilli(), f.Range.End.UnixMilli())
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	return total, nil
}

// LimitByUser returns the user's monthly limit, or (nil, nil) when no
// limit is configured.
func (r *SQLiteRepository) LimitByUser(ctx context.Context, userID int64) (*core.Limit, error) {
	var l core.Limit
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, amount_cents FROM limits WHERE user_id = ?`,
		userID,
	).Scan(&l.ID, &l.UserID, &l.Amount.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query limit: %w", err)
	}
	return &l, nil
}

// UpsertLimit creates or replaces the user's single monthly limit.
func (r *SQLiteRepository) UpsertLimit(ctx context.Context, userID int64, amount core.Money) error {
	if err := amount.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO limits (user_id, amount_cents) VALUES (?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET amount_cents = excluded.amount_cents`,
		userID, amount.Cents,
	)
	if err != nil {
		return fmt.Errorf("upsert limit: %w", err)
	}
	return nil
}
