package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionKind = "INCOME"
	Expense TransactionKind = "EXPENSE"
)

// Report periods understood by the reporting engine.
const (
	PeriodToday     Period = "today"
	PeriodThisMonth Period = "this_month"
	PeriodAllTime   Period = "all_time"
)

type (
	TransactionKind string

	Period string

	Money struct {
		Cents int64
	}

	// User is created lazily on first interaction and never mutated
	// afterwards. TelegramID is the platform identity; ID is the
	// surrogate key the rest of the schema references.
	User struct {
		ID         int64
		TelegramID int64
		FirstName  string
		Username   string // empty when the account has no handle
	}

	Transaction struct {
		ID       int64
		UserID   int64
		Kind     TransactionKind
		Title    string
		Amount   Money
		Category string
		Date     time.Time
	}

	// Limit is the per-user monthly expense threshold. At most one
	// exists per user; absence is a normal state.
	Limit struct {
		ID     int64
		UserID int64
		Amount Money
	}

	// Summary holds the aggregates a report renders.
	Summary struct {
		Income  Money
		Expense Money
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidKind   = errors.New("invalid transaction kind")
	ErrEmptyTitle    = errors.New("empty title")
	ErrEmptyCategory = errors.New("empty category")
)

func (k TransactionKind) Validate() error {
	switch k {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidKind
	}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Sub returns m minus other. The result may be negative, which is how
// a month in deficit is represented.
func (m Money) Sub(other Money) Money {
	return Money{Cents: m.Cents - other.Cents}
}

// GreaterThan reports whether m strictly exceeds other.
func (m Money) GreaterThan(other Money) bool {
	return m.Cents > other.Cents
}

func (t Transaction) Validate() error {
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Title)) == 0 {
		return ErrEmptyTitle
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (s Summary) Balance() Money {
	return s.Income.Sub(s.Expense)
}
