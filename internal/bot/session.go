package bot

import (
	"sync"

	"github.com/graff012/finance-bot/internal/core"
	"github.com/graff012/finance-bot/internal/services"
)

type flowKind int

const (
	flowAddIncome flowKind = iota + 1
	flowAddExpense
	flowSetLimit
)

type step int

const (
	stepIncomeSource step = iota + 1
	stepIncomeAmount
	stepExpenseTitle
	stepExpenseAmount
	stepExpenseCategory
	stepLimitAmount
)

// sessionKey scopes dialog state to one user in one chat, so the same
// person can run independent dialogs in a private chat and a group.
type sessionKey struct {
	ChatID int64
	UserID int64
}

// session holds the state of one in-progress dialog. The mutex
// serializes resumes: two replies arriving close together are applied
// one after the other, each against the state the previous one left.
type session struct {
	mu sync.Mutex

	flow   flowKind
	step   step
	from   services.Identity
	title  string
	amount core.Money
}

type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[sessionKey]*session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[sessionKey]*session)}
}

// begin installs a fresh session for the key, replacing any dialog the
// user abandoned mid-way.
func (r *sessionRegistry) begin(key sessionKey, s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[key] = s
}

func (r *sessionRegistry) lookup(key sessionKey) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}

// end removes the session, but only if it is still the registered one.
// A dialog that was replaced by a newer /add_income must not tear down
// its successor.
func (r *sessionRegistry) end(key sessionKey, s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[key] == s {
		delete(r.sessions, key)
	}
}
