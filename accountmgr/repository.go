package accountmgr

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alovak/accountflow/accountmgr/models"
)

var ErrNotFound = fmt.Errorf("not found")

// Repository is the in-memory account store, keyed by user id. It performs
// no I/O; the aggregator populates it and the orchestrator mutates records
// in place. Fetch and cancel on the same record must be serialized by the
// caller.
type Repository struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
}

func NewRepository() *Repository {
	return &Repository{
		accounts: make(map[string]*models.Account),
	}
}

// Put inserts or replaces the record for its user id.
func (r *Repository) Put(account *models.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.UserID] = account
}

func (r *Repository) Get(userID string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return account, nil
}

func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}

// UserIDs returns the known user ids, sorted.
func (r *Repository) UserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.accounts))
	for id := range r.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns all stored records ordered by user id.
func (r *Repository) List() []*models.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	accounts := make([]*models.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].UserID < accounts[j].UserID })
	return accounts
}

// Summaries derives the service overview for every stored record, ordered
// by user id.
func (r *Repository) Summaries() []models.Summary {
	accounts := r.List()
	summaries := make([]models.Summary, 0, len(accounts))
	for _, account := range accounts {
		summaries = append(summaries, account.Summarize())
	}
	return summaries
}
