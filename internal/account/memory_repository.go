package account

import (
	"context"
	"sort"
	"sync"
)

type memoryRecord struct {
	mu      sync.Mutex
	account Account
	entries []Entry
}

type memoryRepository struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
}

// NewMemoryRepository builds an in-memory account store. It is the default
// driver and the one used by tests.
func NewMemoryRepository() Store {
	return &memoryRepository{records: make(map[string]*memoryRecord)}
}

func (r *memoryRepository) record(email string) (*memoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return rec, nil
}

func (r *memoryRepository) Create(_ context.Context, a Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[a.Email]; exists {
		return ErrDuplicateEmail
	}
	a.PasswordHash = append([]byte(nil), a.PasswordHash...)
	r.records[a.Email] = &memoryRecord{account: a}
	return nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (Account, error) {
	rec, err := r.record(email)
	if err != nil {
		return Account{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.account, nil
}

func (r *memoryRepository) List(_ context.Context) ([]Account, error) {
	r.mu.RLock()
	recs := make([]*memoryRecord, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	accounts := make([]Account, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		accounts = append(accounts, rec.account)
		rec.mu.Unlock()
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].Email < accounts[j].Email
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (r *memoryRepository) Mutate(ctx context.Context, email string, fn MutateFunc) (Account, error) {
	rec, err := r.record(email)
	if err != nil {
		return Account{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Account{}, NewStorageError("mutate", err)
	}
	m, err := fn(rec.account)
	if err != nil {
		return Account{}, err
	}
	rec.account.SealedBalance = m.SealedBalance
	rec.account.UpdatedAt = m.UpdatedAt
	if m.Entry != nil {
		rec.entries = append(rec.entries, *m.Entry)
	}
	return rec.account, nil
}

func (r *memoryRepository) SetPassword(_ context.Context, email string, hash []byte) error {
	rec, err := r.record(email)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.account.PasswordHash = append([]byte(nil), hash...)
	return nil
}

func (r *memoryRepository) Entries(_ context.Context, email string, limit int) ([]Entry, error) {
	rec, err := r.record(email)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	n := len(rec.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := len(rec.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, rec.entries[i])
	}
	return out, nil
}

func (r *memoryRepository) Ping(context.Context) error { return nil }
