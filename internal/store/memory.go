package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/userhub/apiserver/types"
)

// MemoryAccountRepository is an in-memory reference implementation of the
// account store with the same uniqueness and token-redemption semantics as
// the SQL repository. Intended for tests and local development.
type MemoryAccountRepository struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]types.Account
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[uuid.UUID]types.Account)}
}

func (r *MemoryAccountRepository) GetByID(_ context.Context, id uuid.UUID) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok || account.Removed {
		return types.Account{}, ErrNotFound
	}
	return account, nil
}

func (r *MemoryAccountRepository) GetByEmail(_ context.Context, email string) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account, ok := r.findByEmail(email); ok {
		return account, nil
	}
	return types.Account{}, ErrNotFound
}

func (r *MemoryAccountRepository) Create(_ context.Context, account types.Account) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.findByEmail(account.Email); ok {
		return types.Account{}, ErrDuplicateEmail
	}

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	r.accounts[account.ID] = account
	return account, nil
}

func (r *MemoryAccountRepository) UpdateProfile(_ context.Context, id uuid.UUID, name, phone string) error {
	return r.mutate(id, func(account *types.Account) {
		account.Name = name
		account.Phone = phone
	})
}

func (r *MemoryAccountRepository) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	return r.mutate(id, func(account *types.Account) {
		account.PasswordHash = passwordHash
	})
}

func (r *MemoryAccountRepository) SetVerifyToken(_ context.Context, id uuid.UUID, token string, expires time.Time) error {
	return r.mutate(id, func(account *types.Account) {
		account.VerifyToken = token
		account.VerifyTokenExpires = &expires
	})
}

func (r *MemoryAccountRepository) ConfirmEmailByToken(_ context.Context, token string, now time.Time) (types.Account, error) {
	return r.redeem(token, now, func(account *types.Account) {
		account.EmailVerified = true
	})
}

func (r *MemoryAccountRepository) ResetPasswordByToken(_ context.Context, token, passwordHash string, now time.Time) (types.Account, error) {
	return r.redeem(token, now, func(account *types.Account) {
		account.PasswordHash = passwordHash
	})
}

func (r *MemoryAccountRepository) List(_ context.Context, limit, offset int) ([]types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts := make([]types.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		if !account.Removed {
			accounts = append(accounts, account)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.After(accounts[j].CreatedAt)
	})

	if offset >= len(accounts) {
		return nil, nil
	}
	accounts = accounts[offset:]
	if limit > 0 && limit < len(accounts) {
		accounts = accounts[:limit]
	}
	return accounts, nil
}

func (r *MemoryAccountRepository) mutate(id uuid.UUID, apply func(*types.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok || account.Removed {
		return ErrNotFound
	}
	apply(&account)
	account.UpdatedAt = time.Now()
	r.accounts[id] = account
	return nil
}

// redeem clears the token fields and applies the mutation in one critical
// section, making token redemption single-use.
func (r *MemoryAccountRepository) redeem(token string, now time.Time, apply func(*types.Account)) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, account := range r.accounts {
		if account.Removed || account.VerifyToken == "" || account.VerifyToken != token {
			continue
		}
		if account.VerifyTokenExpires == nil || !account.VerifyTokenExpires.After(now) {
			continue
		}
		apply(&account)
		account.VerifyToken = ""
		account.VerifyTokenExpires = nil
		account.UpdatedAt = time.Now()
		r.accounts[id] = account
		return account, nil
	}
	return types.Account{}, ErrNotFound
}

func (r *MemoryAccountRepository) findByEmail(email string) (types.Account, bool) {
	for _, account := range r.accounts {
		if !account.Removed && account.Email == email {
			return account, true
		}
	}
	return types.Account{}, false
}
