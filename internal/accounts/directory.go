package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ytakahashi/taskflow/internal/models"
	"github.com/ytakahashi/taskflow/internal/services"
)

// UsersKey holds every registered account as a JSON list.
const UsersKey = "taskflow_users"

var errDuplicate = &models.Error{Kind: models.ErrDuplicateAccount, Message: "Account already exists for that email."}

// Directory is the registry of accounts, keyed by lower-cased email.
type Directory struct {
	kv     services.KV
	hasher *PasswordHasher
	now    func() time.Time
	mu     sync.Mutex
}

func NewDirectory(kv services.KV, hasher *PasswordHasher) *Directory {
	return &Directory{kv: kv, hasher: hasher, now: time.Now}
}

// FindByEmail looks an account up case-insensitively.
func (d *Directory) FindByEmail(ctx context.Context, email string) (models.Account, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list, err := d.load(ctx)
	if err != nil {
		return models.Account{}, false, err
	}
	acc, ok := find(list, email)
	return acc, ok, nil
}

// Create registers a new account and stores only the password hash.
func (d *Directory) Create(ctx context.Context, name, email, password string) (models.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list, err := d.load(ctx)
	if err != nil {
		return models.Account{}, err
	}
	if _, ok := find(list, email); ok {
		return models.Account{}, errDuplicate
	}

	hash, err := d.hasher.Hash(password)
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to hash password: %w", err)
	}

	acc := models.Account{
		Name:         name,
		Email:        models.NormalizeEmail(email),
		PasswordHash: hash,
		CreatedAt:    d.now(),
	}

	data, err := json.Marshal(append(list, acc))
	if err != nil {
		return models.Account{}, models.PersistenceError("Could not save your account.", err)
	}
	if err := d.kv.Set(ctx, UsersKey, string(data)); err != nil {
		return models.Account{}, models.PersistenceError("Could not save your account.", err)
	}
	return acc, nil
}

// Delete removes the account registered under email. A missing account is not an error.
func (d *Directory) Delete(ctx context.Context, email string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	list, err := d.load(ctx)
	if err != nil {
		return err
	}
	email = models.NormalizeEmail(email)
	kept := make([]models.Account, 0, len(list))
	for _, acc := range list {
		if models.NormalizeEmail(acc.Email) != email {
			kept = append(kept, acc)
		}
	}
	if len(kept) == len(list) {
		return nil
	}

	data, err := json.Marshal(kept)
	if err != nil {
		return models.PersistenceError("Could not save accounts.", err)
	}
	if err := d.kv.Set(ctx, UsersKey, string(data)); err != nil {
		return models.PersistenceError("Could not save accounts.", err)
	}
	return nil
}

func (d *Directory) VerifyPassword(acc models.Account, candidate string) bool {
	if acc.PasswordHash == "" {
		return false
	}
	return d.hasher.Verify(candidate, acc.PasswordHash)
}

func (d *Directory) load(ctx context.Context) ([]models.Account, error) {
	raw, err := d.kv.Get(ctx, UsersKey)
	if errors.Is(err, services.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.PersistenceError("Could not load accounts.", err)
	}
	var list []models.Account
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, models.PersistenceError("Could not load accounts.", err)
	}
	return list, nil
}

func find(list []models.Account, email string) (models.Account, bool) {
	email = models.NormalizeEmail(email)
	for _, acc := range list {
		if models.NormalizeEmail(acc.Email) == email {
			return acc, true
		}
	}
	return models.Account{}, false
}
