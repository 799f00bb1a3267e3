package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/ytakahashi/taskflow/internal/models"
	"github.com/ytakahashi/taskflow/internal/services"
)

// PrefsKey holds the per-account reminder switch as a map of email to enabled.
const PrefsKey = "taskflow_reminder_prefs"

// Preferences stores whether each account wants reminders. Accounts never
// seen before default to enabled.
type Preferences struct {
	kv services.KV
	mu sync.Mutex
}

func NewPreferences(kv services.KV) *Preferences {
	return &Preferences{kv: kv}
}

func (p *Preferences) Enabled(ctx context.Context, email string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prefs, err := p.load(ctx)
	if err != nil {
		return true, err
	}
	enabled, ok := prefs[models.NormalizeEmail(email)]
	if !ok {
		return true, nil
	}
	return enabled, nil
}

func (p *Preferences) SetEnabled(ctx context.Context, email string, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	prefs, err := p.load(ctx)
	if err != nil {
		return err
	}
	prefs[models.NormalizeEmail(email)] = enabled

	data, err := json.Marshal(prefs)
	if err != nil {
		return models.PersistenceError("Could not save reminder preference.", err)
	}
	if err := p.kv.Set(ctx, PrefsKey, string(data)); err != nil {
		return models.PersistenceError("Could not save reminder preference.", err)
	}
	return nil
}

func (p *Preferences) load(ctx context.Context) (map[string]bool, error) {
	prefs := map[string]bool{}
	raw, err := p.kv.Get(ctx, PrefsKey)
	if errors.Is(err, services.ErrKeyNotFound) {
		return prefs, nil
	}
	if err != nil {
		return nil, models.PersistenceError("Could not load reminder preference.", err)
	}
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return nil, models.PersistenceError("Could not load reminder preference.", err)
	}
	return prefs, nil
}
