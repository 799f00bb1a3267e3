package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ytakahashi/taskflow/internal/models"
	"github.com/ytakahashi/taskflow/internal/services"
)

// LinkPrefix keys the LINE user id linked to an email.
const LinkPrefix = "line_link_"

// Links maps account emails to LINE user ids.
type Links struct {
	kv services.KV
}

func NewLinks(kv services.KV) *Links {
	return &Links{kv: kv}
}

func linkKey(email string) string {
	return LinkPrefix + models.NormalizeEmail(email)
}

func (l *Links) Link(ctx context.Context, email, lineUserID string) error {
	email = models.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return models.ValidationError("Please send a valid email address.")
	}
	if err := l.kv.Set(ctx, linkKey(email), lineUserID); err != nil {
		return fmt.Errorf("failed to store link: %w", err)
	}
	return nil
}

// Lookup returns the LINE user linked to email, if any.
func (l *Links) Lookup(ctx context.Context, email string) (string, bool, error) {
	id, err := l.kv.Get(ctx, linkKey(email))
	if errors.Is(err, services.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read link: %w", err)
	}
	return id, true, nil
}

// Unlink removes every email linked to lineUserID and reports how many there were.
func (l *Links) Unlink(ctx context.Context, lineUserID string) (int, error) {
	keys, err := l.kv.Keys(ctx, LinkPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list links: %w", err)
	}
	removed := 0
	for _, key := range keys {
		id, err := l.kv.Get(ctx, key)
		if errors.Is(err, services.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("failed to read link: %w", err)
		}
		if id != lineUserID {
			continue
		}
		if err := l.kv.Delete(ctx, key); err != nil {
			return removed, fmt.Errorf("failed to delete link: %w", err)
		}
		removed++
	}
	return removed, nil
}
