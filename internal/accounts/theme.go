package accounts

import (
	"context"
	"errors"

	"github.com/ytakahashi/taskflow/internal/models"
	"github.com/ytakahashi/taskflow/internal/services"
)

const ThemeKey = "taskflow_theme"

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case ThemeDark, ThemeLight:
		return Theme(s), nil
	}
	return "", models.ValidationError("Theme must be dark or light.")
}

// LoadTheme returns the saved theme, dark when none was saved.
func LoadTheme(ctx context.Context, kv services.KV) (Theme, error) {
	raw, err := kv.Get(ctx, ThemeKey)
	if errors.Is(err, services.ErrKeyNotFound) {
		return ThemeDark, nil
	}
	if err != nil {
		return ThemeDark, models.PersistenceError("Could not load theme.", err)
	}
	if t, err := ParseTheme(raw); err == nil {
		return t, nil
	}
	return ThemeDark, nil
}

func SaveTheme(ctx context.Context, kv services.KV, t Theme) error {
	if err := kv.Set(ctx, ThemeKey, string(t)); err != nil {
		return models.PersistenceError("Could not save theme.", err)
	}
	return nil
}
