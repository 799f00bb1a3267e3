package reminder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytakahashi/taskflow/internal/models"
	"github.com/ytakahashi/taskflow/internal/services"
)

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	kv := services.NewMemoryKV()
	p := NewPreferences(kv)

	enabled, err := p.Enabled(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, enabled, "unknown accounts default to enabled")

	require.NoError(t, p.SetEnabled(ctx, " Alice@Example.com ", false))

	enabled, err = p.Enabled(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, enabled)

	enabled, err = p.Enabled(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.True(t, enabled)

	// survives a fresh instance over the same store
	enabled, err = NewPreferences(kv).Enabled(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestPreferencesCorrupt(t *testing.T) {
	ctx := context.Background()
	kv := services.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, PrefsKey, "{not json"))

	p := NewPreferences(kv)
	enabled, err := p.Enabled(ctx, "alice@example.com")
	assert.ErrorIs(t, err, models.ErrPersistence)
	assert.True(t, enabled)

	assert.ErrorIs(t, p.SetEnabled(ctx, "alice@example.com", false), models.ErrPersistence)
}
