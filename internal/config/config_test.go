package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 20000, cfg.MaxNodes)
	assert.Equal(t, 50, cfg.MaxDepth)
	assert.Equal(t, 500, cfg.DOMSettleWait)
	assert.Equal(t, 50, cfg.LiteTextMax)
	assert.Contains(t, cfg.IconClassPrefixes, "fa")
	assert.Contains(t, cfg.SwitchableStateClasses, "active")
	assert.Contains(t, cfg.DisabledCompressors, "wikipedia")
	assert.False(t, cfg.Headless)
}

func TestLoad(t *testing.T) {
	t.Run("overrides on top of defaults", func(t *testing.T) {
		content := `
max_nodes: 5000
headless: true
compressor_rules:
  - pattern: "*example.com/*"
    script: my_profile
disabled_compressors: []
`
		path := filepath.Join(t.TempDir(), "clawome.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		store, err := Load(path)
		require.NoError(t, err)

		cfg := store.Get()
		assert.Equal(t, 5000, cfg.MaxNodes)
		assert.True(t, cfg.Headless)
		assert.Equal(t, 50, cfg.MaxDepth) // untouched default
		require.Len(t, cfg.CompressorRules, 1)
		assert.Equal(t, "my_profile", cfg.CompressorRules[0].Script)
		assert.Empty(t, cfg.DisabledCompressors)
	})

	t.Run("missing file keeps defaults", func(t *testing.T) {
		store, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Defaults(), store.Get())
	})

	t.Run("invalid yaml fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("max_nodes: [not an int"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestStoreSet(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.Set(map[string]any{"max_depth": 12, "dom_settle_wait": 900}))
	cfg := store.Get()
	assert.Equal(t, 12, cfg.MaxDepth)
	assert.Equal(t, 900, cfg.DOMSettleWait)

	// unknown keys are ignored, known ones still applied
	require.NoError(t, store.Set(map[string]any{"no_such_key": 1, "max_nodes": 77}))
	assert.Equal(t, 77, store.Get().MaxNodes)

	// type mismatch rejects the whole update
	assert.Error(t, store.Set(map[string]any{"max_nodes": "many"}))
	assert.Equal(t, 77, store.Get().MaxNodes)
}

func TestStoreReset(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Set(map[string]any{"max_nodes": 1}))
	store.Reset()
	assert.Equal(t, 20000, store.Get().MaxNodes)
}

func TestStoreSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	store, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(map[string]any{"max_nodes": 321}))
	require.NoError(t, store.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 321, reloaded.Get().MaxNodes)
}
