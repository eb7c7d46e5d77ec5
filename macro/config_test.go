package macro

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFillsMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "macro.yaml")
	require.NoError(t, os.WriteFile(path, []byte("messages: [hi, yo]\nhotkey: F9\nbig_mode: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"hi", "yo"}, cfg.Messages)
	assert.Equal(t, "f9", cfg.Hotkey)
	assert.True(t, cfg.BigMode)
	assert.Equal(t, DefaultConfig().Delay, cfg.Delay)
	assert.Equal(t, DefaultConfig().Theme, cfg.Theme)
	assert.True(t, cfg.AutoEnter)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "macro.yaml")
	require.NoError(t, os.WriteFile(path, []byte("messages: [unterminated\n"), 0o644))

	cfg, err := Load(path)
	assert.Error(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "macro.yaml")
	want := Config{
		Messages:    []string{"one", "two: with colon", "# three"},
		Hotkey:      "pgup",
		AutoSpace:   true,
		AutoEnter:   false,
		Delay:       1.25,
		RandomDelay: true,
		MinDelay:    0.2,
		MaxDelay:    2.5,
		BigMode:     true,
		MentionMode: true,
		MentionID:   "123456789",
		Theme:       "light",
	}
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "macro.yaml")
	first := DefaultConfig()
	require.NoError(t, Save(path, first))

	second := DefaultConfig()
	second.Messages = []string{"only"}
	require.NoError(t, Save(path, second))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, got.Messages)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"no messages", func(c *Config) { c.Messages = nil }, "at least one message"},
		{"blank message", func(c *Config) { c.Messages = []string{"ok", "  "} }, "message 2 is empty"},
		{"unknown hotkey", func(c *Config) { c.Hotkey = "hyper" }, "unknown hotkey"},
		{"negative delay", func(c *Config) { c.MinDelay = -1 }, "negative"},
		{"mention without id", func(c *Config) { c.MentionMode = true }, "mention id"},
		{"unknown theme", func(c *Config) { c.Theme = "neon" }, "unknown theme"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestCloneDoesNotShareMessages(t *testing.T) {
	cfg := DefaultConfig()
	c := cfg.Clone()
	c.Messages[0] = "changed"
	assert.NotEqual(t, "changed", cfg.Messages[0])
}
