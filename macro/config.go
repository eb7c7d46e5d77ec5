// Package macro sends canned chat messages through a synthetic keyboard each
// time a hotkey is pressed.
package macro

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the user-edited settings file. Delays are in seconds.
type Config struct {
	Messages    []string `yaml:"messages"`
	Hotkey      string   `yaml:"hotkey"`
	AutoSpace   bool     `yaml:"auto_space"`
	AutoEnter   bool     `yaml:"auto_enter"`
	Delay       float64  `yaml:"delay"`
	RandomDelay bool     `yaml:"random_delay"`
	MinDelay    float64  `yaml:"min_delay"`
	MaxDelay    float64  `yaml:"max_delay"`
	BigMode     bool     `yaml:"big_mode"`
	MentionMode bool     `yaml:"mention_mode"`
	MentionID   string   `yaml:"mention_id"`
	Theme       string   `yaml:"theme"`
}

// Hotkeys lists the accepted hotkey names.
var Hotkeys = []string{
	"f1", "f2", "f3", "f4", "f5", "f6", "f7", "f8", "f9", "f10", "f11", "f12",
	"insert", "home", "end", "pgup", "pgdn", "pause",
}

// Themes lists the presentation themes.
var Themes = []string{"dark", "light"}

// DefaultConfig returns the settings used when no file exists yet.
func DefaultConfig() Config {
	return Config{
		Messages:  []string{"gg", "nice one", "well played", "let's go"},
		Hotkey:    "f8",
		AutoEnter: true,
		Delay:     0.5,
		MinDelay:  0.3,
		MaxDelay:  1.0,
		Theme:     "dark",
	}
}

// Clone returns a copy that shares no memory with c.
func (c Config) Clone() Config {
	c.Messages = slices.Clone(c.Messages)
	return c
}

// NormalizeHotkey folds a hotkey name to the form used in Hotkeys.
func NormalizeHotkey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var errs []error
	if len(c.Messages) == 0 {
		errs = append(errs, errors.New("at least one message is required"))
	}
	for i, m := range c.Messages {
		if strings.TrimSpace(m) == "" {
			errs = append(errs, fmt.Errorf("message %d is empty", i+1))
		}
	}
	if !slices.Contains(Hotkeys, NormalizeHotkey(c.Hotkey)) {
		errs = append(errs, fmt.Errorf("unknown hotkey %q", c.Hotkey))
	}
	if c.Delay < 0 || c.MinDelay < 0 || c.MaxDelay < 0 {
		errs = append(errs, errors.New("delays must not be negative"))
	}
	if c.MentionMode && strings.TrimSpace(c.MentionID) == "" {
		errs = append(errs, errors.New("mention mode needs a mention id"))
	}
	if c.Theme != "" && !slices.Contains(Themes, c.Theme) {
		errs = append(errs, fmt.Errorf("unknown theme %q", c.Theme))
	}
	return errors.Join(errs...)
}

// Load reads the settings file at path. A missing file yields the defaults
// and no error; keys absent from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse settings %s: %w", path, err)
	}
	cfg.Hotkey = NormalizeHotkey(cfg.Hotkey)
	return cfg, nil
}

// Save writes cfg to path through a temporary file and a rename, so readers
// never see a half-written file.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
