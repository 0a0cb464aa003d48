// Package config handles loading and saving arbor configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/arbor/config.yaml
//   - State:   ~/.local/state/arbor/ (tree expand state)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source is a named tree source (file, directory or SQLite database).
type Source struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// TreeConfig holds tree engine settings.
type TreeConfig struct {
	Key                string `yaml:"key,omitempty"`                  // index or id
	PreloadCollapsed   bool   `yaml:"preload_collapsed,omitempty"`    // load lazy children of collapsed nodes
	OnlyExpandSearched bool   `yaml:"only_expand_searched,omitempty"` // collapse everything before a search expands
	ExpandDepth        int    `yaml:"expand_depth,omitempty"`         // initial expand depth (0 = as stored)
	CaseSensitive      bool   `yaml:"case_sensitive,omitempty"`       // search case sensitivity
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	DetailPane    bool    `yaml:"detail_pane,omitempty"`    // Show the payload pane
	ShowSubtitles bool    `yaml:"show_subtitles,omitempty"` // Render subtitles next to titles
	PersistState  bool    `yaml:"persist_state,omitempty"`  // Save expand state between runs
	SplitRatio    float64 `yaml:"split_ratio,omitempty"`    // Tree/detail split (0.2-0.8)
}

// WatchConfig controls reloading on file changes.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled,omitempty"`
	DebounceMs int  `yaml:"debounce_ms,omitempty"`
	ForcePoll  bool `yaml:"force_poll,omitempty"`
}

// Config is the top-level configuration for arbor.
type Config struct {
	Sources []Source    `yaml:"sources,omitempty"`
	Tree    TreeConfig  `yaml:"tree,omitempty"`
	UI      UIConfig    `yaml:"ui,omitempty"`
	Watch   WatchConfig `yaml:"watch,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Tree: TreeConfig{
			Key: "index",
		},
		UI: UIConfig{
			ShowSubtitles: true,
			PersistState:  true,
			SplitRatio:    0.6,
		},
		Watch: WatchConfig{
			Enabled:    true,
			DebounceMs: 200,
		},
	}
}

// ConfigDir returns the XDG config directory for arbor.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "arbor")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "arbor")
}

// StateDir returns the XDG state directory for arbor.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "arbor")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "arbor")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	for i := range cfg.Sources {
		cfg.Sources[i].Path = expandHome(cfg.Sources[i].Path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot use.
func (c Config) Validate() error {
	switch c.Tree.Key {
	case "", "index", "id":
	default:
		return fmt.Errorf("invalid tree.key %q (want index or id)", c.Tree.Key)
	}
	if c.Tree.ExpandDepth < 0 {
		return fmt.Errorf("invalid tree.expand_depth %d", c.Tree.ExpandDepth)
	}
	if c.UI.SplitRatio != 0 && (c.UI.SplitRatio < 0.2 || c.UI.SplitRatio > 0.8) {
		return fmt.Errorf("invalid ui.split_ratio %v (want 0.2-0.8)", c.UI.SplitRatio)
	}
	return nil
}

// ApplyEnv overrides settings from ARBOR_* environment variables.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("ARBOR_KEY")); v != "" {
		c.Tree.Key = v
	}
	if v, ok := envBool("ARBOR_PRELOAD_COLLAPSED"); ok {
		c.Tree.PreloadCollapsed = v
	}
	if v, ok := envBool("ARBOR_ONLY_EXPAND_SEARCHED"); ok {
		c.Tree.OnlyExpandSearched = v
	}
	if v, ok := envBool("ARBOR_FORCE_POLL"); ok {
		c.Watch.ForcePoll = v
	}
	if v := os.Getenv("ARBOR_EXPAND_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Tree.ExpandDepth = n
		}
	}
}

func envBool(name string) (value, ok bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false, false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true, true
	default:
		return false, true
	}
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// FindSource returns the source with the given name, or nil.
func (c Config) FindSource(name string) *Source {
	for i := range c.Sources {
		if strings.EqualFold(c.Sources[i].Name, name) {
			return &c.Sources[i]
		}
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
