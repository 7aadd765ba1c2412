package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/loreforge/loreforge/internal/state"
)

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader decodes a configuration document, applies defaults, and
// validates it. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills optional enum fields left empty.
func (c *Config) applyDefaults() {
	if c.Game.SystemType == "" {
		c.Game.SystemType = state.SystemIntegration
	}
	if c.Game.Difficulty == "" {
		c.Game.Difficulty = state.DifficultyNormal
	}
	if c.Game.CharacterCreation.StatAllocation == "" {
		c.Game.CharacterCreation.StatAllocation = state.AllocBalanced
	}
	if c.LLM.Name == "" {
		c.LLM.Name = "mock"
		slog.Warn("no llm provider configured, using mock")
	}
	if c.Log.Level == "" {
		c.Log.Level = LogInfo
	}
}

// Validate checks the configuration for hard errors. All problems are
// reported at once.
func (c *Config) Validate() error {
	var errs []error

	if !c.Game.SystemType.IsValid() {
		errs = append(errs, fmt.Errorf("config: unknown system_type %q", c.Game.SystemType))
	}
	if !c.Game.Difficulty.IsValid() {
		errs = append(errs, fmt.Errorf("config: unknown difficulty %q", c.Game.Difficulty))
	}

	cc := c.Game.CharacterCreation
	if cc.Name == "" {
		errs = append(errs, errors.New("config: character_creation.name is required"))
	}
	if !cc.StatAllocation.IsValid() {
		errs = append(errs, fmt.Errorf("config: unknown stat_allocation %q", cc.StatAllocation))
	}
	if cc.StatAllocation == state.AllocCustom {
		switch {
		case cc.CustomStats == nil:
			errs = append(errs, errors.New("config: stat_allocation CUSTOM requires custom_stats"))
		case !cc.CustomStats.InRange():
			errs = append(errs, fmt.Errorf("config: custom_stats out of range [%d, %d]", state.StatMin, state.StatMax))
		}
	} else if cc.CustomStats != nil {
		slog.Warn("custom_stats set but stat_allocation is not CUSTOM, ignoring",
			"stat_allocation", cc.StatAllocation)
	}

	if c.LLM.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("config: llm.timeout_seconds must not be negative, got %d", c.LLM.TimeoutSeconds))
	}

	if !c.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("config: unknown log level %q", c.Log.Level))
	}

	if c.Memory.PostgresDSN == "" {
		slog.Warn("no postgres_dsn configured, state will not survive restarts")
	}

	return errors.Join(errs...)
}
