// Package config loads and validates the YAML configuration that describes
// a game session: genre preset, difficulty, character creation, player
// preferences, memory limits, LLM provider selection, and persistence.
// Settings are fixed at game creation; there is no hot reload.
package config

import (
	"log/slog"
	"time"

	"github.com/loreforge/loreforge/internal/agent"
	"github.com/loreforge/loreforge/internal/state"
)

// LogLevel is the configured minimum log level.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l onto the corresponding slog level.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration document.
type Config struct {
	Game   GameConfig    `yaml:"game"`
	LLM    ProviderEntry `yaml:"llm"`
	Memory MemoryConfig  `yaml:"memory"`
	Log    LogConfig     `yaml:"log"`
}

// GameConfig selects the genre, difficulty, and the character to create.
type GameConfig struct {
	// SystemType is the genre preset. Default SYSTEM_INTEGRATION.
	SystemType state.SystemType `yaml:"system_type"`

	// Difficulty scales enemy danger and XP requirements. Default NORMAL.
	Difficulty state.Difficulty `yaml:"difficulty"`

	// Seed fixes the rules-engine RNG for reproducible sessions. Zero
	// means derive from the wall clock.
	Seed int64 `yaml:"seed"`

	CharacterCreation CharacterCreation       `yaml:"character_creation"`
	PlayerPreferences state.PlayerPreferences `yaml:"player_preferences"`
}

// CharacterCreation describes the player character to build at game start.
type CharacterCreation struct {
	Name      string `yaml:"name"`
	Backstory string `yaml:"backstory"`

	// StatAllocation is the stat preset. Default BALANCED; CUSTOM requires
	// CustomStats.
	StatAllocation state.StatAllocation `yaml:"stat_allocation"`
	CustomStats    *state.Stats         `yaml:"custom_stats"`
}

// ProviderEntry selects and parameterises an LLM provider.
type ProviderEntry struct {
	// Name is the registered provider name, e.g. "mock".
	Name string `yaml:"name"`

	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// TimeoutSeconds bounds a single LLM call. Default 120.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the per-call deadline, applying the default.
func (p ProviderEntry) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// MemoryConfig configures agent memory and persistence.
type MemoryConfig struct {
	// PostgresDSN is the persistence connection string. Empty selects the
	// in-memory store.
	PostgresDSN string `yaml:"postgres_dsn"`

	// TokenLimit is the per-agent estimated-token ceiling before
	// consolidation. Default 40000.
	TokenLimit int `yaml:"token_limit"`

	// KeepRecentMessages is how many trailing messages consolidation keeps
	// verbatim. Default 20.
	KeepRecentMessages int `yaml:"keep_recent_messages"`

	// AutoSaveInterval saves agent memory every N interactions. Default 3.
	AutoSaveInterval int `yaml:"auto_save_interval"`

	// EnableActionLogging persists structured agent decision records.
	// Default true.
	EnableActionLogging *bool `yaml:"enable_action_logging"`
}

// Limits resolves the memory section into agent limits, applying defaults.
func (m MemoryConfig) Limits() agent.Limits {
	l := agent.Limits{
		TokenLimit:          m.TokenLimit,
		KeepRecent:          m.KeepRecentMessages,
		AutoSaveInterval:    m.AutoSaveInterval,
		EnableActionLogging: m.EnableActionLogging == nil || *m.EnableActionLogging,
	}
	d := agent.DefaultLimits()
	if l.TokenLimit <= 0 {
		l.TokenLimit = d.TokenLimit
	}
	if l.KeepRecent <= 0 {
		l.KeepRecent = d.KeepRecent
	}
	if l.AutoSaveInterval <= 0 {
		l.AutoSaveInterval = d.AutoSaveInterval
	}
	return l
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is the minimum level. Default "info".
	Level LogLevel `yaml:"level"`
}
