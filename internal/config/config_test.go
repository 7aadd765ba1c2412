package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loreforge/loreforge/internal/state"
	"github.com/loreforge/loreforge/pkg/llm"
	"github.com/loreforge/loreforge/pkg/llm/mock"
)

const fullConfig = `
game:
  system_type: DEATH_LOOP
  difficulty: HARD
  seed: 42
  character_creation:
    name: Elena
    backstory: a survivor of the old world
    stat_allocation: ROGUE
  player_preferences:
    playstyle: cautious
    playstyle_description: avoids fights when outmatched
llm:
  name: mock
  model: test-model
  timeout_seconds: 30
memory:
  postgres_dsn: postgres://localhost/loreforge
  token_limit: 8000
  keep_recent_messages: 10
  auto_save_interval: 5
  enable_action_logging: false
log:
  level: debug
`

func TestLoadFromReaderFull(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(fullConfig))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Game.SystemType != state.DeathLoop {
		t.Errorf("SystemType = %s, want DEATH_LOOP", cfg.Game.SystemType)
	}
	if cfg.Game.Difficulty != state.DifficultyHard {
		t.Errorf("Difficulty = %s, want HARD", cfg.Game.Difficulty)
	}
	if cfg.Game.Seed != 42 {
		t.Errorf("Seed = %d, want 42", cfg.Game.Seed)
	}
	if cfg.Game.CharacterCreation.Name != "Elena" {
		t.Errorf("Name = %q, want Elena", cfg.Game.CharacterCreation.Name)
	}
	if cfg.Game.CharacterCreation.StatAllocation != state.AllocRogue {
		t.Errorf("StatAllocation = %s, want ROGUE", cfg.Game.CharacterCreation.StatAllocation)
	}
	if cfg.Game.PlayerPreferences.Playstyle != "cautious" {
		t.Errorf("Playstyle = %q, want cautious", cfg.Game.PlayerPreferences.Playstyle)
	}
	if cfg.LLM.Timeout() != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.LLM.Timeout())
	}

	limits := cfg.Memory.Limits()
	if limits.TokenLimit != 8000 || limits.KeepRecent != 10 || limits.AutoSaveInterval != 5 {
		t.Errorf("limits = %+v", limits)
	}
	if limits.EnableActionLogging {
		t.Error("action logging not disabled")
	}
	if cfg.Log.Level != LogDebug {
		t.Errorf("Level = %s, want debug", cfg.Log.Level)
	}
}

func TestLoadFromReaderDefaults(t *testing.T) {
	minimal := `
game:
  character_creation:
    name: Elena
`
	cfg, err := LoadFromReader(strings.NewReader(minimal))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Game.SystemType != state.SystemIntegration {
		t.Errorf("SystemType = %s, want SYSTEM_INTEGRATION", cfg.Game.SystemType)
	}
	if cfg.Game.Difficulty != state.DifficultyNormal {
		t.Errorf("Difficulty = %s, want NORMAL", cfg.Game.Difficulty)
	}
	if cfg.Game.CharacterCreation.StatAllocation != state.AllocBalanced {
		t.Errorf("StatAllocation = %s, want BALANCED", cfg.Game.CharacterCreation.StatAllocation)
	}
	if cfg.LLM.Name != "mock" {
		t.Errorf("LLM.Name = %q, want mock", cfg.LLM.Name)
	}
	if cfg.LLM.Timeout() != 120*time.Second {
		t.Errorf("Timeout = %v, want 120s", cfg.LLM.Timeout())
	}
	if cfg.Log.Level != LogInfo {
		t.Errorf("Level = %s, want info", cfg.Log.Level)
	}

	limits := cfg.Memory.Limits()
	if limits.TokenLimit != 40000 || limits.KeepRecent != 20 || limits.AutoSaveInterval != 3 {
		t.Errorf("default limits = %+v", limits)
	}
	if !limits.EnableActionLogging {
		t.Error("action logging should default on")
	}
}

func TestLoadFromReaderRejectsUnknownKeys(t *testing.T) {
	doc := `
game:
  character_creation:
    name: Elena
  voice: loud
`
	if _, err := LoadFromReader(strings.NewReader(doc)); err == nil {
		t.Fatal("unknown key accepted")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Game: GameConfig{
			SystemType: "SPACE_OPERA",
			Difficulty: "BRUTAL",
			CharacterCreation: CharacterCreation{
				StatAllocation: "MAXED",
			},
		},
		Log: LogConfig{Level: "verbose"},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid config accepted")
	}
	for _, want := range []string{"system_type", "difficulty", "name is required", "stat_allocation", "log level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidateCustomStats(t *testing.T) {
	base := func() *Config {
		return &Config{
			Game: GameConfig{
				SystemType: state.SystemIntegration,
				Difficulty: state.DifficultyNormal,
				CharacterCreation: CharacterCreation{
					Name:           "Elena",
					StatAllocation: state.AllocCustom,
				},
			},
			Log: LogConfig{Level: LogInfo},
		}
	}

	cfg := base()
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "custom_stats") {
		t.Errorf("missing custom_stats not reported: %v", err)
	}

	cfg = base()
	cfg.Game.CharacterCreation.CustomStats = &state.Stats{Strength: 99, Agility: 10, Vitality: 10, Intelligence: 10, Wisdom: 10, Luck: 10}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Errorf("out-of-range custom_stats not reported: %v", err)
	}

	cfg = base()
	cfg.Game.CharacterCreation.CustomStats = &state.Stats{Strength: 12, Agility: 10, Vitality: 10, Intelligence: 10, Wisdom: 8, Luck: 10}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid custom_stats rejected: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(fullConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Game.CharacterCreation.Name != "Elena" {
		t.Errorf("Name = %q, want Elena", cfg.Game.CharacterCreation.Name)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterLLM("mock", func(entry ProviderEntry) (llm.Provider, error) {
		return &mock.Provider{Default: "ok"}, nil
	})

	p, err := reg.CreateLLM(ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateLLM: %v", err)
	}
	if p == nil {
		t.Fatal("nil provider")
	}

	_, err = reg.CreateLLM(ProviderEntry{Name: "openai"})
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}
