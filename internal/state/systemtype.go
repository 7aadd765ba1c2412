// Package state defines the immutable game-state model for the narrative
// core: the [GameState] root, the character sheet, skills, quests, NPCs,
// locations, the plot graph, and per-agent conversation memory.
//
// All types are plain values. Nothing in this package performs I/O and no
// type holds references shared across turns — transitions go through
// [GameState.Clone] (or the rules engine, which clones internally) and
// return new values, leaving prior snapshots untouched. Cross-references
// between NPCs, quests, and plot nodes are stored as ids and resolved via
// map lookups on the owning state; there are no back-pointers.
package state

// SystemType is the genre preset selected at game creation. It controls
// death semantics, opening-prompt cues, and the default scene tone.
type SystemType string

const (
	SystemIntegration SystemType = "SYSTEM_INTEGRATION"
	CultivationPath   SystemType = "CULTIVATION_PATH"
	DeathLoop         SystemType = "DEATH_LOOP"
	DungeonDelve      SystemType = "DUNGEON_DELVE"
	ArcaneAcademy     SystemType = "ARCANE_ACADEMY"
	TabletopClassic   SystemType = "TABLETOP_CLASSIC"
	EpicJourney       SystemType = "EPIC_JOURNEY"
	HeroAwakening     SystemType = "HERO_AWAKENING"
)

// IsValid reports whether s is a recognised system type.
func (s SystemType) IsValid() bool {
	switch s {
	case SystemIntegration, CultivationPath, DeathLoop, DungeonDelve,
		ArcaneAcademy, TabletopClassic, EpicJourney, HeroAwakening:
		return true
	}
	return false
}

// DeathSemantics is the rule family applied when the character dies.
type DeathSemantics int

const (
	// DeathRespawnStronger respawns the character with a permanent per-stat
	// bonus for every accumulated death (DEATH_LOOP).
	DeathRespawnStronger DeathSemantics = iota

	// DeathPermanent marks the character permanently dead (DUNGEON_DELVE).
	DeathPermanent

	// DeathXPPenalty respawns the character with a 10% XP penalty.
	DeathXPPenalty
)

// DeathSemantics returns the death rule family for this system type.
func (s SystemType) DeathSemantics() DeathSemantics {
	switch s {
	case DeathLoop:
		return DeathRespawnStronger
	case DungeonDelve:
		return DeathPermanent
	default:
		return DeathXPPenalty
	}
}

// Difficulty scales enemy danger and XP requirements.
type Difficulty string

const (
	DifficultyEasy      Difficulty = "EASY"
	DifficultyNormal    Difficulty = "NORMAL"
	DifficultyHard      Difficulty = "HARD"
	DifficultyNightmare Difficulty = "NIGHTMARE"
)

// IsValid reports whether d is a recognised difficulty.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyNormal, DifficultyHard, DifficultyNightmare:
		return true
	}
	return false
}

// XPScale returns the multiplier applied to level-up thresholds.
func (d Difficulty) XPScale() float64 {
	switch d {
	case DifficultyEasy:
		return 0.8
	case DifficultyHard:
		return 1.25
	case DifficultyNightmare:
		return 1.5
	default:
		return 1.0
	}
}

// DangerScale returns the multiplier applied to enemy danger ratings.
func (d Difficulty) DangerScale() float64 {
	switch d {
	case DifficultyEasy:
		return 0.75
	case DifficultyHard:
		return 1.25
	case DifficultyNightmare:
		return 1.6
	default:
		return 1.0
	}
}
