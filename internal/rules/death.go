package rules

import "github.com/loreforge/loreforge/internal/state"

// deathLoopStatBonus scales the permanent per-stat gain granted on a
// DEATH_LOOP death: the Nth death grants 2·N to every stat.
const deathLoopStatBonus = 2

// DeathResult reports how a death was resolved.
type DeathResult struct {
	Cause      string
	Semantics  state.DeathSemantics
	DeathCount int
	// XPLost is non-zero only under the XP-penalty branch.
	XPLost int
	// StatBonus is the per-stat gain applied under DEATH_LOOP.
	StatBonus int
	// Permanent marks the run as over (DUNGEON_DELVE).
	Permanent bool
}

// ApplyDeath resolves a character death by system type. DEATH_LOOP respawns
// the character stronger; DUNGEON_DELVE ends the run; every other system
// respawns with a 10% XP penalty. The death count increments in all branches.
func (e *Engine) ApplyDeath(st state.GameState, cause string) (state.GameState, DeathResult) {
	next := st.Clone()
	next.DeathCount++

	result := DeathResult{
		Cause:      cause,
		Semantics:  st.SystemType.DeathSemantics(),
		DeathCount: next.DeathCount,
	}
	sheet := &next.CharacterSheet

	switch result.Semantics {
	case state.DeathRespawnStronger:
		result.StatBonus = deathLoopStatBonus * next.DeathCount
		sheet.BaseStats = sheet.BaseStats.AddAll(result.StatBonus)
		sheet.Dead = false
		sheet.Resources = state.ResourcesFor(sheet.EffectiveStats(), sheet.Level)

	case state.DeathPermanent:
		result.Permanent = true
		sheet.Dead = true

	default: // DeathXPPenalty
		result.XPLost = sheet.XP / 10
		sheet.XP -= result.XPLost
		sheet.Dead = false
		sheet.Resources = sheet.Resources.Restored()
	}

	e.log.Info("death applied",
		"cause", cause,
		"system", next.SystemType,
		"death_count", next.DeathCount,
		"permanent", result.Permanent)
	return next, result
}
