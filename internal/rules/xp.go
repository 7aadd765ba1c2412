package rules

import "github.com/loreforge/loreforge/internal/state"

// statPointsPerLevel is awarded on every level-up, banked as unspent points.
const statPointsPerLevel = 3

// skillSlotInterval: a new skill slot unlocks every this many levels.
const skillSlotInterval = 5

// XPResult reports what a grant of XP changed.
type XPResult struct {
	XPGained           int
	LevelsGained       int
	NewLevel           int
	StatPointsAwarded  int
	SkillSlotsUnlocked int
	GradeAdvanced      bool
	NewGrade           state.Grade
}

// GainXP adds amount XP to the character, cascading level-ups as long as the
// difficulty-scaled threshold is met. Each level-up awards stat points,
// restores resources at the new maxima, may unlock a skill slot, and may
// advance the grade.
func (e *Engine) GainXP(st state.GameState, amount int) (state.GameState, XPResult) {
	next := st.Clone()
	sheet := &next.CharacterSheet

	oldGrade := sheet.Grade
	result := XPResult{XPGained: amount, NewLevel: sheet.Level, NewGrade: oldGrade}
	if amount <= 0 {
		return next, result
	}

	sheet.XP += amount
	for sheet.XP >= state.XPThreshold(sheet.Level, e.difficulty) {
		sheet.XP -= state.XPThreshold(sheet.Level, e.difficulty)
		sheet.Level++
		result.LevelsGained++
		result.StatPointsAwarded += statPointsPerLevel
		if sheet.Level%skillSlotInterval == 0 {
			result.SkillSlotsUnlocked++
		}
	}

	if result.LevelsGained > 0 {
		sheet.UnspentStatPoints += result.StatPointsAwarded
		sheet.Grade = state.GradeForLevel(sheet.Level)
		// Level-ups heal to full at the new maxima.
		sheet.Resources = state.ResourcesFor(sheet.EffectiveStats(), sheet.Level)
		result.NewLevel = sheet.Level
		result.GradeAdvanced = sheet.Grade != oldGrade
		result.NewGrade = sheet.Grade
		e.log.Info("level up",
			"level", sheet.Level,
			"levels_gained", result.LevelsGained,
			"grade", sheet.Grade)
	}
	return next, result
}
