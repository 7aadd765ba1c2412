package rules

import (
	"fmt"

	"github.com/loreforge/loreforge/internal/state"
)

// SkillOutcome is the closed result set of a skill invocation.
type SkillOutcome interface {
	isSkillOutcome()
}

// SkillSuccess is a successful invocation: cost deducted, cooldown set,
// skill XP granted.
type SkillSuccess struct {
	SkillName string
	Damage    int
	Healing   int
	XPGained  int
	LeveledUp bool
	NewLevel  int
}

// SkillOnCooldown means the skill cannot fire yet.
type SkillOnCooldown struct {
	SkillName      string
	TurnsRemaining int
}

// SkillInsufficientResources lists the pools that came up short.
type SkillInsufficientResources struct {
	SkillName string
	Missing   []string
}

func (SkillSuccess) isSkillOutcome()               {}
func (SkillOnCooldown) isSkillOutcome()            {}
func (SkillInsufficientResources) isSkillOutcome() {}

// skillUseXP is the XP a skill earns per successful use.
const skillUseXP = 10

// UseSkill invokes an active skill on the sheet. On success the resource
// cost is deducted, the cooldown starts, and the skill gains XP (possibly
// levelling). Passive and unknown skills are errors.
func (e *Engine) UseSkill(sheet state.CharacterSheet, skillID string) (state.CharacterSheet, SkillOutcome, error) {
	idx := sheet.SkillByID(skillID)
	if idx < 0 {
		return sheet, nil, fmt.Errorf("rules: unknown skill %q", skillID)
	}
	sk := sheet.Skills[idx]
	if !sk.IsActive {
		return sheet, nil, fmt.Errorf("rules: skill %q is passive and cannot be invoked", sk.Name)
	}

	if sk.CurrentCooldown > 0 {
		return sheet, SkillOnCooldown{SkillName: sk.Name, TurnsRemaining: sk.CurrentCooldown}, nil
	}

	var missing []string
	if sheet.Resources.MP.Current < sk.Cost.MP {
		missing = append(missing, "MP")
	}
	if sheet.Resources.Energy.Current < sk.Cost.Energy {
		missing = append(missing, "Energy")
	}
	if len(missing) > 0 {
		return sheet, SkillInsufficientResources{SkillName: sk.Name, Missing: missing}, nil
	}

	next := sheet
	next.Skills = make([]state.Skill, len(sheet.Skills))
	copy(next.Skills, sheet.Skills)
	next.Resources.MP.Current -= sk.Cost.MP
	next.Resources.Energy.Current -= sk.Cost.Energy

	stats := next.EffectiveStats()
	success := SkillSuccess{SkillName: sk.Name, XPGained: skillUseXP}
	if sk.BaseDamage > 0 {
		success.Damage = sk.BaseDamage + sk.Level*2 + stats.Intelligence/2
	}
	if sk.BaseHealing > 0 {
		success.Healing = sk.BaseHealing + sk.Level*2 + stats.Wisdom/2
		next.Resources.HP.Current += success.Healing
		if next.Resources.HP.Current > next.Resources.HP.Max {
			next.Resources.HP.Current = next.Resources.HP.Max
		}
	}

	used := &next.Skills[idx]
	used.CurrentCooldown = used.MaxCooldown
	if !used.AtMaxLevel() {
		used.XP += skillUseXP
		for !used.AtMaxLevel() && used.XP >= state.SkillXPThreshold(used.Level) {
			used.XP -= state.SkillXPThreshold(used.Level)
			used.Level++
			success.LeveledUp = true
		}
	}
	success.NewLevel = used.Level

	e.log.Debug("skill used",
		"skill", sk.Name,
		"damage", success.Damage,
		"healing", success.Healing,
		"leveled_up", success.LeveledUp)
	return next, success, nil
}
