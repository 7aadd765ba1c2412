package rules

import (
	"strings"

	"github.com/loreforge/loreforge/internal/state"
)

// insightPattern seeds a partial skill from repeated player behaviour.
type insightPattern struct {
	partial state.PartialSkill
	skill   state.Skill
}

// insightPatterns maps observed behaviour to the skill it eventually
// materialises. Keywords are matched case-insensitively as substrings.
var insightPatterns = []insightPattern{
	{
		partial: state.PartialSkill{
			ID:       "partial_keen_eye",
			Name:     "Keen Eye",
			Keywords: []string{"examine", "inspect", "study", "observe"},
			Required: 3,
		},
		skill: state.Skill{
			ID:          "skill_keen_eye",
			Name:        "Keen Eye",
			Rarity:      state.RarityUncommon,
			Level:       1,
			IsActive:    false,
			Description: "Long habit of close observation reveals what others miss.",
		},
	},
	{
		partial: state.PartialSkill{
			ID:       "partial_silent_step",
			Name:     "Silent Step",
			Keywords: []string{"sneak", "hide", "stealth", "creep"},
			Required: 3,
		},
		skill: state.Skill{
			ID:          "skill_silent_step",
			Name:        "Silent Step",
			Rarity:      state.RarityUncommon,
			Level:       1,
			IsActive:    true,
			Cost:        state.ResourceCost{Energy: 8},
			MaxCooldown: 3,
			Description: "Move without sound for a short time.",
		},
	},
	{
		partial: state.PartialSkill{
			ID:       "partial_iron_will",
			Name:     "Iron Will",
			Keywords: []string{"endure", "resist", "withstand", "brace"},
			Required: 4,
		},
		skill: state.Skill{
			ID:          "skill_iron_will",
			Name:        "Iron Will",
			Rarity:      state.RarityRare,
			Level:       1,
			IsActive:    false,
			Description: "Pain and fear lose their grip on a hardened mind.",
		},
	},
}

// ProcessActionInsight counts keyword-pattern observations in the player's
// input. The first observation creates the partial skill; reaching the
// required count materialises the full skill, which is returned so the
// orchestrator can announce it.
func (e *Engine) ProcessActionInsight(input string, sheet state.CharacterSheet) (state.CharacterSheet, *state.Skill) {
	lower := strings.ToLower(input)
	next := sheet

	for _, p := range insightPatterns {
		if sheet.SkillByID(p.skill.ID) >= 0 {
			continue
		}
		matched := false
		for _, kw := range p.partial.Keywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		next.PartialSkills = clonePartials(sheet.PartialSkills)

		partial, ok := next.PartialSkills[p.partial.ID]
		if !ok {
			partial = p.partial
		}
		partial.Observations++
		if partial.Observations >= partial.Required {
			delete(next.PartialSkills, p.partial.ID)
			next.Skills = append(append([]state.Skill(nil), next.Skills...), p.skill)
			granted := p.skill
			e.log.Info("skill materialised from insight", "skill", granted.Name)
			return next, &granted
		}
		next.PartialSkills[p.partial.ID] = partial
		e.log.Debug("insight observed",
			"partial", partial.Name,
			"observations", partial.Observations,
			"required", partial.Required)
		return next, nil
	}
	return next, nil
}

func clonePartials(m map[string]state.PartialSkill) map[string]state.PartialSkill {
	cp := make(map[string]state.PartialSkill, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
