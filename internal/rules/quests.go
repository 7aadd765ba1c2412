package rules

import (
	"fmt"

	"github.com/loreforge/loreforge/internal/state"
)

// QuestProgress reports an objective bump.
type QuestProgress struct {
	QuestName          string
	ObjectiveID        string
	CurrentProgress    int
	TargetProgress     int
	ObjectiveCompleted bool
	// ReadyForTurnIn is set once every objective is complete. The quest
	// stays active until [Engine.CompleteQuest] is called.
	ReadyForTurnIn bool
}

// QuestCompletion reports an applied turn-in.
type QuestCompletion struct {
	QuestName    string
	RewardXP     int
	RewardGold   int
	RewardItems  []state.Item
	GrantedSkill *state.Skill
	LevelUps     XPResult
}

// UpdateQuestObjective advances an objective by delta, clamped to its
// target. Completing every objective flags the quest ready for turn-in but
// never auto-closes it.
func (e *Engine) UpdateQuestObjective(st state.GameState, questID, objectiveID string, delta int) (state.GameState, QuestProgress, error) {
	q, ok := st.ActiveQuests[questID]
	if !ok {
		return st, QuestProgress{}, fmt.Errorf("rules: quest %q is not active", questID)
	}
	idx := q.ObjectiveByID(objectiveID)
	if idx < 0 {
		return st, QuestProgress{}, fmt.Errorf("rules: quest %q has no objective %q", questID, objectiveID)
	}

	next := st.Clone()
	q = next.ActiveQuests[questID]
	o := &q.Objectives[idx]
	o.CurrentProgress += delta
	if o.CurrentProgress > o.TargetProgress {
		o.CurrentProgress = o.TargetProgress
	}
	if o.CurrentProgress < 0 {
		o.CurrentProgress = 0
	}
	next.ActiveQuests[questID] = q

	progress := QuestProgress{
		QuestName:          q.Name,
		ObjectiveID:        objectiveID,
		CurrentProgress:    o.CurrentProgress,
		TargetProgress:     o.TargetProgress,
		ObjectiveCompleted: o.Complete(),
		ReadyForTurnIn:     q.Complete(),
	}
	e.log.Debug("quest objective updated",
		"quest", q.Name,
		"objective", objectiveID,
		"progress", o.CurrentProgress,
		"target", o.TargetProgress)
	return next, progress, nil
}

// CompleteQuest turns in a quest: rewards are applied exactly once and the
// quest moves from active to completed. XP rewards cascade level-ups.
func (e *Engine) CompleteQuest(st state.GameState, questID string) (state.GameState, QuestCompletion, error) {
	q, ok := st.ActiveQuests[questID]
	if !ok {
		return st, QuestCompletion{}, fmt.Errorf("rules: quest %q is not active", questID)
	}
	if !q.Complete() {
		return st, QuestCompletion{}, fmt.Errorf("rules: quest %q has incomplete objectives", q.Name)
	}

	next := st.Clone()
	delete(next.ActiveQuests, questID)
	next.CompletedQuests[questID] = struct{}{}

	completion := QuestCompletion{
		QuestName:   q.Name,
		RewardXP:    q.Rewards.XP,
		RewardGold:  q.Rewards.Gold,
		RewardItems: q.Rewards.Items,
	}
	next.CharacterSheet.Gold += q.Rewards.Gold
	for _, it := range q.Rewards.Items {
		next.CharacterSheet.AddItem(it, 1)
	}
	if q.Rewards.SkillID != "" && next.CharacterSheet.SkillByID(q.Rewards.SkillID) < 0 {
		sk := rewardSkill(q.Rewards.SkillID)
		next.CharacterSheet.Skills = append(next.CharacterSheet.Skills, sk)
		completion.GrantedSkill = &sk
	}
	if q.Rewards.XP > 0 {
		var xp XPResult
		next, xp = e.GainXP(next, q.Rewards.XP)
		completion.LevelUps = xp
	}

	e.log.Info("quest completed",
		"quest", q.Name,
		"xp", q.Rewards.XP,
		"gold", q.Rewards.Gold)
	return next, completion, nil
}

// rewardSkill materialises a level-1 skill granted by a quest reward.
func rewardSkill(id string) state.Skill {
	if sk, ok := rewardSkills[id]; ok {
		return sk
	}
	return state.Skill{
		ID:       id,
		Name:     id,
		Rarity:   state.RarityCommon,
		Level:    1,
		IsActive: true,
		Cost:     state.ResourceCost{Energy: 5},
	}
}

// rewardSkills are the quest-grantable skill templates.
var rewardSkills = map[string]state.Skill{
	"skill_power_strike": {
		ID:          "skill_power_strike",
		Name:        "Power Strike",
		Rarity:      state.RarityCommon,
		Level:       1,
		IsActive:    true,
		Cost:        state.ResourceCost{Energy: 10},
		MaxCooldown: 2,
		BaseDamage:  15,
		Description: "A focused blow that channels raw strength.",
	},
	"skill_minor_heal": {
		ID:          "skill_minor_heal",
		Name:        "Minor Heal",
		Rarity:      state.RarityCommon,
		Level:       1,
		IsActive:    true,
		Cost:        state.ResourceCost{MP: 12},
		MaxCooldown: 3,
		BaseHealing: 20,
		Description: "Knits small wounds closed with ambient mana.",
	},
}
