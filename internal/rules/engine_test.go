package rules

import (
	"testing"

	"github.com/loreforge/loreforge/internal/state"
)

func newTestState(sys state.SystemType) state.GameState {
	sheet := state.NewCharacterSheet(state.AllocateStats(state.AllocBalanced, state.Stats{}, nil))
	return state.NewGame("game-1", "Tester", "", sys, state.DifficultyNormal, sheet, state.PlayerPreferences{})
}

func TestGainXPCascadesLevels(t *testing.T) {
	e := NewEngine(state.DifficultyNormal, 1, nil)
	st := newTestState(state.SystemIntegration)

	// Enough for level 1→2 (100) and 2→3 (115) with remainder.
	next, res := e.GainXP(st, 250)

	if res.LevelsGained != 2 {
		t.Fatalf("LevelsGained = %d, want 2", res.LevelsGained)
	}
	if next.CharacterSheet.Level != 3 {
		t.Errorf("Level = %d, want 3", next.CharacterSheet.Level)
	}
	if got := next.CharacterSheet.XP; got != 250-100-115 {
		t.Errorf("leftover XP = %d, want %d", got, 250-100-115)
	}
	if res.StatPointsAwarded != 2*statPointsPerLevel {
		t.Errorf("StatPointsAwarded = %d, want %d", res.StatPointsAwarded, 2*statPointsPerLevel)
	}
	if next.CharacterSheet.UnspentStatPoints != res.StatPointsAwarded {
		t.Errorf("UnspentStatPoints = %d, want %d", next.CharacterSheet.UnspentStatPoints, res.StatPointsAwarded)
	}
	if st.CharacterSheet.Level != 1 {
		t.Errorf("input state mutated: level %d", st.CharacterSheet.Level)
	}
}

func TestGainXPDifficultyScalesThreshold(t *testing.T) {
	easy := NewEngine(state.DifficultyEasy, 1, nil)
	st := newTestState(state.SystemIntegration)

	// Easy threshold for level 1 is ceil(100 · 0.8) = 80.
	next, res := easy.GainXP(st, 80)
	if res.LevelsGained != 1 {
		t.Fatalf("LevelsGained = %d, want 1 at easy threshold", res.LevelsGained)
	}
	if next.CharacterSheet.XP != 0 {
		t.Errorf("leftover XP = %d, want 0", next.CharacterSheet.XP)
	}
}

func TestGainXPGradeAdvancement(t *testing.T) {
	e := NewEngine(state.DifficultyNormal, 1, nil)
	st := newTestState(state.SystemIntegration)
	st.CharacterSheet.Level = 9

	next, res := e.GainXP(st, state.XPThreshold(9, state.DifficultyNormal))
	if !res.GradeAdvanced {
		t.Fatal("expected grade advancement at level 10")
	}
	if next.CharacterSheet.Grade != state.GradeD {
		t.Errorf("Grade = %s, want D", next.CharacterSheet.Grade)
	}
}

func TestApplyDeathBranches(t *testing.T) {
	tests := []struct {
		name      string
		sys       state.SystemType
		wantDead  bool
		wantBonus int
	}{
		{"death loop respawns stronger", state.DeathLoop, false, deathLoopStatBonus},
		{"dungeon delve is permanent", state.DungeonDelve, true, 0},
		{"default applies xp penalty", state.SystemIntegration, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(state.DifficultyNormal, 1, nil)
			st := newTestState(tt.sys)
			st.CharacterSheet.XP = 50
			st.CharacterSheet.Dead = true
			st.CharacterSheet.Resources.HP.Current = 0
			before := st.CharacterSheet.BaseStats

			next, res := e.ApplyDeath(st, "tested to destruction")

			if next.DeathCount != 1 {
				t.Errorf("DeathCount = %d, want 1", next.DeathCount)
			}
			if next.CharacterSheet.Dead != tt.wantDead {
				t.Errorf("Dead = %v, want %v", next.CharacterSheet.Dead, tt.wantDead)
			}
			if got := next.CharacterSheet.BaseStats.Strength - before.Strength; got != tt.wantBonus {
				t.Errorf("strength bonus = %d, want %d", got, tt.wantBonus)
			}
			if tt.sys == state.SystemIntegration {
				if res.XPLost != 5 {
					t.Errorf("XPLost = %d, want 5 (10%% of 50)", res.XPLost)
				}
				if next.CharacterSheet.Resources.HP.Current != next.CharacterSheet.Resources.HP.Max {
					t.Error("resources not restored after respawn")
				}
			}
			if tt.sys == state.DeathLoop && next.CharacterSheet.Resources.HP.Current == 0 {
				t.Error("death loop respawn left HP at zero")
			}
		})
	}
}

func TestResolveCombatDeterministicUnderSeed(t *testing.T) {
	st := newTestState(state.SystemIntegration)
	target := EnemyTarget{Name: "Training Construct", Danger: 1}

	_, first := NewEngine(state.DifficultyNormal, 42, nil).ResolveCombat(st, target)
	_, second := NewEngine(state.DifficultyNormal, 42, nil).ResolveCombat(st, target)

	if first.DamageDealt != second.DamageDealt || first.Gold != second.Gold || len(first.Loot) != len(second.Loot) {
		t.Errorf("same seed produced different outcomes: %+v vs %+v", first, second)
	}
}

func TestResolveCombatAwardsXPOnDefeat(t *testing.T) {
	e := NewEngine(state.DifficultyNormal, 42, nil)
	st := newTestState(state.SystemIntegration)

	// Balanced stats deal at least STR·2 = 20 damage; a danger-1 enemy
	// needs 8 to fall.
	next, res := e.ResolveCombat(st, EnemyTarget{Name: "Slime", Danger: 1})
	if !res.Defeated {
		t.Fatalf("danger-1 enemy survived %d damage", res.DamageDealt)
	}
	if res.XPAwarded != 15 {
		t.Errorf("XPAwarded = %d, want 15", res.XPAwarded)
	}
	if next.CharacterSheet.Gold != res.Gold {
		t.Errorf("gold not applied: sheet %d, result %d", next.CharacterSheet.Gold, res.Gold)
	}
}

func TestUseSkillOutcomes(t *testing.T) {
	strike := state.Skill{
		ID: "s1", Name: "Strike", Rarity: state.RarityCommon, Level: 1,
		IsActive: true, Cost: state.ResourceCost{Energy: 10}, MaxCooldown: 2, BaseDamage: 10,
	}

	t.Run("success deducts cost and sets cooldown", func(t *testing.T) {
		e := NewEngine(state.DifficultyNormal, 1, nil)
		sheet := state.NewCharacterSheet(state.AllocateStats(state.AllocBalanced, state.Stats{}, nil))
		sheet.Skills = []state.Skill{strike}
		energyBefore := sheet.Resources.Energy.Current

		next, out, err := e.UseSkill(sheet, "s1")
		if err != nil {
			t.Fatalf("UseSkill: %v", err)
		}
		success, ok := out.(SkillSuccess)
		if !ok {
			t.Fatalf("outcome = %T, want SkillSuccess", out)
		}
		if success.Damage <= 0 {
			t.Error("expected non-zero damage")
		}
		if next.Resources.Energy.Current != energyBefore-10 {
			t.Errorf("energy = %d, want %d", next.Resources.Energy.Current, energyBefore-10)
		}
		if next.Skills[0].CurrentCooldown != 2 {
			t.Errorf("cooldown = %d, want 2", next.Skills[0].CurrentCooldown)
		}
		if next.Skills[0].XP != skillUseXP {
			t.Errorf("skill XP = %d, want %d", next.Skills[0].XP, skillUseXP)
		}
	})

	t.Run("on cooldown", func(t *testing.T) {
		e := NewEngine(state.DifficultyNormal, 1, nil)
		sheet := state.NewCharacterSheet(state.AllocateStats(state.AllocBalanced, state.Stats{}, nil))
		cooling := strike
		cooling.CurrentCooldown = 1
		sheet.Skills = []state.Skill{cooling}

		_, out, err := e.UseSkill(sheet, "s1")
		if err != nil {
			t.Fatalf("UseSkill: %v", err)
		}
		cd, ok := out.(SkillOnCooldown)
		if !ok {
			t.Fatalf("outcome = %T, want SkillOnCooldown", out)
		}
		if cd.TurnsRemaining != 1 {
			t.Errorf("TurnsRemaining = %d, want 1", cd.TurnsRemaining)
		}
	})

	t.Run("insufficient resources", func(t *testing.T) {
		e := NewEngine(state.DifficultyNormal, 1, nil)
		sheet := state.NewCharacterSheet(state.AllocateStats(state.AllocBalanced, state.Stats{}, nil))
		sheet.Skills = []state.Skill{strike}
		sheet.Resources.Energy.Current = 3

		_, out, err := e.UseSkill(sheet, "s1")
		if err != nil {
			t.Fatalf("UseSkill: %v", err)
		}
		ir, ok := out.(SkillInsufficientResources)
		if !ok {
			t.Fatalf("outcome = %T, want SkillInsufficientResources", out)
		}
		if len(ir.Missing) != 1 || ir.Missing[0] != "Energy" {
			t.Errorf("Missing = %v, want [Energy]", ir.Missing)
		}
	})

	t.Run("unknown skill errors", func(t *testing.T) {
		e := NewEngine(state.DifficultyNormal, 1, nil)
		sheet := state.NewCharacterSheet(state.AllocateStats(state.AllocBalanced, state.Stats{}, nil))
		if _, _, err := e.UseSkill(sheet, "nope"); err == nil {
			t.Fatal("expected error for unknown skill")
		}
	})
}

func TestQuestObjectiveLifecycle(t *testing.T) {
	e := NewEngine(state.DifficultyNormal, 1, nil)
	st := newTestState(state.SystemIntegration)
	st.ActiveQuests["q1"] = state.Quest{
		ID:   "q1",
		Name: "Prove Yourself",
		Type: state.QuestTypeTutorial,
		Objectives: []state.Objective{
			{ID: "o1", Type: state.ObjectiveKill, TargetID: "construct", TargetProgress: 2},
		},
		Rewards: state.Rewards{XP: 50, Gold: 10},
	}

	st2, p1, err := e.UpdateQuestObjective(st, "q1", "o1", 1)
	if err != nil {
		t.Fatalf("UpdateQuestObjective: %v", err)
	}
	if p1.ObjectiveCompleted || p1.ReadyForTurnIn {
		t.Errorf("progress 1/2 flagged complete: %+v", p1)
	}

	// Completing all objectives flags ready but does not auto-close.
	st3, p2, err := e.UpdateQuestObjective(st2, "q1", "o1", 5)
	if err != nil {
		t.Fatalf("UpdateQuestObjective: %v", err)
	}
	if p2.CurrentProgress != 2 {
		t.Errorf("progress = %d, want clamped to 2", p2.CurrentProgress)
	}
	if !p2.ReadyForTurnIn {
		t.Error("expected ReadyForTurnIn after all objectives complete")
	}
	if _, active := st3.ActiveQuests["q1"]; !active {
		t.Fatal("quest auto-closed before explicit turn-in")
	}

	st4, done, err := e.CompleteQuest(st3, "q1")
	if err != nil {
		t.Fatalf("CompleteQuest: %v", err)
	}
	if done.RewardXP != 50 || done.RewardGold != 10 {
		t.Errorf("rewards = %+v", done)
	}
	if _, active := st4.ActiveQuests["q1"]; active {
		t.Error("quest still active after turn-in")
	}
	if _, completed := st4.CompletedQuests["q1"]; !completed {
		t.Error("quest missing from completed set")
	}
	if err := st4.CheckInvariants(); err != nil {
		t.Errorf("invariants: %v", err)
	}
}

func TestCompleteQuestRejectsIncomplete(t *testing.T) {
	e := NewEngine(state.DifficultyNormal, 1, nil)
	st := newTestState(state.SystemIntegration)
	st.ActiveQuests["q1"] = state.Quest{
		ID: "q1", Name: "Unfinished",
		Objectives: []state.Objective{{ID: "o1", TargetProgress: 1}},
	}
	if _, _, err := e.CompleteQuest(st, "q1"); err == nil {
		t.Fatal("expected error turning in incomplete quest")
	}
}

func TestProcessActionInsightMaterialisesSkill(t *testing.T) {
	e := NewEngine(state.DifficultyNormal, 1, nil)
	sheet := state.NewCharacterSheet(state.AllocateStats(state.AllocBalanced, state.Stats{}, nil))

	var granted *state.Skill
	for i := 0; i < 3; i++ {
		if granted != nil {
			t.Fatalf("skill granted after %d observations, want 3", i)
		}
		sheet, granted = e.ProcessActionInsight("I examine the strange runes", sheet)
	}
	if granted == nil {
		t.Fatal("no skill granted after required observations")
	}
	if granted.ID != "skill_keen_eye" {
		t.Errorf("granted %q, want skill_keen_eye", granted.ID)
	}
	if _, still := sheet.PartialSkills["partial_keen_eye"]; still {
		t.Error("partial skill not removed after materialisation")
	}

	// Further matching input must not re-grant.
	_, again := e.ProcessActionInsight("examine everything", sheet)
	if again != nil {
		t.Error("skill granted twice")
	}
}

func TestTickCooldowns(t *testing.T) {
	e := NewEngine(state.DifficultyNormal, 1, nil)
	sheet := state.NewCharacterSheet(state.AllocateStats(state.AllocBalanced, state.Stats{}, nil))
	sheet.Skills = []state.Skill{
		{ID: "a", Name: "A", IsActive: true, CurrentCooldown: 2},
		{ID: "b", Name: "B", IsActive: true, CurrentCooldown: 0},
	}
	next := e.TickCooldowns(sheet)
	if next.Skills[0].CurrentCooldown != 1 {
		t.Errorf("cooldown = %d, want 1", next.Skills[0].CurrentCooldown)
	}
	if next.Skills[1].CurrentCooldown != 0 {
		t.Errorf("cooldown went negative: %d", next.Skills[1].CurrentCooldown)
	}
}
