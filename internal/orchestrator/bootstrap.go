package orchestrator

import (
	"context"
	"fmt"

	"github.com/loreforge/loreforge/internal/state"
	"github.com/loreforge/loreforge/pkg/events"
)

const (
	tutorialQuestID = "quest_survive_tutorial"
	tutorialNPCID   = "npc_sergeant_vale"
)

// tutorialNPC is the fixture quest giver present at the starting location.
func tutorialNPC() state.NPC {
	return state.NPC{
		ID:         tutorialNPCID,
		Name:       "Sergeant Vale",
		Archetype:  "drill instructor",
		LocationID: state.StartingLocationID,
		Personality: state.Personality{
			Traits:        []string{"gruff", "fair", "impatient with excuses"},
			SpeechPattern: "clipped military cadence, calls everyone 'recruit'",
			Motivations:   []string{"see every awakened survive their first week"},
		},
		Lore: "One of the first to awaken when the System arrived. Runs integration drills at the plaza.",
	}
}

// tutorialQuest is the fixture quest granted on the very first turn.
func tutorialQuest() state.Quest {
	return state.Quest{
		ID:    tutorialQuestID,
		Name:  "System Integration",
		Type:  state.QuestTypeTutorial,
		Giver: "Sergeant Vale",
		Objectives: []state.Objective{
			{
				ID:             "tutorial_obj_status",
				Description:    "Open your status screen",
				Type:           state.ObjectiveCustom,
				TargetID:       "status",
				TargetProgress: 1,
			},
			{
				ID:             "tutorial_obj_first_combat",
				Description:    "Defeat a training construct",
				Type:           state.ObjectiveKill,
				TargetID:       "training construct",
				TargetProgress: 1,
			},
			{
				ID:             "tutorial_obj_report",
				Description:    "Report back to Sergeant Vale",
				Type:           state.ObjectiveTalk,
				TargetID:       tutorialNPCID,
				TargetProgress: 1,
			},
		},
		Rewards: state.Rewards{
			XP:      50,
			Gold:    10,
			SkillID: "skill_power_strike",
		},
	}
}

// fallbackOpening is the deterministic opening used when the narrator is
// unreachable.
func fallbackOpening(st state.GameState) string {
	return fmt.Sprintf(
		"You wake on cold flagstones under a sky you do not recognise. "+
			"A translucent pane of blue light hangs in the air before you: "+
			"[Welcome, %s. Integration with the System is complete.] "+
			"Around you, Awakening Plaza hums with nervous strangers and the "+
			"thud of training constructs.",
		st.PlayerName)
}

// bootstrap plays the opening of a fresh game: the opening narration, the
// tutorial quest grant, and the quest giver's entrance. Runs exactly once;
// subsequent turns see HasOpeningNarrationPlayed set.
func (o *Orchestrator) bootstrap(ctx context.Context, em *emitter) error {
	opening, err := o.narrator.NarrateOpening(ctx, o.st)
	if err != nil {
		o.log.Warn("opening narration failed, retrying once", "error", err)
		opening, err = o.narrator.NarrateOpening(ctx, o.st)
	}
	if err != nil {
		o.log.Warn("opening narration failed again, using fallback", "error", err)
		opening = fallbackOpening(o.st)
	}

	npc := tutorialNPC()
	quest := tutorialQuest()
	o.st.NPCs[npc.ID] = npc
	o.st.ActiveQuests[quest.ID] = quest
	o.st.HasOpeningNarrationPlayed = true

	em.emit(events.NarratorText{Text: opening})
	em.emit(events.QuestUpdate{QuestID: quest.ID, QuestName: quest.Name, Status: events.QuestNew})
	em.emit(events.SystemNotification{Text: "New quest: System Integration. Sergeant Vale materializes before you."})
	return nil
}
