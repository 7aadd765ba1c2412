package scene

import (
	"context"
	"fmt"
	"strings"

	"github.com/loreforge/loreforge/internal/agent"
	"github.com/loreforge/loreforge/internal/state"
)

// GameMaster plans scenes through its LLM agent.
type GameMaster struct {
	rt *agent.Runtime
}

// NewGameMaster wraps a game-master agent runtime.
func NewGameMaster(rt *agent.Runtime) *GameMaster {
	return &GameMaster{rt: rt}
}

// planSchema restates the reply contract in every request; models drift
// without it.
const planSchema = `Reply with a single JSON object:
{
  "primaryAction": {"type": "COMBAT|EXPLORATION|DIALOGUE|SYSTEM_QUERY|QUEST_ACTION|MOVEMENT|INTERACTION", "target": "", "description": "", "narrativeContext": ""},
  "npcReactions": [{"npcName": "", "reaction": "", "deliveryStyle": "", "timing": "BEFORE|DURING|AFTER|NONE", "dialogue": ""}],
  "environmentalEffects": [""],
  "narrativeBeats": [{"type": "FORESHADOWING|CALLBACK|TENSION_BUILD|RELIEF|WORLD_BUILDING|CHARACTER_MOMENT", "content": "", "prominence": "SUBTLE|MODERATE|PROMINENT"}],
  "suggestedActions": [{"action": "", "type": "", "riskLevel": "SAFE|MODERATE|RISKY|DANGEROUS", "context": ""}],
  "sceneTone": "TENSE|PEACEFUL|MYSTERIOUS|COMEDIC|TRAGIC|TRIUMPHANT|FOREBODING|FRANTIC",
  "triggeredEvents": [{"eventType": "", "description": "", "timing": "IMMEDIATE|DELAYED|SETUP"}]
}`

// PlanScene asks the GameMaster for a scene plan covering the player's
// input. The returned plan is always usable: parse failures fall back to
// the minimal plan. The error reports LLM transport failure only.
func (g *GameMaster) PlanScene(ctx context.Context, input string, st state.GameState, recentEvents []string, npcsHere []state.NPC) (ScenePlan, error) {
	prompt := buildSituation(input, st, recentEvents, npcsHere) + "\n\n" + planSchema

	reply, err := g.rt.Send(ctx, prompt)
	if err != nil {
		return ScenePlan{}, err
	}
	plan := ParsePlan(reply, npcsHere)

	_ = g.rt.LogAction(ctx, "scene_plan", plan, "planned scene for player input", state.ActionContext{
		PlayerLevel: st.CharacterSheet.Level,
		LocationID:  st.CurrentLocationID,
	})
	return plan, nil
}

// buildSituation enumerates everything the GameMaster needs: character
// summary, location, NPCs present, active quests, recent events, and the
// player's input.
func buildSituation(input string, st state.GameState, recentEvents []string, npcsHere []state.NPC) string {
	var b strings.Builder
	sheet := st.CharacterSheet

	fmt.Fprintf(&b, "Player: %s, level %d %s (grade %s), HP %d/%d.\n",
		st.PlayerName, sheet.Level, describeClass(sheet), sheet.Grade,
		sheet.Resources.HP.Current, sheet.Resources.HP.Max)

	if loc, ok := st.CurrentLocation(); ok {
		fmt.Fprintf(&b, "Location: %s (%s, danger %d).", loc.Name, loc.Biome, loc.Danger)
		if len(loc.Features) > 0 {
			fmt.Fprintf(&b, " Features: %s.", strings.Join(loc.Features, ", "))
		}
		b.WriteByte('\n')
	}

	if len(npcsHere) > 0 {
		b.WriteString("NPCs present:\n")
		for _, n := range npcsHere {
			fmt.Fprintf(&b, "- %s (%s, relationship %+d)\n", n.Name, n.Archetype, n.Relationship)
		}
	} else {
		b.WriteString("No NPCs present.\n")
	}

	if len(st.ActiveQuests) > 0 {
		b.WriteString("Active quests:\n")
		for _, q := range st.ActiveQuests {
			next := "complete, awaiting turn-in"
			if o := q.NextObjective(); o != nil {
				next = fmt.Sprintf("%s (%d/%d)", o.Description, o.CurrentProgress, o.TargetProgress)
			}
			fmt.Fprintf(&b, "- %s: %s\n", q.Name, next)
		}
	}

	if len(recentEvents) > 0 {
		b.WriteString("Recent events:\n")
		for _, e := range recentEvents {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}

	fmt.Fprintf(&b, "\nPlayer input: %q\n\nPlan the scene.", input)
	return b.String()
}

func describeClass(sheet state.CharacterSheet) string {
	if sheet.CustomClassName != "" {
		return sheet.CustomClassName
	}
	if sheet.Class == state.ClassNone {
		return "adventurer"
	}
	return strings.ToLower(string(sheet.Class))
}
