package scene

import (
	"encoding/json"
	"strings"

	"github.com/loreforge/loreforge/internal/state"
)

// ParsePlan extracts a [ScenePlan] from a raw LLM reply. The first balanced
// {…} substring is decoded; unknown enum strings fall back per field to
// their documented defaults; reactions naming NPCs not in npcsHere are
// dropped. Any decode failure yields [MinimalPlan] — a malformed reply must
// never fail the turn.
func ParsePlan(reply string, npcsHere []state.NPC) ScenePlan {
	raw, ok := firstJSONObject(reply)
	if !ok {
		return MinimalPlan()
	}

	var plan ScenePlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return MinimalPlan()
	}
	return normalisePlan(plan, npcsHere)
}

// firstJSONObject returns the first balanced top-level {…} substring of s,
// respecting string literals and escapes.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// normalisePlan applies per-field defaults and drops reactions for NPCs not
// actually present.
func normalisePlan(plan ScenePlan, npcsHere []state.NPC) ScenePlan {
	plan.PrimaryAction.Type = validActionType(plan.PrimaryAction.Type)
	plan.SceneTone = validTone(plan.SceneTone)

	present := make(map[string]struct{}, len(npcsHere))
	for _, n := range npcsHere {
		present[strings.ToLower(n.Name)] = struct{}{}
	}
	kept := plan.NPCReactions[:0]
	for _, r := range plan.NPCReactions {
		if _, ok := present[strings.ToLower(r.NPCName)]; !ok {
			continue
		}
		r.Timing = validTiming(r.Timing)
		kept = append(kept, r)
	}
	plan.NPCReactions = kept

	for i := range plan.NarrativeBeats {
		plan.NarrativeBeats[i].Type = validBeatKind(plan.NarrativeBeats[i].Type)
		plan.NarrativeBeats[i].Prominence = validProminence(plan.NarrativeBeats[i].Prominence)
	}
	for i := range plan.SuggestedActions {
		plan.SuggestedActions[i].RiskLevel = validRisk(plan.SuggestedActions[i].RiskLevel)
	}
	for i := range plan.TriggeredEvents {
		plan.TriggeredEvents[i].Timing = validEventTiming(plan.TriggeredEvents[i].Timing)
	}
	return plan
}

func validActionType(t ActionType) ActionType {
	switch t {
	case ActionCombat, ActionExploration, ActionDialogue, ActionSystemQuery,
		ActionQuestAction, ActionMovement, ActionInteraction:
		return t
	}
	return ActionExploration
}

func validTiming(t ReactionTiming) ReactionTiming {
	switch t {
	case TimingBefore, TimingDuring, TimingAfter, TimingNone:
		return t
	}
	return TimingAfter
}

func validBeatKind(k BeatKind) BeatKind {
	switch k {
	case BeatForeshadowing, BeatCallback, BeatTensionBuild, BeatRelief,
		BeatWorldBuilding, BeatCharacterMoment:
		return k
	}
	return BeatWorldBuilding
}

func validProminence(p Prominence) Prominence {
	switch p {
	case ProminenceSubtle, ProminenceModerate, ProminenceProminent:
		return p
	}
	return ProminenceModerate
}

func validRisk(r RiskLevel) RiskLevel {
	switch r {
	case RiskSafe, RiskModerate, RiskRisky, RiskDangerous:
		return r
	}
	return RiskModerate
}

func validTone(t SceneTone) SceneTone {
	switch t {
	case TonePeaceful, ToneTense, ToneMysterious, ToneComedic, ToneTragic,
		ToneTriumphant, ToneForeboding, ToneFrantic:
		return t
	}
	return TonePeaceful
}

func validEventTiming(t EventTiming) EventTiming {
	switch t {
	case EventImmediate, EventDelayed, EventSetup:
		return t
	}
	return EventImmediate
}
