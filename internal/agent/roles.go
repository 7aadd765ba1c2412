package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loreforge/loreforge/internal/persist"
	"github.com/loreforge/loreforge/internal/state"
	"github.com/loreforge/loreforge/pkg/llm"
)

// Agent identifiers. NPC agents use NPCAgentID.
const (
	GameMasterID = "gamemaster"
	NarratorID   = "narrator"
)

// NPCAgentID returns the agent id for an NPC.
func NPCAgentID(npcID string) string {
	return "npc_" + npcID
}

// ProposalAgentID returns the agent id for a planner proposal role.
func ProposalAgentID(role string) string {
	return "proposal_" + strings.ToLower(role)
}

// genreCue returns the tone directive for a system type, injected into every
// role prompt.
func genreCue(sys state.SystemType) string {
	switch sys {
	case state.SystemIntegration:
		return "Genre: a game-like System has integrated with reality. Blue status windows, levels, and skills are literal. Tone: wonder shading into menace."
	case state.CultivationPath:
		return "Genre: cultivation fantasy. Progress is measured in realms and breakthroughs; sects, elders, and spiritual energy shape society. Tone: disciplined, hierarchical."
	case state.DeathLoop:
		return "Genre: death-loop. Dying returns the protagonist stronger; death is a mechanic, not an ending. Tone: grim determination with dark humour."
	case state.DungeonDelve:
		return "Genre: dungeon delve. One descent, permanent death. Every floor is deadlier than the last. Tone: tense, resource-scarce."
	case state.ArcaneAcademy:
		return "Genre: magic academy. Classes, rivals, exams, and forbidden sections of the library. Tone: curious, social, occasionally sinister."
	case state.TabletopClassic:
		return "Genre: classic tabletop fantasy adventure. Taverns, quest boards, dungeons, dragons. Tone: adventurous and warm."
	case state.EpicJourney:
		return "Genre: epic journey across a vast world toward a distant goal. Tone: sweeping, melancholy, hopeful."
	case state.HeroAwakening:
		return "Genre: ordinary person awakening to heroic power. Tone: earnest, escalating stakes."
	default:
		return "Genre: LitRPG fantasy adventure."
	}
}

// preferenceCue renders player preferences for prompt injection, or "".
func preferenceCue(prefs state.PlayerPreferences) string {
	if prefs.Playstyle == "" && prefs.PlaystyleDescription == "" {
		return ""
	}
	return fmt.Sprintf("Player preferences: playstyle=%s. %s", prefs.Playstyle, prefs.PlaystyleDescription)
}

// NewGameMaster starts the scene-planning agent. It replies only with JSON
// scene plans; the schema is restated in every planning request.
func NewGameMaster(ctx context.Context, provider llm.Provider, sys state.SystemType, prefs state.PlayerPreferences, gameID string, gw persist.Gateway, limits Limits, log *slog.Logger) (*Runtime, error) {
	prompt := strings.Join(compact([]string{
		"You are the Game Master of a LitRPG text adventure. For every player action you receive a situation report and must reply with a single JSON object describing the scene plan: the primary action, NPC reactions, environmental effects, narrative beats, suggested actions, scene tone, and triggered events. Reply with JSON only, no commentary.",
		genreCue(sys),
		preferenceCue(prefs),
	}), "\n\n")
	return NewRuntime(ctx, provider, prompt, GameMasterID, gameID, gw, limits, log)
}

// NewNarrator starts the prose-rendering agent.
func NewNarrator(ctx context.Context, provider llm.Provider, sys state.SystemType, prefs state.PlayerPreferences, gameID string, gw persist.Gateway, limits Limits, log *slog.Logger) (*Runtime, error) {
	prompt := strings.Join(compact([]string{
		"You are the Narrator of a LitRPG text adventure. You render scene plans and mechanical results into vivid prose: second person, present tense, three to five sentences. Weave NPC reactions in at their stated timing. Honour the quest context you are given so the player always knows a next step. Never invent mechanical outcomes; narrate only what the results state.",
		genreCue(sys),
		preferenceCue(prefs),
	}), "\n\n")
	return NewRuntime(ctx, provider, prompt, NarratorID, gameID, gw, limits, log)
}

// NewNPCAgent starts a dialogue agent for one NPC, primed with its persona.
func NewNPCAgent(ctx context.Context, provider llm.Provider, npc state.NPC, sys state.SystemType, gameID string, gw persist.Gateway, limits Limits, log *slog.Logger) (*Runtime, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a character in a LitRPG text adventure. Archetype: %s.", npc.Name, npc.Archetype)
	if len(npc.Personality.Traits) > 0 {
		fmt.Fprintf(&b, " Personality: %s.", strings.Join(npc.Personality.Traits, ", "))
	}
	if npc.Personality.SpeechPattern != "" {
		fmt.Fprintf(&b, " Speech pattern: %s.", npc.Personality.SpeechPattern)
	}
	if len(npc.Personality.Motivations) > 0 {
		fmt.Fprintf(&b, " Motivations: %s.", strings.Join(npc.Personality.Motivations, "; "))
	}
	if npc.Lore != "" {
		fmt.Fprintf(&b, "\n\nWhat you know: %s", npc.Lore)
	}
	b.WriteString("\n\nStay in character. Reply with spoken dialogue only, no stage directions.")
	prompt := b.String() + "\n\n" + genreCue(sys)
	return NewRuntime(ctx, provider, prompt, NPCAgentID(npc.ID), gameID, gw, limits, log)
}

// Proposal roles for the background planner.
const (
	ProposalStory     = "STORY"
	ProposalCharacter = "CHARACTER"
	ProposalWorld     = "WORLD"
)

// proposalFocus maps a proposal role to its planning emphasis.
func proposalFocus(role string) string {
	switch role {
	case ProposalCharacter:
		return "You focus on character arcs: NPC development, relationships, betrayals, reunions, and personal stakes."
	case ProposalWorld:
		return "You focus on the world: factions, locations, escalating threats, and consequences of the player's actions on the setting."
	default: // STORY
		return "You focus on the main storyline: revelations, confrontations, and the shape of the overall arc."
	}
}

// NewProposalAgent starts a planner proposal agent for one role. Proposal
// agents are stateless between runs; their memory is never persisted.
func NewProposalAgent(ctx context.Context, provider llm.Provider, role string, sys state.SystemType, prefs state.PlayerPreferences, gameID string, log *slog.Logger) (*Runtime, error) {
	prompt := strings.Join(compact([]string{
		"You are a story-planning agent for a LitRPG text adventure. Given the current game state you propose future plot beats as a JSON object with a proposedNodes array; each node has beatType, description, triggerLevel, involvedNpcs, involvedLocations, position{tier,sequence,branch}, and confidence in [0,1]. Reply with JSON only.",
		proposalFocus(role),
		genreCue(sys),
		preferenceCue(prefs),
	}), "\n\n")
	return NewRuntime(ctx, provider, prompt, ProposalAgentID(role), gameID, nil, Limits{}, log)
}

// compact drops empty strings, keeping prompt assembly tidy.
func compact(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
