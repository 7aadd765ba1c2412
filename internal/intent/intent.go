// Package intent classifies player input: turn complexity (simple vs
// complex), the intent taxonomy with keyword heuristics for menu and meta
// commands, and fuzzy matching of NPC and target names.
package intent

import (
	"strings"

	"github.com/loreforge/loreforge/internal/state"
)

// Intent is the recognised action taxonomy.
type Intent string

const (
	Combat         Intent = "COMBAT"
	NPCDialogue    Intent = "NPC_DIALOGUE"
	Exploration    Intent = "EXPLORATION"
	SystemQuery    Intent = "SYSTEM_QUERY"
	QuestAction    Intent = "QUEST_ACTION"
	ClassSelection Intent = "CLASS_SELECTION"
	SkillMenu      Intent = "SKILL_MENU"
	UseSkill       Intent = "USE_SKILL"
	SkillEvolution Intent = "SKILL_EVOLUTION"
	SkillFusion    Intent = "SKILL_FUSION"
	StatusMenu     Intent = "STATUS_MENU"
	InventoryMenu  Intent = "INVENTORY_MENU"
)

// Complexity is the turn processing class.
type Complexity int

const (
	// Simple turns are handled by deterministic per-intent handlers.
	Simple Complexity = iota

	// Complex turns go through the GameMaster scene-plan pipeline.
	Complex
)

func (c Complexity) String() string {
	if c == Complex {
		return "COMPLEX"
	}
	return "SIMPLE"
}

// combatWords trigger the complex path and the COMBAT intent.
var combatWords = []string{"attack", "fight", "combat"}

// menuWords short-circuit classification: menu commands stay simple even
// with NPCs around.
var menuWords = []string{"status", "stat", "inventory"}

// Classify applies the deterministic complexity rules, top to bottom, to the
// lowercased input. Pure function of (input, state).
func Classify(input string, st state.GameState) Complexity {
	lower := strings.ToLower(input)

	if containsAny(lower, menuWords) {
		return Simple
	}
	if strings.Contains(lower, "quest") && strings.Contains(lower, "list") {
		return Simple
	}
	if len(st.NPCsAt(st.CurrentLocationID)) > 0 {
		return Complex
	}
	if containsAny(lower, combatWords) {
		return Complex
	}
	if strings.Contains(lower, "quest") && !strings.Contains(lower, "list") {
		return Complex
	}
	if strings.Contains(lower, "explore") {
		if loc, ok := st.CurrentLocation(); ok && loc.Danger >= 3 {
			return Complex
		}
	}
	return Simple
}

// Analysis is the outcome of intent extraction.
type Analysis struct {
	Intent Intent

	// Target is the free-text target of the action, when one was parsed:
	// the enemy name for COMBAT, the NPC name fragment for NPC_DIALOGUE,
	// the skill name for USE_SKILL.
	Target string
}

// Analyze extracts the intent from player input using keyword heuristics.
// Menu and meta commands resolve exactly; free text defaults to EXPLORATION
// and is refined by the scene plan on the complex path.
func Analyze(input string, st state.GameState) Analysis {
	lower := strings.ToLower(strings.TrimSpace(input))

	switch {
	case lower == "status" || strings.HasPrefix(lower, "status ") || strings.Contains(lower, "character sheet"):
		return Analysis{Intent: StatusMenu}
	case strings.Contains(lower, "inventory") || lower == "items":
		return Analysis{Intent: InventoryMenu}
	case strings.Contains(lower, "quest") && strings.Contains(lower, "list"):
		return Analysis{Intent: SystemQuery}
	case strings.Contains(lower, "turn in") || (strings.Contains(lower, "complete") && strings.Contains(lower, "quest")):
		return Analysis{Intent: QuestAction}
	case strings.Contains(lower, "quest"):
		return Analysis{Intent: QuestAction}
	case strings.Contains(lower, "fuse") || strings.Contains(lower, "fusion"):
		return Analysis{Intent: SkillFusion}
	case strings.Contains(lower, "evolve"):
		return Analysis{Intent: SkillEvolution}
	case strings.Contains(lower, "skills") || lower == "skill" || strings.Contains(lower, "skill menu"):
		return Analysis{Intent: SkillMenu}
	case strings.HasPrefix(lower, "use "):
		return Analysis{Intent: UseSkill, Target: strings.TrimSpace(strings.TrimPrefix(lower, "use "))}
	case strings.Contains(lower, "class") || strings.Contains(lower, "i want to be a"):
		return Analysis{Intent: ClassSelection}
	case containsAny(lower, combatWords):
		return Analysis{Intent: Combat, Target: combatTarget(lower)}
	case containsAny(lower, []string{"talk", "speak", "ask", "tell", "greet", "say"}):
		return Analysis{Intent: NPCDialogue, Target: dialogueTarget(lower)}
	case strings.Contains(lower, "stat"):
		return Analysis{Intent: StatusMenu}
	default:
		return Analysis{Intent: Exploration}
	}
}

// combatTarget strips the attack verb and articles, leaving the enemy name.
func combatTarget(lower string) string {
	for _, w := range combatWords {
		if idx := strings.Index(lower, w); idx >= 0 {
			return stripArticles(strings.TrimSpace(lower[idx+len(w):]))
		}
	}
	return ""
}

// dialogueTarget pulls the addressee out of "talk to X" style phrasing.
func dialogueTarget(lower string) string {
	for _, verb := range []string{"talk to", "speak to", "speak with", "talk with", "ask", "tell", "greet", "say to"} {
		if idx := strings.Index(lower, verb); idx >= 0 {
			return stripArticles(strings.TrimSpace(lower[idx+len(verb):]))
		}
	}
	return ""
}

func stripArticles(s string) string {
	for _, art := range []string{"the ", "a ", "an "} {
		s = strings.TrimPrefix(s, art)
	}
	return strings.TrimSpace(s)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
