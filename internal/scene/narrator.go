package scene

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/loreforge/loreforge/internal/agent"
	"github.com/loreforge/loreforge/internal/state"
)

// Narrator renders scene plans and results into player-facing prose.
type Narrator struct {
	rt *agent.Runtime
}

// NewNarrator wraps a narrator agent runtime.
func NewNarrator(rt *agent.Runtime) *Narrator {
	return &Narrator{rt: rt}
}

// RenderScene turns a plan plus its mechanical results into narration. The
// reply carries the suggested actions appended by the narrator; the
// deterministic suffix is re-applied here so the action list survives a
// model that ignores instructions.
func (n *Narrator) RenderScene(ctx context.Context, plan ScenePlan, results SceneResults, st state.GameState, input string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "The player did: %q\n", input)
	fmt.Fprintf(&b, "Scene tone: %s.\n", plan.SceneTone)
	fmt.Fprintf(&b, "What happens: %s\n", plan.PrimaryAction.Description)

	if facts := describeResults(results); len(facts) > 0 {
		b.WriteString("Mechanical facts (narrate these, do not alter them):\n")
		for _, f := range facts {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	for _, timing := range []ReactionTiming{TimingBefore, TimingDuring, TimingAfter} {
		for _, r := range plan.NPCReactions {
			if r.Timing != timing {
				continue
			}
			fmt.Fprintf(&b, "NPC reaction (%s): %s — %s", timing, r.NPCName, r.Reaction)
			if r.Dialogue != "" {
				fmt.Fprintf(&b, " says: %q", r.Dialogue)
			}
			b.WriteByte('\n')
		}
	}
	if len(plan.EnvironmentalEffects) > 0 {
		fmt.Fprintf(&b, "Environment: %s\n", strings.Join(plan.EnvironmentalEffects, "; "))
	}
	for _, beat := range plan.NarrativeBeats {
		fmt.Fprintf(&b, "Beat (%s, %s): %s\n", beat.Type, beat.Prominence, beat.Content)
	}

	b.WriteString("\n")
	b.WriteString(QuestContextBlock(st))
	b.WriteString("\nNarrate in 3-5 second-person present-tense sentences.")

	prose, err := n.rt.Send(ctx, b.String())
	if err != nil {
		return "", err
	}
	return appendSuggestions(strings.TrimSpace(prose), plan.SuggestedActions), nil
}

// NarrateOpening produces the opening narration for a new game from the
// player's backstory and the system type.
func (n *Narrator) NarrateOpening(ctx context.Context, st state.GameState) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Narrate the opening of the story for %s.", st.PlayerName)
	if st.Backstory != "" {
		fmt.Fprintf(&b, " Their backstory: %s.", st.Backstory)
	}
	if loc, ok := st.CurrentLocation(); ok {
		fmt.Fprintf(&b, " They awaken at %s.", loc.Name)
	}
	b.WriteString(" Establish the world, hint at the System granting them power, and end on their first moment of agency. 4-6 sentences, second person, present tense.")

	opening, err := n.rt.Send(ctx, b.String())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(opening), nil
}

// FallbackNarration is the deterministic rendering used when the narrator
// fails twice: a terse factual account of the results, then the suggested
// actions.
func FallbackNarration(plan ScenePlan, results SceneResults) string {
	var parts []string
	if plan.PrimaryAction.Description != "" {
		parts = append(parts, plan.PrimaryAction.Description)
	}
	parts = append(parts, describeResults(results)...)
	if len(parts) == 0 {
		parts = append(parts, "The moment passes without incident.")
	}
	return appendSuggestions(strings.Join(parts, " "), plan.SuggestedActions)
}

// describeResults flattens SceneResults into plain factual sentences.
func describeResults(r SceneResults) []string {
	var facts []string
	if r.CombatTarget != "" {
		hit := fmt.Sprintf("You deal %d damage to %s.", r.DamageDealt, r.CombatTarget)
		if r.Critical {
			hit = fmt.Sprintf("Critical hit! You deal %d damage to %s.", r.DamageDealt, r.CombatTarget)
		}
		facts = append(facts, hit)
		if r.EnemyDefeated {
			facts = append(facts, fmt.Sprintf("%s is defeated.", r.CombatTarget))
		}
	}
	if r.XPGained > 0 {
		facts = append(facts, fmt.Sprintf("You gain %d XP.", r.XPGained))
	}
	if r.LevelsGained > 0 {
		facts = append(facts, fmt.Sprintf("You reach level %d.", r.NewLevel))
	}
	if r.GradeAdvanced {
		facts = append(facts, fmt.Sprintf("Your grade rises to %s.", r.NewGrade))
	}
	if r.GoldGained > 0 {
		facts = append(facts, fmt.Sprintf("You collect %d gold.", r.GoldGained))
	}
	for _, it := range r.ItemsGained {
		facts = append(facts, fmt.Sprintf("You obtain %s.", it.Name))
	}
	for _, loc := range r.LocationsDiscovered {
		facts = append(facts, fmt.Sprintf("You discover %s.", loc))
	}
	if r.SkillGranted != nil {
		facts = append(facts, fmt.Sprintf("You learn the skill %s.", r.SkillGranted.Name))
	}
	facts = append(facts, r.QuestUpdates...)
	facts = append(facts, r.StateChanges...)
	return facts
}

// QuestContextBlock lists every active quest with completed objectives
// marked ✓, the next incomplete one ▶, and the rest ○. The narrator honours
// this block so the player always sees a next step.
func QuestContextBlock(st state.GameState) string {
	if len(st.ActiveQuests) == 0 {
		return "No active quests.\n"
	}

	ids := make([]string, 0, len(st.ActiveQuests))
	for id := range st.ActiveQuests {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("Active quests:\n")
	for _, id := range ids {
		q := st.ActiveQuests[id]
		fmt.Fprintf(&b, "%s:\n", q.Name)
		nextSeen := false
		for _, o := range q.Objectives {
			switch {
			case o.Complete():
				fmt.Fprintf(&b, "  ✓ %s\n", o.Description)
			case !nextSeen:
				fmt.Fprintf(&b, "  ▶ %s (%d/%d)\n", o.Description, o.CurrentProgress, o.TargetProgress)
				nextSeen = true
			default:
				fmt.Fprintf(&b, "  ○ %s\n", o.Description)
			}
		}
	}
	return b.String()
}

// appendSuggestions renders the suggested actions beneath the prose, in
// plan order, each prefixed "> ".
func appendSuggestions(prose string, actions []SuggestedAction) string {
	if len(actions) == 0 {
		return prose
	}
	var b strings.Builder
	b.WriteString(prose)
	b.WriteString("\n")
	for _, a := range actions {
		fmt.Fprintf(&b, "\n> %s", a.Action)
	}
	return b.String()
}
