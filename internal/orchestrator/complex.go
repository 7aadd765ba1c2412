package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/loreforge/loreforge/internal/agent"
	"github.com/loreforge/loreforge/internal/intent"
	"github.com/loreforge/loreforge/internal/rules"
	"github.com/loreforge/loreforge/internal/scene"
	"github.com/loreforge/loreforge/internal/state"
	"github.com/loreforge/loreforge/pkg/events"
)

// maxCustomLocationDanger caps generated-location danger on the [1, 20]
// scale.
const maxCustomLocationDanger = 20

// complexTurn runs the GameMaster pipeline: plan, validate, execute
// mechanics, narrate, emit.
func (o *Orchestrator) complexTurn(ctx context.Context, em *emitter, analysis intent.Analysis, rec *turnRecord) {
	npcsHere := o.st.NPCsAt(o.st.CurrentLocationID)
	sortNPCs(npcsHere)

	plan, planDegraded := o.planWithRetry(ctx, rec.input, npcsHere)

	if msg, ok := o.validatePlan(plan, npcsHere); !ok {
		em.emit(events.SystemNotification{Text: msg})
		return
	}

	results, dialogue := o.executePlan(ctx, plan, analysis, npcsHere, rec)

	prose, narDegraded := o.renderWithRetry(ctx, plan, results, rec.input)
	o.lastProse = prose

	em.emit(events.NarratorText{Text: prose})
	if planDegraded || narDegraded {
		em.emit(events.SystemNotification{Text: "The System's voice wavers; the scene is rendered plainly."})
	}
	for _, d := range dialogue {
		em.emit(d)
	}

	if results.XPGained > 0 {
		em.emit(events.StatChange{StatName: "xp", OldValue: results.XPBefore, NewValue: results.XPBefore + results.XPGained})
	}
	if results.LevelsGained > 0 {
		em.emit(events.SystemNotification{Text: fmt.Sprintf("Level up! You are now level %d (Grade %s).", results.NewLevel, results.NewGrade)})
	}
	for _, it := range results.ItemsGained {
		em.emit(events.ItemGained{ItemID: it.ID, ItemName: it.Name, Quantity: 1})
	}

	for i, c := range rec.completions {
		o.emitQuestCompletion(em, rec.completionIDs[i], c)
	}

	for _, ev := range plan.TriggeredEvents {
		if ev.Timing == scene.EventImmediate && ev.Description != "" {
			em.emit(events.SystemNotification{Text: ev.Description})
		}
	}
}

// planWithRetry asks the GameMaster for a plan, retrying once on transport
// failure before degrading to the minimal plan.
func (o *Orchestrator) planWithRetry(ctx context.Context, input string, npcsHere []state.NPC) (scene.ScenePlan, bool) {
	recent := o.recentSummaries()
	plan, err := o.gm.PlanScene(ctx, input, o.st, recent, npcsHere)
	if err != nil {
		o.log.Warn("scene planning failed, retrying once", "error", err)
		plan, err = o.gm.PlanScene(ctx, input, o.st, recent, npcsHere)
	}
	if err != nil {
		o.log.Warn("scene planning failed again, using minimal plan", "error", err)
		return scene.MinimalPlan(), true
	}
	return plan, false
}

// validatePlan rejects plans whose primary action cannot be executed against
// the current state. Rejected turns mutate nothing.
func (o *Orchestrator) validatePlan(plan scene.ScenePlan, npcsHere []state.NPC) (string, bool) {
	switch plan.PrimaryAction.Type {
	case scene.ActionCombat:
		if plan.PrimaryAction.Target == "" {
			return "There is no clear target to fight.", false
		}
	case scene.ActionDialogue:
		if len(npcsHere) == 0 {
			return "There is no one here to talk to.", false
		}
	}
	return "", true
}

// renderWithRetry narrates the scene, retrying once before degrading to the
// deterministic fallback.
func (o *Orchestrator) renderWithRetry(ctx context.Context, plan scene.ScenePlan, results scene.SceneResults, input string) (string, bool) {
	prose, err := o.narrator.RenderScene(ctx, plan, results, o.st, input)
	if err != nil {
		o.log.Warn("narration failed, retrying once", "error", err)
		prose, err = o.narrator.RenderScene(ctx, plan, results, o.st, input)
	}
	if err != nil {
		o.log.Warn("narration failed again, using fallback", "error", err)
		return scene.FallbackNarration(plan, results), true
	}
	return prose, false
}

// executePlan applies the plan's primary action to the rules engine and
// state, returning the mechanical results and any NPC dialogue to emit.
func (o *Orchestrator) executePlan(ctx context.Context, plan scene.ScenePlan, analysis intent.Analysis, npcsHere []state.NPC, rec *turnRecord) (scene.SceneResults, []events.NPCDialogue) {
	var results scene.SceneResults
	var dialogue []events.NPCDialogue

	switch plan.PrimaryAction.Type {
	case scene.ActionCombat:
		o.executeCombat(plan, analysis, &results, rec)
	case scene.ActionDialogue:
		dialogue = o.executeDialogue(ctx, plan, analysis, npcsHere, &results, rec)
	case scene.ActionMovement:
		o.executeMovement(plan, &results)
	case scene.ActionQuestAction:
		o.completeReadyQuests(rec, &results)
	case scene.ActionExploration:
		o.executeExploration(rec.input, &results)
	}
	return results, dialogue
}

func (o *Orchestrator) executeCombat(plan scene.ScenePlan, analysis intent.Analysis, results *scene.SceneResults, rec *turnRecord) {
	target := plan.PrimaryAction.Target
	if target == "" {
		target = analysis.Target
	}
	danger := 1
	if loc, ok := o.st.CurrentLocation(); ok {
		danger = loc.Danger
	}

	results.XPBefore = o.st.CharacterSheet.XP
	next, result := o.engine.ResolveCombat(o.st, rules.EnemyTarget{Name: target, Danger: danger})
	o.st = next
	rec.target = strings.ToLower(target)

	results.CombatTarget = result.TargetName
	results.DamageDealt = result.DamageDealt
	results.Critical = result.Critical
	results.EnemyDefeated = result.Defeated
	results.XPGained = result.XPAwarded
	results.LevelsGained = result.LevelUps.LevelsGained
	results.NewLevel = result.LevelUps.NewLevel
	results.GradeAdvanced = result.LevelUps.GradeAdvanced
	results.NewGrade = result.LevelUps.NewGrade
	results.GoldGained = result.Gold
	results.ItemsGained = result.Loot
}

func (o *Orchestrator) executeDialogue(ctx context.Context, plan scene.ScenePlan, analysis intent.Analysis, npcsHere []state.NPC, results *scene.SceneResults, rec *turnRecord) []events.NPCDialogue {
	fragment := plan.PrimaryAction.Target
	if fragment == "" {
		fragment = analysis.Target
	}
	npc, ok := o.resolveNPC(ctx, fragment, npcsHere)
	if !ok {
		// Narration covers the miss; nothing mechanical happened.
		return nil
	}

	rt, err := o.npcRuntime(ctx, npc)
	if err != nil {
		o.log.Warn("npc agent unavailable", "npc", npc.ID, "error", err)
		return nil
	}
	reply, err := rt.Send(ctx, rec.input)
	if err != nil {
		o.log.Warn("npc dialogue failed", "npc", npc.ID, "error", err)
		return nil
	}
	reply = strings.TrimSpace(reply)

	updated := npc.WithExchange(state.DialogueExchange{
		PlayerText: rec.input,
		NPCText:    reply,
		Timestamp:  o.now(),
	}).WithRelationship(1)
	o.st.NPCs[npc.ID] = updated
	rec.npcID = npc.ID

	if results.NPCDialogue == nil {
		results.NPCDialogue = make(map[string]string)
	}
	results.NPCDialogue[npc.Name] = reply
	return []events.NPCDialogue{{NPCID: npc.ID, NPCName: npc.Name, Text: reply}}
}

// resolveNPC resolves a name fragment against the NPCs present: fuzzy match
// first, then a single-NPC default, then an LLM-assisted index pick.
func (o *Orchestrator) resolveNPC(ctx context.Context, fragment string, npcsHere []state.NPC) (state.NPC, bool) {
	if len(npcsHere) == 0 {
		return state.NPC{}, false
	}
	if fragment != "" {
		if npc, ok := intent.MatchNPC(fragment, npcsHere); ok {
			return npc, true
		}
	}
	if len(npcsHere) == 1 {
		return npcsHere[0], true
	}
	if fragment == "" {
		return npcsHere[0], true
	}

	// Ambiguous fragment with several candidates: let the GameMaster pick.
	var b strings.Builder
	fmt.Fprintf(&b, "The player addressed %q. Candidates:\n", fragment)
	for i, n := range npcsHere {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, n.Name, n.Archetype)
	}
	b.WriteString("Reply with the candidate number only, or NONE.")

	reply, err := o.gmRT.Send(ctx, b.String())
	if err != nil {
		return state.NPC{}, false
	}
	idx, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil || idx < 1 || idx > len(npcsHere) {
		return state.NPC{}, false
	}
	return npcsHere[idx-1], true
}

// npcRuntime returns the cached dialogue agent for npc, starting it on first
// contact.
func (o *Orchestrator) npcRuntime(ctx context.Context, npc state.NPC) (*agent.Runtime, error) {
	if rt, ok := o.npcAgents[npc.ID]; ok {
		return rt, nil
	}
	rt, err := agent.NewNPCAgent(ctx, o.provider, npc, o.st.SystemType, o.st.GameID, o.gateway, o.limits, o.log)
	if err != nil {
		return nil, err
	}
	o.npcAgents[npc.ID] = rt
	return rt, nil
}

// executeMovement moves along a matched connection, or generates a new
// custom location when the plan names an unknown destination.
func (o *Orchestrator) executeMovement(plan scene.ScenePlan, results *scene.SceneResults) {
	loc, ok := o.st.CurrentLocation()
	if !ok {
		return
	}
	if dest, found := o.resolveDestination(plan.PrimaryAction.Target+" "+plan.PrimaryAction.Description, loc); found {
		o.moveTo(dest, results)
		return
	}
	if plan.PrimaryAction.Target == "" {
		return
	}

	danger := loc.Danger + 1
	if danger > maxCustomLocationDanger {
		danger = maxCustomLocationDanger
	}
	dest := state.Location{
		ID:          "loc_" + uuid.NewString(),
		Name:        plan.PrimaryAction.Target,
		Biome:       loc.Biome,
		Danger:      danger,
		Connections: []string{loc.ID},
		Lore:        plan.PrimaryAction.NarrativeContext,
	}
	o.st.CustomLocations[dest.ID] = dest
	o.moveTo(dest, results)
}

func (o *Orchestrator) moveTo(dest state.Location, results *scene.SceneResults) {
	o.st.CurrentLocationID = dest.ID
	if _, seen := o.st.DiscoveredLocations[dest.ID]; !seen {
		results.LocationsDiscovered = append(results.LocationsDiscovered, dest.Name)
	}
	o.st.DiscoveredLocations[dest.ID] = struct{}{}
	results.StateChanges = append(results.StateChanges, fmt.Sprintf("You are now at %s.", dest.Name))
}

// executeExploration moves when the input names a connection; otherwise the
// scene is purely narrative.
func (o *Orchestrator) executeExploration(input string, results *scene.SceneResults) {
	loc, ok := o.st.CurrentLocation()
	if !ok {
		return
	}
	if dest, found := o.resolveDestination(input, loc); found {
		o.moveTo(dest, results)
	}
}

// completeReadyQuests turns in every quest with all objectives complete.
// Emission happens after narration, in recorded order.
func (o *Orchestrator) completeReadyQuests(rec *turnRecord, results *scene.SceneResults) {
	for _, qid := range sortedQuestIDs(o.st.ActiveQuests) {
		q := o.st.ActiveQuests[qid]
		if !q.Complete() {
			continue
		}
		next, completion, err := o.engine.CompleteQuest(o.st, qid)
		if err != nil {
			continue
		}
		o.st = next
		rec.completions = append(rec.completions, completion)
		rec.completionIDs = append(rec.completionIDs, qid)
		results.QuestUpdates = append(results.QuestUpdates, fmt.Sprintf("Quest complete: %s.", completion.QuestName))
		if completion.GrantedSkill != nil {
			results.SkillGranted = completion.GrantedSkill
		}
	}
}

// sortNPCs orders NPCs by id so plans and prompts replay deterministically.
func sortNPCs(npcs []state.NPC) {
	sort.Slice(npcs, func(i, j int) bool { return npcs[i].ID < npcs[j].ID })
}
