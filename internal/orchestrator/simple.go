package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/loreforge/loreforge/internal/agent"
	"github.com/loreforge/loreforge/internal/intent"
	"github.com/loreforge/loreforge/internal/rules"
	"github.com/loreforge/loreforge/internal/scene"
	"github.com/loreforge/loreforge/internal/state"
	"github.com/loreforge/loreforge/pkg/events"
)

// simpleTurn routes a simple turn to its deterministic handler. Simple turns
// never call the GameMaster; most emit exactly one event.
func (o *Orchestrator) simpleTurn(ctx context.Context, em *emitter, analysis intent.Analysis, rec *turnRecord) {
	switch analysis.Intent {
	case intent.StatusMenu:
		em.emit(events.SystemNotification{Text: o.statusScreen()})
	case intent.InventoryMenu:
		em.emit(events.SystemNotification{Text: o.inventoryScreen()})
	case intent.SystemQuery:
		em.emit(events.SystemNotification{Text: scene.QuestContextBlock(o.st)})
	case intent.SkillMenu:
		em.emit(events.SystemNotification{Text: o.skillScreen()})
	case intent.UseSkill:
		o.handleUseSkill(em, analysis.Target, rec)
	case intent.SkillEvolution:
		em.emit(events.SystemNotification{Text: o.evolutionScreen()})
	case intent.SkillFusion:
		em.emit(events.SystemNotification{Text: "No fusion recipes discovered yet. Combine skills in the field to uncover them."})
	case intent.ClassSelection:
		o.handleClassSelection(ctx, em, rec)
	case intent.QuestAction:
		o.handleQuestTurnIn(em, rec)
	case intent.Combat:
		o.handleSimpleCombat(em, analysis.Target, rec)
	case intent.NPCDialogue:
		em.emit(events.SystemNotification{Text: "There is no one here to talk to."})
	default:
		o.handleSimpleExploration(em, rec)
	}
}

// statusScreen renders the character sheet as one System window.
func (o *Orchestrator) statusScreen() string {
	sheet := o.st.CharacterSheet
	stats := sheet.EffectiveStats()

	var b strings.Builder
	fmt.Fprintf(&b, "=== %s ===\n", o.st.PlayerName)
	fmt.Fprintf(&b, "Level %d %s (Grade %s)\n", sheet.Level, className(sheet), sheet.Grade)
	fmt.Fprintf(&b, "XP: %d/%d\n", sheet.XP, state.XPThreshold(sheet.Level, o.st.Difficulty))
	fmt.Fprintf(&b, "HP: %d/%d  MP: %d/%d  Energy: %d/%d\n",
		sheet.Resources.HP.Current, sheet.Resources.HP.Max,
		sheet.Resources.MP.Current, sheet.Resources.MP.Max,
		sheet.Resources.Energy.Current, sheet.Resources.Energy.Max)
	fmt.Fprintf(&b, "STR: %d  AGI: %d  VIT: %d  INT: %d  WIS: %d  LCK: %d\n",
		stats.Strength, stats.Agility, stats.Vitality,
		stats.Intelligence, stats.Wisdom, stats.Luck)
	fmt.Fprintf(&b, "Gold: %d", sheet.Gold)
	if sheet.UnspentStatPoints > 0 {
		fmt.Fprintf(&b, "  Unspent stat points: %d", sheet.UnspentStatPoints)
	}
	return b.String()
}

func className(sheet state.CharacterSheet) string {
	if sheet.CustomClassName != "" {
		return sheet.CustomClassName
	}
	if sheet.Class == state.ClassNone {
		return "Unclassed"
	}
	return string(sheet.Class)
}

func (o *Orchestrator) inventoryScreen() string {
	sheet := o.st.CharacterSheet
	if len(sheet.Inventory) == 0 {
		return fmt.Sprintf("Your inventory is empty. Gold: %d.", sheet.Gold)
	}
	ids := make([]string, 0, len(sheet.Inventory))
	for id := range sheet.Inventory {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("Inventory:\n")
	for _, id := range ids {
		stack := sheet.Inventory[id]
		fmt.Fprintf(&b, "- %dx %s (%s)\n", stack.Quantity, stack.Item.Name, stack.Item.Rarity)
	}
	fmt.Fprintf(&b, "Gold: %d", sheet.Gold)
	return b.String()
}

func (o *Orchestrator) skillScreen() string {
	sheet := o.st.CharacterSheet
	if len(sheet.Skills) == 0 {
		return "You have not learned any skills yet."
	}
	var b strings.Builder
	b.WriteString("Skills:\n")
	for _, sk := range sheet.Skills {
		fmt.Fprintf(&b, "- %s (Lv %d, %s)", sk.Name, sk.Level, sk.Rarity)
		if sk.CurrentCooldown > 0 {
			fmt.Fprintf(&b, " [cooldown %d]", sk.CurrentCooldown)
		}
		if !sk.IsActive {
			b.WriteString(" [passive]")
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func (o *Orchestrator) evolutionScreen() string {
	var eligible []string
	for _, sk := range o.st.CharacterSheet.Skills {
		if sk.AtMaxLevel() && len(sk.EvolvesTo) > 0 {
			eligible = append(eligible, sk.Name)
		}
	}
	if len(eligible) == 0 {
		return "No skill is ready to evolve. Skills evolve at max level."
	}
	return "Ready to evolve: " + strings.Join(eligible, ", ")
}

func (o *Orchestrator) handleUseSkill(em *emitter, target string, rec *turnRecord) {
	sheet := o.st.CharacterSheet
	if len(sheet.Skills) == 0 {
		em.emit(events.SystemNotification{Text: "You have not learned any skills yet."})
		return
	}
	names := make([]string, len(sheet.Skills))
	for i, sk := range sheet.Skills {
		names[i] = sk.Name
	}
	idx, ok := intent.MatchName(target, names)
	if !ok {
		em.emit(events.SystemNotification{Text: fmt.Sprintf("No skill matches %q. Known skills: %s.", target, strings.Join(names, ", "))})
		return
	}
	skillID := sheet.Skills[idx].ID

	next, outcome, err := o.engine.UseSkill(sheet, skillID)
	if err != nil {
		em.emit(events.SystemNotification{Text: err.Error()})
		return
	}
	o.st.CharacterSheet = next
	rec.skillID = skillID

	switch out := outcome.(type) {
	case rules.SkillSuccess:
		var b strings.Builder
		fmt.Fprintf(&b, "You use %s.", out.SkillName)
		if out.Damage > 0 {
			fmt.Fprintf(&b, " It would deal %d damage.", out.Damage)
		}
		if out.Healing > 0 {
			fmt.Fprintf(&b, " You recover %d HP.", out.Healing)
		}
		if out.LeveledUp {
			fmt.Fprintf(&b, " %s reaches level %d!", out.SkillName, out.NewLevel)
		}
		em.emit(events.SystemNotification{Text: b.String()})
	case rules.SkillOnCooldown:
		em.emit(events.SystemNotification{Text: fmt.Sprintf("%s is on cooldown for %d more turns.", out.SkillName, out.TurnsRemaining)})
	case rules.SkillInsufficientResources:
		em.emit(events.SystemNotification{Text: fmt.Sprintf("Not enough %s to use %s.", strings.Join(out.Missing, " and "), out.SkillName)})
	}
}

// handleSimpleCombat resolves combat with no NPCs present, using the
// location's danger rating for the enemy.
func (o *Orchestrator) handleSimpleCombat(em *emitter, target string, rec *turnRecord) {
	if target == "" {
		em.emit(events.SystemNotification{Text: "There is nothing here to attack."})
		return
	}
	danger := 1
	if loc, ok := o.st.CurrentLocation(); ok {
		danger = loc.Danger
	}
	next, result := o.engine.ResolveCombat(o.st, rules.EnemyTarget{Name: target, Danger: danger})
	o.st = next
	rec.target = strings.ToLower(target)

	o.emitCombat(em, result)
}

// emitCombat renders a combat result as events, shared by both paths.
func (o *Orchestrator) emitCombat(em *emitter, result rules.CombatResult) {
	line := fmt.Sprintf("You deal %d damage to %s.", result.DamageDealt, result.TargetName)
	if result.Critical {
		line = "Critical hit! " + line
	}
	if result.Defeated {
		line += fmt.Sprintf(" %s is defeated!", result.TargetName)
	}
	em.emit(events.CombatLog{Text: line})

	if result.XPAwarded > 0 {
		before := o.st.CharacterSheet.XP
		em.emit(events.StatChange{StatName: "xp", OldValue: before - result.XPAwarded, NewValue: before})
	}
	if result.LevelUps.LevelsGained > 0 {
		em.emit(events.SystemNotification{Text: fmt.Sprintf("Level up! You are now level %d (Grade %s).", result.LevelUps.NewLevel, result.LevelUps.NewGrade)})
	}
	for _, it := range result.Loot {
		em.emit(events.ItemGained{ItemID: it.ID, ItemName: it.Name, Quantity: 1})
	}
}

// handleSimpleExploration moves along a named connection, or describes the
// current location.
func (o *Orchestrator) handleSimpleExploration(em *emitter, rec *turnRecord) {
	loc, ok := o.st.CurrentLocation()
	if !ok {
		em.emit(events.SystemNotification{Text: "You are nowhere recognisable."})
		return
	}

	if dest, found := o.resolveDestination(rec.input, loc); found {
		o.st.CurrentLocationID = dest.ID
		o.st.DiscoveredLocations[dest.ID] = struct{}{}
		em.emit(events.NarratorText{Text: fmt.Sprintf("You make your way to %s.%s", dest.Name, locationFlavour(dest))})
		return
	}
	em.emit(events.NarratorText{Text: describeLocation(loc)})
}

// resolveDestination fuzzy-matches the input against the names of connected
// locations.
func (o *Orchestrator) resolveDestination(input string, loc state.Location) (state.Location, bool) {
	var conns []state.Location
	var names []string
	for _, id := range loc.Connections {
		if c, ok := o.st.Location(id); ok {
			conns = append(conns, c)
			names = append(names, c.Name)
		}
	}
	if len(conns) == 0 {
		return state.Location{}, false
	}
	idx, ok := intent.MatchName(strings.ToLower(input), names)
	if !ok {
		return state.Location{}, false
	}
	return conns[idx], true
}

func describeLocation(loc state.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are at %s.", loc.Name)
	if len(loc.Features) > 0 {
		fmt.Fprintf(&b, " You see %s.", strings.Join(loc.Features, ", "))
	}
	if loc.Lore != "" {
		b.WriteString(" " + loc.Lore)
	}
	return b.String()
}

func locationFlavour(loc state.Location) string {
	if len(loc.Features) == 0 {
		return ""
	}
	return fmt.Sprintf(" You notice %s.", strings.Join(loc.Features, ", "))
}

// handleQuestTurnIn completes every quest that is ready for turn-in.
func (o *Orchestrator) handleQuestTurnIn(em *emitter, rec *turnRecord) {
	turnedIn := false
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
		turnedIn = true
		o.emitQuestCompletion(em, qid, completion)
	}
	if !turnedIn {
		em.emit(events.SystemNotification{Text: "No quest is ready to turn in.\n" + scene.QuestContextBlock(o.st)})
	}
}

// emitQuestCompletion renders a turn-in: the COMPLETED update, the reward
// summary, then each reward item.
func (o *Orchestrator) emitQuestCompletion(em *emitter, questID string, c rules.QuestCompletion) {
	em.emit(events.QuestUpdate{QuestID: questID, QuestName: c.QuestName, Status: events.QuestCompleted})

	var b strings.Builder
	fmt.Fprintf(&b, "Quest complete: %s. Rewards: %d XP, %d gold", c.QuestName, c.RewardXP, c.RewardGold)
	if c.GrantedSkill != nil {
		fmt.Fprintf(&b, ", skill %s", c.GrantedSkill.Name)
	}
	b.WriteString(".")
	if c.LevelUps.LevelsGained > 0 {
		fmt.Fprintf(&b, " Level up! You are now level %d (Grade %s).", c.LevelUps.NewLevel, c.LevelUps.NewGrade)
	}
	em.emit(events.SystemNotification{Text: b.String()})

	for _, it := range c.RewardItems {
		em.emit(events.ItemGained{ItemID: it.ID, ItemName: it.Name, Quantity: 1})
	}
}

// classBonuses are the stat grants applied on standard class selection.
var classBonuses = map[state.Class]state.Stats{
	state.ClassWarrior: {Strength: 3, Vitality: 2},
	state.ClassMage:    {Intelligence: 3, Wisdom: 2},
	state.ClassRogue:   {Agility: 3, Luck: 2},
	state.ClassTank:    {Vitality: 3, Strength: 2},
	state.ClassHealer:  {Wisdom: 3, Intelligence: 2},
}

// handleClassSelection resolves a class choice: a standard class by keyword,
// otherwise the custom-class negotiation.
func (o *Orchestrator) handleClassSelection(ctx context.Context, em *emitter, rec *turnRecord) {
	if o.st.CharacterSheet.Class != state.ClassNone {
		em.emit(events.SystemNotification{Text: fmt.Sprintf("Your class is already set: %s.", className(o.st.CharacterSheet))})
		return
	}

	lower := strings.ToLower(rec.input)
	for _, cls := range state.Classes {
		if strings.Contains(lower, strings.ToLower(string(cls))) {
			o.applyClass(em, cls, "")
			return
		}
	}
	o.negotiateCustomClass(ctx, em, rec.input)
}

// applyClass sets the class, applies its stat bonuses, and rederives
// resources at the new stats.
func (o *Orchestrator) applyClass(em *emitter, cls state.Class, customName string) {
	sheet := &o.st.CharacterSheet
	sheet.Class = cls
	sheet.CustomClassName = customName
	sheet.BaseStats = sheet.BaseStats.Add(classBonuses[cls])
	sheet.Resources = state.ResourcesFor(sheet.EffectiveStats(), sheet.Level)

	name := string(cls)
	if customName != "" {
		name = fmt.Sprintf("%s (base: %s)", customName, strings.ToLower(string(cls)))
	}
	em.emit(events.SystemNotification{Text: fmt.Sprintf("Class set: %s. Your body hums as the System reshapes you.", name)})
}

// classDecision is the arbiter's reply contract for custom class requests.
type classDecision struct {
	Decision      string `json:"decision"`
	CustomName    string `json:"customName"`
	Description   string `json:"description"`
	BaseArchetype string `json:"baseArchetype"`
}

const classArbiterPrompt = "You arbitrate custom class requests in a LitRPG text adventure. " +
	"Given the player's request, reply with a single JSON object: " +
	`{"decision": "ACCEPT|REJECT", "customName": "", "description": "", "baseArchetype": "warrior|mage|rogue|tank|healer"}. ` +
	"Accept creative but balanced requests; reject joke or overpowered ones. Reply with JSON only."

// negotiateCustomClass asks a one-shot arbiter agent whether the requested
// custom class is acceptable and which standard class anchors its mechanics.
func (o *Orchestrator) negotiateCustomClass(ctx context.Context, em *emitter, input string) {
	denial := "The System denies your request. Choose a class: Warrior, Mage, Rogue, Tank, or Healer."

	rt, err := agent.NewRuntime(ctx, o.provider, classArbiterPrompt, "class_arbiter", o.st.GameID, nil, agent.Limits{}, o.log)
	if err != nil {
		o.log.Warn("class arbiter unavailable", "error", err)
		em.emit(events.SystemNotification{Text: denial})
		return
	}
	reply, err := rt.Send(ctx, fmt.Sprintf("Custom class request: %q", input))
	if err != nil {
		o.log.Warn("class arbiter call failed", "error", err)
		em.emit(events.SystemNotification{Text: denial})
		return
	}

	var decision classDecision
	if err := json.Unmarshal([]byte(extractJSON(reply)), &decision); err != nil ||
		!strings.EqualFold(decision.Decision, "ACCEPT") || decision.CustomName == "" {
		em.emit(events.SystemNotification{Text: denial})
		return
	}

	base := o.resolveBaseClass(decision.BaseArchetype)
	o.applyClass(em, base, decision.CustomName)
	if decision.Description != "" {
		em.emit(events.NarratorText{Text: decision.Description})
	}
}

// resolveBaseClass fuzzy-matches an archetype string to a standard class,
// defaulting to WARRIOR.
func (o *Orchestrator) resolveBaseClass(archetype string) state.Class {
	names := make([]string, len(state.Classes))
	for i, c := range state.Classes {
		names[i] = strings.ToLower(string(c))
	}
	if idx, ok := intent.MatchName(strings.ToLower(archetype), names); ok {
		return state.Classes[idx]
	}
	return state.ClassWarrior
}

// extractJSON returns the first balanced top-level JSON object in s, or s
// itself.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s
}
