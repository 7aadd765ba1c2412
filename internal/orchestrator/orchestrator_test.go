package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/loreforge/loreforge/internal/agent"
	"github.com/loreforge/loreforge/internal/persist"
	"github.com/loreforge/loreforge/internal/persist/memstore"
	"github.com/loreforge/loreforge/internal/rules"
	"github.com/loreforge/loreforge/internal/state"
	"github.com/loreforge/loreforge/pkg/events"
	"github.com/loreforge/loreforge/pkg/llm/mock"
)

const (
	openingReply  = "You awaken on cold stone as the System boots behind your eyes."
	narrateReply  = "Steel rings out across the plaza as you press the attack."
	combatPlan    = `{"primaryAction":{"type":"COMBAT","target":"training construct","description":"You strike at the construct."},"sceneTone":"TENSE"}`
	questPlan     = `{"primaryAction":{"type":"QUEST_ACTION","description":"You report your progress."},"sceneTone":"PEACEFUL"}`
	dialoguePlan  = `{"primaryAction":{"type":"DIALOGUE","target":"vale","description":"You address the sergeant."},"sceneTone":"PEACEFUL"}`
	dialogueReply = "Good form, recruit. Keep your guard up."
)

// scriptedProvider serves every agent role from one mock: planning requests
// carry "Plan the scene", narration requests "Narrate in 3-5", and NPC
// agents receive the raw player input.
func scriptedProvider(plan string) *mock.Provider {
	return &mock.Provider{
		Rules: []mock.Rule{
			{Match: "Narrate the opening", Reply: openingReply},
			{Match: "Plan the scene", Reply: plan},
			{Match: "Narrate in 3-5", Reply: narrateReply},
			{Match: "talk to vale", Reply: dialogueReply},
		},
		Default: "The System hums, waiting.",
	}
}

func newTestOrchestrator(t *testing.T, p *mock.Provider, sys state.SystemType, gw persist.Gateway) *Orchestrator {
	t.Helper()
	sheet := state.NewCharacterSheet(state.AllocateStats(state.AllocBalanced, state.Stats{}, nil))
	st := state.NewGame("g1", "Elena", "a survivor of the old world", sys, state.DifficultyNormal, sheet, state.PlayerPreferences{})
	eng := rules.NewEngine(state.DifficultyNormal, 42, nil)

	o, err := New(context.Background(), Options{
		Provider: p,
		Gateway:  gw,
		Engine:   eng,
		State:    st,
		Limits:   agent.DefaultLimits(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	o.now = func() time.Time { return time.Unix(1700000000, 0) }
	return o
}

func drain(t *testing.T, ch <-chan events.Event) []events.Event {
	t.Helper()
	var out []events.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

// turn runs one input to completion and returns its event sequence.
func turn(t *testing.T, o *Orchestrator, input string) []events.Event {
	t.Helper()
	return drain(t, o.ProcessInput(context.Background(), input))
}

func TestBootstrapEmitsOpeningSequence(t *testing.T) {
	store := memstore.NewStore()
	o := newTestOrchestrator(t, scriptedProvider(combatPlan), state.SystemIntegration, store)

	evs := turn(t, o, "")
	if len(evs) != 3 {
		t.Fatalf("bootstrap emitted %d events, want 3: %#v", len(evs), evs)
	}
	if nt, ok := evs[0].(events.NarratorText); !ok || nt.Text != openingReply {
		t.Errorf("event 0 = %#v, want opening narration", evs[0])
	}
	qu, ok := evs[1].(events.QuestUpdate)
	if !ok || qu.Status != events.QuestNew || qu.QuestName != "System Integration" {
		t.Errorf("event 1 = %#v, want QuestUpdate NEW System Integration", evs[1])
	}
	sn, ok := evs[2].(events.SystemNotification)
	if !ok || !strings.HasSuffix(sn.Text, "materializes before you.") {
		t.Errorf("event 2 = %#v, want notification ending with %q", evs[2], "materializes before you.")
	}

	st := o.State()
	if !st.HasOpeningNarrationPlayed {
		t.Error("opening narration not marked played")
	}
	if _, ok := st.ActiveQuests[tutorialQuestID]; !ok {
		t.Error("tutorial quest not granted")
	}
	if _, ok := st.NPCs[tutorialNPCID]; !ok {
		t.Error("tutorial NPC not placed")
	}
	if _, err := store.LoadGame(context.Background(), "g1"); err != nil {
		t.Errorf("bootstrap turn not persisted: %v", err)
	}
}

func TestBootstrapOpeningFallsBackAfterRetries(t *testing.T) {
	boom := errors.New("model offline")
	p := &mock.Provider{
		Rules: []mock.Rule{
			{Match: "Narrate the opening", Err: boom},
		},
		Default: "unused",
	}
	o := newTestOrchestrator(t, p, state.SystemIntegration, memstore.NewStore())

	evs := turn(t, o, "")
	if len(evs) != 3 {
		t.Fatalf("got %d events, want 3", len(evs))
	}
	nt, ok := evs[0].(events.NarratorText)
	if !ok || !strings.Contains(nt.Text, "Elena") {
		t.Errorf("fallback opening = %#v, want deterministic text naming the player", evs[0])
	}
}

func TestStatusEmitsSingleNotification(t *testing.T) {
	o := newTestOrchestrator(t, scriptedProvider(combatPlan), state.SystemIntegration, memstore.NewStore())
	turn(t, o, "")

	evs := turn(t, o, "status")

	var notes []events.SystemNotification
	for _, ev := range evs {
		if sn, ok := ev.(events.SystemNotification); ok {
			notes = append(notes, sn)
		}
	}
	if len(notes) != 1 {
		t.Fatalf("got %d SystemNotifications, want exactly 1: %#v", len(notes), evs)
	}
	for _, want := range []string{"Level", "HP:", "MP:", "STR:"} {
		if !strings.Contains(notes[0].Text, want) {
			t.Errorf("status screen missing %q:\n%s", want, notes[0].Text)
		}
	}

	q := o.State().ActiveQuests[tutorialQuestID]
	idx := q.ObjectiveByID("tutorial_obj_status")
	if idx < 0 || !q.Objectives[idx].Complete() {
		t.Error("status objective not completed by status turn")
	}

	var sawProgress bool
	for _, ev := range evs {
		if qu, ok := ev.(events.QuestUpdate); ok && qu.Status == events.QuestInProgress {
			sawProgress = true
		}
	}
	if !sawProgress {
		t.Error("no IN_PROGRESS quest update for the advanced objective")
	}
}

func TestComplexCombatFlow(t *testing.T) {
	o := newTestOrchestrator(t, scriptedProvider(combatPlan), state.SystemIntegration, memstore.NewStore())
	turn(t, o, "")

	evs := turn(t, o, "attack the training construct")
	if len(evs) == 0 {
		t.Fatal("no events emitted")
	}
	if nt, ok := evs[0].(events.NarratorText); !ok || nt.Text == "" {
		t.Fatalf("first event = %#v, want NarratorText", evs[0])
	}

	// Danger 1 at the plaza: any hit overwhelms it, awarding 15 XP.
	var sc *events.StatChange
	for i, ev := range evs {
		if v, ok := ev.(events.StatChange); ok && v.StatName == "xp" {
			sc = &v
			if i == 0 {
				t.Error("StatChange emitted before narration")
			}
			break
		}
	}
	if sc == nil {
		t.Fatalf("no xp StatChange in %#v", evs)
	}
	if sc.OldValue != 0 || sc.NewValue != 15 {
		t.Errorf("xp StatChange = %d→%d, want 0→15", sc.OldValue, sc.NewValue)
	}
	if got := o.State().CharacterSheet.XP; got != 15 {
		t.Errorf("sheet XP = %d, want 15", got)
	}

	q := o.State().ActiveQuests[tutorialQuestID]
	idx := q.ObjectiveByID("tutorial_obj_first_combat")
	if idx < 0 || q.Objectives[idx].CurrentProgress != 1 {
		t.Errorf("first-combat objective progress = %d, want 1", q.Objectives[idx].CurrentProgress)
	}
}

func TestNPCDialogueFlow(t *testing.T) {
	o := newTestOrchestrator(t, scriptedProvider(dialoguePlan), state.SystemIntegration, memstore.NewStore())
	turn(t, o, "")

	evs := turn(t, o, "talk to vale")

	var spoken *events.NPCDialogue
	for _, ev := range evs {
		if d, ok := ev.(events.NPCDialogue); ok {
			spoken = &d
			break
		}
	}
	if spoken == nil {
		t.Fatalf("no NPCDialogue in %#v", evs)
	}
	if spoken.NPCID != tutorialNPCID || spoken.NPCName != "Sergeant Vale" || spoken.Text != dialogueReply {
		t.Errorf("dialogue = %#v, want Vale saying %q", spoken, dialogueReply)
	}

	st := o.State()
	npc := st.NPCs[tutorialNPCID]
	if npc.Relationship != 1 {
		t.Errorf("relationship = %d, want 1", npc.Relationship)
	}
	if len(npc.History) != 1 || npc.History[0].NPCText != dialogueReply {
		t.Errorf("dialogue history = %#v, want one recorded exchange", npc.History)
	}

	q := st.ActiveQuests[tutorialQuestID]
	idx := q.ObjectiveByID("tutorial_obj_report")
	if idx < 0 || !q.Objectives[idx].Complete() {
		t.Error("report objective not completed by talking to Vale")
	}
}

func TestQuestTurnInAppliesRewardsOnce(t *testing.T) {
	o := newTestOrchestrator(t, scriptedProvider(questPlan), state.SystemIntegration, memstore.NewStore())
	turn(t, o, "")

	q := o.st.ActiveQuests[tutorialQuestID]
	for i := range q.Objectives {
		q.Objectives[i].CurrentProgress = q.Objectives[i].TargetProgress
	}
	o.st.ActiveQuests[tutorialQuestID] = q

	evs := turn(t, o, "turn in quest")

	var completed *events.QuestUpdate
	var rewardNote *events.SystemNotification
	for _, ev := range evs {
		switch v := ev.(type) {
		case events.QuestUpdate:
			if v.Status == events.QuestCompleted {
				completed = &v
			}
		case events.SystemNotification:
			if strings.Contains(v.Text, "Quest complete") {
				rewardNote = &v
			}
		}
	}
	if completed == nil || completed.QuestName != "System Integration" {
		t.Fatalf("no COMPLETED quest update in %#v", evs)
	}
	if rewardNote == nil || !strings.Contains(rewardNote.Text, "50 XP") {
		t.Errorf("reward notification = %#v, want XP listed", rewardNote)
	}

	st := o.State()
	if _, done := st.CompletedQuests[tutorialQuestID]; !done {
		t.Error("quest not in completedQuests")
	}
	if _, active := st.ActiveQuests[tutorialQuestID]; active {
		t.Error("quest still active after turn-in")
	}
	if st.CharacterSheet.XP != 50 {
		t.Errorf("XP = %d, want 50", st.CharacterSheet.XP)
	}
	if st.CharacterSheet.Gold != 10 {
		t.Errorf("gold = %d, want 10", st.CharacterSheet.Gold)
	}
	if st.CharacterSheet.SkillByID("skill_power_strike") < 0 {
		t.Error("reward skill not granted")
	}

	// Turning in again must not re-apply rewards.
	turn(t, o, "turn in quest")
	if got := o.State().CharacterSheet.XP; got != 50 {
		t.Errorf("XP after repeat turn-in = %d, want 50", got)
	}
}

func TestDeathLoopRespawnStrengthens(t *testing.T) {
	o := newTestOrchestrator(t, scriptedProvider(combatPlan), state.DeathLoop, memstore.NewStore())
	turn(t, o, "")

	o.st.DeathCount = 2
	o.st.CharacterSheet.Resources.HP.Current = 0
	baseBefore := o.st.CharacterSheet.BaseStats

	evs := turn(t, o, "wait quietly")

	wantNote := "Death has strengthened you. All stats increased by 6!"
	var noteIdx = -1
	for i, ev := range evs {
		if sn, ok := ev.(events.SystemNotification); ok && sn.Text == wantNote {
			noteIdx = i
		}
	}
	if noteIdx < 0 {
		t.Fatalf("no %q in %#v", wantNote, evs)
	}
	if noteIdx == 0 {
		t.Fatal("stat notification emitted before death narration")
	}
	if _, ok := evs[noteIdx-1].(events.NarratorText); !ok {
		t.Errorf("event before stat notification = %#v, want death narration", evs[noteIdx-1])
	}
	if noteIdx+1 >= len(evs) {
		t.Fatal("no respawn narration after stat notification")
	}
	if _, ok := evs[noteIdx+1].(events.NarratorText); !ok {
		t.Errorf("event after stat notification = %#v, want respawn narration", evs[noteIdx+1])
	}

	st := o.State()
	if st.DeathCount != 3 {
		t.Errorf("deathCount = %d, want 3", st.DeathCount)
	}
	if got := st.CharacterSheet.BaseStats; got != baseBefore.AddAll(6) {
		t.Errorf("base stats = %+v, want every stat +6", got)
	}
	res := st.CharacterSheet.Resources
	if res.HP.Current != res.HP.Max || res.MP.Current != res.MP.Max || res.Energy.Current != res.Energy.Max {
		t.Errorf("resources not fully restored: %+v", res)
	}
}

func TestReplayDeterminism(t *testing.T) {
	inputs := []string{"", "status", "attack the training construct", "wait quietly"}

	run := func() ([][]events.Event, state.GameState) {
		o := newTestOrchestrator(t, scriptedProvider(combatPlan), state.SystemIntegration, memstore.NewStore())
		var seqs [][]events.Event
		for _, in := range inputs {
			seqs = append(seqs, turn(t, o, in))
		}
		return seqs, o.State()
	}

	seqA, stA := run()
	seqB, stB := run()

	if !reflect.DeepEqual(seqA, seqB) {
		t.Error("event sequences differ between identical runs")
	}
	if !reflect.DeepEqual(stA, stB) {
		t.Error("final states differ between identical runs")
	}
}

func TestInvariantsHoldAfterEveryTurn(t *testing.T) {
	o := newTestOrchestrator(t, scriptedProvider(combatPlan), state.SystemIntegration, memstore.NewStore())
	for _, in := range []string{"", "status", "attack the training construct", "inventory", "skills", "wait quietly"} {
		turn(t, o, in)
		if err := o.State().CheckInvariants(); err != nil {
			t.Fatalf("invariant violated after %q: %v", in, err)
		}
	}
}

func TestBusyStreamRejectsConcurrentTurn(t *testing.T) {
	o := newTestOrchestrator(t, scriptedProvider(combatPlan), state.SystemIntegration, memstore.NewStore())
	o.inFlight.Store(true)

	evs := drain(t, o.ProcessInput(context.Background(), "status"))
	if len(evs) != 1 {
		t.Fatalf("busy stream emitted %d events, want 1", len(evs))
	}
	if _, ok := evs[0].(events.SystemNotification); !ok {
		t.Errorf("busy event = %#v, want SystemNotification", evs[0])
	}
	o.inFlight.Store(false)
}

func TestNarratorDegradedFallsBack(t *testing.T) {
	boom := errors.New("narrator offline")
	p := &mock.Provider{
		Rules: []mock.Rule{
			{Match: "Narrate the opening", Reply: openingReply},
			{Match: "Plan the scene", Reply: combatPlan},
			{Match: "Narrate in 3-5", Err: boom},
		},
		Default: "unused",
	}
	o := newTestOrchestrator(t, p, state.SystemIntegration, memstore.NewStore())
	turn(t, o, "")

	evs := turn(t, o, "attack the training construct")
	if len(evs) < 2 {
		t.Fatalf("got %d events, want narration plus degradation notice", len(evs))
	}
	nt, ok := evs[0].(events.NarratorText)
	if !ok || !strings.Contains(nt.Text, "damage") {
		t.Errorf("fallback narration = %#v, want factual combat account", evs[0])
	}
	if sn, ok := evs[1].(events.SystemNotification); !ok || !strings.Contains(sn.Text, "rendered plainly") {
		t.Errorf("event 1 = %#v, want degradation notice", evs[1])
	}
	// Mechanics still committed despite the degraded narration.
	if got := o.State().CharacterSheet.XP; got != 15 {
		t.Errorf("XP = %d, want 15", got)
	}
}

func TestClassSelectionStandard(t *testing.T) {
	o := newTestOrchestrator(t, scriptedProvider(combatPlan), state.SystemIntegration, memstore.NewStore())
	turn(t, o, "")
	strBefore := o.State().CharacterSheet.BaseStats.Strength

	evs := turn(t, o, "I choose the warrior class")

	st := o.State()
	if st.CharacterSheet.Class != state.ClassWarrior {
		t.Fatalf("class = %s, want WARRIOR", st.CharacterSheet.Class)
	}
	if got := st.CharacterSheet.BaseStats.Strength; got != strBefore+3 {
		t.Errorf("strength = %d, want %d", got, strBefore+3)
	}
	var found bool
	for _, ev := range evs {
		if sn, ok := ev.(events.SystemNotification); ok && strings.Contains(sn.Text, "Class set: WARRIOR") {
			found = true
		}
	}
	if !found {
		t.Errorf("no class-set notification in %#v", evs)
	}
}

func TestClassSelectionCustomAccepted(t *testing.T) {
	p := scriptedProvider(combatPlan)
	p.Rules = append(p.Rules, mock.Rule{
		Match: "Custom class request",
		Reply: `{"decision":"ACCEPT","customName":"Spellblade","description":"Steel and sorcery in one hand.","baseArchetype":"mage"}`,
	})
	o := newTestOrchestrator(t, p, state.SystemIntegration, memstore.NewStore())
	turn(t, o, "")

	turn(t, o, "i want to be a spellblade class")

	st := o.State()
	if st.CharacterSheet.CustomClassName != "Spellblade" {
		t.Fatalf("custom class name = %q, want Spellblade", st.CharacterSheet.CustomClassName)
	}
	if st.CharacterSheet.Class != state.ClassMage {
		t.Errorf("base class = %s, want MAGE", st.CharacterSheet.Class)
	}
}

func TestClassSelectionCustomRejected(t *testing.T) {
	p := scriptedProvider(combatPlan)
	p.Rules = append(p.Rules, mock.Rule{
		Match: "Custom class request",
		Reply: `{"decision":"REJECT"}`,
	})
	o := newTestOrchestrator(t, p, state.SystemIntegration, memstore.NewStore())
	turn(t, o, "")

	evs := turn(t, o, "i want to be a god-emperor class")

	var denied bool
	for _, ev := range evs {
		if sn, ok := ev.(events.SystemNotification); ok && strings.Contains(sn.Text, "denies your request") {
			denied = true
		}
	}
	if !denied {
		t.Errorf("no denial in %#v", evs)
	}
	if got := o.State().CharacterSheet.Class; got != state.ClassNone {
		t.Errorf("class = %s, want NONE after rejection", got)
	}
}

// flakyGateway wraps a real store and fails saves on demand.
type flakyGateway struct {
	persist.Gateway
	fail bool
}

func (g *flakyGateway) SaveGame(ctx context.Context, st state.GameState) error {
	if g.fail {
		return fmt.Errorf("save game: %w", errors.New("disk full"))
	}
	return g.Gateway.SaveGame(ctx, st)
}

func TestSaveFailureRollsBackTurn(t *testing.T) {
	gw := &flakyGateway{Gateway: memstore.NewStore()}
	o := newTestOrchestrator(t, scriptedProvider(combatPlan), state.SystemIntegration, gw)
	turn(t, o, "")

	gw.fail = true
	evs := turn(t, o, "status")

	last, ok := evs[len(evs)-1].(events.SystemNotification)
	if !ok || !strings.Contains(last.Text, "undone") {
		t.Errorf("last event = %#v, want discard notification", evs[len(evs)-1])
	}

	q := o.State().ActiveQuests[tutorialQuestID]
	idx := q.ObjectiveByID("tutorial_obj_status")
	if q.Objectives[idx].CurrentProgress != 0 {
		t.Error("objective progress survived a failed save")
	}
}

func TestInvariantViolationHaltsSession(t *testing.T) {
	o := newTestOrchestrator(t, scriptedProvider(combatPlan), state.SystemIntegration, memstore.NewStore())
	turn(t, o, "")

	o.st.CurrentLocationID = "loc_does_not_exist"
	evs := turn(t, o, "wander")

	last, ok := evs[len(evs)-1].(events.SystemNotification)
	if !ok || !strings.Contains(last.Text, "halted") {
		t.Fatalf("last event = %#v, want halt notification", evs[len(evs)-1])
	}

	next := drain(t, o.ProcessInput(context.Background(), "status"))
	if len(next) != 1 {
		t.Fatalf("halted session emitted %d events, want 1", len(next))
	}
	if sn, ok := next[0].(events.SystemNotification); !ok || !strings.Contains(sn.Text, "halted") {
		t.Errorf("post-halt event = %#v, want halt notification", next[0])
	}
}

func TestAdoptPlotGraphRefusedMidTurn(t *testing.T) {
	o := newTestOrchestrator(t, scriptedProvider(combatPlan), state.SystemIntegration, memstore.NewStore())
	o.inFlight.Store(true)
	if o.AdoptPlotGraph(state.NewPlotGraph()) {
		t.Error("graph adopted while a turn was in flight")
	}
	o.inFlight.Store(false)
	if !o.AdoptPlotGraph(state.NewPlotGraph()) {
		t.Error("graph refused while idle")
	}
}
