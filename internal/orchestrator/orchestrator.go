// Package orchestrator owns the turn loop: it classifies player input,
// routes it through the simple or complex path, tracks quest progress,
// resolves deaths, and emits the ordered event stream. The orchestrator is
// the single writer of [state.GameState]; the planner and all agents read
// snapshots only.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/loreforge/loreforge/internal/agent"
	"github.com/loreforge/loreforge/internal/intent"
	"github.com/loreforge/loreforge/internal/observe"
	"github.com/loreforge/loreforge/internal/persist"
	"github.com/loreforge/loreforge/internal/rules"
	"github.com/loreforge/loreforge/internal/scene"
	"github.com/loreforge/loreforge/internal/state"
	"github.com/loreforge/loreforge/pkg/events"
	"github.com/loreforge/loreforge/pkg/llm"
)

// recentEventWindow is how many past events are summarised into complex-turn
// prompts.
const recentEventWindow = 5

// Options configures an Orchestrator. Provider, Engine, and State are
// required; Gateway, Metrics, and Log may be nil.
type Options struct {
	Provider llm.Provider
	Gateway  persist.Gateway
	Engine   *rules.Engine
	State    state.GameState
	Limits   agent.Limits
	Metrics  *observe.Metrics
	Log      *slog.Logger
}

// Orchestrator processes player turns for one game session. Not safe for
// concurrent ProcessInput calls by design: a second call while one is in
// flight receives a single notification and a closed stream.
type Orchestrator struct {
	provider llm.Provider
	gateway  persist.Gateway
	engine   *rules.Engine
	limits   agent.Limits
	metrics  *observe.Metrics
	log      *slog.Logger

	st state.GameState

	gmRT       *agent.Runtime
	narRT      *agent.Runtime
	gm         *scene.GameMaster
	narrator   *scene.Narrator
	npcAgents  map[string]*agent.Runtime
	summariser *agent.Summariser

	// now is injectable so dialogue-history timestamps replay identically
	// in tests.
	now func() time.Time

	inFlight atomic.Bool
	halted   atomic.Bool

	recent    []events.Event
	lastProse string
}

// New starts the role agents and returns an orchestrator for opts.State.
func New(ctx context.Context, opts Options) (*Orchestrator, error) {
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	st := opts.State

	gmRT, err := agent.NewGameMaster(ctx, opts.Provider, st.SystemType, st.PlayerPreferences, st.GameID, opts.Gateway, opts.Limits, log)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	narRT, err := agent.NewNarrator(ctx, opts.Provider, st.SystemType, st.PlayerPreferences, st.GameID, opts.Gateway, opts.Limits, log)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	return &Orchestrator{
		provider:   opts.Provider,
		gateway:    opts.Gateway,
		engine:     opts.Engine,
		limits:     opts.Limits,
		metrics:    opts.Metrics,
		log:        log.With("game", st.GameID),
		st:         st,
		gmRT:       gmRT,
		narRT:      narRT,
		gm:         scene.NewGameMaster(gmRT),
		narrator:   scene.NewNarrator(narRT),
		npcAgents:  make(map[string]*agent.Runtime),
		summariser: agent.NewSummariser(opts.Provider, log),
		now:        time.Now,
	}, nil
}

// State returns a snapshot of the current game state.
func (o *Orchestrator) State() state.GameState {
	return o.st.Clone()
}

// LastNarration returns the most recent narrator prose, used by the caller
// for story-deviation detection.
func (o *Orchestrator) LastNarration() string {
	return o.lastProse
}

// AdoptPlotGraph folds a planner-produced graph into the state. Refused
// (returning false) while a turn is in flight; the caller retries after the
// turn completes.
func (o *Orchestrator) AdoptPlotGraph(g state.PlotGraph) bool {
	if !o.inFlight.CompareAndSwap(false, true) {
		return false
	}
	defer o.inFlight.Store(false)
	o.st.PlotGraph = g
	return true
}

// ForceSave persists the game snapshot and every agent memory. Called on
// shutdown.
func (o *Orchestrator) ForceSave(ctx context.Context) error {
	if o.gateway == nil {
		return nil
	}
	if err := o.gateway.SaveGame(ctx, o.st); err != nil {
		return fmt.Errorf("orchestrator: save game: %w", err)
	}
	for _, rt := range o.runtimes() {
		if err := rt.ForceSave(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runtimes() []*agent.Runtime {
	rts := []*agent.Runtime{o.gmRT, o.narRT}
	for _, rt := range o.npcAgents {
		rts = append(rts, rt)
	}
	return rts
}

// ProcessInput runs one turn and returns its event stream. The stream is
// finite and closed when the turn completes. Exactly one turn may be in
// flight; a concurrent call receives a single [events.SystemNotification]
// and a closed stream. Cancelling ctx stops event emission; mechanics
// already applied are kept.
func (o *Orchestrator) ProcessInput(ctx context.Context, text string) <-chan events.Event {
	ch := make(chan events.Event, 16)
	if o.halted.Load() {
		ch <- events.SystemNotification{Text: "The session has been halted. Restore from the last save."}
		close(ch)
		return ch
	}
	if !o.inFlight.CompareAndSwap(false, true) {
		ch <- events.SystemNotification{Text: "The System is still resolving your previous action."}
		close(ch)
		return ch
	}
	go func() {
		defer o.inFlight.Store(false)
		defer close(ch)
		o.runTurn(ctx, text, ch)
	}()
	return ch
}

// turnRecord accumulates what this turn amounted to, for quest matching.
type turnRecord struct {
	input       string
	intent      intent.Intent
	target      string // lowercased combat target
	npcID       string // dialogue partner
	skillID     string

	// Parallel slices: completions[i] was the turn-in of completionIDs[i].
	completions   []rules.QuestCompletion
	completionIDs []string
}

func (o *Orchestrator) runTurn(ctx context.Context, text string, ch chan<- events.Event) {
	start := o.now()
	em := &emitter{ctx: ctx, ch: ch, o: o}
	snapshot := o.st.Clone()

	rec := &turnRecord{input: text, intent: intent.Exploration}
	complexity := intent.Simple

	defer func() {
		if o.metrics != nil {
			o.metrics.RecordTurn(ctx, complexity.String(), string(rec.intent), o.now().Sub(start).Seconds())
		}
	}()

	if !o.st.HasOpeningNarrationPlayed {
		if err := o.bootstrap(ctx, em); err != nil {
			o.log.Error("bootstrap failed", "error", err)
			o.st = snapshot
			em.emit(events.SystemNotification{Text: "The System could not begin your story. Try again."})
			return
		}
		if strings.TrimSpace(text) == "" {
			o.persistTurn(ctx, em, snapshot)
			return
		}
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	// Dead only persists under permanent-death semantics; every other
	// system respawns within the death turn itself.
	if o.st.CharacterSheet.Dead {
		em.emit(events.SystemNotification{Text: "Your story has ended. Begin a new delve to continue."})
		return
	}

	o.st.CharacterSheet = o.engine.TickCooldowns(o.st.CharacterSheet)

	complexity = intent.Classify(text, o.st)
	analysis := intent.Analyze(text, o.st)
	rec.intent = analysis.Intent

	// Menu and class commands are deterministic regardless of who is
	// present; the scene-plan vocabulary has no action for them.
	if metaIntent(analysis.Intent) {
		complexity = intent.Simple
	}

	if complexity == intent.Simple {
		o.simpleTurn(ctx, em, analysis, rec)
	} else {
		o.complexTurn(ctx, em, analysis, rec)
	}

	// Repeated behaviour may crystallise into a skill regardless of path.
	sheet, granted := o.engine.ProcessActionInsight(text, o.st.CharacterSheet)
	o.st.CharacterSheet = sheet
	if granted != nil {
		em.emit(events.SystemNotification{Text: fmt.Sprintf("Skill acquired: %s — %s", granted.Name, granted.Description)})
	}

	o.trackQuestProgress(em, rec)

	if o.st.CharacterSheet.Resources.HP.Current <= 0 && !o.st.CharacterSheet.Dead {
		o.resolveDeath(em, rec.target)
	}

	if err := o.st.CheckInvariants(); err != nil {
		// Invariant violations are bugs. Attempt one snapshot, then halt
		// the session.
		o.log.Error("state invariant violated, halting session", "error", err)
		if o.gateway != nil {
			if saveErr := o.gateway.SaveGame(ctx, o.st); saveErr != nil {
				o.log.Error("final snapshot failed", "error", saveErr)
			}
		}
		o.halted.Store(true)
		em.emit(events.SystemNotification{Text: "The System encountered an internal fault. The session has been halted."})
		return
	}

	o.persistTurn(ctx, em, snapshot)
	o.maybeConsolidate(ctx)
}

// persistTurn saves the post-turn snapshot. On failure the turn's mutations
// are rolled back so no unsaved progress survives.
func (o *Orchestrator) persistTurn(ctx context.Context, em *emitter, snapshot state.GameState) {
	if o.gateway == nil {
		return
	}
	if err := o.gateway.SaveGame(ctx, o.st); err != nil {
		o.log.Error("game save failed, discarding turn", "error", err)
		o.st = snapshot
		em.emit(events.SystemNotification{Text: "The System could not record your action; it has been undone."})
	}
}

// maybeConsolidate folds over-limit agent memories. Failures are logged and
// gameplay continues.
func (o *Orchestrator) maybeConsolidate(ctx context.Context) {
	for _, rt := range o.runtimes() {
		if !rt.NeedsConsolidation() {
			continue
		}
		if _, err := rt.Consolidate(ctx, o.summariser); err != nil {
			o.log.Warn("memory consolidation failed", "agent", rt.AgentID(), "error", err)
		}
	}
}

// resolveDeath narrates and applies a character death.
func (o *Orchestrator) resolveDeath(em *emitter, cause string) {
	if cause == "" {
		cause = "your wounds"
	}
	next, res := o.engine.ApplyDeath(o.st, cause)
	o.st = next

	em.emit(events.NarratorText{Text: fmt.Sprintf("Darkness closes in. The last thing you feel is %s.", cause)})
	switch {
	case res.Permanent:
		em.emit(events.SystemNotification{Text: "Your delve ends here. The dungeon keeps what it takes."})
	case res.Semantics == state.DeathRespawnStronger:
		em.emit(events.SystemNotification{Text: fmt.Sprintf("Death has strengthened you. All stats increased by %d!", res.StatBonus)})
		em.emit(events.NarratorText{Text: "You wake where you first opened your eyes, heart pounding, body humming with borrowed strength."})
	default:
		em.emit(events.SystemNotification{Text: fmt.Sprintf("You lost %d XP.", res.XPLost)})
		em.emit(events.NarratorText{Text: "You come to, aching but alive. The world has not finished with you."})
	}
}

// trackQuestProgress bumps every active objective the turn satisfied and
// emits an IN_PROGRESS update per advanced quest.
func (o *Orchestrator) trackQuestProgress(em *emitter, rec *turnRecord) {
	lowerInput := strings.ToLower(rec.input)

	for _, qid := range sortedQuestIDs(o.st.ActiveQuests) {
		q := o.st.ActiveQuests[qid]
		advanced := false
		for _, obj := range q.Objectives {
			if obj.Complete() || !o.objectiveMatched(obj, rec, lowerInput) {
				continue
			}
			next, _, err := o.engine.UpdateQuestObjective(o.st, qid, obj.ID, 1)
			if err != nil {
				continue
			}
			o.st = next
			advanced = true
		}
		if advanced {
			em.emit(events.QuestUpdate{QuestID: qid, QuestName: q.Name, Status: events.QuestInProgress})
		}
	}
}

func (o *Orchestrator) objectiveMatched(obj state.Objective, rec *turnRecord, lowerInput string) bool {
	switch obj.Type {
	case state.ObjectiveKill:
		return rec.intent == intent.Combat && rec.target != "" && rec.target == obj.TargetID
	case state.ObjectiveReachLocation:
		return o.st.CurrentLocationID == obj.TargetID
	case state.ObjectiveExplore:
		_, ok := o.st.DiscoveredLocations[obj.TargetID]
		return ok
	case state.ObjectiveTalk:
		return rec.intent == intent.NPCDialogue && rec.npcID == obj.TargetID
	case state.ObjectiveUseSkill:
		return rec.intent == intent.UseSkill && rec.skillID == obj.TargetID
	default: // CUSTOM
		return obj.TargetID != "" && strings.Contains(lowerInput, obj.TargetID)
	}
}

// metaIntent reports whether an intent is a System command rather than an
// in-world action.
func metaIntent(in intent.Intent) bool {
	switch in {
	case intent.StatusMenu, intent.InventoryMenu, intent.SystemQuery,
		intent.SkillMenu, intent.UseSkill, intent.SkillEvolution,
		intent.SkillFusion, intent.ClassSelection:
		return true
	}
	return false
}

func sortedQuestIDs(quests map[string]state.Quest) []string {
	ids := make([]string, 0, len(quests))
	for id := range quests {
		ids = append(ids, id)
	}
	// Deterministic turn replay requires a stable iteration order.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

// emitter sends events in order, stopping after stream cancellation while
// letting the turn finish its state commits.
type emitter struct {
	ctx       context.Context
	ch        chan<- events.Event
	o         *Orchestrator
	cancelled bool
}

func (e *emitter) emit(ev events.Event) bool {
	if e.cancelled {
		return false
	}
	select {
	case <-e.ctx.Done():
		e.cancelled = true
		return false
	case e.ch <- ev:
	}
	e.o.pushRecent(ev)
	if e.o.metrics != nil {
		e.o.metrics.RecordEvent(e.ctx, strings.TrimPrefix(fmt.Sprintf("%T", ev), "events."))
	}
	return true
}

func (o *Orchestrator) pushRecent(ev events.Event) {
	o.recent = append(o.recent, ev)
	if len(o.recent) > recentEventWindow {
		o.recent = o.recent[len(o.recent)-recentEventWindow:]
	}
}

// recentSummaries renders the last few events as one-line summaries for
// agent prompts.
func (o *Orchestrator) recentSummaries() []string {
	out := make([]string, 0, len(o.recent))
	for _, ev := range o.recent {
		out = append(out, events.Describe(ev))
	}
	return out
}
