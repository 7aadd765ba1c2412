package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/loreforge/loreforge/internal/agent"
	"github.com/loreforge/loreforge/internal/persist"
	"github.com/loreforge/loreforge/internal/state"
	"github.com/loreforge/loreforge/pkg/llm"
)

// Replan trigger thresholds.
const (
	minReadyNodes     = 3
	completionTrigger = 0.7
	levelDeltaTrigger = 10
)

// Stage labels a planner progress update.
type Stage string

const (
	StageStarting  Stage = "STARTING"
	StageAnalyzing Stage = "ANALYZING"
	StageBuilding  Stage = "BUILDING"
	StageComplete  Stage = "COMPLETE"
)

// Progress is one update on a planner run's progress stream.
type Progress struct {
	Stage   Stage
	Message string
}

// Planner runs background plot replanning. A run takes an immutable state
// snapshot, gathers proposals from three role agents in parallel, resolves
// them by consensus, and persists the assembled graph. At most one run is in
// flight per Planner; a trigger arriving mid-run is dropped, not queued.
type Planner struct {
	provider llm.Provider
	gateway  persist.Gateway
	log      *slog.Logger

	busy          atomic.Bool
	mu            sync.Mutex
	lastReplanLvl int
	consensus     ConsensusEngine
}

// New returns a Planner. A nil logger disables logging.
func New(provider llm.Provider, gw persist.Gateway, log *slog.Logger) *Planner {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Planner{provider: provider, gateway: gw, log: log.With("component", "planner")}
}

// ShouldPlan reports whether the snapshot warrants a replan, and why.
// Triggers: fewer than three ready nodes ahead of the player, over 70% of
// the graph completed, ten levels gained since the last run, or a detected
// story deviation.
func (p *Planner) ShouldPlan(st state.GameState, devs []Deviation) (string, bool) {
	if len(devs) > 0 {
		return fmt.Sprintf("story deviation (%s)", devs[0].Severity), true
	}
	if len(st.PlotGraph.ReadyNodes(st.CharacterSheet.Level)) < minReadyNodes {
		return "fewer than 3 ready nodes", true
	}
	if st.PlotGraph.CompletionRatio() > completionTrigger {
		return "plot graph over 70% complete", true
	}
	p.mu.Lock()
	last := p.lastReplanLvl
	p.mu.Unlock()
	if st.CharacterSheet.Level >= last+levelDeltaTrigger {
		return fmt.Sprintf("level %d reached (last replan at %d)", st.CharacterSheet.Level, last), true
	}
	return "", false
}

// Run executes one planning run over the snapshot. Progress updates are sent
// on the returned channel, which is closed when the run finishes. A run
// started while another is in flight returns ErrBusy immediately.
//
// The run never mutates st; the new graph is written through the gateway and
// returned for the caller to fold into the next turn's state.
func (p *Planner) Run(ctx context.Context, st state.GameState, mode state.ReplanMode, reason string, devs []Deviation) (<-chan Progress, <-chan RunResult, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return nil, nil, ErrBusy
	}

	progress := make(chan Progress, 8)
	result := make(chan RunResult, 1)
	go func() {
		res, err := p.run(ctx, st, mode, reason, devs, progress)
		close(progress)
		res.Err = err
		// Release before publishing so the next trigger is never dropped
		// by a reader that has already seen this result.
		p.busy.Store(false)
		result <- res
		close(result)
	}()
	return progress, result, nil
}

// ErrBusy is returned when a run is requested while one is in flight.
var ErrBusy = errors.New("planner: run already in flight")

// RunResult is the outcome of one planning run.
type RunResult struct {
	Graph   state.PlotGraph
	Session state.PlanningSession
	Err     error
}

func (p *Planner) run(ctx context.Context, st state.GameState, mode state.ReplanMode, reason string, devs []Deviation, progress chan<- Progress) (RunResult, error) {
	progress <- Progress{Stage: StageStarting, Message: reason}
	p.log.Info("planning run started", "game", st.GameID, "mode", string(mode), "reason", reason)

	proposals, err := p.gatherProposals(ctx, st)
	if err != nil {
		return RunResult{}, err
	}

	progress <- Progress{Stage: StageAnalyzing, Message: fmt.Sprintf("%d proposals gathered", len(proposals))}
	resolution := p.consensus.ResolveProposals(proposals)

	progress <- Progress{Stage: StageBuilding, Message: fmt.Sprintf("%d nodes accepted, %d rejected", len(resolution.Accepted), len(resolution.Rejected))}
	graph := assembleGraph(st.PlotGraph, resolution, mode, devs)
	if err := graph.CheckInvariants(); err != nil {
		return RunResult{}, fmt.Errorf("planner: assembled graph: %w", err)
	}

	session := state.PlanningSession{
		ID:            uuid.NewString(),
		GameID:        st.GameID,
		TriggerReason: reason,
		Mode:          mode,
		Consensus:     resolution.Consensus,
		NodesAdded:    len(resolution.Accepted) + len(resolution.Alternatives),
		NodesRejected: len(resolution.Rejected),
		CreatedAt:     time.Now(),
	}
	if p.gateway != nil {
		if err := p.gateway.SavePlotGraph(ctx, st.GameID, graph); err != nil {
			return RunResult{}, fmt.Errorf("planner: save plot graph: %w", err)
		}
		if err := p.gateway.SavePlanningSession(ctx, session); err != nil {
			return RunResult{}, fmt.Errorf("planner: save planning session: %w", err)
		}
	}

	p.mu.Lock()
	p.lastReplanLvl = st.CharacterSheet.Level
	p.mu.Unlock()

	progress <- Progress{Stage: StageComplete, Message: string(resolution.Consensus)}
	p.log.Info("planning run complete",
		"game", st.GameID,
		"consensus", string(resolution.Consensus),
		"added", session.NodesAdded,
		"rejected", session.NodesRejected)
	return RunResult{Graph: graph, Session: session}, nil
}

// gatherProposals runs the three proposal agents concurrently. Any agent
// failure fails the run; planning retries on the next trigger.
func (p *Planner) gatherProposals(ctx context.Context, st state.GameState) ([]AgentProposal, error) {
	roles := []string{agent.ProposalStory, agent.ProposalCharacter, agent.ProposalWorld}
	proposals := make([]AgentProposal, len(roles))

	g, ctx := errgroup.WithContext(ctx)
	for i, role := range roles {
		g.Go(func() error {
			rt, err := agent.NewProposalAgent(ctx, p.provider, role, st.SystemType, st.PlayerPreferences, st.GameID, p.log)
			if err != nil {
				return err
			}
			prop, err := propose(ctx, rt, role, st)
			if err != nil {
				return err
			}
			proposals[i] = prop
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return proposals, nil
}

// assembleGraph folds a resolution into the existing graph according to the
// replan mode.
//
//	FULL: untriggered nodes are dropped and the future is rebuilt.
//	INCREMENTAL: existing nodes are untouched; only new ids are added.
//	ADAPTIVE: deviated nodes are abandoned, then new ids are added.
func assembleGraph(existing state.PlotGraph, res Resolution, mode state.ReplanMode, devs []Deviation) state.PlotGraph {
	graph := existing.Clone()

	switch mode {
	case state.ReplanFull:
		kept := state.NewPlotGraph()
		for id, n := range graph.Nodes {
			if n.Triggered || n.Terminal() {
				kept.Nodes[id] = n
			}
		}
		for _, e := range graph.Edges {
			if _, ok := kept.Nodes[e.From]; !ok {
				continue
			}
			if _, ok := kept.Nodes[e.To]; !ok {
				continue
			}
			kept.Edges = append(kept.Edges, e)
		}
		graph = kept
	case state.ReplanAdaptive:
		for _, d := range devs {
			graph = graph.MarkAbandoned(d.NodeID)
		}
	}

	for _, n := range res.Accepted {
		if _, exists := graph.Nodes[n.ID]; exists {
			continue
		}
		graph = graph.WithNode(n)
	}
	for _, n := range res.Alternatives {
		if _, exists := graph.Nodes[n.ID]; exists {
			continue
		}
		graph = graph.WithNode(n)
	}
	for _, e := range res.AcceptedEdges {
		graph = graph.WithEdge(e)
	}
	return graph
}
