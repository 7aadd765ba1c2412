package state

// BeatType classifies a planned narrative moment.
type BeatType string

const (
	BeatRevelation     BeatType = "REVELATION"
	BeatConfrontation  BeatType = "CONFRONTATION"
	BeatBetrayal       BeatType = "BETRAYAL"
	BeatTransformation BeatType = "TRANSFORMATION"
	BeatChoice         BeatType = "CHOICE"
	BeatLoss           BeatType = "LOSS"
	BeatVictory        BeatType = "VICTORY"
	BeatReunion        BeatType = "REUNION"
	BeatEscalation     BeatType = "ESCALATION"
)

// IsValid reports whether b is a recognised beat type.
func (b BeatType) IsValid() bool {
	switch b {
	case BeatRevelation, BeatConfrontation, BeatBetrayal, BeatTransformation,
		BeatChoice, BeatLoss, BeatVictory, BeatReunion, BeatEscalation:
		return true
	}
	return false
}

// Beat is the narrative payload of a plot node.
type Beat struct {
	Type              BeatType `json:"type"`
	Description       string   `json:"description"`
	TriggerLevel      int      `json:"triggerLevel"`
	InvolvedNPCs      []string `json:"involvedNpcs,omitempty"`
	InvolvedLocations []string `json:"involvedLocations,omitempty"`
	Foreshadowing     string   `json:"foreshadowing,omitempty"`
}

// PlotPosition uniquely places a node in the graph: tier is the coarse story
// phase, sequence orders nodes within a tier, branch 0 is the main line and
// higher branches are alternatives.
type PlotPosition struct {
	Tier     int `json:"tier"`
	Sequence int `json:"sequence"`
	Branch   int `json:"branch"`
}

// PlotNode is one planned story moment.
// Invariants: at most one of Completed/Abandoned is set; Completed implies
// Triggered.
type PlotNode struct {
	ID        string       `json:"id"`
	Beat      Beat         `json:"beat"`
	Position  PlotPosition `json:"position"`
	Triggered bool         `json:"triggered"`
	Completed bool         `json:"completed"`
	Abandoned bool         `json:"abandoned"`
}

// Terminal reports whether the node has reached a terminal status.
func (n PlotNode) Terminal() bool {
	return n.Completed || n.Abandoned
}

// EdgeType labels a plot-graph edge.
type EdgeType string

const (
	EdgeLeadsTo    EdgeType = "LEADS_TO"
	EdgeBranchesTo EdgeType = "BRANCHES_TO"
	EdgeForeshadows EdgeType = "FORESHADOWS"
)

// PlotEdge is a directed, typed connection between two plot nodes.
type PlotEdge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Type EdgeType `json:"type"`
}

// PlotGraph is the directed graph of future story beats maintained by the
// background planner. Status transitions are idempotent.
type PlotGraph struct {
	Nodes map[string]PlotNode `json:"nodes"`
	Edges []PlotEdge          `json:"edges"`
}

// NewPlotGraph returns an empty graph.
func NewPlotGraph() PlotGraph {
	return PlotGraph{Nodes: make(map[string]PlotNode)}
}

// Clone returns a deep copy of g.
func (g PlotGraph) Clone() PlotGraph {
	cp := PlotGraph{
		Nodes: make(map[string]PlotNode, len(g.Nodes)),
		Edges: append([]PlotEdge(nil), g.Edges...),
	}
	for id, n := range g.Nodes {
		n.Beat.InvolvedNPCs = append([]string(nil), n.Beat.InvolvedNPCs...)
		n.Beat.InvolvedLocations = append([]string(nil), n.Beat.InvolvedLocations...)
		cp.Nodes[id] = n
	}
	return cp
}

// WithNode returns g with node added or replaced.
func (g PlotGraph) WithNode(n PlotNode) PlotGraph {
	cp := g.Clone()
	cp.Nodes[n.ID] = n
	return cp
}

// WithEdge returns g with the edge appended. Edges referencing unknown nodes
// are dropped.
func (g PlotGraph) WithEdge(e PlotEdge) PlotGraph {
	if _, ok := g.Nodes[e.From]; !ok {
		return g
	}
	if _, ok := g.Nodes[e.To]; !ok {
		return g
	}
	cp := g.Clone()
	cp.Edges = append(cp.Edges, e)
	return cp
}

// MarkTriggered returns g with the node flagged triggered. Idempotent;
// unknown ids and terminal nodes are left unchanged.
func (g PlotGraph) MarkTriggered(id string) PlotGraph {
	n, ok := g.Nodes[id]
	if !ok || n.Triggered || n.Terminal() {
		return g
	}
	n.Triggered = true
	return g.WithNode(n)
}

// MarkCompleted returns g with the node flagged completed (and therefore
// triggered). Idempotent; abandoned nodes are left unchanged.
func (g PlotGraph) MarkCompleted(id string) PlotGraph {
	n, ok := g.Nodes[id]
	if !ok || n.Completed || n.Abandoned {
		return g
	}
	n.Triggered = true
	n.Completed = true
	return g.WithNode(n)
}

// MarkAbandoned returns g with the node flagged abandoned. Idempotent;
// completed nodes are left unchanged.
func (g PlotGraph) MarkAbandoned(id string) PlotGraph {
	n, ok := g.Nodes[id]
	if !ok || n.Abandoned || n.Completed {
		return g
	}
	n.Abandoned = true
	return g.WithNode(n)
}

// ReadyNodes returns non-terminal, untriggered nodes whose trigger level is
// at or below playerLevel.
func (g PlotGraph) ReadyNodes(playerLevel int) []PlotNode {
	var ready []PlotNode
	for _, n := range g.Nodes {
		if !n.Triggered && !n.Terminal() && n.Beat.TriggerLevel <= playerLevel {
			ready = append(ready, n)
		}
	}
	return ready
}

// CompletionRatio returns the fraction of nodes completed, or 0 for an empty
// graph.
func (g PlotGraph) CompletionRatio() float64 {
	if len(g.Nodes) == 0 {
		return 0
	}
	done := 0
	for _, n := range g.Nodes {
		if n.Completed {
			done++
		}
	}
	return float64(done) / float64(len(g.Nodes))
}

// ActiveNodes returns nodes that are triggered but not yet terminal.
func (g PlotGraph) ActiveNodes() []PlotNode {
	var active []PlotNode
	for _, n := range g.Nodes {
		if n.Triggered && !n.Terminal() {
			active = append(active, n)
		}
	}
	return active
}

// CheckInvariants verifies node status and edge referential integrity.
func (g PlotGraph) CheckInvariants() error {
	for id, n := range g.Nodes {
		if n.Completed && n.Abandoned {
			return &InvariantError{Msg: "plot node " + id + " both completed and abandoned"}
		}
		if n.Completed && !n.Triggered {
			return &InvariantError{Msg: "plot node " + id + " completed without being triggered"}
		}
	}
	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.From]; !ok {
			return &InvariantError{Msg: "plot edge references unknown node " + e.From}
		}
		if _, ok := g.Nodes[e.To]; !ok {
			return &InvariantError{Msg: "plot edge references unknown node " + e.To}
		}
	}
	return nil
}
