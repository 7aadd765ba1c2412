package planner

import (
	"sort"

	"github.com/loreforge/loreforge/internal/state"
)

// alternativeThreshold: rejected nodes at or above this confidence are kept
// as branch-1 alternatives instead of being discarded.
const alternativeThreshold = 0.7

// Resolution is the outcome of consensus over a proposal set.
// Totality: Accepted ∪ Rejected equals the union of all proposed nodes;
// Alternatives is the subset of Rejected retained at branch 1.
type Resolution struct {
	Accepted      []state.PlotNode
	AcceptedEdges []state.PlotEdge
	Rejected      []state.PlotNode
	Alternatives  []state.PlotNode
	Consensus     state.ConsensusType
	// Confidence maps each proposed node id to its average confidence
	// across the proposals that rated it.
	Confidence map[string]float64
}

// ConsensusEngine resolves conflicting plot-node proposals.
type ConsensusEngine struct{}

// ResolveProposals merges the proposal set. Nodes conflict when they share
// an exact position, when they share a beat type with trigger levels fewer
// than five apart, or when their involved-NPC sets intersect. Within each
// conflict group the node with the highest average confidence wins.
func (ConsensusEngine) ResolveProposals(proposals []AgentProposal) Resolution {
	res := Resolution{Confidence: make(map[string]float64)}

	// Collect distinct nodes and their ratings, keeping first-seen order
	// deterministic.
	var order []string
	nodes := make(map[string]state.PlotNode)
	ratings := make(map[string][]float64)
	for _, p := range proposals {
		for _, n := range p.ProposedNodes {
			if _, seen := nodes[n.ID]; !seen {
				nodes[n.ID] = n
				order = append(order, n.ID)
			}
		}
		for id, conf := range p.NodeRatings {
			ratings[id] = append(ratings[id], conf)
		}
	}
	for id, rs := range ratings {
		sum := 0.0
		for _, r := range rs {
			sum += r
		}
		res.Confidence[id] = sum / float64(len(rs))
	}

	// Group by tier, then find conflict components within each tier.
	byTier := make(map[int][]string)
	for _, id := range order {
		t := nodes[id].Position.Tier
		byTier[t] = append(byTier[t], id)
	}
	tiers := make([]int, 0, len(byTier))
	for t := range byTier {
		tiers = append(tiers, t)
	}
	sort.Ints(tiers)

	rejectedSet := make(map[string]bool)
	var margins []float64

	for _, tier := range tiers {
		ids := byTier[tier]
		components := conflictComponents(ids, nodes)
		for _, comp := range components {
			if len(comp) < 2 {
				continue
			}
			// Highest average confidence wins the component.
			winner := comp[0]
			for _, id := range comp[1:] {
				if res.Confidence[id] > res.Confidence[winner] {
					winner = id
				}
			}
			runnerUp := 0.0
			for _, id := range comp {
				if id == winner {
					continue
				}
				rejectedSet[id] = true
				if res.Confidence[id] > runnerUp {
					runnerUp = res.Confidence[id]
				}
			}
			margins = append(margins, res.Confidence[winner]-runnerUp)
		}
	}

	for _, id := range order {
		n := nodes[id]
		if rejectedSet[id] {
			res.Rejected = append(res.Rejected, n)
			if res.Confidence[id] >= alternativeThreshold {
				alt := n
				alt.Position.Branch = 1
				res.Alternatives = append(res.Alternatives, alt)
			}
			continue
		}
		res.Accepted = append(res.Accepted, n)
	}

	// Edges survive when both endpoints survive (accepted or alternative).
	kept := make(map[string]bool, len(res.Accepted)+len(res.Alternatives))
	for _, n := range res.Accepted {
		kept[n.ID] = true
	}
	for _, n := range res.Alternatives {
		kept[n.ID] = true
	}
	seenEdge := make(map[state.PlotEdge]bool)
	for _, p := range proposals {
		for _, e := range p.ProposedEdges {
			if kept[e.From] && kept[e.To] && !seenEdge[e] {
				seenEdge[e] = true
				res.AcceptedEdges = append(res.AcceptedEdges, e)
			}
		}
	}

	res.Consensus = classify(margins)
	return res
}

// conflict reports whether two nodes cannot coexist.
func conflict(a, b state.PlotNode) bool {
	if a.Position == b.Position {
		return true
	}
	if a.Beat.Type == b.Beat.Type {
		d := a.Beat.TriggerLevel - b.Beat.TriggerLevel
		if d < 0 {
			d = -d
		}
		if d < 5 {
			return true
		}
	}
	for _, an := range a.Beat.InvolvedNPCs {
		for _, bn := range b.Beat.InvolvedNPCs {
			if an == bn {
				return true
			}
		}
	}
	return false
}

// conflictComponents partitions ids into connected components of the
// pairwise conflict relation.
func conflictComponents(ids []string, nodes map[string]state.PlotNode) [][]string {
	parent := make(map[string]string, len(ids))
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	for _, id := range ids {
		parent[id] = id
	}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if conflict(nodes[ids[i]], nodes[ids[j]]) {
				parent[find(ids[i])] = find(ids[j])
			}
		}
	}
	groups := make(map[string][]string)
	for _, id := range ids {
		root := find(id)
		groups[root] = append(groups[root], id)
	}
	out := make([][]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// classify maps the average winning margin to a consensus type. No
// conflicts at all means the agents were unanimous. The MAJORITY bound is
// inclusive so a margin of exactly 0.3 classifies as MAJORITY.
func classify(margins []float64) state.ConsensusType {
	if len(margins) == 0 {
		return state.ConsensusUnanimous
	}
	avg := 0.0
	for _, m := range margins {
		avg += m
	}
	avg /= float64(len(margins))

	switch {
	case avg > 0.5:
		return state.ConsensusStrongMajority
	case avg >= 0.3:
		return state.ConsensusMajority
	case avg > 0.1:
		return state.ConsensusWeakMajority
	default:
		return state.ConsensusSplit
	}
}
