// Package planner maintains the plot graph in the background: three
// proposal agents draft future beats in parallel, a consensus engine
// resolves their conflicts, and the assembled graph is persisted through
// the gateway. The planner never mutates GameState; it reads immutable
// snapshots and writes only the plot graph and its audit log.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/loreforge/loreforge/internal/agent"
	"github.com/loreforge/loreforge/internal/state"
)

// AgentProposal is one proposal agent's contribution.
type AgentProposal struct {
	Role          string
	ProposedNodes []state.PlotNode
	ProposedEdges []state.PlotEdge
	// NodeRatings maps node id to this agent's confidence in [0, 1].
	NodeRatings map[string]float64
	Reasoning   string
}

// wire types for the proposal reply.
type proposalWire struct {
	ProposedNodes []nodeWire `json:"proposedNodes"`
	ProposedEdges []edgeWire `json:"proposedEdges"`
	Reasoning     string     `json:"reasoning"`
}

type nodeWire struct {
	ID                string             `json:"id"`
	BeatType          string             `json:"beatType"`
	Description       string             `json:"description"`
	TriggerLevel      int                `json:"triggerLevel"`
	InvolvedNPCs      []string           `json:"involvedNpcs"`
	InvolvedLocations []string           `json:"involvedLocations"`
	Foreshadowing     string             `json:"foreshadowing"`
	Position          state.PlotPosition `json:"position"`
	Confidence        float64            `json:"confidence"`
}

type edgeWire struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// parseProposal decodes a proposal reply. Malformed nodes are dropped
// rather than failing the run; an unparseable reply yields an empty
// proposal.
func parseProposal(role, reply string) AgentProposal {
	prop := AgentProposal{Role: role, NodeRatings: make(map[string]float64)}

	raw, ok := firstJSONObject(reply)
	if !ok {
		return prop
	}
	var wire proposalWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return prop
	}
	prop.Reasoning = wire.Reasoning

	for _, n := range wire.ProposedNodes {
		beat := state.BeatType(strings.ToUpper(strings.TrimSpace(n.BeatType)))
		if !beat.IsValid() || n.Description == "" {
			continue
		}
		id := n.ID
		if id == "" {
			id = "plot_" + uuid.NewString()
		}
		conf := n.Confidence
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
		prop.ProposedNodes = append(prop.ProposedNodes, state.PlotNode{
			ID: id,
			Beat: state.Beat{
				Type:              beat,
				Description:       n.Description,
				TriggerLevel:      n.TriggerLevel,
				InvolvedNPCs:      n.InvolvedNPCs,
				InvolvedLocations: n.InvolvedLocations,
				Foreshadowing:     n.Foreshadowing,
			},
			Position: n.Position,
		})
		prop.NodeRatings[id] = conf
	}
	for _, e := range wire.ProposedEdges {
		t := state.EdgeType(strings.ToUpper(strings.TrimSpace(e.Type)))
		switch t {
		case state.EdgeLeadsTo, state.EdgeBranchesTo, state.EdgeForeshadows:
		default:
			t = state.EdgeLeadsTo
		}
		if e.From == "" || e.To == "" {
			continue
		}
		prop.ProposedEdges = append(prop.ProposedEdges, state.PlotEdge{From: e.From, To: e.To, Type: t})
	}
	return prop
}

// firstJSONObject returns the first balanced top-level {…} substring.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// propose runs one proposal agent over the state snapshot.
func propose(ctx context.Context, rt *agent.Runtime, role string, st state.GameState) (AgentProposal, error) {
	reply, err := rt.Send(ctx, planningRequest(st))
	if err != nil {
		return AgentProposal{}, fmt.Errorf("planner: %s proposal: %w", strings.ToLower(role), err)
	}
	return parseProposal(role, reply), nil
}

// planningRequest summarises the snapshot for the proposal agents.
func planningRequest(st state.GameState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Player %s is level %d (grade %s) at %s.\n",
		st.PlayerName, st.CharacterSheet.Level, st.CharacterSheet.Grade, st.CurrentLocationID)

	if len(st.NPCs) > 0 {
		b.WriteString("Known NPCs:\n")
		for _, n := range st.NPCs {
			fmt.Fprintf(&b, "- %s (%s, relationship %+d)\n", n.Name, n.Archetype, n.Relationship)
		}
	}
	if active := st.PlotGraph.ActiveNodes(); len(active) > 0 {
		b.WriteString("Active plot threads:\n")
		for _, n := range active {
			fmt.Fprintf(&b, "- [%s] %s\n", n.Beat.Type, n.Beat.Description)
		}
	}
	fmt.Fprintf(&b, "Plot completion: %.0f%%. Propose 2-4 future beats reachable within the next ten levels.\n",
		st.PlotGraph.CompletionRatio()*100)
	return b.String()
}
