package planner

import "github.com/loreforge/loreforge/internal/state"

// beatTypeWeights rank how much narrative pull each beat type carries when
// choosing which ready node to surface next.
var beatTypeWeights = map[state.BeatType]float64{
	state.BeatRevelation:     0.9,
	state.BeatTransformation: 0.85,
	state.BeatConfrontation:  0.8,
	state.BeatChoice:         0.75,
	state.BeatBetrayal:       0.7,
	state.BeatLoss:           0.65,
	state.BeatVictory:        0.6,
	state.BeatEscalation:     0.55,
	state.BeatReunion:        0.5,
}

// NodePriority scores a node for surfacing. Confidence dominates, beat type
// and level proximity refine, NPC availability breaks ties.
func NodePriority(n state.PlotNode, confidence float64, st state.GameState) float64 {
	return 0.4*confidence +
		0.3*beatTypeWeights[n.Beat.Type] +
		0.2*levelProximity(n.Beat.TriggerLevel, st.CharacterSheet.Level) +
		0.1*npcAvailability(n, st)
}

// levelProximity is 1 at the trigger level and decays linearly to 0 five or
// more levels away.
func levelProximity(triggerLevel, playerLevel int) float64 {
	d := triggerLevel - playerLevel
	if d < 0 {
		d = -d
	}
	if d >= 5 {
		return 0
	}
	return 1 - float64(d)/5
}

// npcAvailability is the fraction of the node's involved NPCs that exist in
// the game state, or 1 when the node involves none.
func npcAvailability(n state.PlotNode, st state.GameState) float64 {
	if len(n.Beat.InvolvedNPCs) == 0 {
		return 1
	}
	present := 0
	for _, name := range n.Beat.InvolvedNPCs {
		if _, ok := st.NPCByName(name); ok {
			present++
		}
	}
	return float64(present) / float64(len(n.Beat.InvolvedNPCs))
}
