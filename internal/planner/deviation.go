package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/loreforge/loreforge/internal/state"
)

// Severity grades how badly the story has drifted from the plot graph.
type Severity string

const (
	SeverityMinor    Severity = "MINOR"
	SeverityModerate Severity = "MODERATE"
	SeverityMajor    Severity = "MAJOR"
)

// Deviation records one active plot node the story can no longer reach.
type Deviation struct {
	NodeID   string
	Reason   string
	Severity Severity
}

// hostileCues in the last turn's narration mark an involved NPC as no longer
// available to the planned beat.
var hostileCues = []string{"killed", "slain", "dead", "enemy", "hostile", "betrayed you"}

// DetectDeviations checks every active node against the state snapshot and
// the last turn's narration. A node deviates when an involved NPC is missing
// from the world, or when the narration describes one as killed or turned
// hostile. All deviations in a batch share one severity, graded by the
// fraction of active nodes invalidated.
func DetectDeviations(st state.GameState, lastTurn string) []Deviation {
	active := st.PlotGraph.ActiveNodes()
	if len(active) == 0 {
		return nil
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	turn := strings.ToLower(lastTurn)

	var devs []Deviation
	for _, n := range active {
		for _, name := range n.Beat.InvolvedNPCs {
			if _, ok := st.NPCByName(name); !ok {
				devs = append(devs, Deviation{
					NodeID: n.ID,
					Reason: fmt.Sprintf("involved NPC %q no longer exists", name),
				})
				break
			}
			if cue := hostileCue(turn, name); cue != "" {
				devs = append(devs, Deviation{
					NodeID: n.ID,
					Reason: fmt.Sprintf("last turn describes %q as %s", name, cue),
				})
				break
			}
		}
	}
	if len(devs) == 0 {
		return nil
	}

	sev := gradeSeverity(len(devs), len(active))
	for i := range devs {
		devs[i].Severity = sev
	}
	return devs
}

// hostileCue returns the matched cue when the narration mentions the NPC
// near one of the hostile cues, or "".
func hostileCue(turn, npcName string) string {
	name := strings.ToLower(npcName)
	if !strings.Contains(turn, name) {
		return ""
	}
	for _, cue := range hostileCues {
		if strings.Contains(turn, cue) {
			return cue
		}
	}
	return ""
}

// gradeSeverity maps the invalidated fraction of active nodes to a severity:
// half or more is MAJOR, a quarter or more MODERATE, anything else MINOR.
func gradeSeverity(invalid, active int) Severity {
	frac := float64(invalid) / float64(active)
	switch {
	case frac >= 0.5:
		return SeverityMajor
	case frac >= 0.25:
		return SeverityModerate
	default:
		return SeverityMinor
	}
}

// ReplanModeFor maps deviation severity to the replan mode a triggered run
// should use.
func ReplanModeFor(sev Severity) state.ReplanMode {
	switch sev {
	case SeverityMajor:
		return state.ReplanFull
	case SeverityModerate:
		return state.ReplanAdaptive
	default:
		return state.ReplanIncremental
	}
}
