package state

import "time"

// ReplanMode selects how much of the existing plot graph a planner run may
// rework.
type ReplanMode string

const (
	// ReplanFull discards untriggered nodes and rebuilds ahead of the player.
	ReplanFull ReplanMode = "FULL"

	// ReplanIncremental only adds nodes; existing nodes are untouched.
	ReplanIncremental ReplanMode = "INCREMENTAL"

	// ReplanAdaptive abandons invalidated nodes, then extends.
	ReplanAdaptive ReplanMode = "ADAPTIVE"
)

// ConsensusType classifies how decisively the proposal agents agreed.
type ConsensusType string

const (
	ConsensusUnanimous      ConsensusType = "UNANIMOUS"
	ConsensusStrongMajority ConsensusType = "STRONG_MAJORITY"
	ConsensusMajority       ConsensusType = "MAJORITY"
	ConsensusWeakMajority   ConsensusType = "WEAK_MAJORITY"
	ConsensusSplit          ConsensusType = "SPLIT"
)

// PlanningSession records one background planner run for audit.
type PlanningSession struct {
	ID            string        `json:"id"`
	GameID        string        `json:"gameId"`
	TriggerReason string        `json:"triggerReason"`
	Mode          ReplanMode    `json:"mode"`
	Consensus     ConsensusType `json:"consensus"`
	NodesAdded    int           `json:"nodesAdded"`
	NodesRejected int           `json:"nodesRejected"`
	CreatedAt     time.Time     `json:"createdAt"`
}
