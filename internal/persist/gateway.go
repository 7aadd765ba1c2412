// Package persist defines the persistence gateway for the narrative core:
// game snapshots, per-agent conversation memory, append-only action logs,
// consolidation snapshots, and the plot graph with its planning-session
// audit trail.
//
// The interface is public so that alternative storage backends (Postgres,
// in-memory, …) can be supplied without depending on orchestrator internals.
// Every implementation must be safe for concurrent use.
package persist

import (
	"context"
	"errors"

	"github.com/loreforge/loreforge/internal/state"
)

// ErrNotFound is returned when the requested record does not exist. Callers
// match it with errors.Is.
var ErrNotFound = errors.New("persist: not found")

// PlotNodeStatus names a node-status transition applied directly in storage.
type PlotNodeStatus string

const (
	NodeTriggered PlotNodeStatus = "TRIGGERED"
	NodeCompleted PlotNodeStatus = "COMPLETED"
	NodeAbandoned PlotNodeStatus = "ABANDONED"
)

// Gateway is the full persistence surface of the narrative core.
type Gateway interface {
	// SaveGame upserts the complete game snapshot.
	SaveGame(ctx context.Context, st state.GameState) error

	// LoadGame returns the snapshot for gameID, or [ErrNotFound].
	LoadGame(ctx context.Context, gameID string) (state.GameState, error)

	// DeleteGame removes the snapshot for gameID. Deleting a missing game
	// is not an error.
	DeleteGame(ctx context.Context, gameID string) error

	// ListGameIDs returns the ids of all stored games.
	ListGameIDs(ctx context.Context) ([]string, error)

	// SaveAgentMemory upserts the memory keyed by (AgentID, GameID).
	SaveAgentMemory(ctx context.Context, mem state.AgentMemory) error

	// LoadAgentMemory returns the memory for (agentID, gameID), or
	// [ErrNotFound].
	LoadAgentMemory(ctx context.Context, agentID, gameID string) (state.AgentMemory, error)

	// DeleteAgentMemory removes the memory for (agentID, gameID).
	DeleteAgentMemory(ctx context.Context, agentID, gameID string) error

	// AppendAgentAction appends one action-log record.
	AppendAgentAction(ctx context.Context, action state.AgentAction) error

	// ActionsByAgent returns an agent's actions for a game, oldest first.
	ActionsByAgent(ctx context.Context, gameID, agentID string) ([]state.AgentAction, error)

	// ActionsByType returns a game's actions of one type, oldest first.
	ActionsByType(ctx context.Context, gameID, actionType string) ([]state.AgentAction, error)

	// ActionsForGame returns every action of a game, oldest first.
	ActionsForGame(ctx context.Context, gameID string) ([]state.AgentAction, error)

	// AppendConsolidation appends one consolidation snapshot.
	AppendConsolidation(ctx context.Context, snap state.ConsolidationSnapshot) error

	// LatestConsolidation returns the newest snapshot for (agentID, gameID),
	// or [ErrNotFound].
	LatestConsolidation(ctx context.Context, agentID, gameID string) (state.ConsolidationSnapshot, error)

	// ConsolidationHistory returns up to limit snapshots, newest first.
	ConsolidationHistory(ctx context.Context, agentID, gameID string, limit int) ([]state.ConsolidationSnapshot, error)

	// SavePlotGraph upserts the plot graph for gameID.
	SavePlotGraph(ctx context.Context, gameID string, g state.PlotGraph) error

	// LoadPlotGraph returns the plot graph for gameID, or [ErrNotFound].
	LoadPlotGraph(ctx context.Context, gameID string) (state.PlotGraph, error)

	// UpdatePlotNodeStatus applies a node-status transition in storage.
	// Unknown nodes return [ErrNotFound]; transitions follow the same
	// idempotence rules as [state.PlotGraph].
	UpdatePlotNodeStatus(ctx context.Context, gameID, nodeID string, status PlotNodeStatus) error

	// SavePlanningSession appends one planner audit record.
	SavePlanningSession(ctx context.Context, session state.PlanningSession) error

	// DeleteAllAgentDataForGame removes memories, actions, and
	// consolidation snapshots for a game in one transaction.
	DeleteAllAgentDataForGame(ctx context.Context, gameID string) error
}
