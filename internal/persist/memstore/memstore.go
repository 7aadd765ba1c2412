// Package memstore provides a thread-safe, in-memory implementation of
// [persist.Gateway], suitable for tests and offline play.
package memstore

import (
	"context"
	"sync"

	"github.com/loreforge/loreforge/internal/persist"
	"github.com/loreforge/loreforge/internal/state"
)

// Compile-time assertion that Store satisfies the Gateway interface.
var _ persist.Gateway = (*Store)(nil)

type memoryKey struct {
	agentID string
	gameID  string
}

// Store is an in-memory [persist.Gateway].
type Store struct {
	mu             sync.RWMutex
	games          map[string]state.GameState
	memories       map[memoryKey]state.AgentMemory
	actions        []state.AgentAction
	consolidations []state.ConsolidationSnapshot
	plotGraphs     map[string]state.PlotGraph
	sessions       []state.PlanningSession
}

// NewStore returns an initialised [Store].
func NewStore() *Store {
	return &Store{
		games:      make(map[string]state.GameState),
		memories:   make(map[memoryKey]state.AgentMemory),
		plotGraphs: make(map[string]state.PlotGraph),
	}
}

// SaveGame implements [persist.Gateway.SaveGame].
func (s *Store) SaveGame(ctx context.Context, st state.GameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[st.GameID] = st.Clone()
	return nil
}

// LoadGame implements [persist.Gateway.LoadGame].
func (s *Store) LoadGame(ctx context.Context, gameID string) (state.GameState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.games[gameID]
	if !ok {
		return state.GameState{}, persist.ErrNotFound
	}
	return st.Clone(), nil
}

// DeleteGame implements [persist.Gateway.DeleteGame].
func (s *Store) DeleteGame(ctx context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, gameID)
	delete(s.plotGraphs, gameID)
	return nil
}

// ListGameIDs implements [persist.Gateway.ListGameIDs].
func (s *Store) ListGameIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.games))
	for id := range s.games {
		ids = append(ids, id)
	}
	return ids, nil
}

// SaveAgentMemory implements [persist.Gateway.SaveAgentMemory].
func (s *Store) SaveAgentMemory(ctx context.Context, mem state.AgentMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories[memoryKey{mem.AgentID, mem.GameID}] = mem.Clone()
	return nil
}

// LoadAgentMemory implements [persist.Gateway.LoadAgentMemory].
func (s *Store) LoadAgentMemory(ctx context.Context, agentID, gameID string) (state.AgentMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mem, ok := s.memories[memoryKey{agentID, gameID}]
	if !ok {
		return state.AgentMemory{}, persist.ErrNotFound
	}
	return mem.Clone(), nil
}

// DeleteAgentMemory implements [persist.Gateway.DeleteAgentMemory].
func (s *Store) DeleteAgentMemory(ctx context.Context, agentID, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.memories, memoryKey{agentID, gameID})
	return nil
}

// AppendAgentAction implements [persist.Gateway.AppendAgentAction].
func (s *Store) AppendAgentAction(ctx context.Context, action state.AgentAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
	return nil
}

// ActionsByAgent implements [persist.Gateway.ActionsByAgent].
func (s *Store) ActionsByAgent(ctx context.Context, gameID, agentID string) ([]state.AgentAction, error) {
	return s.filterActions(func(a state.AgentAction) bool {
		return a.GameID == gameID && a.AgentID == agentID
	})
}

// ActionsByType implements [persist.Gateway.ActionsByType].
func (s *Store) ActionsByType(ctx context.Context, gameID, actionType string) ([]state.AgentAction, error) {
	return s.filterActions(func(a state.AgentAction) bool {
		return a.GameID == gameID && a.ActionType == actionType
	})
}

// ActionsForGame implements [persist.Gateway.ActionsForGame].
func (s *Store) ActionsForGame(ctx context.Context, gameID string) ([]state.AgentAction, error) {
	return s.filterActions(func(a state.AgentAction) bool {
		return a.GameID == gameID
	})
}

func (s *Store) filterActions(keep func(state.AgentAction) bool) ([]state.AgentAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []state.AgentAction
	for _, a := range s.actions {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

// AppendConsolidation implements [persist.Gateway.AppendConsolidation].
func (s *Store) AppendConsolidation(ctx context.Context, snap state.ConsolidationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consolidations = append(s.consolidations, snap)
	return nil
}

// LatestConsolidation implements [persist.Gateway.LatestConsolidation].
func (s *Store) LatestConsolidation(ctx context.Context, agentID, gameID string) (state.ConsolidationSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.consolidations) - 1; i >= 0; i-- {
		c := s.consolidations[i]
		if c.AgentID == agentID && c.GameID == gameID {
			return c, nil
		}
	}
	return state.ConsolidationSnapshot{}, persist.ErrNotFound
}

// ConsolidationHistory implements [persist.Gateway.ConsolidationHistory].
func (s *Store) ConsolidationHistory(ctx context.Context, agentID, gameID string, limit int) ([]state.ConsolidationSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []state.ConsolidationSnapshot
	for i := len(s.consolidations) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		c := s.consolidations[i]
		if c.AgentID == agentID && c.GameID == gameID {
			out = append(out, c)
		}
	}
	return out, nil
}

// SavePlotGraph implements [persist.Gateway.SavePlotGraph].
func (s *Store) SavePlotGraph(ctx context.Context, gameID string, g state.PlotGraph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plotGraphs[gameID] = g.Clone()
	return nil
}

// LoadPlotGraph implements [persist.Gateway.LoadPlotGraph].
func (s *Store) LoadPlotGraph(ctx context.Context, gameID string) (state.PlotGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.plotGraphs[gameID]
	if !ok {
		return state.PlotGraph{}, persist.ErrNotFound
	}
	return g.Clone(), nil
}

// UpdatePlotNodeStatus implements [persist.Gateway.UpdatePlotNodeStatus].
func (s *Store) UpdatePlotNodeStatus(ctx context.Context, gameID, nodeID string, status persist.PlotNodeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.plotGraphs[gameID]
	if !ok {
		return persist.ErrNotFound
	}
	if _, ok := g.Nodes[nodeID]; !ok {
		return persist.ErrNotFound
	}
	switch status {
	case persist.NodeTriggered:
		g = g.MarkTriggered(nodeID)
	case persist.NodeCompleted:
		g = g.MarkCompleted(nodeID)
	case persist.NodeAbandoned:
		g = g.MarkAbandoned(nodeID)
	}
	s.plotGraphs[gameID] = g
	return nil
}

// SavePlanningSession implements [persist.Gateway.SavePlanningSession].
func (s *Store) SavePlanningSession(ctx context.Context, session state.PlanningSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, session)
	return nil
}

// PlanningSessions returns all recorded planner runs for a game, oldest
// first. Not part of [persist.Gateway]; used by tests.
func (s *Store) PlanningSessions(gameID string) []state.PlanningSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []state.PlanningSession
	for _, ps := range s.sessions {
		if ps.GameID == gameID {
			out = append(out, ps)
		}
	}
	return out
}

// DeleteAllAgentDataForGame implements
// [persist.Gateway.DeleteAllAgentDataForGame].
func (s *Store) DeleteAllAgentDataForGame(ctx context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.memories {
		if k.gameID == gameID {
			delete(s.memories, k)
		}
	}
	kept := s.actions[:0]
	for _, a := range s.actions {
		if a.GameID != gameID {
			kept = append(kept, a)
		}
	}
	s.actions = kept
	keptSnaps := s.consolidations[:0]
	for _, c := range s.consolidations {
		if c.GameID != gameID {
			keptSnaps = append(keptSnaps, c)
		}
	}
	s.consolidations = keptSnaps
	return nil
}
