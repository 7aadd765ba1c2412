package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loreforge/loreforge/internal/persist"
	"github.com/loreforge/loreforge/internal/state"
)

// Compile-time assertion that Store satisfies the Gateway interface.
var _ persist.Gateway = (*Store)(nil)

// Store is the PostgreSQL-backed [persist.Gateway]. It holds a single
// [pgxpool.Pool]; all operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, verifies the connection, and
// runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// SaveGame implements [persist.Gateway.SaveGame].
func (s *Store) SaveGame(ctx context.Context, st state.GameState) error {
	snapshot, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("postgres store: marshal game %s: %w", st.GameID, err)
	}

	const q = `
		INSERT INTO games (game_id, snapshot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (game_id)
		DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = now()`

	if _, err := s.pool.Exec(ctx, q, st.GameID, snapshot); err != nil {
		return fmt.Errorf("postgres store: save game %s: %w", st.GameID, err)
	}
	return nil
}

// LoadGame implements [persist.Gateway.LoadGame].
func (s *Store) LoadGame(ctx context.Context, gameID string) (state.GameState, error) {
	const q = `SELECT snapshot FROM games WHERE game_id = $1`

	var snapshot []byte
	err := s.pool.QueryRow(ctx, q, gameID).Scan(&snapshot)
	if errors.Is(err, pgx.ErrNoRows) {
		return state.GameState{}, persist.ErrNotFound
	}
	if err != nil {
		return state.GameState{}, fmt.Errorf("postgres store: load game %s: %w", gameID, err)
	}

	var st state.GameState
	if err := json.Unmarshal(snapshot, &st); err != nil {
		return state.GameState{}, fmt.Errorf("postgres store: unmarshal game %s: %w", gameID, err)
	}
	return st, nil
}

// DeleteGame implements [persist.Gateway.DeleteGame].
func (s *Store) DeleteGame(ctx context.Context, gameID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM games WHERE game_id = $1`, gameID); err != nil {
		return fmt.Errorf("postgres store: delete game %s: %w", gameID, err)
	}
	return nil
}

// ListGameIDs implements [persist.Gateway.ListGameIDs].
func (s *Store) ListGameIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT game_id FROM games ORDER BY updated_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list games: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan game ids: %w", err)
	}
	return ids, nil
}

// SaveAgentMemory implements [persist.Gateway.SaveAgentMemory].
func (s *Store) SaveAgentMemory(ctx context.Context, mem state.AgentMemory) error {
	payload, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("postgres store: marshal memory %s/%s: %w", mem.AgentID, mem.GameID, err)
	}

	const q = `
		INSERT INTO agent_memories (agent_id, game_id, memory, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (agent_id, game_id)
		DO UPDATE SET memory = EXCLUDED.memory, updated_at = now()`

	if _, err := s.pool.Exec(ctx, q, mem.AgentID, mem.GameID, payload); err != nil {
		return fmt.Errorf("postgres store: save memory %s/%s: %w", mem.AgentID, mem.GameID, err)
	}
	return nil
}

// LoadAgentMemory implements [persist.Gateway.LoadAgentMemory].
func (s *Store) LoadAgentMemory(ctx context.Context, agentID, gameID string) (state.AgentMemory, error) {
	const q = `SELECT memory FROM agent_memories WHERE agent_id = $1 AND game_id = $2`

	var payload []byte
	err := s.pool.QueryRow(ctx, q, agentID, gameID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return state.AgentMemory{}, persist.ErrNotFound
	}
	if err != nil {
		return state.AgentMemory{}, fmt.Errorf("postgres store: load memory %s/%s: %w", agentID, gameID, err)
	}

	var mem state.AgentMemory
	if err := json.Unmarshal(payload, &mem); err != nil {
		return state.AgentMemory{}, fmt.Errorf("postgres store: unmarshal memory %s/%s: %w", agentID, gameID, err)
	}
	return mem, nil
}

// DeleteAgentMemory implements [persist.Gateway.DeleteAgentMemory].
func (s *Store) DeleteAgentMemory(ctx context.Context, agentID, gameID string) error {
	const q = `DELETE FROM agent_memories WHERE agent_id = $1 AND game_id = $2`
	if _, err := s.pool.Exec(ctx, q, agentID, gameID); err != nil {
		return fmt.Errorf("postgres store: delete memory %s/%s: %w", agentID, gameID, err)
	}
	return nil
}

// AppendAgentAction implements [persist.Gateway.AppendAgentAction].
func (s *Store) AppendAgentAction(ctx context.Context, action state.AgentAction) error {
	contextJSON, err := json.Marshal(action.Context)
	if err != nil {
		return fmt.Errorf("postgres store: marshal action context: %w", err)
	}
	data := action.ActionData
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}

	const q = `
		INSERT INTO agent_actions
		    (id, agent_id, game_id, action_type, action_data, reasoning, context, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.pool.Exec(ctx, q,
		action.ID,
		action.AgentID,
		action.GameID,
		action.ActionType,
		[]byte(data),
		action.Reasoning,
		contextJSON,
		action.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres store: append action %s: %w", action.ID, err)
	}
	return nil
}

// ActionsByAgent implements [persist.Gateway.ActionsByAgent].
func (s *Store) ActionsByAgent(ctx context.Context, gameID, agentID string) ([]state.AgentAction, error) {
	const q = `
		SELECT id, agent_id, game_id, action_type, action_data, reasoning, context, timestamp
		FROM   agent_actions
		WHERE  game_id = $1 AND agent_id = $2
		ORDER  BY timestamp`

	rows, err := s.pool.Query(ctx, q, gameID, agentID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: actions by agent: %w", err)
	}
	return collectActions(rows)
}

// ActionsByType implements [persist.Gateway.ActionsByType].
func (s *Store) ActionsByType(ctx context.Context, gameID, actionType string) ([]state.AgentAction, error) {
	const q = `
		SELECT id, agent_id, game_id, action_type, action_data, reasoning, context, timestamp
		FROM   agent_actions
		WHERE  game_id = $1 AND action_type = $2
		ORDER  BY timestamp`

	rows, err := s.pool.Query(ctx, q, gameID, actionType)
	if err != nil {
		return nil, fmt.Errorf("postgres store: actions by type: %w", err)
	}
	return collectActions(rows)
}

// ActionsForGame implements [persist.Gateway.ActionsForGame].
func (s *Store) ActionsForGame(ctx context.Context, gameID string) ([]state.AgentAction, error) {
	const q = `
		SELECT id, agent_id, game_id, action_type, action_data, reasoning, context, timestamp
		FROM   agent_actions
		WHERE  game_id = $1
		ORDER  BY timestamp`

	rows, err := s.pool.Query(ctx, q, gameID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: actions for game: %w", err)
	}
	return collectActions(rows)
}

// collectActions scans pgx rows into a slice of AgentAction values.
func collectActions(rows pgx.Rows) ([]state.AgentAction, error) {
	actions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (state.AgentAction, error) {
		var (
			a           state.AgentAction
			data        []byte
			contextJSON []byte
		)
		if err := row.Scan(
			&a.ID,
			&a.AgentID,
			&a.GameID,
			&a.ActionType,
			&data,
			&a.Reasoning,
			&contextJSON,
			&a.Timestamp,
		); err != nil {
			return state.AgentAction{}, err
		}
		a.ActionData = json.RawMessage(data)
		if err := json.Unmarshal(contextJSON, &a.Context); err != nil {
			return state.AgentAction{}, err
		}
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan actions: %w", err)
	}
	return actions, nil
}

// AppendConsolidation implements [persist.Gateway.AppendConsolidation].
func (s *Store) AppendConsolidation(ctx context.Context, snap state.ConsolidationSnapshot) error {
	const q = `
		INSERT INTO consolidation_snapshots (id, agent_id, game_id, summary, messages, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, q, snap.ID, snap.AgentID, snap.GameID, snap.Summary, snap.Messages, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres store: append consolidation %s: %w", snap.ID, err)
	}
	return nil
}

// LatestConsolidation implements [persist.Gateway.LatestConsolidation].
func (s *Store) LatestConsolidation(ctx context.Context, agentID, gameID string) (state.ConsolidationSnapshot, error) {
	const q = `
		SELECT id, agent_id, game_id, summary, messages, created_at
		FROM   consolidation_snapshots
		WHERE  agent_id = $1 AND game_id = $2
		ORDER  BY created_at DESC
		LIMIT  1`

	var snap state.ConsolidationSnapshot
	err := s.pool.QueryRow(ctx, q, agentID, gameID).Scan(
		&snap.ID, &snap.AgentID, &snap.GameID, &snap.Summary, &snap.Messages, &snap.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return state.ConsolidationSnapshot{}, persist.ErrNotFound
	}
	if err != nil {
		return state.ConsolidationSnapshot{}, fmt.Errorf("postgres store: latest consolidation: %w", err)
	}
	return snap, nil
}

// ConsolidationHistory implements [persist.Gateway.ConsolidationHistory].
func (s *Store) ConsolidationHistory(ctx context.Context, agentID, gameID string, limit int) ([]state.ConsolidationSnapshot, error) {
	q := `
		SELECT id, agent_id, game_id, summary, messages, created_at
		FROM   consolidation_snapshots
		WHERE  agent_id = $1 AND game_id = $2
		ORDER  BY created_at DESC`

	args := []any{agentID, gameID}
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: consolidation history: %w", err)
	}
	snaps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (state.ConsolidationSnapshot, error) {
		var snap state.ConsolidationSnapshot
		err := row.Scan(&snap.ID, &snap.AgentID, &snap.GameID, &snap.Summary, &snap.Messages, &snap.CreatedAt)
		return snap, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan consolidations: %w", err)
	}
	return snaps, nil
}

// SavePlotGraph implements [persist.Gateway.SavePlotGraph].
func (s *Store) SavePlotGraph(ctx context.Context, gameID string, g state.PlotGraph) error {
	payload, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("postgres store: marshal plot graph %s: %w", gameID, err)
	}

	const q = `
		INSERT INTO plot_graphs (game_id, graph, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (game_id)
		DO UPDATE SET graph = EXCLUDED.graph, updated_at = now()`

	if _, err := s.pool.Exec(ctx, q, gameID, payload); err != nil {
		return fmt.Errorf("postgres store: save plot graph %s: %w", gameID, err)
	}
	return nil
}

// LoadPlotGraph implements [persist.Gateway.LoadPlotGraph].
func (s *Store) LoadPlotGraph(ctx context.Context, gameID string) (state.PlotGraph, error) {
	const q = `SELECT graph FROM plot_graphs WHERE game_id = $1`

	var payload []byte
	err := s.pool.QueryRow(ctx, q, gameID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return state.PlotGraph{}, persist.ErrNotFound
	}
	if err != nil {
		return state.PlotGraph{}, fmt.Errorf("postgres store: load plot graph %s: %w", gameID, err)
	}

	var g state.PlotGraph
	if err := json.Unmarshal(payload, &g); err != nil {
		return state.PlotGraph{}, fmt.Errorf("postgres store: unmarshal plot graph %s: %w", gameID, err)
	}
	return g, nil
}

// UpdatePlotNodeStatus implements [persist.Gateway.UpdatePlotNodeStatus].
// The graph is updated read-modify-write inside a transaction so concurrent
// status updates serialise on the row lock.
func (s *Store) UpdatePlotNodeStatus(ctx context.Context, gameID, nodeID string, status persist.PlotNodeStatus) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: begin node status update: %w", err)
	}
	defer tx.Rollback(ctx)

	var payload []byte
	err = tx.QueryRow(ctx, `SELECT graph FROM plot_graphs WHERE game_id = $1 FOR UPDATE`, gameID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return persist.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres store: lock plot graph %s: %w", gameID, err)
	}

	var g state.PlotGraph
	if err := json.Unmarshal(payload, &g); err != nil {
		return fmt.Errorf("postgres store: unmarshal plot graph %s: %w", gameID, err)
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

	updated, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("postgres store: marshal plot graph %s: %w", gameID, err)
	}
	if _, err := tx.Exec(ctx, `UPDATE plot_graphs SET graph = $2, updated_at = now() WHERE game_id = $1`, gameID, updated); err != nil {
		return fmt.Errorf("postgres store: update plot graph %s: %w", gameID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres store: commit node status update: %w", err)
	}
	return nil
}

// SavePlanningSession implements [persist.Gateway.SavePlanningSession].
func (s *Store) SavePlanningSession(ctx context.Context, session state.PlanningSession) error {
	const q = `
		INSERT INTO planning_sessions
		    (id, game_id, trigger_reason, mode, consensus, nodes_added, nodes_rejected, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, q,
		session.ID,
		session.GameID,
		session.TriggerReason,
		string(session.Mode),
		string(session.Consensus),
		session.NodesAdded,
		session.NodesRejected,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres store: save planning session %s: %w", session.ID, err)
	}
	return nil
}

// DeleteAllAgentDataForGame implements
// [persist.Gateway.DeleteAllAgentDataForGame]. All three deletes run in one
// transaction so a failure leaves the data intact.
func (s *Store) DeleteAllAgentDataForGame(ctx context.Context, gameID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: begin agent data delete: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, q := range []string{
		`DELETE FROM agent_memories WHERE game_id = $1`,
		`DELETE FROM agent_actions WHERE game_id = $1`,
		`DELETE FROM consolidation_snapshots WHERE game_id = $1`,
	} {
		if _, err := tx.Exec(ctx, q, gameID); err != nil {
			return fmt.Errorf("postgres store: delete agent data for %s: %w", gameID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres store: commit agent data delete: %w", err)
	}
	return nil
}
