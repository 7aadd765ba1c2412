// Package postgres provides a PostgreSQL-backed implementation of
// [persist.Gateway]. Structured payloads (game snapshots, agent memories,
// plot graphs) are stored as JSONB; action logs and consolidation snapshots
// live in their own append-only tables.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlGames = `
CREATE TABLE IF NOT EXISTS games (
    game_id     TEXT         PRIMARY KEY,
    snapshot    JSONB        NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlAgentMemories = `
CREATE TABLE IF NOT EXISTS agent_memories (
    agent_id    TEXT         NOT NULL,
    game_id     TEXT         NOT NULL,
    memory      JSONB        NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (agent_id, game_id)
);

CREATE INDEX IF NOT EXISTS idx_agent_memories_game_id
    ON agent_memories (game_id);
`

const ddlAgentActions = `
CREATE TABLE IF NOT EXISTS agent_actions (
    id           TEXT         PRIMARY KEY,
    agent_id     TEXT         NOT NULL,
    game_id      TEXT         NOT NULL,
    action_type  TEXT         NOT NULL,
    action_data  JSONB        NOT NULL DEFAULT '{}',
    reasoning    TEXT         NOT NULL DEFAULT '',
    context      JSONB        NOT NULL DEFAULT '{}',
    timestamp    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_agent_actions_game_agent
    ON agent_actions (game_id, agent_id, timestamp);

CREATE INDEX IF NOT EXISTS idx_agent_actions_game_type
    ON agent_actions (game_id, action_type, timestamp);
`

const ddlConsolidations = `
CREATE TABLE IF NOT EXISTS consolidation_snapshots (
    id          TEXT         PRIMARY KEY,
    agent_id    TEXT         NOT NULL,
    game_id     TEXT         NOT NULL,
    summary     TEXT         NOT NULL,
    messages    INTEGER      NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_consolidations_agent_game
    ON consolidation_snapshots (agent_id, game_id, created_at DESC);
`

const ddlPlotGraphs = `
CREATE TABLE IF NOT EXISTS plot_graphs (
    game_id     TEXT         PRIMARY KEY,
    graph       JSONB        NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlPlanningSessions = `
CREATE TABLE IF NOT EXISTS planning_sessions (
    id              TEXT         PRIMARY KEY,
    game_id         TEXT         NOT NULL,
    trigger_reason  TEXT         NOT NULL,
    mode            TEXT         NOT NULL,
    consensus       TEXT         NOT NULL DEFAULT '',
    nodes_added     INTEGER      NOT NULL DEFAULT 0,
    nodes_rejected  INTEGER      NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_planning_sessions_game_id
    ON planning_sessions (game_id, created_at);
`

// Migrate creates all required tables and indexes. It is idempotent and runs
// automatically from [NewStore].
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	ddls := []struct {
		name string
		sql  string
	}{
		{"games", ddlGames},
		{"agent_memories", ddlAgentMemories},
		{"agent_actions", ddlAgentActions},
		{"consolidation_snapshots", ddlConsolidations},
		{"plot_graphs", ddlPlotGraphs},
		{"planning_sessions", ddlPlanningSessions},
	}
	for _, d := range ddls {
		if _, err := pool.Exec(ctx, d.sql); err != nil {
			return fmt.Errorf("postgres store: migrate %s: %w", d.name, err)
		}
	}
	return nil
}
