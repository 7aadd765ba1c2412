// Package agent wraps an LLM provider with per-agent conversation memory,
// transparent persistence, consolidation, and action logging. Each Runtime
// owns exactly one [state.AgentMemory]; consolidation is serialised within
// an agent by the single-threaded turn model.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loreforge/loreforge/internal/persist"
	"github.com/loreforge/loreforge/internal/state"
	"github.com/loreforge/loreforge/pkg/llm"
)

// Limits bounds an agent's memory behaviour. Zero values fall back to the
// documented defaults.
type Limits struct {
	// TokenLimit is the estimated-token ceiling before consolidation is
	// flagged. Default 40000.
	TokenLimit int

	// KeepRecent is how many trailing messages consolidation preserves
	// verbatim. Default 20.
	KeepRecent int

	// AutoSaveInterval saves memory through the gateway every N
	// interactions. Default 3.
	AutoSaveInterval int

	// EnableActionLogging persists structured [state.AgentAction] records.
	// Default true (set via [DefaultLimits]).
	EnableActionLogging bool
}

// DefaultLimits returns the documented default limits.
func DefaultLimits() Limits {
	return Limits{
		TokenLimit:          40000,
		KeepRecent:          20,
		AutoSaveInterval:    3,
		EnableActionLogging: true,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.TokenLimit <= 0 {
		l.TokenLimit = d.TokenLimit
	}
	if l.KeepRecent <= 0 {
		l.KeepRecent = d.KeepRecent
	}
	if l.AutoSaveInterval <= 0 {
		l.AutoSaveInterval = d.AutoSaveInterval
	}
	return l
}

// Runtime binds one agent identity to an [llm.AgentStream] and its memory.
// Not safe for concurrent use; the orchestrator serialises calls per agent.
type Runtime struct {
	agentID string
	gameID  string

	stream  llm.AgentStream
	gateway persist.Gateway
	limits  Limits
	log     *slog.Logger

	memory             state.AgentMemory
	interactions       int
	needsConsolidation bool
}

// NewRuntime starts an agent on provider with the given system prompt and
// restores any persisted memory for (agentID, gameID). A nil gateway
// disables persistence; a nil logger disables logging.
func NewRuntime(ctx context.Context, provider llm.Provider, systemPrompt, agentID, gameID string, gw persist.Gateway, limits Limits, log *slog.Logger) (*Runtime, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	stream, err := provider.StartAgent(ctx, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("agent: start %s: %w", agentID, err)
	}

	mem := state.AgentMemory{AgentID: agentID, GameID: gameID}
	if gw != nil {
		restored, err := gw.LoadAgentMemory(ctx, agentID, gameID)
		switch {
		case err == nil:
			mem = restored
		case errors.Is(err, persist.ErrNotFound):
			// fresh agent
		default:
			return nil, fmt.Errorf("agent: restore memory for %s: %w", agentID, err)
		}
	}

	return &Runtime{
		agentID: agentID,
		gameID:  gameID,
		stream:  stream,
		gateway: gw,
		limits:  limits.withDefaults(),
		log:     log.With("agent", agentID),
		memory:  mem,
	}, nil
}

// AgentID returns the agent's stable identifier.
func (r *Runtime) AgentID() string { return r.agentID }

// Memory returns a copy of the agent's current memory.
func (r *Runtime) Memory() state.AgentMemory { return r.memory.Clone() }

// NeedsConsolidation reports whether the memory has exceeded its token
// limit since the last consolidation.
func (r *Runtime) NeedsConsolidation() bool { return r.needsConsolidation }

// Send sends text to the agent and returns the complete reply. The exchange
// is appended to memory; the token estimate is checked against the limit
// and memory is auto-saved every AutoSaveInterval interactions.
func (r *Runtime) Send(ctx context.Context, text string) (string, error) {
	ch, err := r.stream.SendMessage(ctx, text)
	if err != nil {
		return "", fmt.Errorf("agent: send to %s: %w", r.agentID, err)
	}
	reply, err := llm.Collect(ctx, ch)
	if err != nil {
		return "", fmt.Errorf("agent: reply from %s: %w", r.agentID, err)
	}

	r.memory.Messages = append(r.memory.Messages,
		state.Message{Role: "user", Content: text},
		state.Message{Role: "assistant", Content: reply},
	)

	if tokens := r.memory.EstimateTokens(); tokens > r.limits.TokenLimit {
		if !r.needsConsolidation {
			r.log.Warn("memory over token limit, consolidation needed",
				"estimated_tokens", tokens,
				"token_limit", r.limits.TokenLimit)
		}
		r.needsConsolidation = true
	}

	r.interactions++
	if r.gateway != nil && r.interactions%r.limits.AutoSaveInterval == 0 {
		if err := r.gateway.SaveAgentMemory(ctx, r.memory); err != nil {
			r.log.Error("memory auto-save failed", "error", err)
		}
	}
	return reply, nil
}

// ForceSave persists the memory immediately. Called on shutdown.
func (r *Runtime) ForceSave(ctx context.Context) error {
	if r.gateway == nil {
		return nil
	}
	if err := r.gateway.SaveAgentMemory(ctx, r.memory); err != nil {
		return fmt.Errorf("agent: force-save memory for %s: %w", r.agentID, err)
	}
	return nil
}

// LogAction appends a structured decision record to the action log. A no-op
// when action logging is disabled or no gateway is configured.
func (r *Runtime) LogAction(ctx context.Context, actionType string, data any, reasoning string, actx state.ActionContext) error {
	if !r.limits.EnableActionLogging || r.gateway == nil {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("agent: marshal action data: %w", err)
	}
	action := state.AgentAction{
		ID:         uuid.NewString(),
		AgentID:    r.agentID,
		GameID:     r.gameID,
		ActionType: actionType,
		ActionData: payload,
		Reasoning:  reasoning,
		Context:    actx,
		Timestamp:  time.Now(),
	}
	if err := r.gateway.AppendAgentAction(ctx, action); err != nil {
		return fmt.Errorf("agent: log action %s: %w", actionType, err)
	}
	return nil
}
