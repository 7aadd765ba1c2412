package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loreforge/loreforge/internal/state"
	"github.com/loreforge/loreforge/pkg/llm"
)

// summariserPrompt primes a one-shot agent for transcript compression.
const summariserPrompt = `You compress game-session transcripts. Given a ` +
	`conversation log, produce a dense factual summary that preserves: named ` +
	`characters and their relationships, decisions made, quest and combat ` +
	`outcomes, items and skills gained, and any promises or foreshadowing. ` +
	`Write plain prose, no preamble, at most 300 words.`

// Summariser produces consolidation summaries through a dedicated one-shot
// agent per call, so summarisation never pollutes the agent's own memory.
type Summariser struct {
	provider llm.Provider
	log      *slog.Logger
}

// NewSummariser creates a Summariser on provider.
func NewSummariser(provider llm.Provider, log *slog.Logger) *Summariser {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Summariser{provider: provider, log: log}
}

// Summarise compresses messages (with the prior summary, if any, prepended
// for continuity) into a single prose summary.
func (s *Summariser) Summarise(ctx context.Context, priorSummary string, messages []state.Message) (string, error) {
	var b strings.Builder
	if priorSummary != "" {
		b.WriteString("Earlier summary:\n")
		b.WriteString(priorSummary)
		b.WriteString("\n\nNew transcript:\n")
	}
	for _, m := range messages {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}

	stream, err := s.provider.StartAgent(ctx, summariserPrompt)
	if err != nil {
		return "", fmt.Errorf("agent: start summariser: %w", err)
	}
	ch, err := stream.SendMessage(ctx, b.String())
	if err != nil {
		return "", fmt.Errorf("agent: summarise: %w", err)
	}
	summary, err := llm.Collect(ctx, ch)
	if err != nil {
		return "", fmt.Errorf("agent: summarise: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

// Consolidate replaces all but the most recent KeepRecent messages with a
// summary produced by s, persists the updated memory, and appends a
// [state.ConsolidationSnapshot]. Post-conditions: the message count shrinks
// and the estimated token count strictly decreases.
func (r *Runtime) Consolidate(ctx context.Context, s *Summariser) (state.ConsolidationSnapshot, error) {
	keep := r.limits.KeepRecent
	if len(r.memory.Messages) <= keep {
		return state.ConsolidationSnapshot{}, fmt.Errorf("agent: %s has only %d messages, nothing to consolidate", r.agentID, len(r.memory.Messages))
	}

	older := r.memory.Messages[:len(r.memory.Messages)-keep]
	recent := r.memory.Messages[len(r.memory.Messages)-keep:]

	summary, err := s.Summarise(ctx, r.memory.ConsolidatedContext, older)
	if err != nil {
		return state.ConsolidationSnapshot{}, err
	}

	before := r.memory.EstimateTokens()
	r.memory.ConsolidatedContext = summary
	r.memory.Messages = append([]state.Message(nil), recent...)
	r.memory.ConsolidationCount++
	r.memory.LastConsolidated = time.Now()
	r.needsConsolidation = false

	snap := state.ConsolidationSnapshot{
		ID:        uuid.NewString(),
		AgentID:   r.agentID,
		GameID:    r.gameID,
		Summary:   summary,
		Messages:  len(older),
		CreatedAt: r.memory.LastConsolidated,
	}
	if r.gateway != nil {
		if err := r.gateway.SaveAgentMemory(ctx, r.memory); err != nil {
			return snap, fmt.Errorf("agent: save consolidated memory for %s: %w", r.agentID, err)
		}
		if err := r.gateway.AppendConsolidation(ctx, snap); err != nil {
			return snap, fmt.Errorf("agent: persist consolidation for %s: %w", r.agentID, err)
		}
	}

	r.log.Info("memory consolidated",
		"messages_folded", len(older),
		"tokens_before", before,
		"tokens_after", r.memory.EstimateTokens(),
		"consolidation_count", r.memory.ConsolidationCount)
	return snap, nil
}
