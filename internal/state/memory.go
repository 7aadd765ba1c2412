package state

import (
	"encoding/json"
	"time"
)

// charsPerToken is the heuristic ratio used for token estimation.
// English text averages roughly 4 characters per token across common LLM
// tokenizers. This avoids pulling in a tokenizer dependency.
const charsPerToken = 4

// Message is one entry in an agent's conversation memory.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content"`
}

// EstimateMessageTokens returns a rough token count for a single message
// using the 1-token-per-4-characters heuristic.
func EstimateMessageTokens(m Message) int {
	chars := len(m.Role) + len(m.Content)
	tokens := chars / charsPerToken
	if tokens == 0 && chars > 0 {
		tokens = 1
	}
	return tokens
}

// AgentMemory is the bounded conversation history of one agent within one
// game. Older messages are periodically replaced by a consolidated summary
// to keep the estimated token count under the configured limit.
type AgentMemory struct {
	AgentID             string    `json:"agentId"`
	GameID              string    `json:"gameId"`
	Messages            []Message `json:"messages"`
	ConsolidatedContext string    `json:"consolidatedContext,omitempty"`
	ConsolidationCount  int       `json:"consolidationCount"`
	LastConsolidated    time.Time `json:"lastConsolidated,omitzero"`
}

// EstimateTokens returns the estimated token footprint of the memory:
// all messages plus the consolidated context.
func (m AgentMemory) EstimateTokens() int {
	total := len(m.ConsolidatedContext) / charsPerToken
	for _, msg := range m.Messages {
		total += EstimateMessageTokens(msg)
	}
	return total
}

// NeedsConsolidation reports whether the memory exceeds tokenLimit.
func (m AgentMemory) NeedsConsolidation(tokenLimit int) bool {
	return tokenLimit > 0 && m.EstimateTokens() > tokenLimit
}

// Clone returns a deep copy of m.
func (m AgentMemory) Clone() AgentMemory {
	cp := m
	cp.Messages = append([]Message(nil), m.Messages...)
	return cp
}

// ActionContext situates a logged agent decision in the game world.
// Optional fields are empty when not applicable.
type ActionContext struct {
	PlayerLevel  int    `json:"playerLevel"`
	NPCID        string `json:"npcId,omitempty"`
	QuestID      string `json:"questId,omitempty"`
	PlotThreadID string `json:"plotThreadId,omitempty"`
	LocationID   string `json:"locationId,omitempty"`
}

// AgentAction is one append-only log entry recording a structured agent
// decision alongside its reasoning.
type AgentAction struct {
	ID         string          `json:"id"`
	AgentID    string          `json:"agentId"`
	GameID     string          `json:"gameId"`
	ActionType string          `json:"actionType"`
	ActionData json.RawMessage `json:"actionData,omitempty"`
	Reasoning  string          `json:"reasoning,omitempty"`
	Context    ActionContext   `json:"context"`
	Timestamp  time.Time       `json:"timestamp"`
}

// ConsolidationSnapshot preserves a summary produced during memory
// consolidation, for audit and recovery.
type ConsolidationSnapshot struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agentId"`
	GameID    string    `json:"gameId"`
	Summary   string    `json:"summary"`
	Messages  int       `json:"messages"` // number of messages folded in
	CreatedAt time.Time `json:"createdAt"`
}
