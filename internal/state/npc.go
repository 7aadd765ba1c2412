package state

import "time"

// maxNPCHistory bounds the per-NPC conversation ring buffer.
const maxNPCHistory = 20

// Personality describes how an NPC speaks and what drives it. Injected
// verbatim into the NPC agent's system prompt.
type Personality struct {
	Traits        []string `json:"traits"`
	SpeechPattern string   `json:"speechPattern"`
	Motivations   []string `json:"motivations"`
}

// DialogueExchange is one player/NPC exchange kept in the NPC's bounded
// conversation history.
type DialogueExchange struct {
	PlayerText string    `json:"playerText"`
	NPCText    string    `json:"npcText"`
	Timestamp  time.Time `json:"timestamp"`
}

// NPC is a non-player character. Relationship is the per-game affinity in
// [-100, 100]; archetype and lore are static template data.
type NPC struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Archetype    string             `json:"archetype"`
	LocationID   string             `json:"locationId"`
	Personality  Personality        `json:"personality"`
	Lore         string             `json:"lore,omitempty"`
	Relationship int                `json:"relationship"`
	History      []DialogueExchange `json:"history,omitempty"`
}

// WithExchange returns n with the exchange appended, dropping the oldest
// entry once the ring buffer is full.
func (n NPC) WithExchange(e DialogueExchange) NPC {
	cp := n.clone()
	cp.History = append(cp.History, e)
	if len(cp.History) > maxNPCHistory {
		cp.History = cp.History[len(cp.History)-maxNPCHistory:]
	}
	return cp
}

// WithRelationship returns n with the affinity shifted by delta, clamped to
// [-100, 100].
func (n NPC) WithRelationship(delta int) NPC {
	cp := n.clone()
	cp.Relationship += delta
	if cp.Relationship > 100 {
		cp.Relationship = 100
	}
	if cp.Relationship < -100 {
		cp.Relationship = -100
	}
	return cp
}

// clone returns a deep copy of n.
func (n NPC) clone() NPC {
	cp := n
	cp.Personality.Traits = append([]string(nil), n.Personality.Traits...)
	cp.Personality.Motivations = append([]string(nil), n.Personality.Motivations...)
	cp.History = append([]DialogueExchange(nil), n.History...)
	return cp
}
