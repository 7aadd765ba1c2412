// Package mock provides a deterministic test double for the llm.Provider
// interface.
//
// Use Provider in unit tests to feed controlled replies without a live LLM
// backend and to verify that the orchestrator sends the prompts it should.
// Replies are selected by ordered substring rules against the outgoing
// message, so a single Provider can serve several agent roles at once:
//
//	p := &mock.Provider{
//	    Rules: []mock.Rule{
//	        {Match: "scene plan", Reply: `{"primaryAction":{"type":"COMBAT"}}`},
//	    },
//	    Default: "You stand in the clearing.",
//	}
//
// All configuration fields must be set before the first call; call records
// may be read after the test completes.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/loreforge/loreforge/pkg/llm"
)

// Rule maps a prompt pattern to a scripted reply.
type Rule struct {
	// Match is a substring tested against the outgoing message text.
	// An empty Match matches every message.
	Match string

	// Reply is the full reply text emitted when the rule matches.
	Reply string

	// Err, if non-nil, is returned from SendMessage instead of opening a
	// stream. Use to exercise retry and fallback paths.
	Err error

	// Once limits the rule to a single use, after which it is skipped.
	Once bool
}

// StartCall records a single invocation of StartAgent.
type StartCall struct {
	// SystemPrompt is the prompt passed to StartAgent.
	SystemPrompt string
}

// SendCall records a single invocation of SendMessage on any stream.
type SendCall struct {
	// SystemPrompt identifies the conversation the message was sent on.
	SystemPrompt string
	// Text is the message text.
	Text string
}

// Provider is a scripted implementation of [llm.Provider]. The zero value
// replies to everything with an empty string.
type Provider struct {
	mu sync.Mutex

	// --- Configurable behaviour ---

	// Rules are tried in order on every SendMessage; the first match wins.
	Rules []Rule

	// Default is the reply used when no rule matches.
	Default string

	// StartErr, if non-nil, is returned by StartAgent.
	StartErr error

	// ChunkSize is the fragment length replies are split into. Defaults to 24.
	ChunkSize int

	// --- Call records (read after test) ---

	// StartCalls records every StartAgent invocation in order.
	StartCalls []StartCall

	// SendCalls records every SendMessage invocation, across all streams,
	// in order.
	SendCalls []SendCall

	used map[int]bool
}

// Compile-time interface check.
var _ llm.Provider = (*Provider)(nil)

// StartAgent records the call and returns a stream bound to systemPrompt.
func (p *Provider) StartAgent(_ context.Context, systemPrompt string) (llm.AgentStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartCalls = append(p.StartCalls, StartCall{SystemPrompt: systemPrompt})
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	return &stream{provider: p, systemPrompt: systemPrompt}, nil
}

// reply selects the scripted reply for text. Must be called with p.mu held.
func (p *Provider) reply(text string) (string, error) {
	if p.used == nil {
		p.used = make(map[int]bool)
	}
	for i, r := range p.Rules {
		if r.Once && p.used[i] {
			continue
		}
		if r.Match == "" || strings.Contains(text, r.Match) {
			p.used[i] = true
			if r.Err != nil {
				return "", r.Err
			}
			return r.Reply, nil
		}
	}
	return p.Default, nil
}

// stream is one scripted conversation. It keeps no transcript — replies
// depend only on the outgoing message, which keeps runs reproducible.
type stream struct {
	provider     *Provider
	systemPrompt string
}

// SendMessage records the call and emits the scripted reply in fixed-size
// chunks, finishing with a "stop" chunk.
func (s *stream) SendMessage(ctx context.Context, text string) (<-chan llm.Chunk, error) {
	p := s.provider
	p.mu.Lock()
	p.SendCalls = append(p.SendCalls, SendCall{SystemPrompt: s.systemPrompt, Text: text})
	reply, err := p.reply(text)
	size := p.ChunkSize
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 24
	}

	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		for start := 0; start < len(reply); start += size {
			end := start + size
			if end > len(reply) {
				end = len(reply)
			}
			select {
			case <-ctx.Done():
				return
			case ch <- llm.Chunk{Text: reply[start:end]}:
			}
		}
		select {
		case <-ctx.Done():
		case ch <- llm.Chunk{FinishReason: "stop"}:
		}
	}()
	return ch, nil
}

// Reset clears all recorded calls and rule usage. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartCalls = nil
	p.SendCalls = nil
	p.used = nil
}
