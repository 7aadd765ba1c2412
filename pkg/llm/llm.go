// Package llm defines the agent-oriented boundary between the narrative core
// and any Large Language Model backend.
//
// A [Provider] wraps a remote or local model API and hands out [AgentStream]
// values: stateful conversations pinned to a system prompt. The core never
// talks to a model SDK directly — concrete HTTP-backed providers live in
// external modules and register themselves with the config registry, while
// tests use the deterministic mock in pkg/llm/mock.
//
// Implementors must be safe for concurrent use. Channels returned by
// SendMessage must be closed by the implementation when the reply ends or
// when the supplied context is cancelled.
package llm

import "context"

// Chunk is a single fragment emitted by a streaming reply.
// Concatenating the Text of every chunk on a channel yields the full reply.
type Chunk struct {
	// Text is the incremental text content of this chunk. May be empty on
	// the final chunk when it only carries a FinishReason.
	Text string

	// FinishReason is set on the final chunk and indicates why generation
	// stopped. Common values are "stop" (natural end), "length" (token cap
	// reached), and "error" (mid-stream failure; see Err).
	FinishReason string

	// Err carries the failure when FinishReason is "error". Nil otherwise.
	Err error
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines
// and must propagate context cancellation promptly.
type Provider interface {
	// StartAgent opens a new conversation bound to systemPrompt and returns
	// a stream for exchanging messages on it. The stream owns no provider
	// resources beyond the conversation transcript; callers may hold many
	// streams against one provider.
	StartAgent(ctx context.Context, systemPrompt string) (AgentStream, error)
}

// AgentStream is one conversation against a model.
//
// Implementations append each exchange to their own transcript so that
// successive SendMessage calls see prior turns. Streams need not be safe for
// concurrent SendMessage calls — callers serialise per conversation.
type AgentStream interface {
	// SendMessage sends text as the next user turn and returns a read-only
	// channel emitting the reply as [Chunk] values. The channel is closed by
	// the implementation when the reply finishes or ctx is cancelled.
	//
	// The sequence is single-consumption: callers must drain the channel and
	// must not call SendMessage again before the previous channel is closed.
	// Errors that occur after the channel is opened surface as a Chunk with
	// FinishReason "error"; the initial error return is non-nil only for
	// failures that prevent the reply from starting.
	SendMessage(ctx context.Context, text string) (<-chan Chunk, error)
}

// Collect drains a chunk channel into the complete reply text.
//
// A chunk with FinishReason "error" aborts collection and returns the carried
// failure (or a generic [Failure] when Err is nil). Context cancellation is
// observed between chunks.
func Collect(ctx context.Context, ch <-chan Chunk) (string, error) {
	var reply []byte
	for {
		select {
		case <-ctx.Done():
			return string(reply), &Failure{Transient: true, Retryable: true, Message: ctx.Err().Error()}
		case c, ok := <-ch:
			if !ok {
				return string(reply), nil
			}
			if c.FinishReason == "error" {
				if c.Err != nil {
					return string(reply), c.Err
				}
				return string(reply), &Failure{Transient: true, Retryable: true, Message: "stream aborted"}
			}
			reply = append(reply, c.Text...)
		}
	}
}
