package session

import "fmt"

// Compressor summarizes a prefix of a Session's context when it would
// otherwise exceed max_tokens. This spec's Open Question on the exact
// compression algorithm is resolved (DESIGN.md) as deterministic
// oldest-prefix decimation, not LLM-summarization, so the core stays
// synchronous and dependency-free; an LLM-backed Compressor can
// satisfy the same interface.
type Compressor interface {
	Summarize(discarded []Message) Message
}

// RatioCompressor implements the decimation rule from spec.md section
// 4.1: the discarded messages' combined token_count divided by the
// configured ratio becomes the summary's token_count.
type RatioCompressor struct {
	Ratio int
}

func (c RatioCompressor) Summarize(discarded []Message) Message {
	ratio := c.Ratio
	if ratio <= 0 {
		ratio = 10
	}
	total := 0
	for _, m := range discarded {
		total += m.TokenCount
	}
	summaryTokens := total / ratio
	if summaryTokens < 1 && total > 0 {
		summaryTokens = 1
	}
	return Message{
		Role:       RoleSystem,
		Content:    fmt.Sprintf("[summary of %d earlier messages]", len(discarded)),
		TokenCount: summaryTokens,
	}
}

// contextBuffer holds the bounded, token-budgeted sequence of
// Messages described in spec.md section 3.
type contextBuffer struct {
	messages    []Message
	maxTokens   int
	keepRecent  int
	compressor  Compressor
}

func newContextBuffer(maxTokens, keepRecent int, compressor Compressor) *contextBuffer {
	if compressor == nil {
		compressor = RatioCompressor{Ratio: 10}
	}
	return &contextBuffer{maxTokens: maxTokens, keepRecent: keepRecent, compressor: compressor}
}

func (b *contextBuffer) totalTokens() int {
	total := 0
	for _, m := range b.messages {
		total += m.TokenCount
	}
	return total
}

// Append adds m and compresses if the new total exceeds maxTokens, per
// spec.md section 4.1's add_message() contract.
func (b *contextBuffer) Append(m Message) {
	b.messages = append(b.messages, m)
	if b.totalTokens() <= b.maxTokens {
		return
	}
	b.compress()
}

// compress replaces the oldest prefix of messages with a single
// synthetic System summary, preserving at least keepRecent messages,
// then falls back to dropping oldest non-summary messages if the
// budget is still exceeded (spec.md's "compression is best-effort"
// clause).
func (b *contextBuffer) compress() {
	if len(b.messages) <= b.keepRecent {
		b.dropOldestUntilWithinBudget()
		return
	}

	// Find the largest discardable prefix that still leaves at least
	// keepRecent messages.
	maxDiscard := len(b.messages) - b.keepRecent
	if maxDiscard <= 0 {
		b.dropOldestUntilWithinBudget()
		return
	}

	discarded := make([]Message, maxDiscard)
	copy(discarded, b.messages[:maxDiscard])
	remaining := make([]Message, len(b.messages)-maxDiscard)
	copy(remaining, b.messages[maxDiscard:])

	summary := b.compressor.Summarize(discarded)
	b.messages = append([]Message{summary}, remaining...)

	b.dropOldestUntilWithinBudget()
}

// dropOldestUntilWithinBudget drops oldest non-summary messages (never
// index 0 if it is itself a freshly inserted summary) until the total
// is within maxTokens, or there is nothing left to drop.
func (b *contextBuffer) dropOldestUntilWithinBudget() {
	for b.totalTokens() > b.maxTokens && len(b.messages) > 1 {
		// Never drop the synthetic summary at index 0 if present;
		// drop the next-oldest instead.
		dropIdx := 0
		if b.messages[0].Role == RoleSystem && len(b.messages[0].Content) > 0 && b.messages[0].Content[0] == '[' {
			dropIdx = 1
		}
		if dropIdx >= len(b.messages) {
			break
		}
		b.messages = append(b.messages[:dropIdx], b.messages[dropIdx+1:]...)
	}
}

// Snapshot returns a copy of the current context.
func (b *contextBuffer) Snapshot() []Message {
	out := make([]Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// WithinLimit returns the newest messages whose combined token_count
// is at most limit, per spec.md section 8's
// get_messages_within_limit() property.
func (b *contextBuffer) WithinLimit(limit int) []Message {
	var out []Message
	total := 0
	for i := len(b.messages) - 1; i >= 0; i-- {
		m := b.messages[i]
		if total+m.TokenCount > limit {
			break
		}
		total += m.TokenCount
		out = append([]Message{m}, out...)
	}
	return out
}
