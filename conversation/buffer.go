// conversation/buffer.go
package conversation

import "strings"

const (
	userMarker = "\nUser: "
	aiMarker   = "\nAI: "
)

// Turn is one question/answer exchange.
type Turn struct {
	Question string
	Answer   string
}

// String renders the turn the way it is folded into the context.
func (t Turn) String() string {
	return userMarker + t.Question + aiMarker + t.Answer
}

// Buffer accumulates the conversation context sent to the model on every turn.
//
// A Buffer has a single owner and is not safe for concurrent use.
type Buffer struct {
	// prefix holds restored text that could not be parsed back into turns.
	prefix   string
	turns    []Turn
	maxTurns int
}

// NewBuffer returns an empty Buffer that keeps at most maxTurns turns.
// A maxTurns of zero or less keeps every turn.
func NewBuffer(maxTurns int) *Buffer {
	if maxTurns < 0 {
		maxTurns = 0
	}
	return &Buffer{maxTurns: maxTurns}
}

// Append folds one turn into the context, evicting the oldest turns when the
// retention limit is exceeded.
func (b *Buffer) Append(question, answer string) {
	b.turns = append(b.turns, Turn{Question: question, Answer: answer})
	b.evict()
}

// Clear resets the context to the empty string.
func (b *Buffer) Clear() {
	b.prefix = ""
	b.turns = nil
}

// Snapshot returns the current context.
func (b *Buffer) Snapshot() string {
	var sb strings.Builder
	sb.WriteString(b.prefix)
	for _, t := range b.turns {
		sb.WriteString(t.String())
	}
	return sb.String()
}

// Restore replaces the buffer contents with a previously persisted context.
// Snapshot returns context unchanged afterwards unless the retention limit
// forces eviction.
func (b *Buffer) Restore(context string) {
	if turns, ok := ParseTranscript(context); ok {
		b.prefix = ""
		b.turns = turns
	} else {
		b.prefix = context
		b.turns = nil
	}
	b.evict()
}

// Turns returns a copy of the parsed turns in submission order.
func (b *Buffer) Turns() []Turn {
	out := make([]Turn, len(b.turns))
	copy(out, b.turns)
	return out
}

// Len reports the number of parsed turns held.
func (b *Buffer) Len() int { return len(b.turns) }

// MaxTurns reports the retention limit; zero means unbounded.
func (b *Buffer) MaxTurns() int { return b.maxTurns }

func (b *Buffer) evict() {
	if b.maxTurns == 0 || len(b.turns) <= b.maxTurns {
		return
	}
	b.prefix = ""
	kept := make([]Turn, b.maxTurns)
	copy(kept, b.turns[len(b.turns)-b.maxTurns:])
	b.turns = kept
}

// ParseTranscript splits a context string back into turns. It reports false
// when the text is not exactly a sequence of rendered turns, for example when
// an answer itself contains a turn marker.
func ParseTranscript(context string) ([]Turn, bool) {
	if context == "" {
		return nil, true
	}
	parts := strings.Split(context, userMarker)
	if parts[0] != "" {
		return nil, false
	}

	turns := make([]Turn, 0, len(parts)-1)
	for _, part := range parts[1:] {
		q, a, found := strings.Cut(part, aiMarker)
		if !found {
			return nil, false
		}
		turns = append(turns, Turn{Question: q, Answer: a})
	}

	var rebuilt strings.Builder
	for _, t := range turns {
		rebuilt.WriteString(t.String())
	}
	if rebuilt.String() != context {
		return nil, false
	}
	return turns, true
}
