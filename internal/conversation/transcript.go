// Package conversation holds the per-conversation state: the transcript sent
// to the model, the one-shot context injection, and the controller that ties
// them to the document assembler and the model client.
package conversation

import "github.com/ashureev/docchat/internal/domain"

// Transcript is the ordered, append-only list of turns of one conversation.
type Transcript struct {
	turns []domain.Turn
}

// Append records a new turn.
func (t *Transcript) Append(role domain.Role, text string) {
	t.turns = append(t.turns, domain.Turn{Role: role, Text: text})
}

// Turns returns a copy of the transcript in conversation order.
func (t *Transcript) Turns() []domain.Turn {
	out := make([]domain.Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	return len(t.turns)
}

// Reset discards every turn.
func (t *Transcript) Reset() {
	t.turns = nil
}
