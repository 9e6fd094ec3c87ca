package testutil

// StaticConfirmer answers every prompt the same way.
//
// It stands in for the interactive collision prompt so tests drive the
// accept and decline paths without a terminal. The same scenario with the
// same StaticConfirmer produces identical provisioning outcomes.
//
// Thread-safety: StaticConfirmer is stateless and safe for concurrent use.
type StaticConfirmer struct {
	answer bool
}

// NewStaticConfirmer creates a confirmer with a fixed answer.
func NewStaticConfirmer(answer bool) *StaticConfirmer {
	return &StaticConfirmer{answer: answer}
}

// Confirm returns the fixed answer regardless of the prompt.
//
// Implements lifecycle.Confirmer.
func (c *StaticConfirmer) Confirm(prompt string) (bool, error) {
	return c.answer, nil
}
