// Package sequencer detects superseded asynchronous loads.
//
// A Sequencer hands out strictly increasing tokens. A load captures its token
// when it is issued and checks it at every suspension point; once a newer
// token has been issued the older load is stale and must unwind without
// touching the display. Cancellation is cooperative: nothing is interrupted,
// stale work simply discards its own result.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrSuperseded reports that a newer load was issued. It wraps context.Canceled
// so callers treating cancellation as expected control flow also match it.
var ErrSuperseded = fmt.Errorf("load superseded: %w", context.Canceled)

// Token identifies one issued load. The zero token is never issued.
type Token uint64

// Sequencer owns the counter for one logical resource.
//
// Issue is called from the UI loop while IsCurrent may be called from load
// goroutines, so the counter is atomic.
type Sequencer struct {
	counter atomic.Uint64
}

// New returns a sequencer whose counter starts at zero.
func New() *Sequencer {
	return &Sequencer{}
}

// Issue increments the counter and returns the new token.
func (s *Sequencer) Issue() Token {
	return Token(s.counter.Add(1))
}

// Current returns the most recently issued token, or zero.
func (s *Sequencer) Current() Token {
	return Token(s.counter.Load())
}

// IsCurrent reports whether t is the most recently issued token.
func (s *Sequencer) IsCurrent(t Token) bool {
	return t != 0 && Token(s.counter.Load()) == t
}

// Check returns ErrSuperseded when t is no longer current.
func (s *Sequencer) Check(t Token) error {
	if s.IsCurrent(t) {
		return nil
	}
	return ErrSuperseded
}

// Reset returns the counter to zero. Tokens issued before the reset must not
// be reused afterwards.
func (s *Sequencer) Reset() {
	s.counter.Store(0)
}

// IsSuperseded reports whether err came from a stale checkpoint.
func IsSuperseded(err error) bool {
	return errors.Is(err, ErrSuperseded)
}
