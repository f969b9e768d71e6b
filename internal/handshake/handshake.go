// Package handshake delivers a chart to an external editor that may not be
// listening yet. The payload is posted repeatedly at a fixed interval until the
// editor acknowledges it or the attempt budget runs out.
package handshake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Defaults match the browser editor's warm-up window: 40 posts, 250ms apart.
const (
	DefaultInterval = 250 * time.Millisecond
	DefaultWait     = 10 * time.Second
	DefaultAttempts = int(DefaultWait / DefaultInterval)
)

// ModeVegaLite is the editor mode for Vega-Lite documents.
const ModeVegaLite = "vega-lite"

// EditorPayload is the message the editor expects.
type EditorPayload struct {
	Mode string `json:"mode"`
	Spec string `json:"spec"`
}

// NewEditorPayload indents spec the way the editor displays it. Keys keep the
// order the backend sent them in.
func NewEditorPayload(spec json.RawMessage) (EditorPayload, error) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, spec, "", "  "); err != nil {
		return EditorPayload{}, fmt.Errorf("decoding spec for editor: %w", err)
	}
	return EditorPayload{Mode: ModeVegaLite, Spec: pretty.String()}, nil
}

// Channel is a message link to one external editor instance. Acks delivers a
// value for every message received from that same instance.
type Channel interface {
	Send(ctx context.Context, payload any) error
	Acks() <-chan struct{}
	Close() error
}

// Poster posts payloads with a bounded retry budget.
type Poster struct {
	Interval time.Duration
	Attempts int
	Log      zerolog.Logger
}

// NewPoster returns a poster with the default interval and budget.
func NewPoster(log zerolog.Logger) *Poster {
	return &Poster{Interval: DefaultInterval, Attempts: DefaultAttempts, Log: log}
}

// Post waits one interval, then sends payload every interval until an ack
// arrives or Attempts sends have been made. It reports whether the editor
// acknowledged. Running out of attempts is not an error. Send failures are
// logged and retried within the same budget.
func (p *Poster) Post(ctx context.Context, ch Channel, payload any) (bool, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	acks := ch.Acks()
	sent := 0
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case _, ok := <-acks:
			if !ok {
				p.Log.Debug().Int("sent", sent).Msg("editor channel closed before acknowledging")
				return false, nil
			}
			p.Log.Debug().Int("sent", sent).Msg("editor acknowledged payload")
			return true, nil
		case <-ticker.C:
			if sent >= attempts {
				p.Log.Debug().Int("attempts", attempts).Msg("editor did not acknowledge, giving up")
				return false, nil
			}
			if err := ch.Send(ctx, payload); err != nil {
				p.Log.Debug().Err(err).Int("attempt", sent+1).Msg("editor post failed")
			}
			sent++
		}
	}
}
