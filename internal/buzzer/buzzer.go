// Package buzzer drives an audible alarm on a GPIO output line.
package buzzer

import (
	"sync"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/capture"
	"codeberg.org/mutker/drowsyctl/internal/errors"
	"codeberg.org/mutker/drowsyctl/internal/logger"
)

// Line is a single digital output.
type Line interface {
	SetValue(value int) error
	Close() error
}

// Buzzer sounds a Line for a bounded time per alert.
type Buzzer struct {
	mu     sync.Mutex
	line   Line
	timer  *time.Timer
	closed bool
}

// New wraps line. The line is driven low immediately.
func New(line Line) (*Buzzer, error) {
	if err := line.SetValue(0); err != nil {
		return nil, errors.New().Wrap(errors.ErrInitFailed, err)
	}
	return &Buzzer{line: line}, nil
}

// Pulse drives the line high for d. A pulse that arrives while the buzzer is
// sounding extends it.
func (b *Buzzer) Pulse(d time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New().WithMessage(errors.ErrInvalidOperation, "buzzer closed")
	}

	if err := b.line.SetValue(1); err != nil {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(d, b.silence)

	return nil
}

func (b *Buzzer) silence() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		_ = b.line.SetValue(0)
	}
}

// Close silences the buzzer and releases the line.
func (b *Buzzer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	if b.timer != nil {
		b.timer.Stop()
	}
	_ = b.line.SetValue(0)

	return b.line.Close()
}

// Forward pulses the buzzer on every alert from loop.
func Forward(loop *capture.Loop, b *Buzzer, d time.Duration, log logger.Logger) func() {
	return loop.OnAlert(func(a capture.Alert) {
		if err := b.Pulse(d); err != nil {
			log.Warn().Err(err).Str("session", a.SessionID).Msg("Failed to sound buzzer")
		}
	})
}
