// Package alert debounces per-frame drowsiness into rate-limited alerts.
package alert

import (
	"sync"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/analyzer"
)

const (
	DefaultRunLength = 3
	DefaultCooldown  = 30 * time.Second
)

// Event is a fired alert.
type Event struct {
	Time time.Time
	// Consecutive is the length of the drowsy run that triggered the alert.
	Consecutive int
}

// Options configures a Policy.
type Options struct {
	RunLength int
	Cooldown  time.Duration
	// ResetOnDropout clears the drowsy run when a frame has no face.
	ResetOnDropout bool
}

// Policy fires when RunLength consecutive measured frames are Drowsy and at
// least Cooldown has passed since the previous alert. Firing and Normal frames
// reset the run. Frames without a face leave it untouched unless
// ResetOnDropout is set.
type Policy struct {
	mu          sync.Mutex
	opts        Options
	consecutive int
	lastAlert   time.Time
	alerted     bool
}

// NewPolicy creates a Policy. A non-positive RunLength or a negative Cooldown
// takes the default. A zero Cooldown disables rate limiting.
func NewPolicy(opts Options) *Policy {
	if opts.RunLength <= 0 {
		opts.RunLength = DefaultRunLength
	}
	if opts.Cooldown < 0 {
		opts.Cooldown = DefaultCooldown
	}
	return &Policy{opts: opts}
}

// Observe feeds one frame status observed at now. It returns the event and
// true when an alert fires.
func (p *Policy) Observe(status analyzer.Status, now time.Time) (Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch status {
	case analyzer.NotDetected:
		if p.opts.ResetOnDropout {
			p.consecutive = 0
		}
		return Event{}, false
	case analyzer.Normal:
		p.consecutive = 0
		return Event{}, false
	}

	p.consecutive++
	if p.consecutive < p.opts.RunLength {
		return Event{}, false
	}
	if p.alerted && now.Sub(p.lastAlert) < p.opts.Cooldown {
		return Event{}, false
	}

	ev := Event{Time: now, Consecutive: p.consecutive}
	p.consecutive = 0
	p.lastAlert = now
	p.alerted = true

	return ev, true
}

// Reset clears the run and the cooldown, as when a new session starts.
func (p *Policy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.consecutive = 0
	p.alerted = false
	p.lastAlert = time.Time{}
}

// Consecutive returns the current drowsy run length.
func (p *Policy) Consecutive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.consecutive
}

// Options returns the effective configuration.
func (p *Policy) Options() Options {
	return p.opts
}
