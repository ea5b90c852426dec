// Package status provides a thread-safe view of the running capture service.
// It is designed to be read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/analyzer"
	"codeberg.org/mutker/drowsyctl/internal/capture"
)

// Config contains service configuration for display.
type Config struct {
	Device    int
	Threshold float64
	RunLength int
	Cooldown  time.Duration
	CadenceHz float64
	LogFile   string
	Detector  string
	Broker    string
	HTTPAddr  string
}

// Source is the live state of a capture loop.
type Source interface {
	State() capture.State
	SessionID() string
	Stats() capture.Stats
}

// Snapshot is a point-in-time view of service state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State         capture.State
	SessionID     string
	Stats         capture.Stats
	LastStatus    analyzer.Status
	LastEAR       float64
	LastFrame     time.Time
	LastAlert     *capture.Alert
	MQTTConnected bool
	StartTime     time.Time
	Now           time.Time
	Config        Config
}

// Uptime returns the duration since the service started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable service state behind an RWMutex.
type Tracker struct {
	mu     sync.RWMutex
	snap   Snapshot
	source Source
	mqtt   func() bool
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Attach records results and alerts from loop and reads its live state on
// every snapshot.
func (t *Tracker) Attach(loop *capture.Loop) func() {
	t.mu.Lock()
	t.source = loop
	t.mu.Unlock()

	stopResults := loop.OnResult(t.Observe)
	stopAlerts := loop.OnAlert(t.RecordAlert)

	return func() {
		stopResults()
		stopAlerts()
	}
}

// Observe records the latest frame result.
func (t *Tracker) Observe(r capture.Result) {
	t.mu.Lock()
	t.snap.LastStatus = r.Status
	t.snap.LastEAR = r.EAR
	t.snap.LastFrame = r.Time
	t.mu.Unlock()
}

// RecordAlert records the latest alert.
func (t *Tracker) RecordAlert(a capture.Alert) {
	t.mu.Lock()
	t.snap.LastAlert = &a
	t.mu.Unlock()
}

// SetMQTTStatus installs a probe for the broker connection.
func (t *Tracker) SetMQTTStatus(connected func() bool) {
	t.mu.Lock()
	t.mqtt = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the service state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	source := t.source
	mqtt := t.mqtt
	t.mu.RUnlock()

	if s.LastAlert != nil {
		a := *s.LastAlert
		s.LastAlert = &a
	}
	if source != nil {
		s.State = source.State()
		s.SessionID = source.SessionID()
		s.Stats = source.Stats()
	}
	if mqtt != nil {
		s.MQTTConnected = mqtt()
	}
	s.Now = time.Now()

	return s
}
