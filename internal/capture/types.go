package capture

import (
	"time"

	"codeberg.org/mutker/drowsyctl/internal/analyzer"
	"codeberg.org/mutker/drowsyctl/internal/camera"
	"codeberg.org/mutker/drowsyctl/internal/earlog"
)

// State is the lifecycle state of a Loop.
type State int32

const (
	Idle State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "idle"
	}
}

// Result is published for every frame processed.
type Result struct {
	analyzer.Result

	SessionID string
	Time      time.Time
	Frame     camera.Frame
}

// Alert is published when the alert policy fires.
type Alert struct {
	SessionID   string    `json:"session_id"`
	Time        time.Time `json:"timestamp"`
	EAR         float64   `json:"ear"`
	Consecutive int       `json:"consecutive"`
}

// SessionEventKind distinguishes session lifecycle events.
type SessionEventKind string

const (
	SessionStarted SessionEventKind = "started"
	SessionStopped SessionEventKind = "stopped"
)

// SessionEvent is published when a session starts or stops.
type SessionEvent struct {
	Kind      SessionEventKind `json:"kind"`
	SessionID string           `json:"session_id"`
	Device    int              `json:"device"`
	Time      time.Time        `json:"timestamp"`
}

// Stats are cumulative counters across sessions.
type Stats struct {
	Frames     uint64 `json:"frames"`
	Measured   uint64 `json:"measured"`
	Alerts     uint64 `json:"alerts"`
	ReadErrors uint64 `json:"read_errors"`
	LogErrors  uint64 `json:"log_errors"`
	Dropped    uint64 `json:"dropped"`
}

// Sink persists measured samples.
type Sink interface {
	Append(s earlog.Sample) error
}
