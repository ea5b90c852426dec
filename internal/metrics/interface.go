package metrics

import (
	"context"
	"time"
)

// Collector records capture activity for later analysis.
type Collector interface {
	RecordSample(ctx context.Context, sample *Sample) error
	RecordAlert(ctx context.Context, alert *Alert) error
	AlertsSince(ctx context.Context, since time.Time) (int, error)
	Close() error
}

// Repository defines the interface for metrics data storage
type Repository interface {
	RecordSample(sample *Sample) error
	RecordAlert(alert *Alert) error
	AlertsSince(ctx context.Context, since time.Time) (int, error)
	Close() error
}

// Sample is one processed frame.
type Sample struct {
	Timestamp time.Time
	SessionID string
	EAR       float64
	Status    string
	Measured  bool
}

// Alert is one fired drowsiness alert.
type Alert struct {
	Timestamp   time.Time
	SessionID   string
	EAR         float64
	Consecutive int
}
