package mqtt

import (
	"sync"

	"codeberg.org/mutker/drowsyctl/internal/capture"
)

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Alerts contains all alerts that were published.
	Alerts []capture.Alert

	// Sessions contains all session events that were published.
	Sessions []capture.SessionEvent

	// Payloads contains the JSON payloads in publish order.
	Payloads [][]byte

	// PublishError, if set, will be returned by every publish.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishAlert records the alert.
func (f *FakePublisher) PublishAlert(alert capture.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatAlertPayload(alert)
	if err != nil {
		return err
	}
	f.Alerts = append(f.Alerts, alert)
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// PublishSession records the session event.
func (f *FakePublisher) PublishSession(event capture.SessionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatSessionPayload(event)
	if err != nil {
		return err
	}
	f.Sessions = append(f.Sessions, event)
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// AlertCount returns the number of recorded alerts.
func (f *FakePublisher) AlertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Alerts)
}
