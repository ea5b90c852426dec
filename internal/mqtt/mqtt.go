// Package mqtt publishes alerts and session lifecycle events to a broker.
package mqtt

import (
	"encoding/json"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/capture"
)

// Publisher publishes capture events to MQTT.
type Publisher interface {
	// PublishAlert sends a drowsiness alert. Failures must not stop capture.
	PublishAlert(alert capture.Alert) error

	// PublishSession sends a session start or stop event.
	PublishSession(event capture.SessionEvent) error

	// Close disconnects from the broker.
	Close() error
}

// Topics holds the topics derived from a prefix.
type Topics struct {
	Alerts  string
	Session string
	Status  string
}

// TopicsFor derives the topic set for prefix.
func TopicsFor(prefix string) Topics {
	return Topics{
		Alerts:  prefix + "/alerts",
		Session: prefix + "/session",
		Status:  prefix + "/status",
	}
}

// AlertPayload is the MQTT message payload for alerts.
type AlertPayload struct {
	Alert AlertPayloadInner `json:"alert"`
}

// AlertPayloadInner contains the alert details.
type AlertPayloadInner struct {
	Timestamp   string  `json:"timestamp"`
	Session     string  `json:"session"`
	EAR         float64 `json:"ear"`
	Consecutive int     `json:"consecutive"`
}

// FormatAlertPayload creates the JSON payload for an alert.
func FormatAlertPayload(alert capture.Alert) ([]byte, error) {
	return json.Marshal(AlertPayload{
		Alert: AlertPayloadInner{
			Timestamp:   alert.Time.UTC().Format(time.RFC3339Nano),
			Session:     alert.SessionID,
			EAR:         alert.EAR,
			Consecutive: alert.Consecutive,
		},
	})
}

// SessionPayload is the MQTT message payload for session events.
type SessionPayload struct {
	Session SessionPayloadInner `json:"session"`
}

// SessionPayloadInner contains the session event details.
type SessionPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	ID        string `json:"id"`
	Device    int    `json:"device"`
}

// FormatSessionPayload creates the JSON payload for a session event.
func FormatSessionPayload(event capture.SessionEvent) ([]byte, error) {
	return json.Marshal(SessionPayload{
		Session: SessionPayloadInner{
			Timestamp: event.Time.UTC().Format(time.RFC3339),
			Event:     string(event.Kind),
			ID:        event.SessionID,
			Device:    event.Device,
		},
	})
}
