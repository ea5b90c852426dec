package web

import (
	"encoding/json"
	"net/http"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/capture"
	"codeberg.org/mutker/drowsyctl/internal/earlog"
	"codeberg.org/mutker/drowsyctl/internal/status"
)

// StatusJSON is the /index.json document.
type StatusJSON struct {
	State         string         `json:"state"`
	SessionID     string         `json:"session_id,omitempty"`
	Status        string         `json:"status"`
	EAR           float64        `json:"ear"`
	LastFrame     *time.Time     `json:"last_frame,omitempty"`
	LastAlert     *capture.Alert `json:"last_alert,omitempty"`
	Stats         capture.Stats  `json:"stats"`
	MQTTConnected bool           `json:"mqtt_connected"`
	Uptime        string         `json:"uptime"`
	Config        ConfigJSON     `json:"config"`
}

// ConfigJSON is the configuration section of StatusJSON.
type ConfigJSON struct {
	Device    int     `json:"device"`
	Threshold float64 `json:"threshold"`
	RunLength int     `json:"run_length"`
	Cooldown  string  `json:"cooldown"`
	CadenceHz float64 `json:"cadence_hz"`
	LogFile   string  `json:"log_file"`
	Detector  string  `json:"detector"`
	Broker    string  `json:"broker,omitempty"`
	HTTPAddr  string  `json:"http_addr"`
}

// HistoryJSON is the /history.json document.
type HistoryJSON struct {
	Window  string         `json:"window"`
	Summary earlog.Summary `json:"summary"`
	Recent  []SampleJSON   `json:"recent"`
	Error   string         `json:"error,omitempty"`
}

// SampleJSON is one logged measurement.
type SampleJSON struct {
	Time   time.Time `json:"timestamp"`
	EAR    float64   `json:"ear"`
	Status string    `json:"status"`
}

// StreamMessage is one websocket frame. Type is "result" or "alert".
type StreamMessage struct {
	Type        string    `json:"type"`
	SessionID   string    `json:"session_id"`
	Time        time.Time `json:"timestamp"`
	EAR         float64   `json:"ear"`
	Status      string    `json:"status,omitempty"`
	Consecutive int       `json:"consecutive,omitempty"`
}

func formatStatus(snap status.Snapshot) StatusJSON {
	sj := StatusJSON{
		State:         snap.State.String(),
		SessionID:     snap.SessionID,
		Status:        snap.LastStatus.String(),
		EAR:           snap.LastEAR,
		LastAlert:     snap.LastAlert,
		Stats:         snap.Stats,
		MQTTConnected: snap.MQTTConnected,
		Uptime:        snap.Uptime().Truncate(time.Second).String(),
		Config: ConfigJSON{
			Device:    snap.Config.Device,
			Threshold: snap.Config.Threshold,
			RunLength: snap.Config.RunLength,
			Cooldown:  snap.Config.Cooldown.String(),
			CadenceHz: snap.Config.CadenceHz,
			LogFile:   snap.Config.LogFile,
			Detector:  snap.Config.Detector,
			Broker:    snap.Config.Broker,
			HTTPAddr:  snap.Config.HTTPAddr,
		},
	}
	if !snap.LastFrame.IsZero() {
		t := snap.LastFrame
		sj.LastFrame = &t
	}
	return sj
}

func formatSample(s earlog.Sample) SampleJSON {
	return SampleJSON{Time: s.Time, EAR: s.EAR, Status: s.Status.String()}
}

func resultMessage(r capture.Result) StreamMessage {
	return StreamMessage{
		Type:      "result",
		SessionID: r.SessionID,
		Time:      r.Time,
		EAR:       r.EAR,
		Status:    r.Status.String(),
	}
}

func alertMessage(a capture.Alert) StreamMessage {
	return StreamMessage{
		Type:        "alert",
		SessionID:   a.SessionID,
		Time:        a.Time,
		EAR:         a.EAR,
		Consecutive: a.Consecutive,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
