package mqtt

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/alert"
	"codeberg.org/mutker/drowsyctl/internal/analyzer"
	"codeberg.org/mutker/drowsyctl/internal/camera"
	"codeberg.org/mutker/drowsyctl/internal/capture"
	"codeberg.org/mutker/drowsyctl/internal/earlog"
	"codeberg.org/mutker/drowsyctl/internal/landmark"
	"codeberg.org/mutker/drowsyctl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicsFor(t *testing.T) {
	topics := TopicsFor("cabin/driver")

	assert.Equal(t, "cabin/driver/alerts", topics.Alerts)
	assert.Equal(t, "cabin/driver/session", topics.Session)
	assert.Equal(t, "cabin/driver/status", topics.Status)
}

func TestFormatAlertPayload(t *testing.T) {
	payload, err := FormatAlertPayload(capture.Alert{
		SessionID:   "abc",
		Time:        time.Date(2026, 2, 2, 22, 18, 12, 500_000_000, time.UTC),
		EAR:         0.1532,
		Consecutive: 3,
	})
	require.NoError(t, err)

	var parsed AlertPayload
	require.NoError(t, json.Unmarshal(payload, &parsed))

	assert.Equal(t, "2026-02-02T22:18:12.5Z", parsed.Alert.Timestamp)
	assert.Equal(t, "abc", parsed.Alert.Session)
	assert.InDelta(t, 0.1532, parsed.Alert.EAR, 1e-9)
	assert.Equal(t, 3, parsed.Alert.Consecutive)
}

func TestFormatSessionPayload(t *testing.T) {
	payload, err := FormatSessionPayload(capture.SessionEvent{
		Kind:      capture.SessionStopped,
		SessionID: "abc",
		Device:    2,
		Time:      time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"session":{"timestamp":"2026-02-02T22:18:12Z","event":"stopped","id":"abc","device":2}}`,
		string(payload))
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = stderrors.New("broker down")

	assert.Error(t, f.PublishAlert(capture.Alert{}))
	assert.Error(t, f.PublishSession(capture.SessionEvent{}))
	assert.Empty(t, f.Payloads)

	require.NoError(t, f.Close())
	assert.True(t, f.Closed)
}

type discardSink struct{}

func (discardSink) Append(earlog.Sample) error { return nil }

func TestForwardPublishesAlertsAndSessions(t *testing.T) {
	cam := camera.NewFakeCamera(camera.Frame{Width: 640, Height: 480})
	loop := capture.New(
		capture.Config{Interval: time.Millisecond},
		&camera.FakeOpener{Cameras: []*camera.FakeCamera{cam}},
		analyzer.New(landmark.NewScripted(landmark.FaceWithRatio(0.1)), analyzer.DefaultThreshold, nil),
		alert.NewPolicy(alert.Options{RunLength: 3, Cooldown: time.Minute}),
		discardSink{},
	)

	pub := NewFakePublisher()
	Forward(loop, pub, logger.Nop())

	require.NoError(t, loop.Start(context.Background()))
	require.Eventually(t, func() bool { return pub.AlertCount() == 1 }, 2*time.Second, time.Millisecond)
	require.NoError(t, loop.Close())

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.Sessions, 2)
	assert.Equal(t, capture.SessionStarted, pub.Sessions[0].Kind)
	assert.Equal(t, capture.SessionStopped, pub.Sessions[1].Kind)
	assert.Equal(t, pub.Sessions[0].SessionID, pub.Alerts[0].SessionID)
	assert.Equal(t, 3, pub.Alerts[0].Consecutive)
}
