package mqtt

import (
	"codeberg.org/mutker/drowsyctl/internal/capture"
	"codeberg.org/mutker/drowsyctl/internal/logger"
)

// Forward publishes the loop's alerts and session events until the returned
// function is called or the loop is closed. Publish failures are logged.
func Forward(loop *capture.Loop, pub Publisher, log logger.Logger) func() {
	stopAlerts := loop.OnAlert(func(a capture.Alert) {
		if err := pub.PublishAlert(a); err != nil {
			log.Warn().Err(err).Str("session", a.SessionID).Msg("Failed to publish alert")
		}
	})
	stopSessions := loop.OnSession(func(e capture.SessionEvent) {
		if err := pub.PublishSession(e); err != nil {
			log.Warn().Err(err).Str("session", e.SessionID).Msg("Failed to publish session event")
		}
	})

	return func() {
		stopAlerts()
		stopSessions()
	}
}
