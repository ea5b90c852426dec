package metrics

import (
	"context"

	"codeberg.org/mutker/drowsyctl/internal/capture"
	"codeberg.org/mutker/drowsyctl/internal/logger"
)

// Forward records every frame result and alert of loop until the returned
// function is called or the loop is closed.
func Forward(ctx context.Context, loop *capture.Loop, c Collector, log logger.Logger) func() {
	stopResults := loop.OnResult(func(r capture.Result) {
		err := c.RecordSample(ctx, &Sample{
			Timestamp: r.Time,
			SessionID: r.SessionID,
			EAR:       r.EAR,
			Status:    r.Status.String(),
			Measured:  r.Measured(),
		})
		if err != nil {
			log.Debug().Err(err).Msg("Failed to record sample")
		}
	})
	stopAlerts := loop.OnAlert(func(a capture.Alert) {
		err := c.RecordAlert(ctx, &Alert{
			Timestamp:   a.Time,
			SessionID:   a.SessionID,
			EAR:         a.EAR,
			Consecutive: a.Consecutive,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to record alert")
		}
	})

	return func() {
		stopResults()
		stopAlerts()
	}
}
