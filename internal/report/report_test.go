package report

import (
	"testing"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/analyzer"
	"codeberg.org/mutker/drowsyctl/internal/earlog"
	"github.com/stretchr/testify/assert"
)

func TestRenderSummary(t *testing.T) {
	first := time.Date(2026, 3, 2, 14, 20, 0, 0, time.Local)
	samples := []earlog.Sample{
		{Time: first, EAR: 0.30, Status: analyzer.Normal},
		{Time: first.Add(time.Minute), EAR: 0.16, Status: analyzer.Drowsy},
	}

	out := Render(Report{
		Path:    "data/ear_log.csv",
		Window:  10 * time.Minute,
		Summary: earlog.Summarize(samples),
		Recent:  samples,
		Alerts:  2,
	})

	assert.Contains(t, out, "Last 10m0s")
	assert.Contains(t, out, "data/ear_log.csv")
	assert.Contains(t, out, "1 (50.0%)")
	assert.Contains(t, out, "mean 0.2300")
	assert.Contains(t, out, "min 0.1600")
	assert.Contains(t, out, "2026-03-02 14:21:00  0.1600")
	assert.Contains(t, out, "Drowsy")
	assert.Contains(t, out, "Alerts")
}

func TestRenderEmpty(t *testing.T) {
	out := Render(Report{Window: time.Minute, Alerts: -1})

	assert.Contains(t, out, "no measurements")
	assert.Contains(t, out, "none")
	assert.NotContains(t, out, "Alerts")
}
