package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/analyzer"
	"codeberg.org/mutker/drowsyctl/internal/camera"
	"codeberg.org/mutker/drowsyctl/internal/config"
	"codeberg.org/mutker/drowsyctl/internal/earlog"
	"codeberg.org/mutker/drowsyctl/internal/logger"
	"codeberg.org/mutker/drowsyctl/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// Keep host configuration out of the test.
	empty := filepath.Join(t.TempDir(), "drowsyctl.toml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	t.Setenv("DROWSYCTL_CONFIG", empty)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")
	t.Cleanup(func() { SetVersionInfo("dev", "none", "unknown") })

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "drowsyctl 1.2.3")
	assert.Contains(t, out, "commit: abc123")
}

func TestReportCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ear_log.csv")
	log := earlog.New(path)
	now := time.Now()
	require.NoError(t, log.Append(earlog.Sample{Time: now.Add(-2 * time.Second), EAR: 0.30, Status: analyzer.Normal}))
	require.NoError(t, log.Append(earlog.Sample{Time: now.Add(-time.Second), EAR: 0.16, Status: analyzer.Drowsy}))

	out, err := execute(t, "report", "--log-file", path, "--window", "1h", "--tail", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Last 1h0m0s")
	assert.Contains(t, out, "1 (50.0%)")
	assert.Contains(t, out, "mean 0.2300")
	assert.NotContains(t, out, "Alerts")
}

func TestReportCommandRejectsInvalidThreshold(t *testing.T) {
	t.Cleanup(func() {
		require.NoError(t, rootCmd.PersistentFlags().Set("threshold", "0.21"))
	})

	_, err := execute(t, "report", "--threshold", "1.5")
	require.Error(t, err)
}

func TestBuildReportToleratesSchemaError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ear_log.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,status\n"), 0o644))

	reportWindow = time.Minute
	reportTail = 5
	r, err := buildReport(reportCmd, &config.Config{LogFile: path, Threshold: 0.21})
	require.NoError(t, err)
	assert.Zero(t, r.Summary.Count)
	assert.Empty(t, r.Recent)
	assert.Equal(t, -1, r.Alerts)
}

func TestBuildReportCountsAlertsInWindow(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "metrics.db")

	collector, err := metrics.NewService(metrics.Config{DBPath: dbPath, Enabled: true}, logger.Nop())
	require.NoError(t, err)
	ctx := context.Background()
	for _, age := range []time.Duration{time.Minute, 2 * time.Hour} {
		require.NoError(t, collector.RecordAlert(ctx, &metrics.Alert{
			Timestamp:   time.Now().Add(-age),
			SessionID:   "s1",
			EAR:         0.17,
			Consecutive: 3,
		}))
	}
	require.NoError(t, collector.Close())

	reportWindow = time.Hour
	reportTail = 5
	reportCmd.SetContext(ctx)
	r, err := buildReport(reportCmd, &config.Config{
		LogFile:   filepath.Join(dir, "ear_log.csv"),
		Threshold: 0.21,
		Metrics:   true,
		MetricsDB: dbPath,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Alerts)
}

func TestOpenerForReplayDir(t *testing.T) {
	dir := t.TempDir()
	opener := openerFor(&config.Config{ReplayDir: dir})

	replay, ok := opener.(camera.ReplayOpener)
	require.True(t, ok)
	assert.Equal(t, dir, replay.Dir)
}
