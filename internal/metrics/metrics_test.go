package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/errors"
	"codeberg.org/mutker/drowsyctl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = filepath.Join(t.TempDir(), "db", "metrics.db")
	cfg.BatchSize = 2
	cfg.BatchTimeout = time.Hour
	return cfg
}

func countRows(t *testing.T, path, table string) int {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestDisabledServiceIsNoop(t *testing.T) {
	c, err := NewService(DefaultConfig(), logger.Nop())
	require.NoError(t, err)

	require.NoError(t, c.RecordSample(context.Background(), &Sample{}))
	n, err := c.AlertsSince(context.Background(), epoch)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, c.Close())
}

func TestEnabledWithoutPathIsRejected(t *testing.T) {
	_, err := NewService(Config{Enabled: true}, logger.Nop())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidConfig))
}

func TestRecordSamplesBatchesAndFlushesOnClose(t *testing.T) {
	cfg := testConfig(t)
	c, err := NewService(cfg, logger.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, c.RecordSample(ctx, &Sample{
			Timestamp: epoch.Add(time.Duration(i) * 100 * time.Millisecond),
			SessionID: "s1",
			EAR:       0.3,
			Status:    "Normal",
			Measured:  true,
		}))
	}
	require.NoError(t, c.RecordSample(ctx, &Sample{Timestamp: epoch, SessionID: "s1", Status: "NotDetected"}))

	assert.Equal(t, 4, countRows(t, cfg.DBPath, "samples"), "two full batches flushed")

	require.NoError(t, c.Close())
	assert.Equal(t, 4, countRows(t, cfg.DBPath, "samples"))
}

func TestPartialBatchFlushedOnClose(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchSize = 10
	c, err := NewService(cfg, logger.Nop())
	require.NoError(t, err)

	require.NoError(t, c.RecordSample(context.Background(), &Sample{Timestamp: epoch, SessionID: "s1", EAR: 0.2, Status: "Drowsy", Measured: true}))
	assert.Zero(t, countRows(t, cfg.DBPath, "samples"))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "close is idempotent")
	assert.Equal(t, 1, countRows(t, cfg.DBPath, "samples"))
}

func TestAlertsSince(t *testing.T) {
	cfg := testConfig(t)
	c, err := NewService(cfg, logger.Nop())
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	for _, offset := range []time.Duration{0, 40 * time.Second, 90 * time.Second} {
		require.NoError(t, c.RecordAlert(ctx, &Alert{Timestamp: epoch.Add(offset), SessionID: "s1", EAR: 0.15, Consecutive: 3}))
	}

	n, err := c.AlertsSince(ctx, epoch.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRecordNilIsRejected(t *testing.T) {
	c, err := NewService(testConfig(t), logger.Nop())
	require.NoError(t, err)
	defer c.Close()

	assert.True(t, errors.HasCode(c.RecordSample(context.Background(), nil), ErrInvalidMetrics))
	assert.True(t, errors.HasCode(c.RecordAlert(context.Background(), nil), ErrInvalidMetrics))
}

func TestRecordAfterCancel(t *testing.T) {
	c, err := NewService(testConfig(t), logger.Nop())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = c.RecordSample(ctx, &Sample{Timestamp: epoch, SessionID: "s1", Status: "Normal"})
	assert.True(t, errors.HasCode(err, ErrOperationTimeout))
}

func TestSchemaMismatchBacksUpAndRecreates(t *testing.T) {
	cfg := testConfig(t)
	cfg.BackupDir = filepath.Join(t.TempDir(), "backups")
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755))

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_versions VALUES (99, datetime('now'));`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	repo, err := NewRepository(cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	backups, err := os.ReadDir(cfg.BackupDir)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Contains(t, backups[0].Name(), "metrics_v99_")

	db, err = sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)

	exists, err := TableExists(db, "alerts")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCurrentSchemaIsKept(t *testing.T) {
	cfg := testConfig(t)

	repo, err := NewRepository(cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, repo.RecordAlert(&Alert{Timestamp: epoch, SessionID: "s1", EAR: 0.1, Consecutive: 3}))
	require.NoError(t, repo.Close())

	repo, err = NewRepository(cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	assert.Equal(t, 1, countRows(t, cfg.DBPath, "alerts"))
	_, err = os.Stat(cfg.backupDir())
	assert.True(t, os.IsNotExist(err), "no backup for a current schema")
}

func TestPruneBackupsKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("%s1_20260101T0000%02d.000Z.db", backupPrefix, i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))

	pruneBackups(dir, logger.Nop())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Len(t, names, keepBackups+1)
	assert.Contains(t, names, "notes.txt")
	assert.Contains(t, names, backupPrefix+"1_20260101T000007.000Z.db")
	assert.NotContains(t, names, backupPrefix+"1_20260101T000000.000Z.db")
}
