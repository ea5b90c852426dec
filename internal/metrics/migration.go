package metrics

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/errors"
	"codeberg.org/mutker/drowsyctl/internal/logger"
)

const (
	backupPrefix = "drowsyctl_metrics_v"
	keepBackups  = 5
)

// managedTables are dropped when the schema is recreated, children first.
var managedTables = []string{"samples", "alerts", "schema_versions"}

// step describes which part of a schema operation failed.
type step struct {
	Phase string
	Path  string `json:",omitempty"`
	Table string `json:",omitempty"`
	Error string
}

// inTx runs fn in a transaction and rolls back unless fn and the commit succeed.
func inTx(db *sql.DB, log logger.Logger, fn func(*sql.Tx) error) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Debug().Err(rbErr).Msg("Failed to roll back metrics transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	return nil
}

// ValidateAndUpdateSchema brings the database to SchemaVersion. An empty
// database is initialized; a database at any other version is copied to
// backupDir and recreated, since samples are a disposable mirror of the
// measurement log.
func ValidateAndUpdateSchema(db *sql.DB, backupDir string, log logger.Logger) error {
	errFactory := errors.New()

	version, err := GetSchemaVersion(db)
	if err != nil {
		return errFactory.Wrap(ErrSchemaValidationFailed, err)
	}

	switch version {
	case SchemaVersion:
		log.Debug().Int("version", version).Msg("Metrics schema is current")
		return nil
	case 0:
		return InitSchema(db, log)
	}

	log.Warn().
		Int("found", version).
		Int("want", SchemaVersion).
		Msg("Metrics schema version mismatch, recreating")

	path, err := backupDatabase(db, backupDir, version)
	if err != nil {
		return errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}
	log.Info().Str("path", path).Int("version", version).Msg("Metrics database backed up")
	pruneBackups(backupDir, log)

	err = inTx(db, log, func(tx *sql.Tx) error {
		for _, table := range managedTables {
			if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
				return errFactory.WithData(ErrSchemaMigrationFailed, step{
					Phase: "drop_table",
					Table: table,
					Error: err.Error(),
				})
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return InitSchema(db, log)
}

// backupDatabase copies the live database with VACUUM INTO, which needs no
// open transaction.
func backupDatabase(db *sql.DB, dir string, version int) (string, error) {
	errFactory := errors.New()

	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return "", errFactory.WithData(ErrStorageAccess, step{
			Phase: "create_backup_dir",
			Path:  dir,
			Error: err.Error(),
		})
	}

	name := fmt.Sprintf("%s%d_%s.db", backupPrefix, version, time.Now().UTC().Format("20060102T150405.000Z"))
	path := filepath.Join(dir, name)

	if _, err := db.Exec("VACUUM INTO ?", path); err != nil {
		return "", errFactory.WithData(ErrStorageAccess, step{
			Phase: "vacuum_into",
			Path:  path,
			Error: err.Error(),
		})
	}

	return path, nil
}

// pruneBackups keeps the newest keepBackups files. Names sort by time.
func pruneBackups(dir string, log logger.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Debug().Err(err).Str("dir", dir).Msg("Failed to list metrics backups")
		return
	}

	var backups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) {
			backups = append(backups, e.Name())
		}
	}
	if len(backups) <= keepBackups {
		return
	}

	slices.SortFunc(backups, func(a, b string) int {
		return strings.Compare(backupStamp(a), backupStamp(b))
	})
	for _, name := range backups[:len(backups)-keepBackups] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			log.Debug().Err(err).Str("file", name).Msg("Failed to remove old metrics backup")
		}
	}
}

// backupStamp returns the timestamp part of a backup file name.
func backupStamp(name string) string {
	if i := strings.LastIndexByte(name, '_'); i >= 0 {
		return name[i+1:]
	}
	return name
}
