package metrics

import (
	"database/sql"

	"codeberg.org/mutker/drowsyctl/internal/errors"
	"codeberg.org/mutker/drowsyctl/internal/logger"
)

const (
	SchemaVersion = 1

	// SQL statements derived from schema
	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS samples (
	       id          INTEGER PRIMARY KEY AUTOINCREMENT,
	       timestamp   INTEGER NOT NULL CHECK (typeof(timestamp) = 'integer'),
	       session_id  TEXT NOT NULL,
	       ear         REAL,
	       status      TEXT NOT NULL CHECK (status IN ('Normal', 'Drowsy', 'NotDetected')),
	       measured    INTEGER NOT NULL CHECK (measured IN (0, 1))
	   );
	   CREATE INDEX IF NOT EXISTS samples_timestamp ON samples (timestamp);
	   CREATE TABLE IF NOT EXISTS alerts (
	       id          INTEGER PRIMARY KEY AUTOINCREMENT,
	       timestamp   INTEGER NOT NULL CHECK (typeof(timestamp) = 'integer'),
	       session_id  TEXT NOT NULL,
	       ear         REAL NOT NULL,
	       consecutive INTEGER NOT NULL CHECK (consecutive > 0)
	   );
	   CREATE INDEX IF NOT EXISTS alerts_timestamp ON alerts (timestamp);`

	insertSampleSQL = `
    INSERT INTO samples (
        timestamp, session_id, ear, status, measured
    ) VALUES (?, ?, ?, ?, ?)`

	insertAlertSQL = `
    INSERT INTO alerts (
        timestamp, session_id, ear, consecutive
    ) VALUES (?, ?, ?, ?)`

	insertVersionSQL = `
    INSERT INTO schema_versions (version, applied_at) VALUES (?, datetime('now'))`

	countAlertsSinceSQL = `
    SELECT COUNT(*) FROM alerts WHERE timestamp >= ?`
)

// InitSchema creates the tables and records SchemaVersion.
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	err := inTx(db, log, func(tx *sql.Tx) error {
		if _, err := tx.Exec(createTablesSQL); err != nil {
			return errFactory.WithData(ErrSchemaInitFailed, step{Phase: "create_tables", Error: err.Error()})
		}
		if _, err := tx.Exec(insertVersionSQL, SchemaVersion); err != nil {
			return errFactory.WithData(ErrSchemaInitFailed, step{Phase: "record_version", Error: err.Error()})
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Int("version", SchemaVersion).Msg("Metrics schema initialized")
	return nil
}

// GetSchemaVersion returns the current schema version, or 0 for an empty
// database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, step{Phase: "get_version", Error: err.Error()})
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	errFactory := errors.New()
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errFactory.WithData(ErrSchemaValidationFailed, step{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}
