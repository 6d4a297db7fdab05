package patchaudit

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	libsql "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens (and migrates) the audit database at dsn, mirroring the
// teacher's db.Connect: a plain file path is opened directly through
// gorm.io/driver/sqlite, while an http(s)/libsql URL is routed through the
// libsql connector for remote (Turso-style) audit databases.
func Connect(dsn string, debug bool) (*gorm.DB, error) {
	if !isURL(dsn) {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create audit database directory: %w", err)
			}
		}
	}

	cfg := &gorm.Config{}
	if debug {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var (
		dialector gorm.Dialector
		conn      *sql.DB
	)
	if isURL(dsn) {
		var (
			connector driver.Connector
			err       error
		)
		if token := os.Getenv("PATTERNLANG_LIBSQL_AUTH_TOKEN"); token != "" {
			connector, err = libsql.NewConnector(dsn, libsql.WithAuthToken(token))
		} else {
			connector, err = libsql.NewConnector(dsn)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create libsql connector: %w", err)
		}
		conn = sql.OpenDB(connector)
		dialector = sqlite.New(sqlite.Config{DriverName: "libsql", Conn: conn, DSN: dsn})
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, fmt.Errorf("failed to connect audit database: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Exec("PRAGMA foreign_keys = ON")
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("audit migration failed: %w", err)
	}
	return db, nil
}

func isURL(dsn string) bool {
	return len(dsn) > 7 && (dsn[:7] == "http://" || dsn[:8] == "https://" || dsn[:6] == "libsql")
}

// Migrate creates/updates the audit schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Session{}, &Snapshot{}, &ByteEdit{})
}

// Recorder persists a Provider's patch history to an audit database as it
// is produced, used by a host that wants a durable trail of every edit made
// during an interactive session (the in-process undo/redo stacks in
// internal/provider remain the evaluator-visible source of truth; this is
// a write-behind log for external review).
type Recorder struct {
	db        *gorm.DB
	sessionID string
	seq       int
}

// NewRecorder opens a Session row for providerURI and returns a Recorder
// bound to it. env, if non-nil, is the env_vars/in_vars map the run was
// executed with and is stored verbatim as JSON for later review.
func NewRecorder(db *gorm.DB, providerURI string, env map[string]string) (*Recorder, error) {
	sess := &Session{ID: uuid.NewString(), ProviderURI: providerURI}
	if len(env) > 0 {
		raw, err := json.Marshal(env)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal audit session env: %w", err)
		}
		sess.Env = datatypes.JSON(raw)
	}
	if err := db.Create(sess).Error; err != nil {
		return nil, fmt.Errorf("failed to open audit session: %w", err)
	}
	return &Recorder{db: db, sessionID: sess.ID}, nil
}

// RecordSnapshot writes one undo-point as a Snapshot row plus one ByteEdit
// row per address in edits (before/after as observed by the caller, which
// already knows both values since it is computing the patch being applied).
func (r *Recorder) RecordSnapshot(edits map[uint64][2]byte) error {
	if len(edits) == 0 {
		return nil
	}
	snap := &Snapshot{ID: uuid.NewString(), SessionID: r.sessionID, Sequence: r.seq}
	for addr, ba := range edits {
		snap.Edits = append(snap.Edits, ByteEdit{Address: addr, Before: ba[0], After: ba[1]})
	}
	if err := r.db.Create(snap).Error; err != nil {
		return fmt.Errorf("failed to record audit snapshot: %w", err)
	}
	r.seq++
	return r.db.Model(&Session{}).Where("id = ?", r.sessionID).
		Updates(map[string]any{
			"snapshots_count": gorm.Expr("snapshots_count + 1"),
			"patches_count":   gorm.Expr("patches_count + ?", len(edits)),
		}).Error
}

// Close marks the session ended.
func (r *Recorder) Close() error {
	return r.db.Model(&Session{}).Where("id = ?", r.sessionID).
		Update("ended_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

// SnapshotsForSession loads every Snapshot (with its edits) recorded for a
// session, ordered by sequence, for host-side review/replay tooling.
func SnapshotsForSession(db *gorm.DB, sessionID string) ([]Snapshot, error) {
	var out []Snapshot
	err := db.Preload("Edits").Where("session_id = ?", sessionID).Order("sequence asc").Find(&out).Error
	return out, err
}
