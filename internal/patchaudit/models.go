// Package patchaudit provides an optional SQLite-backed audit trail for a
// Provider's patch history: one row per edited byte, grouped into
// snapshots that mirror the undo/redo stack of spec.md §4.6, grounded on
// the teacher's db/sqlite.go connection setup and models/models.go schema
// shape.
package patchaudit

import (
	"time"

	"gorm.io/datatypes"
)

// Snapshot is one undo-point: the set of byte edits that were open when a
// new snapshot was opened (AddPatch's newSnapshot=true), or the final
// still-open snapshot.
type Snapshot struct {
	ID        string `gorm:"primaryKey;type:varchar(32)"`
	SessionID string `gorm:"type:varchar(32);index"`
	Sequence  int    `gorm:"index"` // position in the session's undo stack, 0-based

	CreatedAt time.Time `gorm:"autoCreateTime"`

	Edits []ByteEdit `gorm:"foreignKey:SnapshotID"`
}

// ByteEdit is a single address/value patch belonging to a Snapshot.
type ByteEdit struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	SnapshotID string `gorm:"type:varchar(32);index"`

	Address uint64 `gorm:"index"`
	Before  byte
	After   byte
}

// Session tracks one provider-editing session from open to close, mirroring
// the teacher's models.Session.
type Session struct {
	ID          string `gorm:"primaryKey;type:varchar(32)"`
	ProviderURI string `gorm:"type:varchar(255)"`
	StartedAt   time.Time `gorm:"autoCreateTime"`
	EndedAt     *time.Time

	SnapshotsCount int `gorm:"default:0"`
	PatchesCount   int `gorm:"default:0"`

	// Env holds the host-supplied env_vars/in_vars the run was executed
	// with (spec.md §6's execute_string/execute_file parameters), stored as
	// opaque JSON for later audit review.
	Env datatypes.JSON
}

func (Snapshot) TableName() string { return "patch_snapshots" }
func (ByteEdit) TableName() string { return "patch_byte_edits" }
func (Session) TableName() string  { return "patch_sessions" }
