package patchaudit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	tests := []struct {
		name          string
		dsn           string
		expectedError bool
		errorContains string
	}{
		{name: "memory database", dsn: ":memory:", expectedError: false},
		{name: "URL DSN without credentials", dsn: "libsql://127.0.0.1:19999", expectedError: true, errorContains: "failed to connect"},
		{name: "HTTP URL without server", dsn: "http://127.0.0.1:19999/db", expectedError: true, errorContains: "failed to connect"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := Connect(tt.dsn, false)
			if tt.expectedError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, db)
		})
	}
}

func TestRecorderRoundTrip(t *testing.T) {
	db, err := Connect(":memory:", false)
	require.NoError(t, err)

	rec, err := NewRecorder(db, "mem://fixture", map[string]string{"ENDIAN": "big"})
	require.NoError(t, err)

	require.NoError(t, rec.RecordSnapshot(map[uint64][2]byte{
		0x10: {0x00, 0xFF},
		0x11: {0x01, 0xEE},
	}))
	require.NoError(t, rec.RecordSnapshot(map[uint64][2]byte{
		0x12: {0x02, 0xDD},
	}))
	require.NoError(t, rec.Close())

	var sess Session
	require.NoError(t, db.First(&sess, "id = ?", rec.sessionID).Error)
	assert.Equal(t, 2, sess.SnapshotsCount)
	assert.Equal(t, 3, sess.PatchesCount)
	assert.NotNil(t, sess.EndedAt)
	assert.Contains(t, string(sess.Env), `"ENDIAN":"big"`)

	snaps, err := SnapshotsForSession(db, rec.sessionID)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Len(t, snaps[0].Edits, 2)
	assert.Len(t, snaps[1].Edits, 1)
}
