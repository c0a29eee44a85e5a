package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"KeeperInfo", &KeeperInfo{}, "keeper_infos"},
		{"KeeperPerformance", &KeeperPerformance{}, "keeper_performances"},
		{"World", &World{}, "worlds"},
		{"Session", &Session{}, "sessions"},
		{"VaultEntry", &VaultEntry{}, "vault_entries"},
		{"VaultBarricade", &VaultBarricade{}, "vault_barricades"},
		{"VaultStructure", &VaultStructure{}, "vault_structures"},
		{"CaptureEvent", &CaptureEvent{}, "capture_events"},
		{"RestoreEvent", &RestoreEvent{}, "restore_events"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModels_CoverAllTables(t *testing.T) {
	assert.Len(t, DatabaseModels, 9)
	assert.Len(t, DatabaseModelsSQLite, len(DatabaseModels))
}
