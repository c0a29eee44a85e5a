package v1

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/motorpool/extension/v2/pkg/core"
)

func testVaultData() VaultData {
	return VaultData{
		Session: &core.Session{
			ID:               3,
			ServerName:       "Pacific Vault",
			ServerProfile:    "server02",
			StartTime:        time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
			AddonVersion:     "1.2.0",
			ExtensionVersion: "2.1.0",
			ExtensionBuild:   "2026-04-20",
			Tag:              "S16",
		},
		World: &core.World{ID: 2, WorldName: "pacific", DisplayName: "Pacific"},
	}
}

func TestBuildRequiresSession(t *testing.T) {
	_, err := Build(VaultData{})
	if err == nil {
		t.Fatal("expected error building manifest without session")
	}
}

func TestBuildHeaderFields(t *testing.T) {
	manifest, err := Build(testVaultData())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if manifest.ServerName != "Pacific Vault" {
		t.Errorf("expected server name, got %q", manifest.ServerName)
	}
	if manifest.ServerProfile != "server02" {
		t.Errorf("expected server profile, got %q", manifest.ServerProfile)
	}
	if manifest.WorldName != "pacific" {
		t.Errorf("expected world name, got %q", manifest.WorldName)
	}
	if manifest.Tag != "S16" {
		t.Errorf("expected tag, got %q", manifest.Tag)
	}
	if manifest.AddonVersion != "1.2.0" || manifest.ExtensionVersion != "2.1.0" || manifest.ExtensionBuild != "2026-04-20" {
		t.Errorf("expected versions carried over, got %q / %q / %q",
			manifest.AddonVersion, manifest.ExtensionVersion, manifest.ExtensionBuild)
	}
	if _, err := time.Parse(time.RFC3339, manifest.ExportedAt); err != nil {
		t.Errorf("expected RFC3339 ExportedAt, got %q: %v", manifest.ExportedAt, err)
	}

	// Empty collections marshal as [] rather than null
	if manifest.Entries == nil || manifest.Captures == nil || manifest.Restores == nil {
		t.Error("expected non-nil collections in empty manifest")
	}
}

func TestBuildWithoutWorld(t *testing.T) {
	data := testVaultData()
	data.World = nil

	manifest, err := Build(data)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if manifest.WorldName != "" {
		t.Errorf("expected empty world name, got %q", manifest.WorldName)
	}
}

func TestBuildSortsEntriesByID(t *testing.T) {
	data := testVaultData()
	for _, id := range []uint{3, 1, 2} {
		data.Entries = append(data.Entries, EntryData{
			Entry: core.VaultEntry{ID: id, SessionID: 3},
		})
	}

	manifest, err := Build(data)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(manifest.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(manifest.Entries))
	}
	for i, want := range []uint{1, 2, 3} {
		if manifest.Entries[i].ID != want {
			t.Errorf("expected entry %d at index %d, got %d", want, i, manifest.Entries[i].ID)
		}
	}
}

func TestBuildEntrySummary(t *testing.T) {
	guid := uuid.MustParse("5d41c3a4-1b6e-4f7a-9c0d-2e8b51a6f3d9")
	savedAt := time.Date(2026, 5, 1, 13, 30, 0, 0, time.UTC)

	data := testVaultData()
	data.Entries = []EntryData{{
		Entry: core.VaultEntry{
			ID:            7,
			SessionID:     3,
			OwnerIdentity: 76561198012345678,
			GroupIdentity: 42,
			DefinitionID:  142,
			Label:         "armored transport",
			SavedAt:       savedAt,
		},
		Snapshot: core.CompositeSnapshot{
			DefinitionID:   142,
			DefinitionGUID: guid,
			InstanceID:     9001,
			Integrity:      720,
			FuelLevel:      450,
			Barricades:     make([]core.BarricadeSnapshot, 2),
			Structures:     make([]core.StructureSnapshot, 1),
			Cargo: core.CargoSnapshot{
				Items: make([]core.CargoItem, 3),
			},
		},
	}}

	manifest, err := Build(data)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	entry := manifest.Entries[0]
	if entry.Label != "armored transport" {
		t.Errorf("expected label, got %q", entry.Label)
	}
	if entry.DefinitionGUID != guid.String() {
		t.Errorf("expected GUID string %q, got %q", guid.String(), entry.DefinitionGUID)
	}
	if entry.SavedAt != "2026-05-01T13:30:00Z" {
		t.Errorf("expected RFC3339 SavedAt, got %q", entry.SavedAt)
	}
	if entry.Integrity != 720 || entry.FuelLevel != 450 {
		t.Errorf("expected summary from snapshot, got integrity %d fuel %d", entry.Integrity, entry.FuelLevel)
	}
	if entry.BarricadeCount != 2 || entry.StructureCount != 1 || entry.CargoItemCount != 3 {
		t.Errorf("expected counts 2/1/3, got %d/%d/%d",
			entry.BarricadeCount, entry.StructureCount, entry.CargoItemCount)
	}
	if entry.Snapshot.InstanceID != 9001 {
		t.Errorf("expected embedded snapshot, got instance %d", entry.Snapshot.InstanceID)
	}
}

func TestBuildEntryNilGUID(t *testing.T) {
	data := testVaultData()
	data.Entries = []EntryData{{
		Entry:    core.VaultEntry{ID: 1},
		Snapshot: core.CompositeSnapshot{DefinitionID: 12},
	}}

	manifest, err := Build(data)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if manifest.Entries[0].DefinitionGUID != "" {
		t.Errorf("expected empty GUID for legacy entry, got %q", manifest.Entries[0].DefinitionGUID)
	}
}

func TestBuildCaptureRows(t *testing.T) {
	data := testVaultData()
	data.CaptureEvents = []core.CaptureEvent{{
		SessionID:     3,
		EntryID:       7,
		InstanceID:    9001,
		ActorIdentity: 76561198012345678,
		Time:          time.Date(2026, 5, 1, 13, 30, 0, 0, time.UTC),
		Position:      core.Position3D{X: 4096.5, Y: 8192.25, Z: 33},
	}}

	manifest, err := Build(data)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(manifest.Captures) != 1 {
		t.Fatalf("expected 1 capture row, got %d", len(manifest.Captures))
	}

	row := manifest.Captures[0]
	if len(row) != 5 {
		t.Fatalf("expected 5 fields per capture row, got %d", len(row))
	}
	if row[0].(string) != "2026-05-01T13:30:00Z" {
		t.Errorf("expected RFC3339 time, got %v", row[0])
	}
	if row[1].(uint) != 7 {
		t.Errorf("expected entry ID 7, got %v", row[1])
	}
	if row[2].(uint32) != 9001 {
		t.Errorf("expected instance ID 9001, got %v", row[2])
	}
	if row[3].(uint64) != 76561198012345678 {
		t.Errorf("expected actor identity, got %v", row[3])
	}
	pos := row[4].([]float64)
	if pos[0] != 4096.5 || pos[1] != 8192.25 || pos[2] != 33 {
		t.Errorf("expected position [4096.5 8192.25 33], got %v", pos)
	}
}

func TestBuildRestoreRows(t *testing.T) {
	data := testVaultData()
	data.RestoreEvents = []core.RestoreEvent{
		{EntryID: 7, NewInstanceID: 9050, Rebound: true, Time: time.Date(2026, 5, 1, 14, 0, 0, 0, time.UTC)},
		{EntryID: 8, NewInstanceID: 9051, Rebound: false, Time: time.Date(2026, 5, 1, 14, 5, 0, 0, time.UTC)},
	}

	manifest, err := Build(data)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(manifest.Restores) != 2 {
		t.Fatalf("expected 2 restore rows, got %d", len(manifest.Restores))
	}

	row := manifest.Restores[0]
	if len(row) != 6 {
		t.Fatalf("expected 6 fields per restore row, got %d", len(row))
	}
	if row[2].(uint32) != 9050 {
		t.Errorf("expected new instance ID 9050, got %v", row[2])
	}
	if row[4].(int) != 1 {
		t.Errorf("expected rebound encoded as 1, got %v", row[4])
	}
	if manifest.Restores[1][4].(int) != 0 {
		t.Errorf("expected non-rebound encoded as 0, got %v", manifest.Restores[1][4])
	}
}

func TestGuidString(t *testing.T) {
	if got := guidString(uuid.Nil); got != "" {
		t.Errorf("expected empty string for nil GUID, got %q", got)
	}

	guid := uuid.MustParse("9f2c6a1e-4d3b-4c8a-b5e7-1a0d8f6c2b4e")
	if got := guidString(guid); got != "9f2c6a1e-4d3b-4c8a-b5e7-1a0d8f6c2b4e" {
		t.Errorf("expected GUID string, got %q", got)
	}
}

func TestBoolToInt(t *testing.T) {
	tests := []struct {
		name  string
		input bool
		want  int
	}{
		{"true", true, 1},
		{"false", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := boolToInt(tt.input); got != tt.want {
				t.Errorf("boolToInt(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}
