// internal/storage/memory/memory_test.go
package memory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/motorpool/extension/v2/internal/config"
	"github.com/motorpool/extension/v2/internal/storage"
	"github.com/motorpool/extension/v2/pkg/core"
)

// Compile-time interface checks
var (
	_ storage.Backend    = (*Backend)(nil)
	_ storage.Uploadable = (*Backend)(nil)
)

func testSession() *core.Session {
	return &core.Session{
		ID:               1,
		ServerName:       "Test Server: Vault",
		ServerProfile:    "server01",
		StartTime:        time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC),
		WorldID:          1,
		AddonVersion:     "1.0.0",
		ExtensionVersion: "2.0.0",
		ExtensionBuild:   "2026-03-01",
		Tag:              "S15",
	}
}

func testWorld() *core.World {
	return &core.World{
		ID:          1,
		WorldName:   "washington",
		DisplayName: "Washington",
		WorldSize:   16384,
	}
}

func testSnapshot() *core.CompositeSnapshot {
	return &core.CompositeSnapshot{
		DefinitionID:   142,
		DefinitionGUID: uuid.MustParse("9f2c6a1e-4d3b-4c8a-b5e7-1a0d8f6c2b4e"),
		InstanceID:     9001,
		SkinVariant:    3,
		Integrity:      850,
		FuelLevel:      600,
		OwnerIdentity:  76561198012345678,
		GroupIdentity:  42,
		TireLiveness:   []bool{true, true, false, true},
		TurretStates:   [][]byte{{0x01, 0x02}},
		Cargo: core.CargoSnapshot{
			Items: []core.CargoItem{
				{X: 0, Y: 0, Rotation: 1, Item: core.ItemSnapshot{DefinitionID: 15, Amount: 1, Quality: 100}},
			},
		},
		Barricades: []core.BarricadeSnapshot{
			{DefinitionID: 58, Integrity: 400, Offset: core.Position3D{X: 0.5, Y: -1.25, Z: 0.75}},
		},
		Structures: []core.StructureSnapshot{
			{DefinitionID: 77, Integrity: 900},
		},
		Position: core.Position3D{X: 1024.5, Y: 2048.25, Z: 12.5},
		Rotation: core.Rotation{Yaw: 90.5, Pitch: -1.5, Roll: 0.25},
		Paint:    core.NewPaintColor(200, 30, 30, 255),
	}
}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()

	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	if err := b.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := b.StartSession(testSession(), testWorld()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	return b
}

func TestNew(t *testing.T) {
	b := New(config.MemoryConfig{})
	if b == nil {
		t.Fatal("New returned nil")
	}
	if b.entries == nil {
		t.Error("entries map not initialized")
	}
}

func TestInitAndClose(t *testing.T) {
	b := New(config.MemoryConfig{})
	if err := b.Init(); err != nil {
		t.Errorf("Init returned error: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
}

func TestSaveSnapshotAssignsSequentialIDs(t *testing.T) {
	b := newTestBackend(t)

	id1, err := b.SaveSnapshot(testSnapshot(), &core.VaultMeta{Label: "first"})
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if id1 != 1 {
		t.Errorf("expected first entry ID 1, got %d", id1)
	}

	id2, err := b.SaveSnapshot(testSnapshot(), &core.VaultMeta{Label: "second"})
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if id2 != 2 {
		t.Errorf("expected second entry ID 2, got %d", id2)
	}
}

func TestSaveSnapshotDefaultsMetadata(t *testing.T) {
	b := newTestBackend(t)

	before := time.Now()
	id, err := b.SaveSnapshot(testSnapshot(), &core.VaultMeta{Label: "defaulted"})
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	entries, err := b.ListEntries(0)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	entry := entries[0]
	if entry.ID != id {
		t.Errorf("expected entry ID %d, got %d", id, entry.ID)
	}
	if entry.SessionID != 1 {
		t.Errorf("expected session ID stamped from active session, got %d", entry.SessionID)
	}
	if entry.SavedAt.Before(before) {
		t.Errorf("expected SavedAt defaulted to save time, got %v", entry.SavedAt)
	}
	if entry.OwnerIdentity != 76561198012345678 {
		t.Errorf("expected owner from snapshot, got %d", entry.OwnerIdentity)
	}
	if entry.DefinitionID != 142 {
		t.Errorf("expected definition from snapshot, got %d", entry.DefinitionID)
	}
}

func TestSaveSnapshotKeepsExplicitMetadata(t *testing.T) {
	b := newTestBackend(t)

	savedAt := time.Date(2026, 3, 15, 19, 0, 0, 0, time.UTC)
	_, err := b.SaveSnapshot(testSnapshot(), &core.VaultMeta{
		Label:     "explicit",
		SessionID: 7,
		SavedAt:   savedAt,
	})
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	entries, _ := b.ListEntries(0)
	if entries[0].SessionID != 7 {
		t.Errorf("expected explicit session ID 7, got %d", entries[0].SessionID)
	}
	if !entries[0].SavedAt.Equal(savedAt) {
		t.Errorf("expected explicit SavedAt %v, got %v", savedAt, entries[0].SavedAt)
	}
}

func TestSaveSnapshotReplacesEntry(t *testing.T) {
	b := newTestBackend(t)

	id, err := b.SaveSnapshot(testSnapshot(), &core.VaultMeta{Label: "original"})
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	updated := testSnapshot()
	updated.Integrity = 500
	updated.Barricades = updated.Barricades[:0]

	replacedID, err := b.SaveSnapshot(updated, &core.VaultMeta{Label: "updated", ReplacesEntry: id})
	if err != nil {
		t.Fatalf("replacing SaveSnapshot failed: %v", err)
	}
	if replacedID != id {
		t.Errorf("expected replacement to keep ID %d, got %d", id, replacedID)
	}

	entries, _ := b.ListEntries(0)
	if len(entries) != 1 {
		t.Fatalf("expected replacement to not create a new entry, got %d entries", len(entries))
	}
	if entries[0].Label != "updated" {
		t.Errorf("expected label updated in place, got %q", entries[0].Label)
	}

	snap, err := b.LoadSnapshot(id)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if snap.Integrity != 500 {
		t.Errorf("expected replaced snapshot integrity 500, got %d", snap.Integrity)
	}
	if len(snap.Barricades) != 0 {
		t.Errorf("expected replaced snapshot to drop barricades, got %d", len(snap.Barricades))
	}
}

func TestSaveSnapshotReplaceMissingEntry(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.SaveSnapshot(testSnapshot(), &core.VaultMeta{Label: "x", ReplacesEntry: 99})
	if err == nil {
		t.Fatal("expected error replacing missing entry")
	}
	if !errors.Is(err, storage.ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestLoadSnapshotRoundTrip(t *testing.T) {
	b := newTestBackend(t)

	original := testSnapshot()
	id, err := b.SaveSnapshot(original, &core.VaultMeta{Label: "roundtrip"})
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	loaded, err := b.LoadSnapshot(id)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded.DefinitionGUID != original.DefinitionGUID {
		t.Errorf("expected GUID %v, got %v", original.DefinitionGUID, loaded.DefinitionGUID)
	}
	if loaded.Position != original.Position {
		t.Errorf("expected position %+v, got %+v", original.Position, loaded.Position)
	}
	if len(loaded.Barricades) != 1 || len(loaded.Structures) != 1 {
		t.Errorf("expected children preserved, got %d barricades %d structures",
			len(loaded.Barricades), len(loaded.Structures))
	}
	if len(loaded.Cargo.Items) != 1 {
		t.Errorf("expected cargo preserved, got %d items", len(loaded.Cargo.Items))
	}
}

func TestLoadSnapshotNotFound(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.LoadSnapshot(42)
	if err == nil {
		t.Fatal("expected error for missing entry")
	}
	if !errors.Is(err, storage.ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestLoadSnapshotDoesNotConsumeEntry(t *testing.T) {
	b := newTestBackend(t)

	id, _ := b.SaveSnapshot(testSnapshot(), &core.VaultMeta{Label: "keep"})

	// The entry stays in the vault across any number of restores
	for i := 0; i < 3; i++ {
		if _, err := b.LoadSnapshot(id); err != nil {
			t.Fatalf("load %d failed: %v", i+1, err)
		}
	}

	entries, _ := b.ListEntries(0)
	if len(entries) != 1 {
		t.Errorf("expected entry to remain after loads, got %d entries", len(entries))
	}
}

func TestLoadSnapshotReturnsCopy(t *testing.T) {
	b := newTestBackend(t)

	id, _ := b.SaveSnapshot(testSnapshot(), &core.VaultMeta{Label: "copy"})

	first, err := b.LoadSnapshot(id)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	first.Integrity = 1

	second, err := b.LoadSnapshot(id)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if second.Integrity != 850 {
		t.Errorf("expected stored snapshot unchanged by caller mutation, got integrity %d", second.Integrity)
	}
}

func TestListEntriesFiltersByOwner(t *testing.T) {
	b := newTestBackend(t)

	mine := testSnapshot()
	theirs := testSnapshot()
	theirs.OwnerIdentity = 76561198099999999

	if _, err := b.SaveSnapshot(mine, &core.VaultMeta{Label: "mine"}); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if _, err := b.SaveSnapshot(theirs, &core.VaultMeta{Label: "theirs"}); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	all, err := b.ListEntries(0)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected owner 0 to list all entries, got %d", len(all))
	}

	filtered, err := b.ListEntries(76561198099999999)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(filtered) != 1 {
		t.Fatalf("expected 1 entry for owner, got %d", len(filtered))
	}
	if filtered[0].Label != "theirs" {
		t.Errorf("expected filtered entry to be theirs, got %q", filtered[0].Label)
	}
}

func TestListEntriesSortedByID(t *testing.T) {
	b := newTestBackend(t)

	for i := 0; i < 5; i++ {
		if _, err := b.SaveSnapshot(testSnapshot(), &core.VaultMeta{Label: fmt.Sprintf("entry-%d", i)}); err != nil {
			t.Fatalf("SaveSnapshot failed: %v", err)
		}
	}

	entries, err := b.ListEntries(0)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].ID >= entries[i].ID {
			t.Fatalf("expected entries sorted by ID, got %d before %d", entries[i-1].ID, entries[i].ID)
		}
	}
}

func TestDeleteEntry(t *testing.T) {
	b := newTestBackend(t)

	id, _ := b.SaveSnapshot(testSnapshot(), &core.VaultMeta{Label: "doomed"})

	if err := b.DeleteEntry(id); err != nil {
		t.Fatalf("DeleteEntry failed: %v", err)
	}

	if _, err := b.LoadSnapshot(id); !errors.Is(err, storage.ErrEntryNotFound) {
		t.Errorf("expected deleted entry to be gone, got %v", err)
	}

	if err := b.DeleteEntry(id); !errors.Is(err, storage.ErrEntryNotFound) {
		t.Errorf("expected second delete to report not found, got %v", err)
	}
}

func TestRecordEvents(t *testing.T) {
	b := newTestBackend(t)

	capture := &core.CaptureEvent{
		SessionID:     1,
		EntryID:       1,
		InstanceID:    9001,
		ActorIdentity: 76561198012345678,
		Time:          time.Now(),
		Position:      core.Position3D{X: 100, Y: 200, Z: 3},
	}
	if err := b.RecordCaptureEvent(capture); err != nil {
		t.Fatalf("RecordCaptureEvent failed: %v", err)
	}

	restore := &core.RestoreEvent{
		SessionID:     1,
		EntryID:       1,
		NewInstanceID: 9002,
		ActorIdentity: 76561198012345678,
		Rebound:       true,
		Time:          time.Now(),
		Position:      core.Position3D{X: 110, Y: 210, Z: 3},
	}
	if err := b.RecordRestoreEvent(restore); err != nil {
		t.Fatalf("RecordRestoreEvent failed: %v", err)
	}

	perf := &core.PerformanceSample{
		Time:         time.Now(),
		SessionID:    1,
		CaptureCount: 1,
		RestoreCount: 1,
	}
	if err := b.RecordPerformance(perf); err != nil {
		t.Fatalf("RecordPerformance failed: %v", err)
	}

	if len(b.captureEvents) != 1 {
		t.Errorf("expected 1 capture event, got %d", len(b.captureEvents))
	}
	if len(b.restoreEvents) != 1 {
		t.Errorf("expected 1 restore event, got %d", len(b.restoreEvents))
	}
	if len(b.performances) != 1 {
		t.Errorf("expected 1 performance sample, got %d", len(b.performances))
	}
}

func TestStartSessionResetsState(t *testing.T) {
	b := newTestBackend(t)

	if _, err := b.SaveSnapshot(testSnapshot(), &core.VaultMeta{Label: "old"}); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if err := b.RecordCaptureEvent(&core.CaptureEvent{EntryID: 1}); err != nil {
		t.Fatalf("RecordCaptureEvent failed: %v", err)
	}

	if err := b.StartSession(testSession(), testWorld()); err != nil {
		t.Fatalf("second StartSession failed: %v", err)
	}

	entries, _ := b.ListEntries(0)
	if len(entries) != 0 {
		t.Errorf("expected entries cleared on new session, got %d", len(entries))
	}
	if len(b.captureEvents) != 0 {
		t.Errorf("expected capture events cleared on new session, got %d", len(b.captureEvents))
	}

	// ID assignment restarts with the session
	id, err := b.SaveSnapshot(testSnapshot(), &core.VaultMeta{Label: "new"})
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if id != 1 {
		t.Errorf("expected ID counter reset, got %d", id)
	}
}

func TestEndSessionWithoutStartSession(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})

	err := b.EndSession()
	if err == nil {
		t.Fatal("expected error ending session that never started")
	}
	if !strings.Contains(err.Error(), "no session to end") {
		t.Errorf("expected 'no session to end' error, got %v", err)
	}
}

func TestGetExportedFilePathBeforeExport(t *testing.T) {
	b := newTestBackend(t)

	if path := b.GetExportedFilePath(); path != "" {
		t.Errorf("expected empty export path before export, got %q", path)
	}
}

func TestGetExportedFilePathAfterExport(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})
	if err := b.StartSession(testSession(), testWorld()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := b.EndSession(); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	path := b.GetExportedFilePath()
	if path == "" {
		t.Fatal("expected export path set after EndSession")
	}
	if !strings.HasPrefix(path, dir) {
		t.Errorf("expected export under output dir %q, got %q", dir, path)
	}
	if !strings.HasSuffix(path, ".json") {
		t.Errorf("expected uncompressed export to end in .json, got %q", path)
	}
	if base := filepath.Base(path); strings.Contains(base, " ") || strings.Contains(base, ":") {
		t.Errorf("expected server name sanitized in filename, got %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected export file on disk: %v", err)
	}
}

func TestGetExportedFilePathCompressed(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir(), CompressOutput: true})
	if err := b.StartSession(testSession(), testWorld()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := b.EndSession(); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	path := b.GetExportedFilePath()
	if !strings.HasSuffix(path, ".json.gz") {
		t.Errorf("expected compressed export to end in .json.gz, got %q", path)
	}
}

func TestStartSessionResetsExportPath(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	if err := b.StartSession(testSession(), testWorld()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := b.EndSession(); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if b.GetExportedFilePath() == "" {
		t.Fatal("expected export path set after EndSession")
	}

	if err := b.StartSession(testSession(), testWorld()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if path := b.GetExportedFilePath(); path != "" {
		t.Errorf("expected export path cleared on new session, got %q", path)
	}
}

func TestGetExportMetadata(t *testing.T) {
	b := newTestBackend(t)

	if _, err := b.SaveSnapshot(testSnapshot(), &core.VaultMeta{Label: "one"}); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if _, err := b.SaveSnapshot(testSnapshot(), &core.VaultMeta{Label: "two"}); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	meta := b.GetExportMetadata()
	if meta.ServerName != "Test Server: Vault" {
		t.Errorf("expected server name from session, got %q", meta.ServerName)
	}
	if meta.WorldName != "washington" {
		t.Errorf("expected world name from world, got %q", meta.WorldName)
	}
	if meta.Tag != "S15" {
		t.Errorf("expected tag from session, got %q", meta.Tag)
	}
	if meta.EntryCount != 2 {
		t.Errorf("expected entry count 2, got %d", meta.EntryCount)
	}
	if meta.SavedAt.IsZero() {
		t.Error("expected SavedAt populated from session")
	}
}

func TestGetExportMetadataWithoutStartSession(t *testing.T) {
	b := New(config.MemoryConfig{})

	meta := b.GetExportMetadata()
	if meta.ServerName != "" || meta.WorldName != "" || meta.EntryCount != 0 {
		t.Errorf("expected zero metadata without a session, got %+v", meta)
	}
}

func TestConcurrentAccess(t *testing.T) {
	b := newTestBackend(t)

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id, err := b.SaveSnapshot(testSnapshot(), &core.VaultMeta{Label: fmt.Sprintf("w%d-%d", worker, i)})
				if err != nil {
					t.Errorf("SaveSnapshot failed: %v", err)
					return
				}
				if _, err := b.LoadSnapshot(id); err != nil {
					t.Errorf("LoadSnapshot failed: %v", err)
					return
				}
				if _, err := b.ListEntries(0); err != nil {
					t.Errorf("ListEntries failed: %v", err)
					return
				}
				if err := b.RecordCaptureEvent(&core.CaptureEvent{EntryID: id}); err != nil {
					t.Errorf("RecordCaptureEvent failed: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	entries, err := b.ListEntries(0)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 1000 {
		t.Errorf("expected 1000 entries after concurrent saves, got %d", len(entries))
	}
	if len(b.captureEvents) != 1000 {
		t.Errorf("expected 1000 capture events, got %d", len(b.captureEvents))
	}
}
