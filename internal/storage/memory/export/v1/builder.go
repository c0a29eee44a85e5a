package v1

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/motorpool/extension/v2/pkg/core"
)

// VaultData is the collected in-memory vault state handed to Build.
type VaultData struct {
	Session       *core.Session
	World         *core.World
	Entries       []EntryData
	CaptureEvents []core.CaptureEvent
	RestoreEvents []core.RestoreEvent
}

// EntryData pairs a vault entry with its stored snapshot.
type EntryData struct {
	Entry    core.VaultEntry
	Snapshot core.CompositeSnapshot
}

// Build assembles a v1 manifest from collected vault state. Entries are
// sorted by id so the output is stable regardless of map iteration order.
func Build(data VaultData) (*Manifest, error) {
	if data.Session == nil {
		return nil, errors.New("cannot build manifest without a session")
	}

	manifest := &Manifest{
		AddonVersion:     data.Session.AddonVersion,
		ExtensionVersion: data.Session.ExtensionVersion,
		ExtensionBuild:   data.Session.ExtensionBuild,
		ServerName:       data.Session.ServerName,
		ServerProfile:    data.Session.ServerProfile,
		Tag:              data.Session.Tag,
		ExportedAt:       time.Now().UTC().Format(time.RFC3339),
		Entries:          buildEntries(data.Entries),
		Captures:         buildCaptures(data.CaptureEvents),
		Restores:         buildRestores(data.RestoreEvents),
	}
	if data.World != nil {
		manifest.WorldName = data.World.WorldName
	}

	return manifest, nil
}

func buildEntries(data []EntryData) []Entry {
	sorted := make([]EntryData, len(data))
	copy(sorted, data)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Entry.ID < sorted[j].Entry.ID
	})

	entries := make([]Entry, 0, len(sorted))
	for _, ed := range sorted {
		entries = append(entries, Entry{
			ID:             ed.Entry.ID,
			SessionID:      ed.Entry.SessionID,
			Label:          ed.Entry.Label,
			OwnerIdentity:  ed.Entry.OwnerIdentity,
			GroupIdentity:  ed.Entry.GroupIdentity,
			DefinitionID:   ed.Entry.DefinitionID,
			DefinitionGUID: guidString(ed.Snapshot.DefinitionGUID),
			SavedAt:        ed.Entry.SavedAt.UTC().Format(time.RFC3339),
			Integrity:      ed.Snapshot.Integrity,
			FuelLevel:      ed.Snapshot.FuelLevel,
			BarricadeCount: len(ed.Snapshot.Barricades),
			StructureCount: len(ed.Snapshot.Structures),
			CargoItemCount: len(ed.Snapshot.Cargo.Items),
			Snapshot:       ed.Snapshot,
		})
	}
	return entries
}

// buildCaptures formats capture events as positional arrays.
// Each capture is [time, entryId, instanceId, actorIdentity, [x, y, z]]
func buildCaptures(events []core.CaptureEvent) [][]any {
	captures := make([][]any, 0, len(events))
	for _, evt := range events {
		captures = append(captures, []any{
			evt.Time.UTC().Format(time.RFC3339),
			evt.EntryID,
			evt.InstanceID,
			evt.ActorIdentity,
			[]float64{evt.Position.X, evt.Position.Y, evt.Position.Z},
		})
	}
	return captures
}

// buildRestores formats restore events as positional arrays.
// Each restore is [time, entryId, newInstanceId, actorIdentity, rebound, [x, y, z]]
func buildRestores(events []core.RestoreEvent) [][]any {
	restores := make([][]any, 0, len(events))
	for _, evt := range events {
		restores = append(restores, []any{
			evt.Time.UTC().Format(time.RFC3339),
			evt.EntryID,
			evt.NewInstanceID,
			evt.ActorIdentity,
			boolToInt(evt.Rebound),
			[]float64{evt.Position.X, evt.Position.Y, evt.Position.Z},
		})
	}
	return restores
}

// guidString renders the authoritative definition key, empty for the nil GUID
// so legacy numeric-only entries do not carry the zero UUID.
func guidString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

// boolToInt converts a bool to 1 or 0 for compact array encoding.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
