// Package convert provides functions to convert GORM models to core models
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/motorpool/extension/v2/internal/geo"
	"github.com/motorpool/extension/v2/internal/model"
	"github.com/motorpool/extension/v2/pkg/core"
)

// VaultEntryToCore converts a GORM VaultEntry back into a core snapshot.
// A payload column that fails to decode aborts the conversion: restoring a
// partially decoded snapshot would hand the host a corrupted vehicle.
func VaultEntryToCore(e model.VaultEntry) (core.CompositeSnapshot, error) {
	snap := core.CompositeSnapshot{
		DefinitionID:    e.DefinitionID,
		InstanceID:      e.InstanceID,
		SkinVariant:     e.SkinVariant,
		MythicVariant:   e.MythicVariant,
		PlacementOffset: e.PlacementOffset,
		Integrity:       e.Integrity,
		FuelLevel:       e.FuelLevel,
		AuxiliaryCharge: e.AuxiliaryCharge,
		OwnerIdentity:   e.OwnerIdentity,
		GroupIdentity:   e.GroupIdentity,
		Position:        geo.PositionFromPoint(e.Position.Point),
		Rotation:        core.Rotation{Yaw: e.Yaw, Pitch: e.Pitch, Roll: e.Roll},
	}

	if e.DefinitionGUID != "" {
		guid, err := uuid.Parse(e.DefinitionGUID)
		if err != nil {
			return core.CompositeSnapshot{}, fmt.Errorf("error parsing definition guid of entry %d: %w", e.ID, err)
		}
		snap.DefinitionGUID = guid
	}

	if len(e.Paint) > 0 {
		if err := json.Unmarshal(e.Paint, &snap.Paint); err != nil {
			return core.CompositeSnapshot{}, fmt.Errorf("error decoding paint of entry %d: %w", e.ID, err)
		}
	}

	snap.TireLiveness = []bool{}
	if len(e.TireLiveness) > 0 {
		if err := json.Unmarshal(e.TireLiveness, &snap.TireLiveness); err != nil {
			return core.CompositeSnapshot{}, fmt.Errorf("error decoding tire liveness of entry %d: %w", e.ID, err)
		}
	}

	snap.TurretStates = [][]byte{}
	if len(e.TurretStates) > 0 {
		if err := json.Unmarshal(e.TurretStates, &snap.TurretStates); err != nil {
			return core.CompositeSnapshot{}, fmt.Errorf("error decoding turret states of entry %d: %w", e.ID, err)
		}
	}

	if len(e.Cargo) > 0 {
		if err := json.Unmarshal(e.Cargo, &snap.Cargo); err != nil {
			return core.CompositeSnapshot{}, fmt.Errorf("error decoding cargo of entry %d: %w", e.ID, err)
		}
	}
	if snap.Cargo.Items == nil {
		snap.Cargo.Items = []core.CargoItem{}
	}

	snap.Barricades = make([]core.BarricadeSnapshot, 0, len(e.Barricades))
	for _, b := range e.Barricades {
		cb, err := vaultBarricadeToCore(b)
		if err != nil {
			return core.CompositeSnapshot{}, err
		}
		snap.Barricades = append(snap.Barricades, cb)
	}

	snap.Structures = make([]core.StructureSnapshot, 0, len(e.Structures))
	for _, s := range e.Structures {
		cs, err := vaultStructureToCore(s)
		if err != nil {
			return core.CompositeSnapshot{}, err
		}
		snap.Structures = append(snap.Structures, cs)
	}

	return snap, nil
}

func vaultBarricadeToCore(b model.VaultBarricade) (core.BarricadeSnapshot, error) {
	out := core.BarricadeSnapshot{
		DefinitionID:  b.DefinitionID,
		OwnerIdentity: b.OwnerIdentity,
		GroupIdentity: b.GroupIdentity,
		Integrity:     b.Integrity,
		State:         b.State,
		Offset:        core.Position3D{X: b.OffsetX, Y: b.OffsetY, Z: b.OffsetZ},
		Rotation:      core.Rotation{Yaw: b.Yaw, Pitch: b.Pitch, Roll: b.Roll},
	}
	if b.DefinitionGUID != "" {
		guid, err := uuid.Parse(b.DefinitionGUID)
		if err != nil {
			return core.BarricadeSnapshot{}, fmt.Errorf("error parsing barricade guid of row %d: %w", b.ID, err)
		}
		out.DefinitionGUID = guid
	}
	return out, nil
}

func vaultStructureToCore(s model.VaultStructure) (core.StructureSnapshot, error) {
	out := core.StructureSnapshot{
		DefinitionID:  s.DefinitionID,
		OwnerIdentity: s.OwnerIdentity,
		GroupIdentity: s.GroupIdentity,
		Integrity:     s.Integrity,
		Offset:        core.Position3D{X: s.OffsetX, Y: s.OffsetY, Z: s.OffsetZ},
		Rotation:      core.Rotation{Yaw: s.Yaw, Pitch: s.Pitch, Roll: s.Roll},
	}
	if s.DefinitionGUID != "" {
		guid, err := uuid.Parse(s.DefinitionGUID)
		if err != nil {
			return core.StructureSnapshot{}, fmt.Errorf("error parsing structure guid of row %d: %w", s.ID, err)
		}
		out.DefinitionGUID = guid
	}
	return out, nil
}

// VaultEntryToListing converts a GORM VaultEntry to the listing view.
// SavedAt is the row's UpdatedAt so in-place re-saves refresh it.
func VaultEntryToListing(e model.VaultEntry) core.VaultEntry {
	return core.VaultEntry{
		ID:            e.ID,
		SessionID:     e.SessionID,
		OwnerIdentity: e.OwnerIdentity,
		GroupIdentity: e.GroupIdentity,
		DefinitionID:  e.DefinitionID,
		Label:         e.Label,
		SavedAt:       e.UpdatedAt,
	}
}

// CaptureEventToCore converts a GORM CaptureEvent to a core.CaptureEvent
func CaptureEventToCore(e model.CaptureEvent) core.CaptureEvent {
	return core.CaptureEvent{
		ID:            e.ID,
		SessionID:     e.SessionID,
		EntryID:       e.VaultEntryID,
		InstanceID:    e.InstanceID,
		ActorIdentity: e.ActorIdentity,
		Time:          e.Time,
		Position:      geo.PositionFromPoint(e.Position.Point),
	}
}

// RestoreEventToCore converts a GORM RestoreEvent to a core.RestoreEvent
func RestoreEventToCore(e model.RestoreEvent) core.RestoreEvent {
	return core.RestoreEvent{
		ID:            e.ID,
		SessionID:     e.SessionID,
		EntryID:       e.VaultEntryID,
		NewInstanceID: e.NewInstanceID,
		ActorIdentity: e.ActorIdentity,
		Rebound:       e.Rebound,
		Time:          e.Time,
		Position:      geo.PositionFromPoint(e.Position.Point),
	}
}

// SessionToCore converts a GORM Session to a core.Session
func SessionToCore(s *model.Session) core.Session {
	return core.Session{
		ID:               s.ID,
		ServerName:       s.ServerName,
		ServerProfile:    s.ServerProfile,
		StartTime:        s.StartTime,
		WorldID:          s.WorldID,
		AddonVersion:     s.AddonVersion,
		ExtensionVersion: s.ExtensionVersion,
		ExtensionBuild:   s.ExtensionBuild,
		Tag:              s.Tag,
	}
}

// WorldToCore converts a GORM World to a core.World
func WorldToCore(w *model.World) core.World {
	return core.World{
		ID:          w.ID,
		WorldName:   w.WorldName,
		DisplayName: w.DisplayName,
		WorldSize:   w.WorldSize,
		Latitude:    w.Latitude,
		Longitude:   w.Longitude,
	}
}
