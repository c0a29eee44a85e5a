package convert

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/motorpool/extension/v2/internal/geo"
	"github.com/motorpool/extension/v2/internal/model"
	"github.com/motorpool/extension/v2/pkg/core"
)

// guidToString renders a catalog GUID for storage. The nil GUID stores as the
// empty string so legacy numeric-only snapshots do not grow a fake GUID.
func guidToString(guid uuid.UUID) string {
	if guid == uuid.Nil {
		return ""
	}
	return guid.String()
}

// paintToJSON converts a core.PaintColor to datatypes.JSON for DB storage.
// The no-paint sentinel marshals to [0,0,0,0], same as the column default.
func paintToJSON(p core.PaintColor) datatypes.JSON {
	data, _ := json.Marshal(p)
	return datatypes.JSON(data)
}

// tiresToJSON converts a tire liveness slice to datatypes.JSON for DB storage.
func tiresToJSON(tires []bool) datatypes.JSON {
	if len(tires) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(tires)
	return datatypes.JSON(data)
}

// turretsToJSON converts turret state blobs to datatypes.JSON for DB storage.
// Blobs encode as base64 strings, one per mount, empty blobs included.
func turretsToJSON(turrets [][]byte) datatypes.JSON {
	if len(turrets) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(turrets)
	return datatypes.JSON(data)
}

// cargoToJSON converts a cargo snapshot to datatypes.JSON for DB storage.
func cargoToJSON(c core.CargoSnapshot) datatypes.JSON {
	if len(c.Items) == 0 {
		return datatypes.JSON("{}")
	}
	data, _ := json.Marshal(c)
	return datatypes.JSON(data)
}

// CoreToVaultEntry converts a core snapshot plus its save metadata to a GORM
// VaultEntry. When meta.ReplacesEntry is non-zero the row carries that ID so
// a Save updates the existing entry in place instead of creating a new one.
func CoreToVaultEntry(snap core.CompositeSnapshot, meta core.VaultMeta) model.VaultEntry {
	entry := model.VaultEntry{
		Model:           gorm.Model{ID: meta.ReplacesEntry},
		SessionID:       meta.SessionID,
		DefinitionID:    snap.DefinitionID,
		DefinitionGUID:  guidToString(snap.DefinitionGUID),
		InstanceID:      snap.InstanceID,
		Label:           meta.Label,
		OwnerIdentity:   snap.OwnerIdentity,
		GroupIdentity:   snap.GroupIdentity,
		SkinVariant:     snap.SkinVariant,
		MythicVariant:   snap.MythicVariant,
		PlacementOffset: snap.PlacementOffset,
		Integrity:       snap.Integrity,
		FuelLevel:       snap.FuelLevel,
		AuxiliaryCharge: snap.AuxiliaryCharge,
		Position:        model.NewPoint(geo.PointFromPosition(snap.Position)),
		ElevationASL:    float32(snap.Position.Z),
		Yaw:             snap.Rotation.Yaw,
		Pitch:           snap.Rotation.Pitch,
		Roll:            snap.Rotation.Roll,
		Paint:           paintToJSON(snap.Paint),
		TireLiveness:    tiresToJSON(snap.TireLiveness),
		TurretStates:    turretsToJSON(snap.TurretStates),
		Cargo:           cargoToJSON(snap.Cargo),
	}

	entry.Barricades = make([]model.VaultBarricade, 0, len(snap.Barricades))
	for _, b := range snap.Barricades {
		entry.Barricades = append(entry.Barricades, coreToVaultBarricade(b))
	}

	entry.Structures = make([]model.VaultStructure, 0, len(snap.Structures))
	for _, s := range snap.Structures {
		entry.Structures = append(entry.Structures, coreToVaultStructure(s))
	}

	return entry
}

func coreToVaultBarricade(b core.BarricadeSnapshot) model.VaultBarricade {
	return model.VaultBarricade{
		DefinitionID:   b.DefinitionID,
		DefinitionGUID: guidToString(b.DefinitionGUID),
		OwnerIdentity:  b.OwnerIdentity,
		GroupIdentity:  b.GroupIdentity,
		Integrity:      b.Integrity,
		State:          b.State,
		OffsetX:        b.Offset.X,
		OffsetY:        b.Offset.Y,
		OffsetZ:        b.Offset.Z,
		Yaw:            b.Rotation.Yaw,
		Pitch:          b.Rotation.Pitch,
		Roll:           b.Rotation.Roll,
	}
}

func coreToVaultStructure(s core.StructureSnapshot) model.VaultStructure {
	return model.VaultStructure{
		DefinitionID:   s.DefinitionID,
		DefinitionGUID: guidToString(s.DefinitionGUID),
		OwnerIdentity:  s.OwnerIdentity,
		GroupIdentity:  s.GroupIdentity,
		Integrity:      s.Integrity,
		OffsetX:        s.Offset.X,
		OffsetY:        s.Offset.Y,
		OffsetZ:        s.Offset.Z,
		Yaw:            s.Rotation.Yaw,
		Pitch:          s.Rotation.Pitch,
		Roll:           s.Rotation.Roll,
	}
}

// CoreToCaptureEvent converts a core.CaptureEvent to a GORM model.CaptureEvent.
func CoreToCaptureEvent(e core.CaptureEvent) model.CaptureEvent {
	return model.CaptureEvent{
		Time:          e.Time,
		SessionID:     e.SessionID,
		VaultEntryID:  e.EntryID,
		InstanceID:    e.InstanceID,
		ActorIdentity: e.ActorIdentity,
		Position:      model.NewPoint(geo.PointFromPosition(e.Position)),
		ElevationASL:  float32(e.Position.Z),
	}
}

// CoreToRestoreEvent converts a core.RestoreEvent to a GORM model.RestoreEvent.
func CoreToRestoreEvent(e core.RestoreEvent) model.RestoreEvent {
	return model.RestoreEvent{
		Time:          e.Time,
		SessionID:     e.SessionID,
		VaultEntryID:  e.EntryID,
		NewInstanceID: e.NewInstanceID,
		ActorIdentity: e.ActorIdentity,
		Rebound:       e.Rebound,
		Position:      model.NewPoint(geo.PointFromPosition(e.Position)),
		ElevationASL:  float32(e.Position.Z),
	}
}

// CoreToSession converts a core.Session to a GORM model.Session.
func CoreToSession(s core.Session) model.Session {
	return model.Session{
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

// CoreToWorld converts a core.World to a GORM model.World. The stored
// location point is the terrain center projected from lon/lat.
func CoreToWorld(w core.World) model.World {
	location, _ := geo.Coords3857From4326(float64(w.Longitude), float64(w.Latitude))
	return model.World{
		DisplayName: w.DisplayName,
		WorldName:   w.WorldName,
		WorldSize:   w.WorldSize,
		Latitude:    w.Latitude,
		Longitude:   w.Longitude,
		Location:    model.NewPoint(location),
	}
}
