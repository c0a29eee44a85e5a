// pkg/core/snapshot.go
package core

import "github.com/google/uuid"

// CompositeSnapshot captures the complete observable state of a composite
// vehicle: the vehicle itself plus everything mounted on its frame. It is
// immutable after capture; restore reads it and never writes back. The same
// snapshot may be restored any number of times, each producing an independent
// live object graph.
type CompositeSnapshot struct {
	// Dual catalog keys. The GUID is authoritative; the numeric id is the
	// legacy fallback for catalogs that predate stable identifiers.
	DefinitionID   uint16    `json:"definitionId"`
	DefinitionGUID uuid.UUID `json:"definitionGuid"`

	// InstanceID identifies the live instance this snapshot was captured
	// from. Instance ids are not reused across respawns; on restore this is
	// informational only and the new object receives a fresh id.
	InstanceID uint32 `json:"instanceId"`

	SkinVariant   uint16 `json:"skinVariant"`
	MythicVariant uint16 `json:"mythicVariant"`

	// PlacementOffset positions rail-bound composites along their rail.
	// Zero for everything else.
	PlacementOffset float32 `json:"placementOffset"`

	Integrity       uint16 `json:"integrity"`
	FuelLevel       uint16 `json:"fuelLevel"`
	AuxiliaryCharge uint16 `json:"auxiliaryCharge"`

	OwnerIdentity uint64 `json:"ownerIdentity"`
	GroupIdentity uint64 `json:"groupIdentity"`

	// TireLiveness holds one alive flag per tire slot, in slot order. Empty
	// when the vehicle has no tires. The recorded length describes the
	// captured vehicle, not the restore target; restore reconciles.
	TireLiveness []bool `json:"tireLiveness"`

	// TurretStates holds one opaque state blob per turret mount,
	// index-aligned with the mount list. A mount that exists structurally
	// but has no live backing contributes an empty blob, never a skipped
	// index.
	TurretStates [][]byte `json:"turretStates"`

	// Cargo is always present, possibly empty.
	Cargo CargoSnapshot `json:"cargo"`

	// Children rigidly mounted on the parent's frame, in region order.
	Barricades []BarricadeSnapshot `json:"barricades"`
	Structures []StructureSnapshot `json:"structures"`

	// Placement frame at capture time.
	Position Position3D `json:"position"`
	Rotation Rotation   `json:"rotation"`

	Paint PaintColor `json:"paint"`
}

// Frame returns the snapshot's placement frame.
func (s CompositeSnapshot) Frame() Frame {
	return Frame{Position: s.Position, Rotation: s.Rotation}
}

// CargoSnapshot is an embedded inventory snapshot mapping item placements to
// item payloads. Order is the stored insertion order.
type CargoSnapshot struct {
	Items []CargoItem `json:"items"`
}

// CargoItem places one item payload at a grid position and rotation.
type CargoItem struct {
	X        uint8        `json:"x"`
	Y        uint8        `json:"y"`
	Rotation uint8        `json:"rotation"`
	Item     ItemSnapshot `json:"item"`
}

// ItemSnapshot is the payload needed to construct a fresh item instance.
// State is owned by the environment's item system and is never interpreted
// here.
type ItemSnapshot struct {
	DefinitionID uint16 `json:"definitionId"`
	Amount       uint8  `json:"amount"`
	Quality      uint8  `json:"quality"`
	State        []byte `json:"state"`
}

// BarricadeSnapshot captures one barricade mounted on a composite's frame.
// Barricades support the same capture/restore contract independently of the
// parent; placement is relative to the parent frame.
type BarricadeSnapshot struct {
	DefinitionID   uint16     `json:"definitionId"`
	DefinitionGUID uuid.UUID  `json:"definitionGuid"`
	OwnerIdentity  uint64     `json:"ownerIdentity"`
	GroupIdentity  uint64     `json:"groupIdentity"`
	Integrity      uint16     `json:"integrity"`
	State          []byte     `json:"state"`
	Offset         Position3D `json:"offset"`
	Rotation       Rotation   `json:"rotation"`
}

// StructureSnapshot captures one structure mounted on a composite's frame.
type StructureSnapshot struct {
	DefinitionID   uint16     `json:"definitionId"`
	DefinitionGUID uuid.UUID  `json:"definitionGuid"`
	OwnerIdentity  uint64     `json:"ownerIdentity"`
	GroupIdentity  uint64     `json:"groupIdentity"`
	Integrity      uint16     `json:"integrity"`
	Offset         Position3D `json:"offset"`
	Rotation       Rotation   `json:"rotation"`
}
