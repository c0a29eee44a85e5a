package world

import (
	"github.com/google/uuid"

	"github.com/motorpool/extension/v2/pkg/core"
)

// Vehicle is a live composite vehicle handle.
type Vehicle interface {
	InstanceID() uint32
	DefinitionID() uint16
	DefinitionGUID() uuid.UUID
	SkinVariant() uint16
	MythicVariant() uint16
	PlacementOffset() float32
	Integrity() uint16
	FuelLevel() uint16
	AuxiliaryCharge() uint16
	OwnerIdentity() uint64
	GroupIdentity() uint64
	Frame() core.Frame

	// PaintColor returns the raw RGBA paint value as the renderer sees it.
	// Alpha zero means the vehicle carries no paint override.
	PaintColor() [4]byte

	// TireCount is the number of tire slots on this instance. Slots are
	// addressed 0..TireCount()-1 in slot order.
	TireCount() int
	TireAlive(slot int) bool
	SetTireAlive(slot int, alive bool)
	// NotifyTiresChanged flushes tire changes to the environment in one
	// batched update. Call once after a run of SetTireAlive calls.
	NotifyTiresChanged()

	// TurretCount is the number of turret mounts on this instance.
	TurretCount() int
	// TurretState returns the serialized weapon state of mount i.
	// ok is false when the mount exists structurally but has no live
	// backing object.
	TurretState(mount int) ([]byte, bool)
	SetTurretState(mount int, state []byte)

	// Cargo returns the vehicle's item grid. ok is false when this vehicle
	// class has no cargo support at all.
	Cargo() (CargoHold, bool)

	// Destroy removes the vehicle from the world registry. Used by callers
	// cleaning up a partially restored object.
	Destroy()
}

// CargoHold is a vehicle's item grid.
type CargoHold interface {
	// Items lists the current content in grid order.
	Items() []CargoStack

	// Insert places a fresh item instance built from the stack payload.
	// No merging with existing stacks occurs.
	Insert(stack CargoStack) error
}

// CargoStack is one placed item stack in a cargo grid.
type CargoStack struct {
	X        uint8
	Y        uint8
	Rotation uint8

	DefinitionID uint16
	Amount       uint8
	Quality      uint8
	State        []byte
}

// Barricade is a live frame-mounted barricade handle.
type Barricade interface {
	DefinitionID() uint16
	DefinitionGUID() uuid.UUID
	OwnerIdentity() uint64
	GroupIdentity() uint64
	Integrity() uint16
	// StateBlob is the barricade's opaque serialized state.
	StateBlob() []byte
	// Offset is the placement relative to the anchoring frame.
	Offset() core.Position3D
	Rotation() core.Rotation
}

// Structure is a live frame-mounted structure handle.
type Structure interface {
	DefinitionID() uint16
	DefinitionGUID() uuid.UUID
	OwnerIdentity() uint64
	GroupIdentity() uint64
	Integrity() uint16
	Offset() core.Position3D
	Rotation() core.Rotation
}
