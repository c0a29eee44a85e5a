// Package world defines the narrow surface through which the keeper reads
// and mutates the live game environment. The host supplies an implementation;
// memworld provides an in-memory one for tests and the demo generator.
//
// All methods must be called from the execution context that owns world
// mutation (the world thread). Implementations add no locking on behalf of
// concurrent callers and the engine never suspends between calls.
package world

import (
	"github.com/motorpool/extension/v2/pkg/core"
)

// World is the live environment: an object registry plus a spatial index of
// frame-anchored regions.
type World interface {
	// VehicleByInstance looks up a live vehicle by its instance id.
	VehicleByInstance(instanceID uint32) (Vehicle, bool)

	// CreateVehicle spawns a new composite vehicle. The returned handle is
	// live immediately; a failed spawn returns a nil handle and an error.
	CreateVehicle(spec CreateSpec) (Vehicle, error)

	// AttachedRegion finds the child region anchored to a placement frame.
	// A miss means the composite has no mounted children, not an error.
	AttachedRegion(frame core.Frame) (Region, bool)

	// PlaceBarricade spawns a barricade anchored to a parent frame.
	PlaceBarricade(spec BarricadeSpec) (Barricade, error)

	// PlaceStructure spawns a structure anchored to a parent frame.
	PlaceStructure(spec StructureSpec) (Structure, error)
}

// CreateSpec carries everything the environment needs to spawn a vehicle.
// A zero-valued Paint means no override: the environment applies the
// definition's factory paint.
type CreateSpec struct {
	Definition      *core.VehicleDefinition
	Position        core.Position3D
	Rotation        core.Rotation
	SkinVariant     uint16
	MythicVariant   uint16
	PlacementOffset float32
	Integrity       uint16
	FuelLevel       uint16
	AuxiliaryCharge uint16
	OwnerIdentity   uint64
	GroupIdentity   uint64
	Locked          bool
	Paint           core.PaintColor
}

// BarricadeSpec carries a barricade spawn request. Offset and Rotation are
// relative to Anchor.
type BarricadeSpec struct {
	Definition    *core.BarricadeDefinition
	Anchor        core.Frame
	Offset        core.Position3D
	Rotation      core.Rotation
	Integrity     uint16
	State         []byte
	OwnerIdentity uint64
	GroupIdentity uint64
}

// StructureSpec carries a structure spawn request. Structures carry no
// opaque state blob.
type StructureSpec struct {
	Definition    *core.StructureDefinition
	Anchor        core.Frame
	Offset        core.Position3D
	Rotation      core.Rotation
	Integrity     uint16
	OwnerIdentity uint64
	GroupIdentity uint64
}

// Region is a child region anchored to a composite's placement frame.
// Listings return only non-destroyed children, in region order.
type Region interface {
	Barricades() []Barricade
	Structures() []Structure
}
