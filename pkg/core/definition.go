// pkg/core/definition.go
package core

import "github.com/google/uuid"

// VehicleDefinition is a static catalog entry describing a class of
// composite vehicle. Definitions are resolved at restore time to know how to
// construct a live instance; the catalog is read-only from the engine's view.
type VehicleDefinition struct {
	ID   uint16    `json:"id"`
	GUID uuid.UUID `json:"guid"`
	Name string    `json:"name"`

	// TireSlots is the number of tire mounts on a freshly built instance.
	TireSlots int `json:"tireSlots"`

	// TurretMounts lists the turret hardpoints in mount order.
	TurretMounts []TurretMount `json:"turretMounts"`

	// Resource maxima the environment clamps to on creation.
	MaxIntegrity uint16 `json:"maxIntegrity"`
	MaxFuel      uint16 `json:"maxFuel"`
	MaxAuxCharge uint16 `json:"maxAuxCharge"`

	// RailBound vehicles ride a rail/path and honor a placement offset.
	RailBound bool `json:"railBound"`

	// Cargo hold dimensions; zero by zero means no cargo support.
	CargoWidth  uint8 `json:"cargoWidth"`
	CargoHeight uint8 `json:"cargoHeight"`
}

// TurretMount describes one turret hardpoint on a vehicle definition.
type TurretMount struct {
	ItemID uint16 `json:"itemId"` // catalog id of the mounted weapon item
}

// BarricadeDefinition is a static catalog entry for a mountable barricade.
type BarricadeDefinition struct {
	ID           uint16    `json:"id"`
	GUID         uuid.UUID `json:"guid"`
	Name         string    `json:"name"`
	MaxIntegrity uint16    `json:"maxIntegrity"`
}

// StructureDefinition is a static catalog entry for a mountable structure.
type StructureDefinition struct {
	ID           uint16    `json:"id"`
	GUID         uuid.UUID `json:"guid"`
	Name         string    `json:"name"`
	MaxIntegrity uint16    `json:"maxIntegrity"`
}

// ItemDefinition is a static catalog entry for an item, including the default
// state blob a freshly built instance of it starts with.
type ItemDefinition struct {
	ID           uint16    `json:"id"`
	GUID         uuid.UUID `json:"guid"`
	Name         string    `json:"name"`
	DefaultState []byte    `json:"defaultState"`
}
