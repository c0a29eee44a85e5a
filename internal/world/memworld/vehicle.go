package memworld

import (
	"errors"

	"github.com/google/uuid"

	"github.com/motorpool/extension/v2/internal/world"
	"github.com/motorpool/extension/v2/pkg/core"
)

// ErrCargoFull is returned when a cargo grid has no free cell left.
var ErrCargoFull = errors.New("cargo hold is full")

// ErrCargoOutOfBounds is returned for a placement outside the grid.
var ErrCargoOutOfBounds = errors.New("cargo placement outside grid")

type turretMount struct {
	live  bool
	state []byte
}

// Vehicle is a live in-memory composite vehicle.
type Vehicle struct {
	world *World

	instanceID      uint32
	definitionID    uint16
	definitionGUID  uuid.UUID
	skinVariant     uint16
	mythicVariant   uint16
	placementOffset float32
	integrity       uint16
	fuelLevel       uint16
	auxCharge       uint16
	ownerIdentity   uint64
	groupIdentity   uint64
	locked          bool
	position        core.Position3D
	rotation        core.Rotation
	paint           [4]byte

	tiresAlive      []bool
	tireNotifyCount int
	turrets         []turretMount
	cargo           *cargoHold
}

func (v *Vehicle) InstanceID() uint32        { return v.instanceID }
func (v *Vehicle) DefinitionID() uint16      { return v.definitionID }
func (v *Vehicle) DefinitionGUID() uuid.UUID { return v.definitionGUID }
func (v *Vehicle) SkinVariant() uint16       { return v.skinVariant }
func (v *Vehicle) MythicVariant() uint16     { return v.mythicVariant }
func (v *Vehicle) PlacementOffset() float32  { return v.placementOffset }
func (v *Vehicle) Integrity() uint16         { return v.integrity }
func (v *Vehicle) FuelLevel() uint16         { return v.fuelLevel }
func (v *Vehicle) AuxiliaryCharge() uint16   { return v.auxCharge }
func (v *Vehicle) OwnerIdentity() uint64     { return v.ownerIdentity }
func (v *Vehicle) GroupIdentity() uint64     { return v.groupIdentity }

// Locked reports the ownership lock derived at spawn time.
func (v *Vehicle) Locked() bool { return v.locked }

func (v *Vehicle) Frame() core.Frame {
	return core.Frame{Position: v.position, Rotation: v.rotation}
}

func (v *Vehicle) PaintColor() [4]byte { return v.paint }

// SetPaintColor overwrites the raw paint value, alpha included. A repaint
// job in a live environment would do the same.
func (v *Vehicle) SetPaintColor(rgba [4]byte) { v.paint = rgba }

func (v *Vehicle) TireCount() int { return len(v.tiresAlive) }

func (v *Vehicle) TireAlive(slot int) bool {
	if slot < 0 || slot >= len(v.tiresAlive) {
		return false
	}
	return v.tiresAlive[slot]
}

func (v *Vehicle) SetTireAlive(slot int, alive bool) {
	if slot < 0 || slot >= len(v.tiresAlive) {
		return
	}
	v.tiresAlive[slot] = alive
}

func (v *Vehicle) NotifyTiresChanged() { v.tireNotifyCount++ }

// TireNotifications reports how many batched tire updates were flushed.
func (v *Vehicle) TireNotifications() int { return v.tireNotifyCount }

func (v *Vehicle) TurretCount() int { return len(v.turrets) }

func (v *Vehicle) TurretState(mount int) ([]byte, bool) {
	if mount < 0 || mount >= len(v.turrets) {
		return nil, false
	}
	t := v.turrets[mount]
	if !t.live {
		return nil, false
	}
	return t.state, true
}

func (v *Vehicle) SetTurretState(mount int, state []byte) {
	if mount < 0 || mount >= len(v.turrets) {
		return
	}
	v.turrets[mount].state = state
}

// DetachTurretBacking removes the live weapon behind a mount; the slot stays
// structurally present but reads as absent.
func (v *Vehicle) DetachTurretBacking(mount int) {
	if mount < 0 || mount >= len(v.turrets) {
		return
	}
	v.turrets[mount].live = false
	v.turrets[mount].state = nil
}

func (v *Vehicle) Cargo() (world.CargoHold, bool) {
	if v.cargo == nil {
		return nil, false
	}
	return v.cargo, true
}

func (v *Vehicle) Destroy() {
	v.world.removeVehicle(v.instanceID)
}

var _ world.Vehicle = (*Vehicle)(nil)

// cargoHold is a bounded item grid.
type cargoHold struct {
	width  uint8
	height uint8
	items  []world.CargoStack
}

func (c *cargoHold) Items() []world.CargoStack {
	return c.items
}

func (c *cargoHold) Insert(stack world.CargoStack) error {
	if stack.X >= c.width || stack.Y >= c.height {
		return ErrCargoOutOfBounds
	}
	if len(c.items) >= int(c.width)*int(c.height) {
		return ErrCargoFull
	}
	c.items = append(c.items, stack)
	return nil
}
