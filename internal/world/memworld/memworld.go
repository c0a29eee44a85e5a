// Package memworld is an in-memory world.World implementation. It backs the
// engine tests and the demo data generator, and serves embedded hosts that
// have no live environment of their own.
//
// Object state follows the world contract: mutate only from one goroutine.
// The registry itself is guarded so monitors may read counts concurrently.
package memworld

import (
	"errors"
	"fmt"
	"sync"

	"github.com/motorpool/extension/v2/internal/world"
	"github.com/motorpool/extension/v2/pkg/core"
)

// ErrNilDefinition is returned when a spawn spec carries no definition.
var ErrNilDefinition = errors.New("spawn spec carries no definition")

// World is an in-memory object registry plus a frame-keyed region index.
type World struct {
	mu         sync.RWMutex
	vehicles   map[uint32]*Vehicle
	regions    map[core.Frame]*Region
	instanceID uint32
	childID    uint32
}

// New creates an empty world.
func New() *World {
	return &World{
		vehicles: make(map[uint32]*Vehicle),
		regions:  make(map[core.Frame]*Region),
	}
}

// VehicleByInstance looks up a live vehicle by instance id.
func (w *World) VehicleByInstance(instanceID uint32) (world.Vehicle, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.vehicles[instanceID]
	if !ok {
		return nil, false
	}
	return v, true
}

// VehicleCount reports how many vehicles are currently registered.
func (w *World) VehicleCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.vehicles)
}

// CreateVehicle spawns a vehicle from a spec. Resource gauges are clamped to
// the definition's maxima, tire slots start alive, and turret mounts start
// with a live backing holding an empty state.
func (w *World) CreateVehicle(spec world.CreateSpec) (world.Vehicle, error) {
	if spec.Definition == nil {
		return nil, ErrNilDefinition
	}
	def := spec.Definition

	w.mu.Lock()
	defer w.mu.Unlock()

	w.instanceID++
	v := &Vehicle{
		world:           w,
		instanceID:      w.instanceID,
		definitionID:    def.ID,
		definitionGUID:  def.GUID,
		skinVariant:     spec.SkinVariant,
		mythicVariant:   spec.MythicVariant,
		placementOffset: spec.PlacementOffset,
		integrity:       clamp16(spec.Integrity, def.MaxIntegrity),
		fuelLevel:       clamp16(spec.FuelLevel, def.MaxFuel),
		auxCharge:       clamp16(spec.AuxiliaryCharge, def.MaxAuxCharge),
		ownerIdentity:   spec.OwnerIdentity,
		groupIdentity:   spec.GroupIdentity,
		locked:          spec.Locked,
		position:        spec.Position,
		rotation:        spec.Rotation,
	}

	if spec.Paint.Valid {
		v.paint = spec.Paint.Bytes()
	}

	v.tiresAlive = make([]bool, def.TireSlots)
	for i := range v.tiresAlive {
		v.tiresAlive[i] = true
	}

	v.turrets = make([]turretMount, len(def.TurretMounts))
	for i := range v.turrets {
		v.turrets[i] = turretMount{live: true, state: []byte{}}
	}

	if def.CargoWidth > 0 && def.CargoHeight > 0 {
		v.cargo = &cargoHold{
			width:  def.CargoWidth,
			height: def.CargoHeight,
		}
	}

	w.vehicles[v.instanceID] = v
	return v, nil
}

// AttachedRegion finds the child region anchored to a frame. Regions come
// into existence when the first child is placed against that frame.
func (w *World) AttachedRegion(frame core.Frame) (world.Region, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	r, ok := w.regions[frame]
	if !ok {
		return nil, false
	}
	return r, true
}

// PlaceBarricade spawns a barricade into the region anchored at spec.Anchor.
func (w *World) PlaceBarricade(spec world.BarricadeSpec) (world.Barricade, error) {
	if spec.Definition == nil {
		return nil, ErrNilDefinition
	}
	def := spec.Definition

	w.mu.Lock()
	defer w.mu.Unlock()

	w.childID++
	b := &Barricade{
		id:             w.childID,
		definitionID:   def.ID,
		definitionGUID: def.GUID,
		ownerIdentity:  spec.OwnerIdentity,
		groupIdentity:  spec.GroupIdentity,
		integrity:      clamp16(spec.Integrity, def.MaxIntegrity),
		state:          spec.State,
		offset:         spec.Offset,
		rotation:       spec.Rotation,
	}
	r := w.regionFor(spec.Anchor)
	r.barricades = append(r.barricades, b)
	return b, nil
}

// PlaceStructure spawns a structure into the region anchored at spec.Anchor.
func (w *World) PlaceStructure(spec world.StructureSpec) (world.Structure, error) {
	if spec.Definition == nil {
		return nil, ErrNilDefinition
	}
	def := spec.Definition

	w.mu.Lock()
	defer w.mu.Unlock()

	w.childID++
	s := &Structure{
		id:             w.childID,
		definitionID:   def.ID,
		definitionGUID: def.GUID,
		ownerIdentity:  spec.OwnerIdentity,
		groupIdentity:  spec.GroupIdentity,
		integrity:      clamp16(spec.Integrity, def.MaxIntegrity),
		offset:         spec.Offset,
		rotation:       spec.Rotation,
	}
	r := w.regionFor(spec.Anchor)
	r.structures = append(r.structures, s)
	return s, nil
}

// regionFor returns the region anchored at frame, creating it on first use.
// Callers hold w.mu.
func (w *World) regionFor(frame core.Frame) *Region {
	r, ok := w.regions[frame]
	if !ok {
		r = &Region{}
		w.regions[frame] = r
	}
	return r
}

func (w *World) removeVehicle(instanceID uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.vehicles, instanceID)
}

func clamp16(v, max uint16) uint16 {
	if max > 0 && v > max {
		return max
	}
	return v
}

var _ world.World = (*World)(nil)

// String describes the world for log output.
func (w *World) String() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return fmt.Sprintf("memworld{vehicles:%d regions:%d}", len(w.vehicles), len(w.regions))
}
