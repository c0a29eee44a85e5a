// Package catalog holds the asset definitions the engine resolves snapshots
// against. The registry is read-mostly: definitions arrive at startup from a
// JSON file and afterwards from host-pushed catalog commands, while the
// engine and handlers only ever read. Latency on the resolve path matters,
// so everything lives in memory behind one mutex.
package catalog

import (
	"sync"

	"github.com/google/uuid"

	"github.com/motorpool/extension/v2/pkg/core"
)

// Registry is the in-memory definition store. GUID is the authoritative key
// for vehicles, barricades and structures; the numeric id is kept as a legacy
// fallback index. Items are keyed by numeric id only.
type Registry struct {
	m sync.Mutex

	vehiclesByGUID map[uuid.UUID]*core.VehicleDefinition
	vehiclesByID   map[uint16]*core.VehicleDefinition

	barricadesByGUID map[uuid.UUID]*core.BarricadeDefinition
	barricadesByID   map[uint16]*core.BarricadeDefinition

	structuresByGUID map[uuid.UUID]*core.StructureDefinition
	structuresByID   map[uint16]*core.StructureDefinition

	items map[uint16]*core.ItemDefinition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.vehiclesByGUID = make(map[uuid.UUID]*core.VehicleDefinition)
	r.vehiclesByID = make(map[uint16]*core.VehicleDefinition)
	r.barricadesByGUID = make(map[uuid.UUID]*core.BarricadeDefinition)
	r.barricadesByID = make(map[uint16]*core.BarricadeDefinition)
	r.structuresByGUID = make(map[uuid.UUID]*core.StructureDefinition)
	r.structuresByID = make(map[uint16]*core.StructureDefinition)
	r.items = make(map[uint16]*core.ItemDefinition)
}

// Reset drops every definition. Used when the host pushes a fresh catalog.
func (r *Registry) Reset() {
	r.m.Lock()
	defer r.m.Unlock()
	r.reset()
}

// RegisterVehicle adds or replaces a vehicle definition under both keys.
func (r *Registry) RegisterVehicle(def core.VehicleDefinition) {
	r.m.Lock()
	defer r.m.Unlock()
	d := def
	if d.GUID != uuid.Nil {
		r.vehiclesByGUID[d.GUID] = &d
	}
	if d.ID != 0 {
		r.vehiclesByID[d.ID] = &d
	}
}

// RegisterBarricade adds or replaces a barricade definition under both keys.
func (r *Registry) RegisterBarricade(def core.BarricadeDefinition) {
	r.m.Lock()
	defer r.m.Unlock()
	d := def
	if d.GUID != uuid.Nil {
		r.barricadesByGUID[d.GUID] = &d
	}
	if d.ID != 0 {
		r.barricadesByID[d.ID] = &d
	}
}

// RegisterStructure adds or replaces a structure definition under both keys.
func (r *Registry) RegisterStructure(def core.StructureDefinition) {
	r.m.Lock()
	defer r.m.Unlock()
	d := def
	if d.GUID != uuid.Nil {
		r.structuresByGUID[d.GUID] = &d
	}
	if d.ID != 0 {
		r.structuresByID[d.ID] = &d
	}
}

// RegisterItem adds or replaces an item definition.
func (r *Registry) RegisterItem(def core.ItemDefinition) {
	r.m.Lock()
	defer r.m.Unlock()
	d := def
	r.items[d.ID] = &d
}

// ResolveVehicle looks up a vehicle definition, GUID first, numeric id as
// fallback.
func (r *Registry) ResolveVehicle(guid uuid.UUID, fallbackID uint16) (*core.VehicleDefinition, bool) {
	r.m.Lock()
	defer r.m.Unlock()
	if guid != uuid.Nil {
		if d, ok := r.vehiclesByGUID[guid]; ok {
			return d, true
		}
	}
	if d, ok := r.vehiclesByID[fallbackID]; ok {
		return d, true
	}
	return nil, false
}

// ResolveBarricade looks up a barricade definition, GUID first, numeric id
// as fallback.
func (r *Registry) ResolveBarricade(guid uuid.UUID, fallbackID uint16) (*core.BarricadeDefinition, bool) {
	r.m.Lock()
	defer r.m.Unlock()
	if guid != uuid.Nil {
		if d, ok := r.barricadesByGUID[guid]; ok {
			return d, true
		}
	}
	if d, ok := r.barricadesByID[fallbackID]; ok {
		return d, true
	}
	return nil, false
}

// ResolveStructure looks up a structure definition, GUID first, numeric id
// as fallback.
func (r *Registry) ResolveStructure(guid uuid.UUID, fallbackID uint16) (*core.StructureDefinition, bool) {
	r.m.Lock()
	defer r.m.Unlock()
	if guid != uuid.Nil {
		if d, ok := r.structuresByGUID[guid]; ok {
			return d, true
		}
	}
	if d, ok := r.structuresByID[fallbackID]; ok {
		return d, true
	}
	return nil, false
}

// ResolveItem looks up an item definition by numeric id.
func (r *Registry) ResolveItem(id uint16) (*core.ItemDefinition, bool) {
	r.m.Lock()
	defer r.m.Unlock()
	if d, ok := r.items[id]; ok {
		return d, true
	}
	return nil, false
}

// DefaultStateFor returns a fresh copy of an item's default state blob.
// Callers may hand the result straight to the live environment.
func (r *Registry) DefaultStateFor(item *core.ItemDefinition) []byte {
	if item == nil || len(item.DefaultState) == 0 {
		return []byte{}
	}
	out := make([]byte, len(item.DefaultState))
	copy(out, item.DefaultState)
	return out
}

// Counts reports registry sizes for the status monitor.
func (r *Registry) Counts() (vehicles, barricades, structures, items int) {
	r.m.Lock()
	defer r.m.Unlock()
	return len(r.vehiclesByGUID), len(r.barricadesByGUID), len(r.structuresByGUID), len(r.items)
}
