package snapshot

import (
	"github.com/motorpool/extension/v2/internal/world"
	"github.com/motorpool/extension/v2/pkg/core"
)

// Capture walks a live vehicle and produces an immutable snapshot of its
// current observable state. Pure read: no side effects on the live object,
// and every blob in the result is an independent copy.
func (e *Engine) Capture(w world.World, v world.Vehicle) core.CompositeSnapshot {
	frame := v.Frame()
	snap := core.CompositeSnapshot{
		DefinitionID:    v.DefinitionID(),
		DefinitionGUID:  v.DefinitionGUID(),
		InstanceID:      v.InstanceID(),
		SkinVariant:     v.SkinVariant(),
		MythicVariant:   v.MythicVariant(),
		PlacementOffset: v.PlacementOffset(),
		Integrity:       v.Integrity(),
		FuelLevel:       v.FuelLevel(),
		AuxiliaryCharge: v.AuxiliaryCharge(),
		OwnerIdentity:   v.OwnerIdentity(),
		GroupIdentity:   v.GroupIdentity(),
		Position:        frame.Position,
		Rotation:        frame.Rotation,
		Barricades:      []core.BarricadeSnapshot{},
		Structures:      []core.StructureSnapshot{},
	}

	// a fully transparent paint value is no override, not a color
	snap.Paint = core.PaintFromBytes(v.PaintColor())

	// tires in slot order; no tires means an empty sequence
	tireCount := v.TireCount()
	snap.TireLiveness = make([]bool, tireCount)
	for slot := 0; slot < tireCount; slot++ {
		snap.TireLiveness[slot] = v.TireAlive(slot)
	}

	// turret blobs stay index-aligned with the mount list: a mount with no
	// live backing contributes an empty blob, never a skipped index
	mountCount := v.TurretCount()
	snap.TurretStates = make([][]byte, mountCount)
	for mount := 0; mount < mountCount; mount++ {
		state, live := v.TurretState(mount)
		if !live {
			snap.TurretStates[mount] = []byte{}
			continue
		}
		snap.TurretStates[mount] = cloneBlob(state)
	}

	// cargo is always present in the snapshot, possibly empty
	snap.Cargo = core.CargoSnapshot{Items: []core.CargoItem{}}
	if hold, ok := v.Cargo(); ok {
		for _, stack := range hold.Items() {
			snap.Cargo.Items = append(snap.Cargo.Items, core.CargoItem{
				X:        stack.X,
				Y:        stack.Y,
				Rotation: stack.Rotation,
				Item: core.ItemSnapshot{
					DefinitionID: stack.DefinitionID,
					Amount:       stack.Amount,
					Quality:      stack.Quality,
					State:        cloneBlob(stack.State),
				},
			})
		}
	}

	// children live in the region anchored to the vehicle's frame; a region
	// miss means the composite has no mounted children
	if region, ok := w.AttachedRegion(frame); ok {
		for _, b := range region.Barricades() {
			snap.Barricades = append(snap.Barricades, e.CaptureBarricade(b))
		}
		for _, s := range region.Structures() {
			snap.Structures = append(snap.Structures, e.CaptureStructure(s))
		}
	}

	e.logger.Debug("Captured composite snapshot",
		"instanceId", snap.InstanceID,
		"definitionGuid", snap.DefinitionGUID,
		"tires", tireCount,
		"turretMounts", mountCount,
		"cargoItems", len(snap.Cargo.Items),
		"barricades", len(snap.Barricades),
		"structures", len(snap.Structures))

	return snap
}

// CaptureBarricade snapshots one live frame-mounted barricade.
func (e *Engine) CaptureBarricade(b world.Barricade) core.BarricadeSnapshot {
	return core.BarricadeSnapshot{
		DefinitionID:   b.DefinitionID(),
		DefinitionGUID: b.DefinitionGUID(),
		OwnerIdentity:  b.OwnerIdentity(),
		GroupIdentity:  b.GroupIdentity(),
		Integrity:      b.Integrity(),
		State:          cloneBlob(b.StateBlob()),
		Offset:         b.Offset(),
		Rotation:       b.Rotation(),
	}
}

// CaptureStructure snapshots one live frame-mounted structure.
func (e *Engine) CaptureStructure(s world.Structure) core.StructureSnapshot {
	return core.StructureSnapshot{
		DefinitionID:   s.DefinitionID(),
		DefinitionGUID: s.DefinitionGUID(),
		OwnerIdentity:  s.OwnerIdentity(),
		GroupIdentity:  s.GroupIdentity(),
		Integrity:      s.Integrity(),
		Offset:         s.Offset(),
		Rotation:       s.Rotation(),
	}
}
