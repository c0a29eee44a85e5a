package snapshot

import (
	"fmt"

	"github.com/motorpool/extension/v2/internal/world"
	"github.com/motorpool/extension/v2/pkg/core"
)

// Restore builds a new live vehicle graph from a snapshot. The snapshot is
// only read. On a failure after creation succeeded, the partially configured
// handle is returned alongside the error; the caller owning the world decides
// whether to destroy it. Restore never retries: every call creates a new
// object, so a blind retry would duplicate it.
func (e *Engine) Restore(w world.World, snap core.CompositeSnapshot, opts RestoreOptions) (world.Vehicle, error) {
	def, ok := e.catalog.ResolveVehicle(snap.DefinitionGUID, snap.DefinitionID)
	if !ok {
		return nil, fmt.Errorf("vehicle guid %s (fallback id %d): %w",
			snap.DefinitionGUID, snap.DefinitionID, ErrDefinitionNotFound)
	}

	// a claimant takes over both identities; the snapshot keeps its own
	owner := snap.OwnerIdentity
	group := snap.GroupIdentity
	if opts.Claimant != nil {
		owner = opts.Claimant.Owner
		group = opts.Claimant.Group
	}

	// snap.Paint's zero value is the no-override sentinel, which CreateSpec
	// passes through unchanged
	created, err := w.CreateVehicle(world.CreateSpec{
		Definition:      def,
		Position:        snap.Position,
		Rotation:        snap.Rotation,
		SkinVariant:     snap.SkinVariant,
		MythicVariant:   snap.MythicVariant,
		PlacementOffset: snap.PlacementOffset,
		Integrity:       snap.Integrity,
		FuelLevel:       snap.FuelLevel,
		AuxiliaryCharge: snap.AuxiliaryCharge,
		OwnerIdentity:   owner,
		GroupIdentity:   group,
		Locked:          owner != 0,
		Paint:           snap.Paint,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vehicle guid %s: %w", snap.DefinitionGUID, err)
	}

	e.restoreTires(created, snap.TireLiveness)

	if err := e.restoreCargo(created, snap.Cargo); err != nil {
		return created, err
	}

	if err := e.restoreChildren(w, created, snap, owner, group, opts.RebindChildOwnership); err != nil {
		return created, err
	}

	e.restoreTurrets(created, def, snap.TurretStates)

	e.logger.Debug("Restored composite snapshot",
		"sourceInstanceId", snap.InstanceID,
		"newInstanceId", created.InstanceID(),
		"definitionGuid", snap.DefinitionGUID,
		"owner", owner,
		"rebindChildren", opts.RebindChildOwnership)

	return created, nil
}

// restoreTires maps recorded liveness onto the new vehicle's slots. The
// recorded length and the live slot count may differ; only the overlapping
// prefix is applied and slots beyond it keep their environment defaults.
func (e *Engine) restoreTires(v world.Vehicle, liveness []bool) {
	n := len(liveness)
	if slots := v.TireCount(); slots < n {
		n = slots
	}
	for slot := 0; slot < n; slot++ {
		v.SetTireAlive(slot, liveness[slot])
	}
	// one batched notify after the whole run, and none for an empty run
	if n > 0 {
		v.NotifyTiresChanged()
	}
}

// restoreCargo inserts stored cargo entries in order, each as a fresh item
// instance. No dedupe or merge. An insertion failure aborts the run.
func (e *Engine) restoreCargo(v world.Vehicle, cargo core.CargoSnapshot) error {
	if len(cargo.Items) == 0 {
		return nil
	}
	hold, ok := v.Cargo()
	if !ok {
		return nil
	}
	for i, entry := range cargo.Items {
		err := hold.Insert(world.CargoStack{
			X:            entry.X,
			Y:            entry.Y,
			Rotation:     entry.Rotation,
			DefinitionID: entry.Item.DefinitionID,
			Amount:       entry.Item.Amount,
			Quality:      entry.Item.Quality,
			State:        cloneBlob(entry.Item.State),
		})
		if err != nil {
			return fmt.Errorf("inserting cargo entry %d (item %d): %w", i, entry.Item.DefinitionID, err)
		}
	}
	return nil
}

// restoreChildren respawns stored barricades and structures anchored to the
// new vehicle's placement frame, sequentially in stored order. Entries with
// definition id 0 are placeholder slots and are skipped.
func (e *Engine) restoreChildren(w world.World, v world.Vehicle, snap core.CompositeSnapshot, owner, group uint64, rebind bool) error {
	var override *core.Identity
	if rebind {
		override = &core.Identity{Owner: owner, Group: group}
	}
	anchor := v.Frame()

	for i, bs := range snap.Barricades {
		if bs.DefinitionID == 0 {
			continue
		}
		if _, err := e.RestoreBarricade(w, bs, anchor, override); err != nil {
			return fmt.Errorf("restoring barricade %d: %w", i, err)
		}
	}
	for i, ss := range snap.Structures {
		if ss.DefinitionID == 0 {
			continue
		}
		if _, err := e.RestoreStructure(w, ss, anchor, override); err != nil {
			return fmt.Errorf("restoring structure %d: %w", i, err)
		}
	}
	return nil
}

// restoreTurrets reconciles stored turret blobs with the new vehicle's
// mounts. Two disjoint paths:
//
// When the stored length matches the mount count exactly, each blob is
// assigned to its mount directly, skipping any index where either side is
// absent (empty stored blob, or a mount with no live backing).
//
// Any length mismatch means the stored blobs were produced against a
// different mount layout and cannot be trusted; the snapshot is ignored and
// every mount gets the default state of the item the current catalog
// definition mounts there.
func (e *Engine) restoreTurrets(v world.Vehicle, def *core.VehicleDefinition, states [][]byte) {
	mountCount := v.TurretCount()

	if len(states) == mountCount {
		for mount := 0; mount < mountCount; mount++ {
			blob := states[mount]
			if len(blob) == 0 {
				continue
			}
			if _, live := v.TurretState(mount); !live {
				continue
			}
			v.SetTurretState(mount, cloneBlob(blob))
		}
		return
	}

	e.logger.Warn("Turret layout mismatch, applying catalog defaults",
		"storedStates", len(states),
		"liveMounts", mountCount,
		"definitionGuid", def.GUID)

	n := mountCount
	if len(def.TurretMounts) < n {
		n = len(def.TurretMounts)
	}
	for mount := 0; mount < n; mount++ {
		var blob []byte
		if item, ok := e.catalog.ResolveItem(def.TurretMounts[mount].ItemID); ok {
			blob = e.catalog.DefaultStateFor(item)
		}
		v.SetTurretState(mount, blob)
	}
}

// RestoreBarricade spawns one stored barricade anchored to a parent frame.
// A non-nil ownership override replaces the stored identities.
func (e *Engine) RestoreBarricade(w world.World, snap core.BarricadeSnapshot, anchor core.Frame, override *core.Identity) (world.Barricade, error) {
	def, ok := e.catalog.ResolveBarricade(snap.DefinitionGUID, snap.DefinitionID)
	if !ok {
		return nil, fmt.Errorf("barricade guid %s (fallback id %d): %w",
			snap.DefinitionGUID, snap.DefinitionID, ErrDefinitionNotFound)
	}

	owner := snap.OwnerIdentity
	group := snap.GroupIdentity
	if override != nil {
		owner = override.Owner
		group = override.Group
	}

	return w.PlaceBarricade(world.BarricadeSpec{
		Definition:    def,
		Anchor:        anchor,
		Offset:        snap.Offset,
		Rotation:      snap.Rotation,
		Integrity:     snap.Integrity,
		State:         cloneBlob(snap.State),
		OwnerIdentity: owner,
		GroupIdentity: group,
	})
}

// RestoreStructure spawns one stored structure anchored to a parent frame.
func (e *Engine) RestoreStructure(w world.World, snap core.StructureSnapshot, anchor core.Frame, override *core.Identity) (world.Structure, error) {
	def, ok := e.catalog.ResolveStructure(snap.DefinitionGUID, snap.DefinitionID)
	if !ok {
		return nil, fmt.Errorf("structure guid %s (fallback id %d): %w",
			snap.DefinitionGUID, snap.DefinitionID, ErrDefinitionNotFound)
	}

	owner := snap.OwnerIdentity
	group := snap.GroupIdentity
	if override != nil {
		owner = override.Owner
		group = override.Group
	}

	return w.PlaceStructure(world.StructureSpec{
		Definition:    def,
		Anchor:        anchor,
		Offset:        snap.Offset,
		Rotation:      snap.Rotation,
		Integrity:     snap.Integrity,
		OwnerIdentity: owner,
		GroupIdentity: group,
	})
}
