package snapshot

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorpool/extension/v2/internal/world"
	"github.com/motorpool/extension/v2/internal/world/memworld"
	"github.com/motorpool/extension/v2/pkg/core"
)

func TestRestoreDefinitionNotFound(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	snap := core.CompositeSnapshot{
		DefinitionID:   999,
		DefinitionGUID: uuid.MustParse("deadbeef-0000-4000-9000-000000000000"),
	}

	v, err := eng.Restore(w, snap, RestoreOptions{})
	assert.Nil(t, v)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDefinitionNotFound)
	// the failure names both unresolvable keys
	assert.Contains(t, err.Error(), "deadbeef")
	assert.Contains(t, err.Error(), "999")
	assert.Equal(t, 0, w.VehicleCount())
}

func TestRestoreRoundTrip(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	src := mustSpawn(t, w, world.CreateSpec{
		Definition:      vehicleDef(t, cat, haulerGUID),
		Position:        core.Position3D{X: 1204.5, Y: 880.25, Z: 12.5},
		Rotation:        core.Rotation{Yaw: 45, Pitch: 1, Roll: -2},
		SkinVariant:     2,
		MythicVariant:   1,
		Integrity:       900,
		FuelLevel:       321,
		AuxiliaryCharge: 77,
		OwnerIdentity:   42,
		GroupIdentity:   9,
	})
	src.SetPaintColor([4]byte{200, 100, 50, 255})
	src.SetTireAlive(2, false)
	src.SetTurretState(0, []byte{0xA1})
	src.SetTurretState(1, []byte{0xB2})

	snap := eng.Capture(w, src)

	restored, err := eng.Restore(w, snap, RestoreOptions{})
	require.NoError(t, err)
	require.NotNil(t, restored)

	// capture the restored vehicle and compare snapshots modulo InstanceID
	again := eng.Capture(w, restored)
	assert.NotEqual(t, snap.InstanceID, again.InstanceID, "instance ids are never reused")
	again.InstanceID = snap.InstanceID
	assert.Equal(t, snap, again)
}

func TestRestorePaintSentinelNoOverride(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	snap := core.CompositeSnapshot{DefinitionGUID: haulerGUID}
	v, err := eng.Restore(w, snap, RestoreOptions{})
	require.NoError(t, err)

	// no override: the environment keeps its default paint
	assert.Equal(t, [4]byte{0, 0, 0, 0}, v.PaintColor())
}

func TestRestorePaintApplied(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	snap := core.CompositeSnapshot{
		DefinitionGUID: haulerGUID,
		Paint:          core.PaintColor{R: 10, G: 20, B: 30, A: 255, Valid: true},
	}
	v, err := eng.Restore(w, snap, RestoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, [4]byte{10, 20, 30, 255}, v.PaintColor())
}

func TestRestoreTireTruncationLongerSnapshot(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	// six recorded flags into a four-slot target: slots 0-3 from the
	// snapshot, the surplus ignored
	snap := core.CompositeSnapshot{
		DefinitionGUID: haulerGUID,
		TireLiveness:   []bool{true, false, true, true, false, false},
	}

	v, err := eng.Restore(w, snap, RestoreOptions{})
	require.NoError(t, err)

	mv := v.(*memworld.Vehicle)
	assert.Equal(t, 4, mv.TireCount())
	assert.True(t, mv.TireAlive(0))
	assert.False(t, mv.TireAlive(1))
	assert.True(t, mv.TireAlive(2))
	assert.True(t, mv.TireAlive(3))
	assert.Equal(t, 1, mv.TireNotifications(), "one batched notify, not per tire")
}

func TestRestoreTireTruncationShorterSnapshot(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	// two recorded flags into a four-slot target: slots 2-3 keep the
	// environment default (alive)
	snap := core.CompositeSnapshot{
		DefinitionGUID: haulerGUID,
		TireLiveness:   []bool{false, false},
	}

	v, err := eng.Restore(w, snap, RestoreOptions{})
	require.NoError(t, err)

	mv := v.(*memworld.Vehicle)
	assert.False(t, mv.TireAlive(0))
	assert.False(t, mv.TireAlive(1))
	assert.True(t, mv.TireAlive(2))
	assert.True(t, mv.TireAlive(3))
	assert.Equal(t, 1, mv.TireNotifications())
}

func TestRestoreNoTireAssignmentsNoNotify(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	snap := core.CompositeSnapshot{DefinitionGUID: haulerGUID}
	v, err := eng.Restore(w, snap, RestoreOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, v.(*memworld.Vehicle).TireNotifications())
}

func TestRestoreTurretMatchingPath(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	snap := core.CompositeSnapshot{
		DefinitionGUID: haulerGUID,
		TurretStates:   [][]byte{{0xA1}, {0xB2}},
	}

	v, err := eng.Restore(w, snap, RestoreOptions{})
	require.NoError(t, err)

	s0, ok := v.TurretState(0)
	require.True(t, ok)
	assert.Equal(t, []byte{0xA1}, s0)
	s1, ok := v.TurretState(1)
	require.True(t, ok)
	assert.Equal(t, []byte{0xB2}, s1)
}

func TestRestoreTurretMatchingPathSkipsEmptyBlob(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	snap := core.CompositeSnapshot{
		DefinitionGUID: haulerGUID,
		TurretStates:   [][]byte{{0xA1}, {}},
	}

	v, err := eng.Restore(w, snap, RestoreOptions{})
	require.NoError(t, err)

	s0, _ := v.TurretState(0)
	assert.Equal(t, []byte{0xA1}, s0)
	// the empty stored blob leaves mount 1 at its spawn state
	s1, ok := v.TurretState(1)
	require.True(t, ok)
	assert.Empty(t, s1)
}

func TestRestoreTurretFallbackOnMismatch(t *testing.T) {
	tests := []struct {
		name   string
		states [][]byte
	}{
		{"snapshot longer", [][]byte{{0x01}, {0x02}, {0x03}}},
		{"snapshot shorter", [][]byte{{0x01}}},
		{"snapshot empty but mounts exist", [][]byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := newTestCatalog()
			eng := newTestEngine(cat)
			w := memworld.New()

			snap := core.CompositeSnapshot{
				DefinitionGUID: haulerGUID,
				TurretStates:   tt.states,
			}

			v, err := eng.Restore(w, snap, RestoreOptions{})
			require.NoError(t, err)

			// every mount gets the current definition's item default,
			// never anything from the snapshot
			s0, ok := v.TurretState(0)
			require.True(t, ok)
			assert.Equal(t, []byte{0xAA}, s0, "autocannon default")
			s1, ok := v.TurretState(1)
			require.True(t, ok)
			assert.Equal(t, []byte{0xBB}, s1, "mortar default")
		})
	}
}

func TestRestoreTurretFallbackUnknownItem(t *testing.T) {
	cat := newTestCatalog()
	// definition mounts an item the catalog no longer carries
	phantomGUID := uuid.MustParse("c0a8e1d2-0009-4a00-9000-000000000009")
	cat.RegisterVehicle(core.VehicleDefinition{
		ID: 9, GUID: phantomGUID, Name: "phantom",
		TurretMounts: []core.TurretMount{{ItemID: 999}},
	})
	eng := newTestEngine(cat)
	w := memworld.New()

	snap := core.CompositeSnapshot{
		DefinitionGUID: phantomGUID,
		TurretStates:   [][]byte{{0x01}, {0x02}},
	}

	v, err := eng.Restore(w, snap, RestoreOptions{})
	require.NoError(t, err)

	s0, ok := v.TurretState(0)
	require.True(t, ok)
	assert.Empty(t, s0)
}

func TestRestoreClaimantOverridesOwnership(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	snap := core.CompositeSnapshot{
		DefinitionGUID: haulerGUID,
		OwnerIdentity:  1,
		GroupIdentity:  2,
	}

	v, err := eng.Restore(w, snap, RestoreOptions{
		Claimant: &core.Identity{Owner: 99, Group: 77},
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(99), v.OwnerIdentity())
	assert.Equal(t, uint64(77), v.GroupIdentity())
	assert.True(t, v.(*memworld.Vehicle).Locked())

	// the snapshot itself keeps its stored identities
	assert.Equal(t, uint64(1), snap.OwnerIdentity)
	assert.Equal(t, uint64(2), snap.GroupIdentity)
}

func TestRestoreUnownedNotLocked(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	snap := core.CompositeSnapshot{DefinitionGUID: haulerGUID}
	v, err := eng.Restore(w, snap, RestoreOptions{})
	require.NoError(t, err)
	assert.False(t, v.(*memworld.Vehicle).Locked())

	snap.OwnerIdentity = 5
	v2, err := eng.Restore(w, snap, RestoreOptions{})
	require.NoError(t, err)
	assert.True(t, v2.(*memworld.Vehicle).Locked())
}

func TestRestoreResourceClamping(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	snap := core.CompositeSnapshot{
		DefinitionGUID:  haulerGUID,
		Integrity:       9999,
		FuelLevel:       9999,
		AuxiliaryCharge: 9999,
	}

	v, err := eng.Restore(w, snap, RestoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, uint16(1000), v.Integrity())
	assert.Equal(t, uint16(500), v.FuelLevel())
	assert.Equal(t, uint16(100), v.AuxiliaryCharge())
}

func TestRestoreEmptyCargoNoInsertions(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	snap := core.CompositeSnapshot{
		DefinitionGUID: haulerGUID,
		Cargo:          core.CargoSnapshot{Items: []core.CargoItem{}},
	}

	v, err := eng.Restore(w, snap, RestoreOptions{})
	require.NoError(t, err)

	hold, ok := v.Cargo()
	require.True(t, ok)
	assert.Len(t, hold.Items(), 0)
}

func TestRestoreCargoInOrder(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	snap := core.CompositeSnapshot{
		DefinitionGUID: haulerGUID,
		Cargo: core.CargoSnapshot{Items: []core.CargoItem{
			{X: 0, Y: 0, Item: core.ItemSnapshot{DefinitionID: 301, Amount: 2, State: []byte{0xF1}}},
			{X: 1, Y: 2, Rotation: 1, Item: core.ItemSnapshot{DefinitionID: 302, Amount: 1}},
			// duplicates are inserted as-is, never merged
			{X: 0, Y: 0, Item: core.ItemSnapshot{DefinitionID: 301, Amount: 2, State: []byte{0xF1}}},
		}},
	}

	v, err := eng.Restore(w, snap, RestoreOptions{})
	require.NoError(t, err)

	hold, _ := v.Cargo()
	items := hold.Items()
	require.Len(t, items, 3)
	assert.Equal(t, uint16(301), items[0].DefinitionID)
	assert.Equal(t, uint16(302), items[1].DefinitionID)
	assert.Equal(t, uint16(301), items[2].DefinitionID)
	assert.Equal(t, uint8(1), items[1].Rotation)
}

func TestRestoreCargoFailurePropagatesWithHandle(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	// heavy has a 1x1 hold; the second insertion overflows it
	snap := core.CompositeSnapshot{
		DefinitionGUID: heavyGUID,
		Cargo: core.CargoSnapshot{Items: []core.CargoItem{
			{Item: core.ItemSnapshot{DefinitionID: 301}},
			{Item: core.ItemSnapshot{DefinitionID: 302}},
		}},
	}

	v, err := eng.Restore(w, snap, RestoreOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, memworld.ErrCargoFull)
	// the partially configured handle comes back for caller-side cleanup
	require.NotNil(t, v)
	assert.Equal(t, 1, w.VehicleCount())
}

func TestRestoreChildSkipZeroDefinitionID(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	snap := core.CompositeSnapshot{
		DefinitionGUID: haulerGUID,
		Barricades: []core.BarricadeSnapshot{
			{DefinitionID: 0}, // placeholder slot, never spawned
			{DefinitionID: 7, DefinitionGUID: sandbagGUID, Integrity: 100},
		},
		Structures: []core.StructureSnapshot{
			{DefinitionID: 0},
		},
	}

	v, err := eng.Restore(w, snap, RestoreOptions{})
	require.NoError(t, err)

	region, ok := w.AttachedRegion(v.Frame())
	require.True(t, ok)
	assert.Len(t, region.Barricades(), 1)
	assert.Len(t, region.Structures(), 0)
}

func TestRestoreChildOwnershipRebind(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	snap := core.CompositeSnapshot{
		DefinitionGUID: haulerGUID,
		OwnerIdentity:  42,
		GroupIdentity:  9,
		Barricades: []core.BarricadeSnapshot{
			{DefinitionID: 7, DefinitionGUID: sandbagGUID, OwnerIdentity: 5, GroupIdentity: 6},
		},
	}

	// without rebinding the child keeps its stored identities
	v, err := eng.Restore(w, snap, RestoreOptions{})
	require.NoError(t, err)
	region, _ := w.AttachedRegion(v.Frame())
	b := region.Barricades()[0]
	assert.Equal(t, uint64(5), b.OwnerIdentity())
	assert.Equal(t, uint64(6), b.GroupIdentity())

	// with rebinding it takes the new composite's owner and group
	w2 := memworld.New()
	v2, err := eng.Restore(w2, snap, RestoreOptions{RebindChildOwnership: true})
	require.NoError(t, err)
	region2, _ := w2.AttachedRegion(v2.Frame())
	b2 := region2.Barricades()[0]
	assert.Equal(t, uint64(42), b2.OwnerIdentity())
	assert.Equal(t, uint64(9), b2.GroupIdentity())
}

func TestRestoreChildDefinitionMissPropagates(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	snap := core.CompositeSnapshot{
		DefinitionGUID: haulerGUID,
		Barricades: []core.BarricadeSnapshot{
			{DefinitionID: 77, DefinitionGUID: uuid.MustParse("deadbeef-0001-4000-9000-000000000000")},
		},
	}

	v, err := eng.Restore(w, snap, RestoreOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDefinitionNotFound)
	// creation already happened; the handle comes back with the error
	assert.NotNil(t, v)
}

func TestRestoreChildrenAnchoredToNewFrame(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	snap := core.CompositeSnapshot{
		DefinitionGUID: haulerGUID,
		Position:       core.Position3D{X: 500, Y: 600, Z: 7},
		Rotation:       core.Rotation{Yaw: 180},
		Barricades: []core.BarricadeSnapshot{
			{DefinitionID: 7, DefinitionGUID: sandbagGUID, Offset: core.Position3D{X: 2}},
		},
	}

	v, err := eng.Restore(w, snap, RestoreOptions{})
	require.NoError(t, err)

	// the region is anchored to the restored frame, not the old one
	region, ok := w.AttachedRegion(v.Frame())
	require.True(t, ok)
	require.Len(t, region.Barricades(), 1)
	assert.Equal(t, core.Position3D{X: 2}, region.Barricades()[0].Offset())
}

func TestRestoreBarricadeAlone(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	anchor := core.Frame{Position: core.Position3D{X: 1}}
	snap := core.BarricadeSnapshot{
		DefinitionID:   7,
		DefinitionGUID: sandbagGUID,
		OwnerIdentity:  3,
		Integrity:      120,
		State:          []byte{0x77},
		Offset:         core.Position3D{X: 0.5},
	}

	b, err := eng.RestoreBarricade(w, snap, anchor, nil)
	require.NoError(t, err)
	assert.Equal(t, uint16(7), b.DefinitionID())
	assert.Equal(t, uint64(3), b.OwnerIdentity())
	assert.Equal(t, uint16(120), b.Integrity())
	assert.Equal(t, []byte{0x77}, b.StateBlob())

	_, err = eng.RestoreStructure(w, core.StructureSnapshot{DefinitionID: 99}, anchor, nil)
	assert.ErrorIs(t, err, ErrDefinitionNotFound)
}

// The full scenario: a loaded hauler with a mounted barricade, captured and
// then claimed back by a different identity.
func TestRestoreEndToEndScenario(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	src := mustSpawn(t, w, world.CreateSpec{
		Definition:    vehicleDef(t, cat, haulerGUID),
		Position:      core.Position3D{X: 300, Y: 400},
		OwnerIdentity: 42,
		GroupIdentity: 9,
	})
	src.SetPaintColor([4]byte{10, 20, 30, 255})
	src.SetTireAlive(1, false)
	src.SetTurretState(0, []byte{0xA1})
	src.SetTurretState(1, []byte{0xB2})

	_, err := w.PlaceBarricade(world.BarricadeSpec{
		Definition:    barricadeDef(t, cat, sandbagGUID),
		Anchor:        src.Frame(),
		OwnerIdentity: 42,
	})
	require.NoError(t, err)

	snap := eng.Capture(w, src)
	require.Equal(t, []bool{true, false, true, true}, snap.TireLiveness)
	require.Len(t, snap.TurretStates, 2)
	require.Len(t, snap.Barricades, 1)

	restored, err := eng.Restore(w, snap, RestoreOptions{
		Claimant:             &core.Identity{Owner: 99, Group: 99},
		RebindChildOwnership: true,
	})
	require.NoError(t, err)

	mv := restored.(*memworld.Vehicle)
	assert.Equal(t, []byte{0xA1}, mustTurret(t, mv, 0))
	assert.Equal(t, []byte{0xB2}, mustTurret(t, mv, 1))
	assert.True(t, mv.TireAlive(0))
	assert.False(t, mv.TireAlive(1))
	assert.True(t, mv.TireAlive(2))
	assert.True(t, mv.TireAlive(3))
	assert.Equal(t, [4]byte{10, 20, 30, 255}, mv.PaintColor())
	assert.Equal(t, uint64(99), mv.OwnerIdentity())

	region, ok := w.AttachedRegion(restored.Frame())
	require.True(t, ok)
	children := region.Barricades()
	require.Len(t, children, 1)
	assert.Equal(t, uint16(7), children[0].DefinitionID())
	assert.Equal(t, uint64(99), children[0].OwnerIdentity())
}

func mustTurret(t *testing.T, v world.Vehicle, mount int) []byte {
	t.Helper()
	state, ok := v.TurretState(mount)
	require.True(t, ok)
	return state
}

// sanity: a snapshot survives multiple restores because it is never mutated
func TestRestoreRepeatable(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	snap := core.CompositeSnapshot{
		DefinitionGUID: haulerGUID,
		TireLiveness:   []bool{false, true, false, true},
		TurretStates:   [][]byte{{0x01}, {0x02}},
	}

	var instances []uint32
	for i := 0; i < 3; i++ {
		v, err := eng.Restore(w, snap, RestoreOptions{})
		require.NoError(t, err)
		instances = append(instances, v.InstanceID())
	}

	assert.Equal(t, 3, w.VehicleCount())
	assert.NotEqual(t, instances[0], instances[1])
	assert.NotEqual(t, instances[1], instances[2])
}

var errBoom = errors.New("boom")

// guard against accidental reliance on creation retries
func TestRestoreCreationFailureNotRetried(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)

	fw := &failingWorld{err: errBoom}
	snap := core.CompositeSnapshot{DefinitionGUID: haulerGUID}

	v, err := eng.Restore(fw, snap, RestoreOptions{})
	assert.Nil(t, v)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, fw.createCalls, "creation failure is propagated, never retried")
}

// failingWorld fails every vehicle creation.
type failingWorld struct {
	err         error
	createCalls int
}

func (f *failingWorld) VehicleByInstance(uint32) (world.Vehicle, bool) { return nil, false }

func (f *failingWorld) CreateVehicle(world.CreateSpec) (world.Vehicle, error) {
	f.createCalls++
	return nil, f.err
}

func (f *failingWorld) AttachedRegion(core.Frame) (world.Region, bool) { return nil, false }

func (f *failingWorld) PlaceBarricade(world.BarricadeSpec) (world.Barricade, error) {
	return nil, f.err
}

func (f *failingWorld) PlaceStructure(world.StructureSpec) (world.Structure, error) {
	return nil, f.err
}
