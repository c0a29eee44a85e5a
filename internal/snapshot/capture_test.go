package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorpool/extension/v2/internal/world"
	"github.com/motorpool/extension/v2/internal/world/memworld"
	"github.com/motorpool/extension/v2/pkg/core"
)

func TestCaptureScalars(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	v := mustSpawn(t, w, world.CreateSpec{
		Definition:      vehicleDef(t, cat, haulerGUID),
		Position:        core.Position3D{X: 100, Y: 200, Z: 12},
		Rotation:        core.Rotation{Yaw: 90},
		SkinVariant:     3,
		MythicVariant:   1,
		Integrity:       800,
		FuelLevel:       450,
		AuxiliaryCharge: 60,
		OwnerIdentity:   42,
		GroupIdentity:   9,
	})

	snap := eng.Capture(w, v)

	assert.Equal(t, uint16(1), snap.DefinitionID)
	assert.Equal(t, haulerGUID, snap.DefinitionGUID)
	assert.Equal(t, v.InstanceID(), snap.InstanceID)
	assert.Equal(t, uint16(3), snap.SkinVariant)
	assert.Equal(t, uint16(1), snap.MythicVariant)
	assert.Equal(t, uint16(800), snap.Integrity)
	assert.Equal(t, uint16(450), snap.FuelLevel)
	assert.Equal(t, uint16(60), snap.AuxiliaryCharge)
	assert.Equal(t, uint64(42), snap.OwnerIdentity)
	assert.Equal(t, uint64(9), snap.GroupIdentity)
	assert.Equal(t, core.Position3D{X: 100, Y: 200, Z: 12}, snap.Position)
	assert.Equal(t, core.Rotation{Yaw: 90}, snap.Rotation)
}

func TestCapturePaintNormalization(t *testing.T) {
	tests := []struct {
		name string
		live [4]byte
		want core.PaintColor
	}{
		{"no paint", [4]byte{0, 0, 0, 0}, core.PaintColor{}},
		{"alpha zero with rgb", [4]byte{10, 20, 30, 0}, core.PaintColor{}},
		{"opaque paint", [4]byte{10, 20, 30, 255}, core.PaintColor{R: 10, G: 20, B: 30, A: 255, Valid: true}},
		{"opaque black survives", [4]byte{0, 0, 0, 255}, core.PaintColor{A: 255, Valid: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := newTestCatalog()
			eng := newTestEngine(cat)
			w := memworld.New()

			v := mustSpawn(t, w, world.CreateSpec{Definition: vehicleDef(t, cat, haulerGUID)})
			v.SetPaintColor(tt.live)

			snap := eng.Capture(w, v)
			assert.Equal(t, tt.want, snap.Paint)
		})
	}
}

func TestCaptureTireLiveness(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	v := mustSpawn(t, w, world.CreateSpec{Definition: vehicleDef(t, cat, haulerGUID)})
	v.SetTireAlive(1, false)

	snap := eng.Capture(w, v)
	assert.Equal(t, []bool{true, false, true, true}, snap.TireLiveness)
}

func TestCaptureNoTiresEmptySequence(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	v := mustSpawn(t, w, world.CreateSpec{Definition: vehicleDef(t, cat, railcartGUID)})

	snap := eng.Capture(w, v)
	assert.NotNil(t, snap.TireLiveness)
	assert.Len(t, snap.TireLiveness, 0)
}

func TestCaptureTurretIndexAlignment(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	v := mustSpawn(t, w, world.CreateSpec{Definition: vehicleDef(t, cat, haulerGUID)})
	v.SetTurretState(0, []byte{0xA1, 0xA2})
	// mount 1 exists structurally but loses its live backing
	v.DetachTurretBacking(1)

	snap := eng.Capture(w, v)
	require.Len(t, snap.TurretStates, 2)
	assert.Equal(t, []byte{0xA1, 0xA2}, snap.TurretStates[0])
	// the dead mount holds its index with an empty blob
	assert.Equal(t, []byte{}, snap.TurretStates[1])
}

func TestCaptureTurretBlobsAreCopies(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	v := mustSpawn(t, w, world.CreateSpec{Definition: vehicleDef(t, cat, haulerGUID)})
	live := []byte{1, 2, 3}
	v.SetTurretState(0, live)

	snap := eng.Capture(w, v)

	// later live mutation must not reach the snapshot
	live[0] = 99
	assert.Equal(t, []byte{1, 2, 3}, snap.TurretStates[0])
}

func TestCaptureCargoAlwaysPresent(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	// railcart has no cargo support at all
	v := mustSpawn(t, w, world.CreateSpec{Definition: vehicleDef(t, cat, railcartGUID)})
	snap := eng.Capture(w, v)
	require.NotNil(t, snap.Cargo.Items)
	assert.Len(t, snap.Cargo.Items, 0)

	// hauler has cargo support but nothing loaded
	v2 := mustSpawn(t, w, world.CreateSpec{Definition: vehicleDef(t, cat, haulerGUID)})
	snap2 := eng.Capture(w, v2)
	require.NotNil(t, snap2.Cargo.Items)
	assert.Len(t, snap2.Cargo.Items, 0)
}

func TestCaptureCargoContent(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	v := mustSpawn(t, w, world.CreateSpec{Definition: vehicleDef(t, cat, haulerGUID)})
	hold, ok := v.Cargo()
	require.True(t, ok)
	require.NoError(t, hold.Insert(world.CargoStack{X: 0, Y: 0, DefinitionID: 301, Amount: 2, Quality: 5, State: []byte{0xF1}}))
	require.NoError(t, hold.Insert(world.CargoStack{X: 2, Y: 1, Rotation: 1, DefinitionID: 302, Amount: 1}))

	snap := eng.Capture(w, v)
	require.Len(t, snap.Cargo.Items, 2)

	assert.Equal(t, uint8(0), snap.Cargo.Items[0].X)
	assert.Equal(t, uint16(301), snap.Cargo.Items[0].Item.DefinitionID)
	assert.Equal(t, uint8(2), snap.Cargo.Items[0].Item.Amount)
	assert.Equal(t, uint8(5), snap.Cargo.Items[0].Item.Quality)
	assert.Equal(t, []byte{0xF1}, snap.Cargo.Items[0].Item.State)

	assert.Equal(t, uint8(2), snap.Cargo.Items[1].X)
	assert.Equal(t, uint8(1), snap.Cargo.Items[1].Y)
	assert.Equal(t, uint8(1), snap.Cargo.Items[1].Rotation)
	assert.Equal(t, uint16(302), snap.Cargo.Items[1].Item.DefinitionID)
}

func TestCaptureChildren(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	v := mustSpawn(t, w, world.CreateSpec{
		Definition: vehicleDef(t, cat, haulerGUID),
		Position:   core.Position3D{X: 10, Y: 20},
	})

	_, err := w.PlaceBarricade(world.BarricadeSpec{
		Definition:    barricadeDef(t, cat, sandbagGUID),
		Anchor:        v.Frame(),
		Offset:        core.Position3D{X: 1},
		Integrity:     150,
		State:         []byte{0x5A},
		OwnerIdentity: 42,
	})
	require.NoError(t, err)

	_, err = w.PlaceStructure(world.StructureSpec{
		Definition: structureDef(t, cat, towerGUID),
		Anchor:     v.Frame(),
		Offset:     core.Position3D{Y: 2},
		Integrity:  300,
	})
	require.NoError(t, err)

	snap := eng.Capture(w, v)

	require.Len(t, snap.Barricades, 1)
	assert.Equal(t, uint16(7), snap.Barricades[0].DefinitionID)
	assert.Equal(t, sandbagGUID, snap.Barricades[0].DefinitionGUID)
	assert.Equal(t, uint64(42), snap.Barricades[0].OwnerIdentity)
	assert.Equal(t, uint16(150), snap.Barricades[0].Integrity)
	assert.Equal(t, []byte{0x5A}, snap.Barricades[0].State)
	assert.Equal(t, core.Position3D{X: 1}, snap.Barricades[0].Offset)

	require.Len(t, snap.Structures, 1)
	assert.Equal(t, uint16(8), snap.Structures[0].DefinitionID)
	assert.Equal(t, core.Position3D{Y: 2}, snap.Structures[0].Offset)
}

func TestCaptureSkipsDestroyedChildren(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	v := mustSpawn(t, w, world.CreateSpec{Definition: vehicleDef(t, cat, haulerGUID)})

	b, err := w.PlaceBarricade(world.BarricadeSpec{
		Definition: barricadeDef(t, cat, sandbagGUID),
		Anchor:     v.Frame(),
	})
	require.NoError(t, err)
	b.(*memworld.Barricade).Destroy()

	snap := eng.Capture(w, v)
	assert.Len(t, snap.Barricades, 0)
}

func TestCaptureNoRegionMeansNoChildren(t *testing.T) {
	cat := newTestCatalog()
	eng := newTestEngine(cat)
	w := memworld.New()

	v := mustSpawn(t, w, world.CreateSpec{Definition: vehicleDef(t, cat, haulerGUID)})

	snap := eng.Capture(w, v)
	require.NotNil(t, snap.Barricades)
	require.NotNil(t, snap.Structures)
	assert.Len(t, snap.Barricades, 0)
	assert.Len(t, snap.Structures, 0)
}
