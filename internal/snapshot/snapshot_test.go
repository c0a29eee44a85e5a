package snapshot

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/motorpool/extension/v2/internal/catalog"
	"github.com/motorpool/extension/v2/internal/world"
	"github.com/motorpool/extension/v2/internal/world/memworld"
	"github.com/motorpool/extension/v2/pkg/core"
)

// the engine resolves through the real registry in these tests
var _ Catalog = (*catalog.Registry)(nil)

var (
	haulerGUID   = uuid.MustParse("c0a8e1d2-0001-4a00-9000-000000000001")
	heavyGUID    = uuid.MustParse("c0a8e1d2-0002-4a00-9000-000000000002")
	railcartGUID = uuid.MustParse("c0a8e1d2-0003-4a00-9000-000000000003")
	sandbagGUID  = uuid.MustParse("c0a8e1d2-0007-4a00-9000-000000000007")
	towerGUID    = uuid.MustParse("c0a8e1d2-0008-4a00-9000-000000000008")
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestCatalog builds the fixture catalog:
//   - hauler: 4 tires, mounts [autocannon, mortar], 4x3 cargo
//   - heavy: 6 tires, mounts [autocannon, mortar, flamethrower], 1x1 cargo
//   - railcart: rail-bound, no tires, no mounts, no cargo
func newTestCatalog() *catalog.Registry {
	r := catalog.NewRegistry()
	r.RegisterVehicle(core.VehicleDefinition{
		ID: 1, GUID: haulerGUID, Name: "hauler", TireSlots: 4,
		TurretMounts: []core.TurretMount{{ItemID: 301}, {ItemID: 302}},
		MaxIntegrity: 1000, MaxFuel: 500, MaxAuxCharge: 100,
		CargoWidth: 4, CargoHeight: 3,
	})
	r.RegisterVehicle(core.VehicleDefinition{
		ID: 2, GUID: heavyGUID, Name: "heavy", TireSlots: 6,
		TurretMounts: []core.TurretMount{{ItemID: 301}, {ItemID: 302}, {ItemID: 303}},
		MaxIntegrity: 2000, MaxFuel: 800, MaxAuxCharge: 200,
		CargoWidth: 1, CargoHeight: 1,
	})
	r.RegisterVehicle(core.VehicleDefinition{
		ID: 3, GUID: railcartGUID, Name: "railcart",
		MaxIntegrity: 500, MaxFuel: 100, RailBound: true,
	})
	r.RegisterBarricade(core.BarricadeDefinition{ID: 7, GUID: sandbagGUID, Name: "sandbags", MaxIntegrity: 200})
	r.RegisterStructure(core.StructureDefinition{ID: 8, GUID: towerGUID, Name: "watchtower", MaxIntegrity: 400})
	r.RegisterItem(core.ItemDefinition{ID: 301, Name: "autocannon", DefaultState: []byte{0xAA}})
	r.RegisterItem(core.ItemDefinition{ID: 302, Name: "mortar", DefaultState: []byte{0xBB}})
	r.RegisterItem(core.ItemDefinition{ID: 303, Name: "flamethrower", DefaultState: []byte{0xCC}})
	return r
}

func newTestEngine(cat *catalog.Registry) *Engine {
	return NewEngine(cat, testLogger())
}

func vehicleDef(t *testing.T, cat *catalog.Registry, guid uuid.UUID) *core.VehicleDefinition {
	t.Helper()
	def, ok := cat.ResolveVehicle(guid, 0)
	require.True(t, ok)
	return def
}

func barricadeDef(t *testing.T, cat *catalog.Registry, guid uuid.UUID) *core.BarricadeDefinition {
	t.Helper()
	def, ok := cat.ResolveBarricade(guid, 0)
	require.True(t, ok)
	return def
}

func structureDef(t *testing.T, cat *catalog.Registry, guid uuid.UUID) *core.StructureDefinition {
	t.Helper()
	def, ok := cat.ResolveStructure(guid, 0)
	require.True(t, ok)
	return def
}

func mustSpawn(t *testing.T, w *memworld.World, spec world.CreateSpec) *memworld.Vehicle {
	t.Helper()
	v, err := w.CreateVehicle(spec)
	require.NoError(t, err)
	return v.(*memworld.Vehicle)
}
