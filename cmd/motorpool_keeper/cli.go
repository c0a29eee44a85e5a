package main

import (
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/motorpool/extension/v2/internal/config"
	"github.com/motorpool/extension/v2/internal/database"
	"github.com/motorpool/extension/v2/internal/dispatcher"
	"github.com/motorpool/extension/v2/internal/geo"
	"github.com/motorpool/extension/v2/internal/model"
	"github.com/motorpool/extension/v2/internal/monitor"
	"github.com/motorpool/extension/v2/internal/world"
	"github.com/motorpool/extension/v2/internal/world/memworld"
	"github.com/motorpool/extension/v2/pkg/core"
	"github.com/motorpool/extension/v2/pkg/hostbridge"
)

// dispatchDemoEvent dispatches an event through the dispatcher the same way
// a host call would arrive.
func dispatchDemoEvent(command string, args []string) (any, error) {
	if eventDispatcher == nil {
		return nil, fmt.Errorf("dispatcher not ready")
	}
	return eventDispatcher.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: time.Now(),
	})
}

// populateDemoData drives the full capture/restore pipeline against an
// in-memory world: catalog pushes, a session, saves, a claimed restore, a
// re-save into the originating entry, a delete, and the session flush.
func populateDemoData() {
	if workerManager == nil {
		Logger.Error("Demo requires storage to be initialized first")
		return
	}

	// live world the demo vehicles inhabit
	w := memworld.New()
	hostbridge.SetWorld(w)

	var (
		tireItemGUID   = uuid.New()
		turretItemGUID = uuid.New()
		crateItemGUID  = uuid.New()
		truckGUID      = uuid.New()
		buggyGUID      = uuid.New()
		loaderGUID     = uuid.New()
		wallGUID       = uuid.New()
		sandbagGUID    = uuid.New()
		camoNetGUID    = uuid.New()
		rackGUID       = uuid.New()
	)

	turretDefault := base64.StdEncoding.EncodeToString([]byte(`{"ammo":150,"attachments":[]}`))

	// push the definition set the way the host does during init
	demoDefinitions := []struct {
		command string
		args    []string
	}{
		{":CATALOG:ITEM:", []string{"10", tireItemGUID.String(), "Offroad Tire", ""}},
		{":CATALOG:ITEM:", []string{"11", turretItemGUID.String(), "Mounted MG", turretDefault}},
		{":CATALOG:ITEM:", []string{"12", crateItemGUID.String(), "Supply Crate", ""}},
		{":CATALOG:VEHICLE:", []string{"1", truckGUID.String(), "Bandit Truck", "4", "[11]", "5000", "1200", "500", "false", "6", "4"}},
		{":CATALOG:VEHICLE:", []string{"2", buggyGUID.String(), "Scout Buggy", "4", "[]", "3200", "800", "0", "false", "4", "3"}},
		{":CATALOG:VEHICLE:", []string{"3", loaderGUID.String(), "Rail Loader", "0", "[]", "9000", "2400", "1000", "true", "8", "6"}},
		{":CATALOG:BARRICADE:", []string{"20", wallGUID.String(), "Metal Wall", "2000"}},
		{":CATALOG:BARRICADE:", []string{"21", sandbagGUID.String(), "Sandbag Line", "900"}},
		{":CATALOG:STRUCTURE:", []string{"30", camoNetGUID.String(), "Camo Net", "600"}},
		{":CATALOG:STRUCTURE:", []string{"31", rackGUID.String(), "Storage Rack", "1400"}},
	}
	for _, def := range demoDefinitions {
		if _, err := dispatchDemoEvent(def.command, def.args); err != nil {
			Logger.Error("Failed to push demo definition", "command", def.command, "error", err)
			return
		}
	}

	// catalog pushes ride a buffer; wait for the worker to drain them
	deadline := time.Now().Add(5 * time.Second)
	for {
		vehicles, barricades, structures, items := Catalog.Counts()
		if vehicles >= 3 && barricades >= 2 && structures >= 2 && items >= 3 {
			break
		}
		if time.Now().After(deadline) {
			Logger.Error("Demo catalog never filled",
				"vehicles", vehicles, "barricades", barricades,
				"structures", structures, "items", items)
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	worldJSON := `{"worldName":"demo_flats","displayName":"Demo Flats","worldSize":8192,"latitude":43.7,"longitude":-116.1}`
	sessionJSON := fmt.Sprintf(`{"serverName":"Motorpool Demo Server","serverProfile":"demo","tag":"demo","extensionBuild":%q}`, BuildDate)
	if _, err := dispatchDemoEvent(":SESSION:START:", []string{worldJSON, sessionJSON}); err != nil {
		Logger.Error("Failed to start demo session", "error", err)
		return
	}

	vehicleGUIDs := []uuid.UUID{truckGUID, buggyGUID, loaderGUID}
	entryIDs := []uint{}
	entryOwners := []uint64{}

	// The list/restore walkthrough below needs at least one saved entry.
	numVehicles := config.GetDemoConfig().Vehicles
	if numVehicles < 1 {
		numVehicles = 1
	}
	for i := 0; i < numVehicles; i++ {
		def, ok := Catalog.ResolveVehicle(vehicleGUIDs[i%len(vehicleGUIDs)], 0)
		if !ok {
			Logger.Error("Demo vehicle definition missing from catalog")
			return
		}

		owner := uint64(76561198000000000 + i)
		pos := core.Position3D{
			X: 4250 + rand.Float64()*400,
			Y: 7800 + rand.Float64()*400,
			Z: 12 + rand.Float64()*3,
		}

		spec := world.CreateSpec{
			Definition:      def,
			Position:        pos,
			Rotation:        core.Rotation{Yaw: float32(rand.Intn(360))},
			SkinVariant:     uint16(rand.Intn(4)),
			Integrity:       uint16(int(def.MaxIntegrity) - rand.Intn(int(def.MaxIntegrity)/2)),
			FuelLevel:       uint16(rand.Intn(int(def.MaxFuel) + 1)),
			AuxiliaryCharge: def.MaxAuxCharge,
			OwnerIdentity:   owner,
			GroupIdentity:   9000,
			Locked:          i%2 == 0,
		}
		if i == 0 {
			spec.Paint = core.NewPaintColor(180, 40, 40, 255)
		}

		v, err := w.CreateVehicle(spec)
		if err != nil {
			Logger.Error("Failed to create demo vehicle", "error", err)
			return
		}

		// rough some of them up so snapshots carry damage state
		if def.TireSlots > 0 && i%2 == 1 {
			v.SetTireAlive(rand.Intn(def.TireSlots), false)
			v.NotifyTiresChanged()
		}
		if v.TurretCount() > 0 {
			v.SetTurretState(0, []byte(`{"ammo":97,"attachments":["optic"]}`))
		}
		if hold, ok := v.Cargo(); ok {
			hold.Insert(world.CargoStack{X: 0, Y: 0, DefinitionID: 12, Amount: 1, Quality: 3, State: []byte(`{"wetness":0}`)})
			hold.Insert(world.CargoStack{X: 2, Y: 0, DefinitionID: 12, Amount: 1, Quality: 2})
		}

		// ring some frames with mounted barricades and a camo net
		if i%3 == 0 {
			if wallDef, ok := Catalog.ResolveBarricade(wallGUID, 0); ok {
				w.PlaceBarricade(world.BarricadeSpec{
					Definition:    wallDef,
					Anchor:        v.Frame(),
					Offset:        core.Position3D{X: 1.5, Z: 0.2},
					Rotation:      core.Rotation{Yaw: 90},
					Integrity:     wallDef.MaxIntegrity,
					State:         []byte(`{"painted":true}`),
					OwnerIdentity: owner,
					GroupIdentity: 9000,
				})
			}
			if netDef, ok := Catalog.ResolveStructure(camoNetGUID, 0); ok {
				w.PlaceStructure(world.StructureSpec{
					Definition:    netDef,
					Anchor:        v.Frame(),
					Offset:        core.Position3D{Y: 2.0, Z: 1.1},
					Integrity:     netDef.MaxIntegrity,
					OwnerIdentity: owner,
					GroupIdentity: 9000,
				})
			}
		}

		// capture through the host command path
		result, err := dispatchDemoEvent(":VAULT:SAVE:", []string{
			fmt.Sprintf("%d", v.InstanceID()),
			fmt.Sprintf("%d", owner),
			fmt.Sprintf("[%.2f,%.2f,%.2f]", pos.X, pos.Y, pos.Z),
			fmt.Sprintf("Demo %s %d", def.Name, i+1),
			"0",
		})
		if err != nil {
			Logger.Error("Demo save failed", "instance", v.InstanceID(), "error", err)
			return
		}
		entryID, ok := result.(uint)
		if !ok {
			Logger.Error("Unexpected save result", "result", result)
			return
		}
		entryIDs = append(entryIDs, entryID)
		entryOwners = append(entryOwners, owner)
		Logger.Info("Saved demo vehicle", "instance", v.InstanceID(), "entryId", entryID)
	}

	// list the first owner's garage
	listing, err := dispatchDemoEvent(":VAULT:LIST:", []string{fmt.Sprintf("%d", entryOwners[0])})
	if err != nil {
		Logger.Error("Demo listing failed", "error", err)
		return
	}
	fmt.Println("Garage listing:", listing)

	// restore one entry with a claimant and rebound children
	claimant := uint64(76561198000009999)
	result, err := dispatchDemoEvent(":VAULT:RESTORE:", []string{
		fmt.Sprintf("%d", entryIDs[0]),
		fmt.Sprintf("%d", claimant),
		"9001",
		"true",
		"[4600.00,8100.00,12.00]",
	})
	if err != nil {
		Logger.Error("Demo restore failed", "error", err)
		return
	}
	restoredInstance, ok := result.(uint32)
	if !ok {
		Logger.Error("Unexpected restore result", "result", result)
		return
	}
	Logger.Info("Restored demo vehicle", "entryId", entryIDs[0], "newInstance", restoredInstance)

	// a vault-spawned vehicle re-saves into its originating entry
	if _, err := dispatchDemoEvent(":VAULT:SAVE:", []string{
		fmt.Sprintf("%d", restoredInstance),
		fmt.Sprintf("%d", claimant),
		"[4600.00,8100.00,12.00]",
		"",
		"0",
	}); err != nil {
		Logger.Error("Demo re-save failed", "error", err)
		return
	}

	// drop the last entry
	if _, err := dispatchDemoEvent(":VAULT:DELETE:", []string{
		fmt.Sprintf("%d", entryIDs[len(entryIDs)-1]),
		fmt.Sprintf("%d", entryOwners[len(entryOwners)-1]),
	}); err != nil {
		Logger.Error("Demo delete failed", "error", err)
		return
	}

	// a host-pushed metric rides the same dispatcher
	dispatchDemoEvent(":METRIC:", []string{
		"server_performance", "server_fps",
		"tag::server::demo",
		"field::float::fps::47.5",
		"field::int::players::12",
	})

	if out, err := dispatchDemoEvent(":STATUS:", nil); err == nil {
		if lines, ok := out.([]string); ok {
			for _, line := range lines {
				fmt.Println(line)
			}
		}
	}

	// flush the session; the memory backend writes its garage manifest here
	if _, err := dispatchDemoEvent(":SESSION:END:", nil); err != nil {
		Logger.Error("Demo session end failed", "error", err)
	}
}

// setupDatabase connects, migrates the schema, and configures TimescaleDB
// hypertables for the audit tables when the extension is installed.
func setupDatabase() error {
	dbManager := database.NewManager(newComponentLogger("database"))
	dbManager.SqliteFilePath = SqliteDBFilePath

	if err := dbManager.Connect(); err != nil {
		return err
	}
	if err := dbManager.Setup(); err != nil {
		return err
	}

	if dbManager.DB.Dialector.Name() == "postgres" {
		var hasTimescale bool
		dbManager.DB.Raw(`SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'timescaledb')`).Scan(&hasTimescale)
		if hasTimescale {
			mon := monitor.NewService(monitor.Dependencies{
				DB:         dbManager.DB,
				LogManager: SlogManager,
			})
			if err := mon.ValidateHypertables(map[string][]string{
				"capture_events":      {"session_id"},
				"restore_events":      {"session_id"},
				"keeper_performances": {"session_id"},
			}); err != nil {
				return err
			}
		} else {
			Logger.Info("TimescaleDB not installed, skipping hypertable setup")
		}
	}

	return nil
}

// exportGarageManifests writes a gzipped JSON manifest per vault entry in the
// format the web frontend imports.
func exportGarageManifests(entryIDs []string) error {
	fmt.Println("Exporting garage manifests for entry IDs: ", entryIDs)

	dbManager := database.NewManager(newComponentLogger("database"))
	if err := dbManager.Connect(); err != nil {
		return err
	}

	for _, entryID := range entryIDs {
		idInt, err := strconv.Atoi(entryID)
		if err != nil {
			return err
		}

		txStart := time.Now()
		var entry model.VaultEntry
		err = dbManager.DB.Preload("Barricades").Preload("Structures").
			Where("id = ?", idInt).First(&entry).Error
		if err != nil {
			return fmt.Errorf("error getting vault entry %d: %w", idInt, err)
		}

		var sess model.Session
		err = dbManager.DB.Model(&model.Session{}).Where("id = ?", entry.SessionID).First(&sess).Error
		if err != nil {
			return fmt.Errorf("error getting session: %w", err)
		}

		var worldRow model.World
		err = dbManager.DB.Model(&model.World{}).Where("id = ?", sess.WorldID).First(&worldRow).Error
		if err != nil {
			return fmt.Errorf("error getting world: %w", err)
		}

		manifest := make(map[string]any)
		manifest["entryId"] = entry.ID
		manifest["label"] = entry.Label
		manifest["definitionId"] = entry.DefinitionID
		manifest["definitionGuid"] = entry.DefinitionGUID
		manifest["ownerIdentity"] = entry.OwnerIdentity
		manifest["groupIdentity"] = entry.GroupIdentity
		manifest["serverName"] = sess.ServerName
		manifest["worldName"] = worldRow.WorldName
		manifest["tag"] = sess.Tag
		manifest["savedAt"] = entry.UpdatedAt

		manifest["skinVariant"] = entry.SkinVariant
		manifest["mythicVariant"] = entry.MythicVariant
		manifest["placementOffset"] = entry.PlacementOffset
		manifest["integrity"] = entry.Integrity
		manifest["fuelLevel"] = entry.FuelLevel
		manifest["auxiliaryCharge"] = entry.AuxiliaryCharge
		manifest["paint"] = entry.Paint
		manifest["tireLiveness"] = entry.TireLiveness
		manifest["turretStates"] = entry.TurretStates
		manifest["cargo"] = entry.Cargo

		if coords, ok := entry.Position.Coordinates(); ok {
			manifest["position"] = []float64{coords.X, coords.Y}
			longitude, latitude := geo.Coords4326From3857(coords.X, coords.Y)
			manifest["longitude"] = longitude
			manifest["latitude"] = latitude
		}
		manifest["elevationASL"] = entry.ElevationASL
		manifest["yaw"] = entry.Yaw

		barricades := []map[string]any{}
		for _, b := range entry.Barricades {
			barricades = append(barricades, map[string]any{
				"definitionId":   b.DefinitionID,
				"definitionGuid": b.DefinitionGUID,
				"integrity":      b.Integrity,
				"offset":         []float64{b.OffsetX, b.OffsetY, b.OffsetZ},
				"yaw":            b.Yaw,
			})
		}
		manifest["barricades"] = barricades

		structures := []map[string]any{}
		for _, s := range entry.Structures {
			structures = append(structures, map[string]any{
				"definitionId":   s.DefinitionID,
				"definitionGuid": s.DefinitionGUID,
				"integrity":      s.Integrity,
				"offset":         []float64{s.OffsetX, s.OffsetY, s.OffsetZ},
				"yaw":            s.Yaw,
			})
		}
		manifest["structures"] = structures

		fmt.Println("Got entry data in ", time.Since(txStart))

		manifestJSON, err := json.Marshal(manifest)
		if err != nil {
			return fmt.Errorf("error marshalling entry data: %w", err)
		}

		fileName := fmt.Sprintf("garage_%s_%d_%s.json.gz", sess.ServerName, entry.ID, entry.UpdatedAt.Format("20060102_150405"))
		fileName = strings.ReplaceAll(fileName, " ", "_")
		fileName = strings.ReplaceAll(fileName, ":", "_")
		f, err := os.Create(fileName)
		if err != nil {
			return fmt.Errorf("error creating file: %w", err)
		}

		gzWriter := gzip.NewWriter(f)
		_, err = gzWriter.Write(manifestJSON)
		if err != nil {
			f.Close()
			return fmt.Errorf("error writing to gzip: %w", err)
		}
		if err = gzWriter.Close(); err != nil {
			f.Close()
			return fmt.Errorf("error closing gzip: %w", err)
		}
		if err = f.Close(); err != nil {
			return fmt.Errorf("error closing file: %w", err)
		}

		fmt.Println("Wrote garage manifest to ", fileName)
	}

	return nil
}

// pruneAuditRows deletes audit rows older than the retention period and
// purges soft-deleted vault entries, then vacuums to recover space. Vault
// entries still in the garage are never touched.
func pruneAuditRows(daysStr string) error {
	days, err := strconv.Atoi(daysStr)
	if err != nil {
		return fmt.Errorf("invalid retention days %q: %w", daysStr, err)
	}

	dbManager := database.NewManager(newComponentLogger("database"))
	if err := dbManager.Connect(); err != nil {
		return err
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	txStart := time.Now()

	res := dbManager.DB.Where("time < ?", cutoff).Delete(&model.CaptureEvent{})
	if res.Error != nil {
		return fmt.Errorf("error pruning capture events: %w", res.Error)
	}
	fmt.Println("Deleted ", res.RowsAffected, " capture events older than ", cutoff.Format("2006-01-02"))

	res = dbManager.DB.Where("time < ?", cutoff).Delete(&model.RestoreEvent{})
	if res.Error != nil {
		return fmt.Errorf("error pruning restore events: %w", res.Error)
	}
	fmt.Println("Deleted ", res.RowsAffected, " restore events older than ", cutoff.Format("2006-01-02"))

	res = dbManager.DB.Where("time < ?", cutoff).Delete(&model.KeeperPerformance{})
	if res.Error != nil {
		return fmt.Errorf("error pruning performance rows: %w", res.Error)
	}
	fmt.Println("Deleted ", res.RowsAffected, " performance rows older than ", cutoff.Format("2006-01-02"))

	// entries deleted from the garage keep their row for audit references;
	// past the retention window the row goes too
	res = dbManager.DB.Unscoped().
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Delete(&model.VaultEntry{})
	if res.Error != nil {
		return fmt.Errorf("error purging deleted vault entries: %w", res.Error)
	}
	fmt.Println("Purged ", res.RowsAffected, " deleted vault entries")

	fmt.Println("")
	fmt.Println("----------------------------------------")
	fmt.Println("")
	fmt.Println("Finished pruning, running VACUUM to recover space...")
	vacuumStart := time.Now()

	if dbManager.DB.Dialector.Name() == "postgres" {
		tables := []string{}
		err = dbManager.DB.Raw(
			`SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' AND table_type = 'BASE TABLE'`,
		).Scan(&tables).Error
		if err != nil {
			return fmt.Errorf("error getting tables to vacuum: %w", err)
		}
		for _, table := range tables {
			err = dbManager.DB.Exec(fmt.Sprintf("VACUUM (FULL) %s", table)).Error
			if err != nil {
				return fmt.Errorf("error running VACUUM on table %s: %w", table, err)
			}
		}
	} else {
		if err = dbManager.DB.Exec("VACUUM;").Error; err != nil {
			return fmt.Errorf("error running VACUUM: %w", err)
		}
	}

	fmt.Println("Finished VACUUM in ", time.Since(vacuumStart))
	fmt.Println("Pruned in ", time.Since(txStart))

	return nil
}

// inspectEntries prints vault entries with their mounted children and audit
// trail as indented JSON.
func inspectEntries(entryIDs []string) error {
	dbManager := database.NewManager(newComponentLogger("database"))
	if err := dbManager.Connect(); err != nil {
		return err
	}

	for _, entryID := range entryIDs {
		idInt, err := strconv.Atoi(entryID)
		if err != nil {
			return err
		}

		var entry model.VaultEntry
		err = dbManager.DB.Unscoped().Preload("Barricades").Preload("Structures").
			Where("id = ?", idInt).First(&entry).Error
		if err != nil {
			return fmt.Errorf("error getting vault entry %d: %w", idInt, err)
		}

		captures := []model.CaptureEvent{}
		err = dbManager.DB.Where("vault_entry_id = ?", idInt).Order("time ASC").Find(&captures).Error
		if err != nil {
			return fmt.Errorf("error getting capture events: %w", err)
		}

		restores := []model.RestoreEvent{}
		err = dbManager.DB.Where("vault_entry_id = ?", idInt).Order("time ASC").Find(&restores).Error
		if err != nil {
			return fmt.Errorf("error getting restore events: %w", err)
		}

		out := map[string]any{
			"entry":         entry,
			"captureEvents": captures,
			"restoreEvents": restores,
		}
		outJSON, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("error marshalling entry: %w", err)
		}
		fmt.Println(string(outJSON))
	}

	return nil
}
