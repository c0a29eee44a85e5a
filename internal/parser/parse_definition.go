package parser

import (
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/motorpool/extension/v2/internal/util"
	"github.com/motorpool/extension/v2/pkg/core"
)

// ParseVehicleDefinition parses a catalog vehicle definition push.
// Wire layout: id, guid, name, tireSlots, turretMountItems, maxIntegrity,
// maxFuel, maxAuxCharge, railBound, cargoWidth, cargoHeight.
func (p *Service) ParseVehicleDefinition(data []string) (core.VehicleDefinition, error) {
	var def core.VehicleDefinition

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) < 11 {
		return def, fmt.Errorf("vehicle definition expects 11 args, got %d", len(data))
	}

	id, err := parseUintFromFloat(data[0])
	if err != nil {
		return def, fmt.Errorf("error converting definition id to uint: %w", err)
	}
	def.ID = uint16(id)

	guid, err := uuid.Parse(data[1])
	if err != nil {
		return def, fmt.Errorf("error converting definition guid: %w", err)
	}
	def.GUID = guid

	def.Name = data[2]

	tireSlots, err := parseUintFromFloat(data[3])
	if err != nil {
		return def, fmt.Errorf("error converting tireSlots to uint: %w", err)
	}
	def.TireSlots = int(tireSlots)

	// turret mounts arrive as an item id array, one entry per mount
	mountItems, err := util.ParseStringArray(data[4])
	if err != nil {
		return def, fmt.Errorf("error parsing turret mount items: %w", err)
	}
	for _, item := range mountItems {
		itemID, err := parseUintFromFloat(item)
		if err != nil {
			return def, fmt.Errorf("error converting turret mount item to uint: %w", err)
		}
		def.TurretMounts = append(def.TurretMounts, core.TurretMount{ItemID: uint16(itemID)})
	}

	maxIntegrity, err := parseUintFromFloat(data[5])
	if err != nil {
		return def, fmt.Errorf("error converting maxIntegrity to uint: %w", err)
	}
	def.MaxIntegrity = uint16(maxIntegrity)

	maxFuel, err := parseUintFromFloat(data[6])
	if err != nil {
		return def, fmt.Errorf("error converting maxFuel to uint: %w", err)
	}
	def.MaxFuel = uint16(maxFuel)

	maxAux, err := parseUintFromFloat(data[7])
	if err != nil {
		return def, fmt.Errorf("error converting maxAuxCharge to uint: %w", err)
	}
	def.MaxAuxCharge = uint16(maxAux)

	railBound, err := strconv.ParseBool(data[8])
	if err != nil {
		return def, fmt.Errorf("error converting railBound to bool: %w", err)
	}
	def.RailBound = railBound

	cargoWidth, err := parseUintFromFloat(data[9])
	if err != nil {
		return def, fmt.Errorf("error converting cargoWidth to uint: %w", err)
	}
	def.CargoWidth = uint8(cargoWidth)

	cargoHeight, err := parseUintFromFloat(data[10])
	if err != nil {
		return def, fmt.Errorf("error converting cargoHeight to uint: %w", err)
	}
	def.CargoHeight = uint8(cargoHeight)

	return def, nil
}

// ParseBarricadeDefinition parses a catalog barricade definition push.
func (p *Service) ParseBarricadeDefinition(data []string) (core.BarricadeDefinition, error) {
	var def core.BarricadeDefinition

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) < 4 {
		return def, fmt.Errorf("barricade definition expects 4 args, got %d", len(data))
	}

	id, err := parseUintFromFloat(data[0])
	if err != nil {
		return def, fmt.Errorf("error converting definition id to uint: %w", err)
	}
	def.ID = uint16(id)

	guid, err := uuid.Parse(data[1])
	if err != nil {
		return def, fmt.Errorf("error converting definition guid: %w", err)
	}
	def.GUID = guid

	def.Name = data[2]

	maxIntegrity, err := parseUintFromFloat(data[3])
	if err != nil {
		return def, fmt.Errorf("error converting maxIntegrity to uint: %w", err)
	}
	def.MaxIntegrity = uint16(maxIntegrity)

	return def, nil
}

// ParseStructureDefinition parses a catalog structure definition push.
func (p *Service) ParseStructureDefinition(data []string) (core.StructureDefinition, error) {
	var def core.StructureDefinition

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) < 4 {
		return def, fmt.Errorf("structure definition expects 4 args, got %d", len(data))
	}

	id, err := parseUintFromFloat(data[0])
	if err != nil {
		return def, fmt.Errorf("error converting definition id to uint: %w", err)
	}
	def.ID = uint16(id)

	guid, err := uuid.Parse(data[1])
	if err != nil {
		return def, fmt.Errorf("error converting definition guid: %w", err)
	}
	def.GUID = guid

	def.Name = data[2]

	maxIntegrity, err := parseUintFromFloat(data[3])
	if err != nil {
		return def, fmt.Errorf("error converting maxIntegrity to uint: %w", err)
	}
	def.MaxIntegrity = uint16(maxIntegrity)

	return def, nil
}

// ParseItemDefinition parses a catalog item definition push. The default
// state blob arrives base64 encoded; an empty string means no default.
func (p *Service) ParseItemDefinition(data []string) (core.ItemDefinition, error) {
	var def core.ItemDefinition

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) < 4 {
		return def, fmt.Errorf("item definition expects 4 args, got %d", len(data))
	}

	id, err := parseUintFromFloat(data[0])
	if err != nil {
		return def, fmt.Errorf("error converting definition id to uint: %w", err)
	}
	def.ID = uint16(id)

	guid, err := uuid.Parse(data[1])
	if err != nil {
		return def, fmt.Errorf("error converting definition guid: %w", err)
	}
	def.GUID = guid

	def.Name = data[2]

	if data[3] != "" {
		state, err := base64.StdEncoding.DecodeString(data[3])
		if err != nil {
			return def, fmt.Errorf("error decoding default state blob: %w", err)
		}
		def.DefaultState = state
	}

	return def, nil
}
