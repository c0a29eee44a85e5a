package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/motorpool/extension/v2/pkg/core"
)

// File is the on-disk catalog document layout. Item default states are
// base64 in the JSON per encoding/json byte-slice rules.
type File struct {
	Vehicles   []core.VehicleDefinition   `json:"vehicles"`
	Barricades []core.BarricadeDefinition `json:"barricades"`
	Structures []core.StructureDefinition `json:"structures"`
	Items      []core.ItemDefinition      `json:"items"`
}

// LoadFile merges a JSON definitions document into the registry and reports
// how many definitions it carried. Existing entries with the same keys are
// replaced; nothing is dropped.
func (r *Registry) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("error reading definitions file: %w", err)
	}

	var doc File
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("error unmarshalling definitions file: %w", err)
	}

	for _, d := range doc.Vehicles {
		r.RegisterVehicle(d)
	}
	for _, d := range doc.Barricades {
		r.RegisterBarricade(d)
	}
	for _, d := range doc.Structures {
		r.RegisterStructure(d)
	}
	for _, d := range doc.Items {
		r.RegisterItem(d)
	}

	return len(doc.Vehicles) + len(doc.Barricades) + len(doc.Structures) + len(doc.Items), nil
}
