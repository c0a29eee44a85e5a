// Package v1 contains the v1 garage manifest format for vault exports.
// This format is compatible with the motorpool-web frontend.
package v1

import "github.com/motorpool/extension/v2/pkg/core"

// Manifest is the root JSON structure for the v1 format
// Note: Restores uses capital R for compatibility with motorpool-web
type Manifest struct {
	AddonVersion     string  `json:"addonVersion"`
	ExtensionVersion string  `json:"extensionVersion"`
	ExtensionBuild   string  `json:"extensionBuild"`
	ServerName       string  `json:"serverName"`
	ServerProfile    string  `json:"serverProfile"`
	WorldName        string  `json:"worldName"`
	Tag              string  `json:"tag"`
	ExportedAt       string  `json:"exportedAt"`
	Entries          []Entry `json:"entries"`
	Captures         [][]any `json:"captures"`
	Restores         [][]any `json:"Restores"` // Capital R for motorpool-web compatibility
}

// Entry is one stored composite with its full snapshot payload. The frontend
// renders the garage list from the summary fields and only opens the snapshot
// for the detail view.
type Entry struct {
	ID             uint                   `json:"id"`
	SessionID      uint                   `json:"sessionId"`
	Label          string                 `json:"label"`
	OwnerIdentity  uint64                 `json:"ownerIdentity"`
	GroupIdentity  uint64                 `json:"groupIdentity"`
	DefinitionID   uint16                 `json:"definitionId"`
	DefinitionGUID string                 `json:"definitionGuid"`
	SavedAt        string                 `json:"savedAt"`
	Integrity      uint16                 `json:"integrity"`
	FuelLevel      uint16                 `json:"fuelLevel"`
	BarricadeCount int                    `json:"barricadeCount"`
	StructureCount int                    `json:"structureCount"`
	CargoItemCount int                    `json:"cargoItemCount"`
	Snapshot       core.CompositeSnapshot `json:"snapshot"`
}
