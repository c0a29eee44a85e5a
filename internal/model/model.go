package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&KeeperInfo{},
	&World{},
	&Session{},
	&VaultEntry{},
	&VaultBarricade{},
	&VaultStructure{},
	&CaptureEvent{},
	&RestoreEvent{},
	&KeeperPerformance{},
}

var DatabaseModelsSQLite = []interface{}{
	&KeeperInfo{},
	&World{},
	&Session{},
	&VaultEntry{},
	&VaultBarricade{},
	&VaultStructure{},
	&CaptureEvent{},
	&RestoreEvent{},
	&KeeperPerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// KeeperInfo contains group information about the instance
type KeeperInfo struct {
	gorm.Model
	GroupName        string `json:"groupName" gorm:"size:127"` // primary key
	GroupDescription string `json:"groupDescription" gorm:"size:255"`
	GroupWebsite     string `json:"groupURL" gorm:"size:255"`
	GroupLogo        string `json:"groupLogoURL" gorm:"size:255"`
}

func (*KeeperInfo) TableName() string {
	return "keeper_infos"
}

// KeeperPerformance is the model for extension performance metrics
type KeeperPerformance struct {
	Time                time.Time    `json:"time" gorm:"type:timestamptz;index:idx_time"`
	SessionID           uint         `json:"sessionId" gorm:"index:idx_keeperperformance_session_id"`
	Session             Session      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	QueueLengths        QueueLengths `json:"queueLengths" gorm:"embedded;embeddedPrefix:queue_"`
	CaptureCount        uint         `json:"captureCount"`
	RestoreCount        uint         `json:"restoreCount"`
	LastWriteDurationMs float32      `json:"lastWriteDurationMs"`
}

func (*KeeperPerformance) TableName() string {
	return "keeper_performances"
}

// QueueLengths is the model for the pending write queue lengths. Vault entry
// rows are written synchronously and never queue, so only the audit queues
// appear here.
type QueueLengths struct {
	CaptureEvents uint16 `json:"captureEvents"`
	RestoreEvents uint16 `json:"restoreEvents"`
	Performances  uint16 `json:"performances"`
}

////////////////////////
// VAULT MODELS
////////////////////////

// World is the main model for a world
type World struct {
	gorm.Model
	DisplayName string    `json:"displayName" gorm:"size:127"`
	WorldName   string    `json:"worldName" gorm:"size:127"`
	WorldSize   float32   `json:"worldSize"`
	Latitude    float32   `json:"latitude" gorm:"-"`
	Longitude   float32   `json:"longitude" gorm:"-"`
	Location    Point     `json:"location"`
	Sessions    []Session
}

func (*World) TableName() string {
	return "worlds"
}

func (w *World) GetOrInsert(db *gorm.DB) (
	created bool,
	err error,
) {
	var existingWorld World
	err = db.Where("world_name = ?", w.WorldName).First(&existingWorld).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// insert
			err = db.Create(w).Error
			return true, err
		}
		return false, err
	}
	// overwrite with db record if found
	*w = existingWorld
	return false, nil
}

// Session is the main model for one server run the vault records against
type Session struct {
	gorm.Model
	ServerName       string    `json:"serverName" gorm:"size:200"`
	ServerProfile    string    `json:"serverProfile" gorm:"size:200"`
	StartTime        time.Time `json:"startTime" gorm:"type:timestamptz;index:idx_session_start"`
	WorldID          uint
	World            World  `gorm:"foreignkey:WorldID"`
	AddonVersion     string `json:"addonVersion" gorm:"size:64;default:1.0.0"`
	ExtensionVersion string `json:"extensionVersion" gorm:"size:64;default:1.0.0"`
	ExtensionBuild   string `json:"extensionBuild" gorm:"size:64;default:1.0.0"`
	Tag              string `json:"tag" gorm:"size:127"`

	VaultEntries  []VaultEntry
	CaptureEvents []CaptureEvent
	RestoreEvents []RestoreEvent
}

func (*Session) TableName() string {
	return "sessions"
}

// VaultEntry is one stored composite snapshot. The row ID is the entry id
// handed back to the host on save and presented on restore. Deleting an
// entry soft-deletes the row so audit events keep a valid reference.
//
// Command: :VAULT:SAVE:
// Args: [instanceId, actorId, position, label, replacesEntry]
type VaultEntry struct {
	gorm.Model
	SessionID uint    `json:"sessionId" gorm:"index:idx_vaultentry_session_id"`
	Session   Session `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`

	DefinitionID   uint16 `json:"definitionId"`                                              // Legacy numeric catalog id (fallback key)
	DefinitionGUID string `json:"definitionGuid" gorm:"size:36;index:idx_vaultentry_guid"`   // Authoritative catalog key
	InstanceID     uint32 `json:"instanceId"`                                                // Live instance the snapshot was captured from
	Label          string `json:"label" gorm:"size:127"`                                     // Player-facing garage label
	OwnerIdentity  uint64 `json:"ownerIdentity" gorm:"index:idx_vaultentry_owner_identity"`  // Access identity; zero means unowned
	GroupIdentity  uint64 `json:"groupIdentity"`

	SkinVariant     uint16  `json:"skinVariant"`
	MythicVariant   uint16  `json:"mythicVariant"`
	PlacementOffset float32 `json:"placementOffset"` // Rail position for rail-bound composites
	Integrity       uint16  `json:"integrity"`
	FuelLevel       uint16  `json:"fuelLevel"`
	AuxiliaryCharge uint16  `json:"auxiliaryCharge"`

	Position     Point   `json:"position"`     // Capture position, web mercator
	ElevationASL float32 `json:"elevationASL"` // Altitude ASL, duplicated for flat queries
	Yaw          float32 `json:"yaw"`
	Pitch        float32 `json:"pitch"`
	Roll         float32 `json:"roll"`

	Paint        datatypes.JSON `json:"paint" gorm:"type:jsonb;default:'[0,0,0,0]'"` // RGBA wire form; [0,0,0,0] means no override
	TireLiveness datatypes.JSON `json:"tireLiveness" gorm:"type:jsonb;default:'[]'"` // One alive flag per tire slot, slot order
	TurretStates datatypes.JSON `json:"turretStates" gorm:"type:jsonb;default:'[]'"` // One opaque blob per mount, index-aligned
	Cargo        datatypes.JSON `json:"cargo" gorm:"type:jsonb;default:'{}'"`        // Embedded inventory, insertion order

	Barricades []VaultBarricade `json:"barricades" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Structures []VaultStructure `json:"structures" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*VaultEntry) TableName() string {
	return "vault_entries"
}

// VaultBarricade is one barricade mounted on a stored composite's frame.
// Offsets are relative to the parent frame, not world coordinates.
type VaultBarricade struct {
	ID           uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	VaultEntryID uint       `json:"vaultEntryId" gorm:"index:idx_vaultbarricade_entry_id"`
	VaultEntry   VaultEntry `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:VaultEntryID;"`

	DefinitionID   uint16  `json:"definitionId"`
	DefinitionGUID string  `json:"definitionGuid" gorm:"size:36"`
	OwnerIdentity  uint64  `json:"ownerIdentity"`
	GroupIdentity  uint64  `json:"groupIdentity"`
	Integrity      uint16  `json:"integrity"`
	State          []byte  `json:"state"` // Opaque environment-owned payload
	OffsetX        float64 `json:"offsetX"`
	OffsetY        float64 `json:"offsetY"`
	OffsetZ        float64 `json:"offsetZ"`
	Yaw            float32 `json:"yaw"`
	Pitch          float32 `json:"pitch"`
	Roll           float32 `json:"roll"`
}

func (*VaultBarricade) TableName() string {
	return "vault_barricades"
}

// VaultStructure is one structure mounted on a stored composite's frame.
type VaultStructure struct {
	ID           uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	VaultEntryID uint       `json:"vaultEntryId" gorm:"index:idx_vaultstructure_entry_id"`
	VaultEntry   VaultEntry `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:VaultEntryID;"`

	DefinitionID   uint16  `json:"definitionId"`
	DefinitionGUID string  `json:"definitionGuid" gorm:"size:36"`
	OwnerIdentity  uint64  `json:"ownerIdentity"`
	GroupIdentity  uint64  `json:"groupIdentity"`
	Integrity      uint16  `json:"integrity"`
	OffsetX        float64 `json:"offsetX"`
	OffsetY        float64 `json:"offsetY"`
	OffsetZ        float64 `json:"offsetZ"`
	Yaw            float32 `json:"yaw"`
	Pitch          float32 `json:"pitch"`
	Roll           float32 `json:"roll"`
}

func (*VaultStructure) TableName() string {
	return "vault_structures"
}

////////////////////////
// AUDIT MODELS
////////////////////////

// CaptureEvent is the audit record of one vault save
//
// Command: :VAULT:SAVE:
type CaptureEvent struct {
	ID           uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time         time.Time `json:"time" gorm:"type:timestamptz;"`
	SessionID    uint      `json:"sessionId" gorm:"index:idx_captureevent_session_id"`
	Session      Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	VaultEntryID uint      `json:"vaultEntryId" gorm:"index:idx_captureevent_entry_id"` // Entry produced by the save

	InstanceID    uint32 `json:"instanceId"`    // Live instance that was captured
	ActorIdentity uint64 `json:"actorIdentity"` // Identity that requested the save

	Position     Point   `json:"position"`
	ElevationASL float32 `json:"elevationASL"`
}

func (*CaptureEvent) TableName() string {
	return "capture_events"
}

// RestoreEvent is the audit record of one vault restore
//
// Command: :VAULT:RESTORE:
type RestoreEvent struct {
	ID           uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time         time.Time `json:"time" gorm:"type:timestamptz;"`
	SessionID    uint      `json:"sessionId" gorm:"index:idx_restoreevent_session_id"`
	Session      Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	VaultEntryID uint      `json:"vaultEntryId" gorm:"index:idx_restoreevent_entry_id"` // Entry that was restored

	NewInstanceID uint32 `json:"newInstanceId"` // Fresh instance created by the restore
	ActorIdentity uint64 `json:"actorIdentity"` // Identity that requested the restore
	Rebound       bool   `json:"rebound"`       // Whether ownership was rebound to the claimant

	Position     Point   `json:"position"`
	ElevationASL float32 `json:"elevationASL"`
}

func (*RestoreEvent) TableName() string {
	return "restore_events"
}
