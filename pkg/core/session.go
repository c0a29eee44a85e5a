// pkg/core/session.go
package core

import "time"

// World represents a map/terrain the server runs
type World struct {
	ID          uint    `json:"id"`
	WorldName   string  `json:"worldName"`
	DisplayName string  `json:"displayName"`
	WorldSize   float32 `json:"worldSize"`
	Latitude    float32 `json:"latitude"`
	Longitude   float32 `json:"longitude"`
}

// Session represents one server run the vault records against
type Session struct {
	ID               uint      `json:"id"`
	ServerName       string    `json:"serverName"`
	ServerProfile    string    `json:"serverProfile"`
	StartTime        time.Time `json:"startTime"`
	WorldID          uint      `json:"worldId"`
	AddonVersion     string    `json:"addonVersion"`
	ExtensionVersion string    `json:"extensionVersion"`
	ExtensionBuild   string    `json:"extensionBuild"`
	Tag              string    `json:"tag"`
}

// VaultEntry is the listing view of one stored snapshot.
type VaultEntry struct {
	ID            uint      `json:"id"`
	SessionID     uint      `json:"sessionId"`
	OwnerIdentity uint64    `json:"ownerIdentity"`
	GroupIdentity uint64    `json:"groupIdentity"`
	DefinitionID  uint16    `json:"definitionId"`
	Label         string    `json:"label"`
	SavedAt       time.Time `json:"savedAt"`
}

// VaultMeta carries save-time metadata alongside a snapshot.
// ReplacesEntry, when non-zero, updates that entry in place instead of
// creating a new one (re-saving a vault-spawned vehicle).
type VaultMeta struct {
	Label         string    `json:"label"`
	SessionID     uint      `json:"sessionId"`
	ReplacesEntry uint      `json:"replacesEntry"`
	SavedAt       time.Time `json:"savedAt"`
}

// CaptureEvent is the audit record of one vault save.
type CaptureEvent struct {
	ID            uint       `json:"id"`
	SessionID     uint       `json:"sessionId"`
	EntryID       uint       `json:"entryId"`
	InstanceID    uint32     `json:"instanceId"`
	ActorIdentity uint64     `json:"actorIdentity"`
	Time          time.Time  `json:"time"`
	Position      Position3D `json:"position"`
}

// RestoreEvent is the audit record of one vault restore.
type RestoreEvent struct {
	ID            uint       `json:"id"`
	SessionID     uint       `json:"sessionId"`
	EntryID       uint       `json:"entryId"`
	NewInstanceID uint32     `json:"newInstanceId"`
	ActorIdentity uint64     `json:"actorIdentity"`
	Rebound       bool       `json:"rebound"`
	Time          time.Time  `json:"time"`
	Position      Position3D `json:"position"`
}

// PerformanceSample is a periodic health reading from the monitor.
type PerformanceSample struct {
	Time            time.Time `json:"time"`
	SessionID       uint      `json:"sessionId"`
	CaptureCount    uint      `json:"captureCount"`
	RestoreCount    uint      `json:"restoreCount"`
	PendingWrites   uint      `json:"pendingWrites"`
	LastWriteMillis float32   `json:"lastWriteMillis"`
}

// UploadMetadata describes an exported garage manifest for the web frontend.
type UploadMetadata struct {
	ServerName string    `json:"serverName"`
	WorldName  string    `json:"worldName"`
	Tag        string    `json:"tag"`
	SavedAt    time.Time `json:"savedAt"`
	EntryCount int       `json:"entryCount"`
}
