package streaming

import (
	"encoding/json"

	"github.com/motorpool/extension/v2/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeVaultSave    = "vault_save"
	TypeVaultDelete  = "vault_delete"
	TypeCaptureEvent = "capture_event"
	TypeRestoreEvent = "restore_event"
	TypePerformance  = "performance"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload carries session and world data.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
	World   *core.World   `json:"world"`
}

// VaultSavePayload carries one saved entry with its full snapshot so the
// remote vault can mirror the garage without a read-back round trip.
type VaultSavePayload struct {
	EntryID  uint                   `json:"entryId"`
	Meta     core.VaultMeta         `json:"meta"`
	Snapshot core.CompositeSnapshot `json:"snapshot"`
}

// VaultDeletePayload identifies an entry removed from the vault.
type VaultDeletePayload struct {
	EntryID uint `json:"entryId"`
}
