// internal/storage/storage.go
package storage

import (
	"errors"

	"github.com/motorpool/extension/v2/pkg/core"
)

// ErrEntryNotFound is returned when an entry ID does not resolve to a stored
// snapshot. Deleted entries count as not found.
var ErrEntryNotFound = errors.New("vault entry not found")

// ErrVaultReadUnsupported is returned by backends that only stream writes and
// cannot serve snapshots back.
var ErrVaultReadUnsupported = errors.New("vault reads not supported by this backend")

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(session *core.Session, world *core.World) error
	EndSession() error

	// Vault operations. SaveSnapshot assigns the entry ID before returning;
	// only the audit trail may be written in batches behind it.
	SaveSnapshot(snap *core.CompositeSnapshot, meta *core.VaultMeta) (uint, error)
	LoadSnapshot(entryID uint) (*core.CompositeSnapshot, error)
	ListEntries(owner uint64) ([]core.VaultEntry, error)
	DeleteEntry(entryID uint) error

	// Audit recording
	RecordCaptureEvent(e *core.CaptureEvent) error
	RecordRestoreEvent(e *core.RestoreEvent) error
	RecordPerformance(p *core.PerformanceSample) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the motorpool web frontend.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}
