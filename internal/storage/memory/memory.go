// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/motorpool/extension/v2/internal/config"
	"github.com/motorpool/extension/v2/internal/storage"
	"github.com/motorpool/extension/v2/pkg/core"
)

// EntryRecord groups a vault entry listing with its snapshot payload
type EntryRecord struct {
	Entry    core.VaultEntry
	Snapshot core.CompositeSnapshot
}

// Backend stores vault data in memory and exports a garage manifest to JSON
// at session end. It is the zero-configuration fallback when no database or
// remote vault is reachable.
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session
	world   *core.World

	entries map[uint]*EntryRecord // keyed by entry ID

	captureEvents []core.CaptureEvent
	restoreEvents []core.RestoreEvent
	performances  []core.PerformanceSample

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:     cfg,
		entries: make(map[uint]*EntryRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording against a new session
func (b *Backend) StartSession(session *core.Session, world *core.World) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = session
	b.world = world

	// Reset all collections
	b.entries = make(map[uint]*EntryRecord)
	b.captureEvents = nil
	b.restoreEvents = nil
	b.performances = nil
	b.idCounter = 0
	b.lastExportPath = ""

	return nil
}

// EndSession finalizes the session and exports the garage manifest
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.exportJSON()
}

// SaveSnapshot stores a snapshot and returns its entry ID. A non-zero
// meta.ReplacesEntry updates that entry in place; replacing a missing entry
// fails with ErrEntryNotFound.
func (b *Backend) SaveSnapshot(snap *core.CompositeSnapshot, meta *core.VaultMeta) (uint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	savedAt := meta.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	sessionID := meta.SessionID
	if sessionID == 0 && b.session != nil {
		sessionID = b.session.ID
	}

	if meta.ReplacesEntry != 0 {
		record, ok := b.entries[meta.ReplacesEntry]
		if !ok {
			return 0, fmt.Errorf("replacing entry %d: %w", meta.ReplacesEntry, storage.ErrEntryNotFound)
		}
		record.Entry.SessionID = sessionID
		record.Entry.OwnerIdentity = snap.OwnerIdentity
		record.Entry.GroupIdentity = snap.GroupIdentity
		record.Entry.DefinitionID = snap.DefinitionID
		record.Entry.Label = meta.Label
		record.Entry.SavedAt = savedAt
		record.Snapshot = *snap
		return record.Entry.ID, nil
	}

	b.idCounter++
	id := b.idCounter
	b.entries[id] = &EntryRecord{
		Entry: core.VaultEntry{
			ID:            id,
			SessionID:     sessionID,
			OwnerIdentity: snap.OwnerIdentity,
			GroupIdentity: snap.GroupIdentity,
			DefinitionID:  snap.DefinitionID,
			Label:         meta.Label,
			SavedAt:       savedAt,
		},
		Snapshot: *snap,
	}
	return id, nil
}

// LoadSnapshot returns a copy of the stored snapshot. The entry stays in the
// vault; the same snapshot may be restored any number of times.
func (b *Backend) LoadSnapshot(entryID uint) (*core.CompositeSnapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	record, ok := b.entries[entryID]
	if !ok {
		return nil, fmt.Errorf("loading entry %d: %w", entryID, storage.ErrEntryNotFound)
	}
	snap := record.Snapshot
	return &snap, nil
}

// ListEntries returns listings sorted by entry ID. owner zero lists everything.
func (b *Backend) ListEntries(owner uint64) ([]core.VaultEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	listings := make([]core.VaultEntry, 0, len(b.entries))
	for _, record := range b.entries {
		if owner != 0 && record.Entry.OwnerIdentity != owner {
			continue
		}
		listings = append(listings, record.Entry)
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].ID < listings[j].ID })
	return listings, nil
}

// DeleteEntry removes an entry from the vault
func (b *Backend) DeleteEntry(entryID uint) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.entries[entryID]; !ok {
		return fmt.Errorf("deleting entry %d: %w", entryID, storage.ErrEntryNotFound)
	}
	delete(b.entries, entryID)
	return nil
}

// RecordCaptureEvent records a capture audit event
func (b *Backend) RecordCaptureEvent(e *core.CaptureEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.captureEvents = append(b.captureEvents, *e)
	return nil
}

// RecordRestoreEvent records a restore audit event
func (b *Backend) RecordRestoreEvent(e *core.RestoreEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.restoreEvents = append(b.restoreEvents, *e)
	return nil
}

// RecordPerformance records a performance sample
func (b *Backend) RecordPerformance(p *core.PerformanceSample) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.performances = append(b.performances, *p)
	return nil
}
