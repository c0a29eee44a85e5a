// Package gormstorage implements the storage.Backend interface on any GORM
// database handle. The postgres and sqlite backends wrap it and contribute
// connection setup and schema migration; this package owns the write queues,
// the background writer, and the synchronous vault operations.
package gormstorage

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/motorpool/extension/v2/internal/cache"
	"github.com/motorpool/extension/v2/internal/logging"
	"github.com/motorpool/extension/v2/internal/model"
	"github.com/motorpool/extension/v2/internal/model/convert"
	"github.com/motorpool/extension/v2/internal/queue"
	"github.com/motorpool/extension/v2/internal/session"
	"github.com/motorpool/extension/v2/internal/storage"
	"github.com/motorpool/extension/v2/pkg/core"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB             *gorm.DB
	InstanceCache  *cache.InstanceCache
	LogManager     *logging.SlogManager
	SessionContext *session.Context

	// Gates consulted by the background writer. Wrappers supply these; nil
	// means the gate is derived from the DB handle alone.
	IsDatabaseValid func() bool
	ShouldSaveLocal func() bool
	DBInsertsPaused func() bool
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	CaptureEvents *queue.Queue[model.CaptureEvent]
	RestoreEvents *queue.Queue[model.RestoreEvent]
	Performances  *queue.Queue[model.KeeperPerformance]
}

func newQueues() *queues {
	return &queues{
		CaptureEvents: queue.New[model.CaptureEvent](),
		RestoreEvents: queue.New[model.RestoreEvent](),
		Performances:  queue.New[model.KeeperPerformance](),
	}
}

// Backend implements storage.Backend on a GORM handle. Vault entry writes are
// synchronous so the caller gets the entry ID back; audit rows ride internal
// queues drained by a background writer.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Uint64
	stopChan  chan struct{}

	lastDBWriteDuration time.Duration
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{
		deps: deps,
	}
}

// Init creates internal queues and starts the DB writer goroutine. A nil DB
// leaves the backend in queue-only mode; the writer idles until the database
// gate reports valid.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})
	b.startDBWriters()
	return nil
}

// Close stops the DB writer goroutine and drains whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
	}
	if b.dbValid() && !b.insertsPaused() {
		b.writeAll()
	}
	return nil
}

// StartSession performs world get-or-insert and session create in the DB,
// then publishes the identified session to the shared session context.
func (b *Backend) StartSession(coreSession *core.Session, coreWorld *core.World) error {
	if b.deps.DB == nil {
		return nil
	}

	gormWorld := convert.CoreToWorld(*coreWorld)
	if _, err := gormWorld.GetOrInsert(b.deps.DB); err != nil {
		return fmt.Errorf("failed to get or insert world: %w", err)
	}

	gormSession := convert.CoreToSession(*coreSession)
	gormSession.WorldID = gormWorld.ID
	if err := b.deps.DB.Create(&gormSession).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}

	// Assign DB-generated IDs back to core types
	coreSession.ID = gormSession.ID
	coreSession.WorldID = gormWorld.ID
	coreWorld.ID = gormWorld.ID

	// Store session ID for the DB writer goroutine
	b.sessionID.Store(uint64(gormSession.ID))

	if b.deps.SessionContext != nil {
		b.deps.SessionContext.SetSession(coreSession, coreWorld)
	}

	return nil
}

// SetSessionID sets the current session ID for the DB writer (used by CLI tools).
func (b *Backend) SetSessionID(id uint) {
	b.sessionID.Store(uint64(id))
}

// EndSession is a no-op. The queues keep draining until Close; session
// lifecycle is owned by the command layer.
func (b *Backend) EndSession() error {
	return nil
}

// SaveSnapshot writes the entry row synchronously and returns its ID. When
// meta.ReplacesEntry names an existing entry the row is updated in place and
// its child rows are rebuilt; a replace against a missing or deleted entry
// fails with ErrEntryNotFound rather than duplicating the vehicle.
func (b *Backend) SaveSnapshot(snap *core.CompositeSnapshot, meta *core.VaultMeta) (uint, error) {
	if meta.SessionID == 0 {
		meta.SessionID = uint(b.sessionID.Load())
	}

	entry := convert.CoreToVaultEntry(*snap, *meta)
	if b.deps.DB == nil {
		return 0, nil
	}

	tx := b.deps.DB.Begin()
	if entry.ID != 0 {
		var existing model.VaultEntry
		if err := tx.Select("id").First(&existing, entry.ID).Error; err != nil {
			tx.Rollback()
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, fmt.Errorf("replacing entry %d: %w", entry.ID, storage.ErrEntryNotFound)
			}
			return 0, fmt.Errorf("replacing entry %d: %w", entry.ID, err)
		}
		if err := tx.Where("vault_entry_id = ?", entry.ID).Delete(&model.VaultBarricade{}).Error; err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("clearing barricades of entry %d: %w", entry.ID, err)
		}
		if err := tx.Where("vault_entry_id = ?", entry.ID).Delete(&model.VaultStructure{}).Error; err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("clearing structures of entry %d: %w", entry.ID, err)
		}
		if err := tx.Save(&entry).Error; err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("updating entry %d: %w", entry.ID, err)
		}
	} else {
		if err := tx.Create(&entry).Error; err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("inserting vault entry: %w", err)
		}
	}
	if err := tx.Commit().Error; err != nil {
		return 0, fmt.Errorf("committing vault entry: %w", err)
	}

	return entry.ID, nil
}

// LoadSnapshot reads one entry with its children. Child rows come back in
// insertion order, which is the region order the capture wrote them in.
func (b *Backend) LoadSnapshot(entryID uint) (*core.CompositeSnapshot, error) {
	if b.deps.DB == nil {
		return nil, fmt.Errorf("loading entry %d: %w", entryID, storage.ErrEntryNotFound)
	}

	byID := func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }

	var entry model.VaultEntry
	err := b.deps.DB.Preload("Barricades", byID).Preload("Structures", byID).First(&entry, entryID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("loading entry %d: %w", entryID, storage.ErrEntryNotFound)
		}
		return nil, fmt.Errorf("loading entry %d: %w", entryID, err)
	}

	snap, err := convert.VaultEntryToCore(entry)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListEntries returns the listing view of stored entries, oldest first.
// owner zero lists everything.
func (b *Backend) ListEntries(owner uint64) ([]core.VaultEntry, error) {
	if b.deps.DB == nil {
		return []core.VaultEntry{}, nil
	}

	q := b.deps.DB.Model(&model.VaultEntry{}).Order("id")
	if owner != 0 {
		q = q.Where("owner_identity = ?", owner)
	}

	var rows []model.VaultEntry
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing vault entries: %w", err)
	}

	listings := make([]core.VaultEntry, 0, len(rows))
	for _, row := range rows {
		listings = append(listings, convert.VaultEntryToListing(row))
	}
	return listings, nil
}

// DeleteEntry soft-deletes the entry row. Audit events keep their entry
// reference; loads and listings stop seeing it.
func (b *Backend) DeleteEntry(entryID uint) error {
	if b.deps.DB == nil {
		return fmt.Errorf("deleting entry %d: %w", entryID, storage.ErrEntryNotFound)
	}

	res := b.deps.DB.Delete(&model.VaultEntry{}, entryID)
	if res.Error != nil {
		return fmt.Errorf("deleting entry %d: %w", entryID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("deleting entry %d: %w", entryID, storage.ErrEntryNotFound)
	}
	return nil
}

// RecordCaptureEvent converts and queues a capture audit row.
func (b *Backend) RecordCaptureEvent(e *core.CaptureEvent) error {
	gormObj := convert.CoreToCaptureEvent(*e)
	b.queues.CaptureEvents.Push(gormObj)
	return nil
}

// RecordRestoreEvent converts and queues a restore audit row.
func (b *Backend) RecordRestoreEvent(e *core.RestoreEvent) error {
	gormObj := convert.CoreToRestoreEvent(*e)
	b.queues.RestoreEvents.Push(gormObj)
	return nil
}

// RecordPerformance queues a performance row annotated with the live queue
// lengths. Skipped in local-save mode so dump files stay lean.
func (b *Backend) RecordPerformance(p *core.PerformanceSample) error {
	if b.savingLocal() {
		return nil
	}

	row := model.KeeperPerformance{
		Time:         p.Time,
		SessionID:    p.SessionID,
		CaptureCount: p.CaptureCount,
		RestoreCount: p.RestoreCount,
		QueueLengths: model.QueueLengths{
			CaptureEvents: uint16(b.queues.CaptureEvents.Len()),
			RestoreEvents: uint16(b.queues.RestoreEvents.Len()),
			Performances:  uint16(b.queues.Performances.Len()),
		},
		LastWriteDurationMs: float32(b.lastDBWriteDuration.Milliseconds()),
	}
	b.queues.Performances.Push(row)
	return nil
}

// GetProvenance reports whether a live instance is already backed by a vault
// entry. The worker populates the cache on save and restore.
func (b *Backend) GetProvenance(instanceID uint32) (cache.Provenance, bool) {
	return b.deps.InstanceCache.Get(instanceID)
}

// GetLastDBWriteDuration returns the duration of the last DB write cycle.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return b.lastDBWriteDuration
}

func (b *Backend) dbValid() bool {
	if b.deps.DB == nil {
		return false
	}
	if b.deps.IsDatabaseValid != nil {
		return b.deps.IsDatabaseValid()
	}
	return true
}

func (b *Backend) insertsPaused() bool {
	return b.deps.DBInsertsPaused != nil && b.deps.DBInsertsPaused()
}

func (b *Backend) savingLocal() bool {
	return b.deps.ShouldSaveLocal != nil && b.deps.ShouldSaveLocal()
}

// writeQueue writes all items from a queue to the database in a transaction.
// Failed batches go back to the front of the queue so retry order holds.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log func(string, string, string), prepare func([]T), onSuccess func([]T)) {
	if q.Empty() {
		return
	}

	tx := db.Begin()
	items := q.GetAndEmpty()
	if prepare != nil {
		prepare(items)
	}
	if err := tx.Create(&items).Error; err != nil {
		log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
		tx.Rollback()
		q.PushFront(items...)
		return
	}

	tx.Commit()
	if onSuccess != nil {
		onSuccess(items)
	}
}

// writeAll drains every queue into the database, stamping rows with the
// current session.
func (b *Backend) writeAll() {
	log := b.deps.LogManager.WriteLog
	sessionID := uint(b.sessionID.Load())

	stampCaptureEvents := func(items []model.CaptureEvent) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	}
	stampRestoreEvents := func(items []model.RestoreEvent) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	}
	stampPerformances := func(items []model.KeeperPerformance) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	}

	writeStart := time.Now()
	writeQueue(b.deps.DB, b.queues.CaptureEvents, "capture events", log, stampCaptureEvents, nil)
	writeQueue(b.deps.DB, b.queues.RestoreEvents, "restore events", log, stampRestoreEvents, nil)
	writeQueue(b.deps.DB, b.queues.Performances, "performances", log, stampPerformances, nil)
	b.lastDBWriteDuration = time.Since(writeStart)
}

// startDBWriters starts the background goroutine that periodically drains
// queues into the DB.
func (b *Backend) startDBWriters() {
	go func() {
		for {
			select {
			case <-b.stopChan:
				return
			default:
			}

			if !b.dbValid() || b.insertsPaused() {
				time.Sleep(1 * time.Second)
				continue
			}

			b.writeAll()

			time.Sleep(2 * time.Second)
		}
	}()
}
