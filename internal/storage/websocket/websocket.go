package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/motorpool/extension/v2/internal/storage"
	"github.com/motorpool/extension/v2/pkg/core"
	"github.com/motorpool/extension/v2/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams vault activity over WebSocket to the motorpool web server.
// It is write-only: the remote vault mirrors every save, but snapshots cannot
// be read back over the stream. It implements storage.Backend but not
// storage.Uploadable.
type Backend struct {
	conn        *connection
	cfg         Config
	nextEntryID atomic.Uint64
}

// New creates a new WebSocket storage backend.
func New(cfg Config) *Backend {
	return &Backend{
		conn: newConnection(slog.Default()),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// sendEnvelopeAndWait marshals the payload and waits for a server ack.
func (b *Backend) sendEnvelopeAndWait(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(data, msgType, ackTimeout)
}

// StartSession sends session and world data and waits for server ack.
func (b *Backend) StartSession(session *core.Session, world *core.World) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{Session: session, World: world})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

// EndSession sends end_session and waits for server ack.
func (b *Backend) EndSession() error {
	err := b.sendEnvelopeAndWait(streaming.TypeEndSession, nil)

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = nil
	b.conn.mu.Unlock()
	b.nextEntryID.Store(0)

	return err
}

// SaveSnapshot assigns an entry ID locally and streams the full snapshot so
// the remote vault needs no read-back round trip. A save that replaces an
// existing entry keeps that entry's ID.
func (b *Backend) SaveSnapshot(snap *core.CompositeSnapshot, meta *core.VaultMeta) (uint, error) {
	var id uint
	if meta.ReplacesEntry != 0 {
		id = meta.ReplacesEntry
	} else {
		id = uint(b.nextEntryID.Add(1))
	}

	payload := streaming.VaultSavePayload{
		EntryID:  id,
		Meta:     *meta,
		Snapshot: *snap,
	}
	return id, b.sendEnvelope(streaming.TypeVaultSave, payload)
}

// LoadSnapshot is unsupported; the stream is one-way.
func (b *Backend) LoadSnapshot(entryID uint) (*core.CompositeSnapshot, error) {
	return nil, storage.ErrVaultReadUnsupported
}

// ListEntries is unsupported; the stream is one-way.
func (b *Backend) ListEntries(owner uint64) ([]core.VaultEntry, error) {
	return nil, storage.ErrVaultReadUnsupported
}

// DeleteEntry streams the deletion to the remote vault.
func (b *Backend) DeleteEntry(entryID uint) error {
	return b.sendEnvelope(streaming.TypeVaultDelete, streaming.VaultDeletePayload{EntryID: entryID})
}

func (b *Backend) RecordCaptureEvent(e *core.CaptureEvent) error {
	return b.sendEnvelope(streaming.TypeCaptureEvent, e)
}

func (b *Backend) RecordRestoreEvent(e *core.RestoreEvent) error {
	return b.sendEnvelope(streaming.TypeRestoreEvent, e)
}

func (b *Backend) RecordPerformance(p *core.PerformanceSample) error {
	return b.sendEnvelope(streaming.TypePerformance, p)
}
