package worker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/motorpool/extension/v2/internal/dispatcher"
	"github.com/motorpool/extension/v2/internal/snapshot"
	"github.com/motorpool/extension/v2/pkg/core"
)

// RegisterHandlers registers all command handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Catalog pushes - buffered; the host streams the full definition set
	// during init, before the vault opens for commands
	d.Register(":CATALOG:VEHICLE:", m.handleVehicleDefinition, dispatcher.Buffered(1000), dispatcher.Logged())
	d.Register(":CATALOG:BARRICADE:", m.handleBarricadeDefinition, dispatcher.Buffered(1000), dispatcher.Logged())
	d.Register(":CATALOG:STRUCTURE:", m.handleStructureDefinition, dispatcher.Buffered(1000), dispatcher.Logged())
	d.Register(":CATALOG:ITEM:", m.handleItemDefinition, dispatcher.Buffered(1000), dispatcher.Logged())

	// Vault commands - sync. They mutate the live world and return ids the
	// host relays to the player, so they never go through a buffer.
	d.Register(":VAULT:SAVE:", m.handleVaultSave, dispatcher.Logged())
	d.Register(":VAULT:RESTORE:", m.handleVaultRestore, dispatcher.Logged())
	d.Register(":VAULT:LIST:", m.handleVaultList, dispatcher.Logged())
	d.Register(":VAULT:DELETE:", m.handleVaultDelete, dispatcher.Logged())
}

func (m *Manager) handleVehicleDefinition(e dispatcher.Event) (any, error) {
	def, err := m.deps.ParserService.ParseVehicleDefinition(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to register vehicle definition: %w", err)
	}
	m.deps.Catalog.RegisterVehicle(def)
	return nil, nil
}

func (m *Manager) handleBarricadeDefinition(e dispatcher.Event) (any, error) {
	def, err := m.deps.ParserService.ParseBarricadeDefinition(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to register barricade definition: %w", err)
	}
	m.deps.Catalog.RegisterBarricade(def)
	return nil, nil
}

func (m *Manager) handleStructureDefinition(e dispatcher.Event) (any, error) {
	def, err := m.deps.ParserService.ParseStructureDefinition(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to register structure definition: %w", err)
	}
	m.deps.Catalog.RegisterStructure(def)
	return nil, nil
}

func (m *Manager) handleItemDefinition(e dispatcher.Event) (any, error) {
	def, err := m.deps.ParserService.ParseItemDefinition(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to register item definition: %w", err)
	}
	m.deps.Catalog.RegisterItem(def)
	return nil, nil
}

// handleVaultSave captures a live vehicle into the vault and returns the
// assigned entry id. The live vehicle is untouched.
func (m *Manager) handleVaultSave(e dispatcher.Event) (any, error) {
	req, err := m.deps.ParserService.ParseSaveRequest(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse save request: %w", err)
	}

	w, err := m.getWorld()
	if err != nil {
		return nil, err
	}

	v, ok := w.VehicleByInstance(req.InstanceID)
	if !ok {
		return nil, fmt.Errorf("saving instance %d: %w", req.InstanceID, ErrUnknownInstance)
	}

	snap := m.deps.Engine.Capture(w, v)

	meta := core.VaultMeta{
		Label:         req.Label,
		ReplacesEntry: req.ReplacesEntry,
		SavedAt:       time.Now(),
	}
	if meta.Label == "" {
		meta.Label = m.defaultLabel(snap)
	}
	// A vehicle the vault itself spawned re-saves into its originating entry
	if meta.ReplacesEntry == 0 {
		if p, ok := m.deps.InstanceCache.Get(req.InstanceID); ok {
			meta.ReplacesEntry = p.EntryID
		}
	}

	entryID, err := m.backend.SaveSnapshot(&snap, &meta)
	if err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	m.deps.InstanceCache.Add(req.InstanceID, entryID)
	m.deps.Captures.Inc()

	evt := core.CaptureEvent{
		SessionID:     m.deps.SessionContext.GetSession().ID,
		EntryID:       entryID,
		InstanceID:    req.InstanceID,
		ActorIdentity: req.ActorIdentity,
		Time:          time.Now(),
		Position:      req.Position,
	}
	if err := m.backend.RecordCaptureEvent(&evt); err != nil {
		m.deps.LogManager.Logger().Warn("Failed to record capture event",
			"entryID", entryID, "error", err)
	}

	return entryID, nil
}

// defaultLabel names an unlabeled save after its catalog definition.
func (m *Manager) defaultLabel(snap core.CompositeSnapshot) string {
	if def, ok := m.deps.Catalog.ResolveVehicle(snap.DefinitionGUID, snap.DefinitionID); ok {
		return def.Name
	}
	if m.deps.DefaultLabel != "" {
		return m.deps.DefaultLabel
	}
	return fmt.Sprintf("vehicle %d", snap.DefinitionID)
}

// handleVaultRestore spawns a stored snapshot back into the live world and
// returns the new instance id.
func (m *Manager) handleVaultRestore(e dispatcher.Event) (any, error) {
	req, err := m.deps.ParserService.ParseRestoreRequest(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse restore request: %w", err)
	}

	w, err := m.getWorld()
	if err != nil {
		return nil, err
	}

	snap, err := m.backend.LoadSnapshot(req.EntryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entry %d: %w", req.EntryID, err)
	}

	// The host may override the stored position, restoring at a garage pad
	// rather than where the vehicle was captured
	target := *snap
	if req.Position != (core.Position3D{}) {
		target.Position = req.Position
	}

	v, err := m.deps.Engine.Restore(w, target, snapshot.RestoreOptions{
		Claimant:             req.Claimant,
		RebindChildOwnership: req.Rebind,
	})
	if err != nil {
		// Destroy a partially configured vehicle instead of leaking it into
		// the registry; the entry stays in the vault for a clean retry.
		if v != nil {
			v.Destroy()
		}
		return nil, fmt.Errorf("failed to restore entry %d: %w", req.EntryID, err)
	}

	m.deps.InstanceCache.Add(v.InstanceID(), req.EntryID)
	m.deps.Restores.Inc()

	evt := core.RestoreEvent{
		SessionID:     m.deps.SessionContext.GetSession().ID,
		EntryID:       req.EntryID,
		NewInstanceID: v.InstanceID(),
		ActorIdentity: req.ActorIdentity,
		Rebound:       req.Rebind,
		Time:          time.Now(),
		Position:      target.Position,
	}
	if err := m.backend.RecordRestoreEvent(&evt); err != nil {
		m.deps.LogManager.Logger().Warn("Failed to record restore event",
			"entryID", req.EntryID, "error", err)
	}

	return v.InstanceID(), nil
}

// handleVaultList returns the matching vault listings as a JSON string for
// the host to relay.
func (m *Manager) handleVaultList(e dispatcher.Event) (any, error) {
	req, err := m.deps.ParserService.ParseListRequest(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse list request: %w", err)
	}

	entries, err := m.backend.ListEntries(req.OwnerIdentity)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	out, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entries: %w", err)
	}
	return string(out), nil
}

func (m *Manager) handleVaultDelete(e dispatcher.Event) (any, error) {
	req, err := m.deps.ParserService.ParseDeleteRequest(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse delete request: %w", err)
	}

	if err := m.backend.DeleteEntry(req.EntryID); err != nil {
		return nil, fmt.Errorf("failed to delete entry %d: %w", req.EntryID, err)
	}

	// Later saves of instances spawned from this entry must create fresh
	// entries, not update a dead one
	m.deps.InstanceCache.RemoveEntry(req.EntryID)

	return nil, nil
}
