// Package snapshot implements the composite capture and restore engine:
// walking a live vehicle into an immutable CompositeSnapshot, and rebuilding
// a live vehicle graph from one.
//
// Both operations are synchronous and must run on the context that owns world
// mutation. The engine holds no locks and never suspends; callers elsewhere
// marshal onto the world thread and await completion.
package snapshot

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/motorpool/extension/v2/pkg/core"
)

// ErrDefinitionNotFound is returned when neither the GUID nor the numeric id
// of a snapshot resolves against the catalog. Fatal for that restore call.
var ErrDefinitionNotFound = errors.New("definition not found in catalog")

// Catalog is the read-only asset-resolution service the engine queries.
// GUID is the authoritative key; the numeric id is a legacy fallback.
type Catalog interface {
	ResolveVehicle(guid uuid.UUID, fallbackID uint16) (*core.VehicleDefinition, bool)
	ResolveBarricade(guid uuid.UUID, fallbackID uint16) (*core.BarricadeDefinition, bool)
	ResolveStructure(guid uuid.UUID, fallbackID uint16) (*core.StructureDefinition, bool)
	ResolveItem(id uint16) (*core.ItemDefinition, bool)

	// DefaultStateFor returns a fresh serialized default state for an item,
	// used when a stored turret blob cannot be trusted.
	DefaultStateFor(item *core.ItemDefinition) []byte
}

// RestoreOptions adjusts how a snapshot is brought back into the world.
type RestoreOptions struct {
	// Claimant, when set, replaces the snapshot's owner and group identities
	// on the restored vehicle (a player claiming a stored composite). The
	// snapshot itself is never modified.
	Claimant *core.Identity

	// RebindChildOwnership transfers each restored child's ownership to the
	// restored vehicle's owner and group.
	RebindChildOwnership bool
}

// Engine captures and restores composite vehicles against an injected
// catalog. Safe to share: it carries no per-call state.
type Engine struct {
	catalog Catalog
	logger  *slog.Logger
}

// NewEngine creates an engine over the given catalog.
func NewEngine(catalog Catalog, logger *slog.Logger) *Engine {
	return &Engine{
		catalog: catalog,
		logger:  logger,
	}
}

// cloneBlob copies an opaque state blob so snapshots and live objects never
// share backing memory.
func cloneBlob(b []byte) []byte {
	if len(b) == 0 {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
