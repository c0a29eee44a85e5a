package worker

import (
	"fmt"
	"sync"
	"time"

	"github.com/motorpool/extension/v2/internal/cache"
	"github.com/motorpool/extension/v2/internal/catalog"
	"github.com/motorpool/extension/v2/internal/logging"
	"github.com/motorpool/extension/v2/internal/parser"
	"github.com/motorpool/extension/v2/internal/session"
	"github.com/motorpool/extension/v2/internal/snapshot"
	"github.com/motorpool/extension/v2/internal/storage"
	"github.com/motorpool/extension/v2/internal/world"
)

// ErrUnknownInstance is returned when a save references an instance id the
// live world cannot find.
var ErrUnknownInstance = fmt.Errorf("instance not found in world")

// ErrWorldUnavailable is returned when a vault command arrives before the
// host handed the live world over.
var ErrWorldUnavailable = fmt.Errorf("live world not available")

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Catalog        *catalog.Registry
	Engine         *snapshot.Engine
	InstanceCache  *cache.InstanceCache
	LogManager     *logging.SlogManager
	ParserService  *parser.Service
	SessionContext *session.Context
	Captures       *cache.SafeCounter
	Restores       *cache.SafeCounter

	// DefaultLabel names saves that arrive unlabeled and resolve no catalog
	// definition.
	DefaultLabel string
}

// Manager wires the command handlers to the engine and the vault backend
type Manager struct {
	deps    Dependencies
	backend storage.Backend

	mu    sync.RWMutex
	world world.World
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

// SetWorld hands the manager the live world. The host bridge calls this on
// the world-owning thread before any vault command is dispatched; the demo
// generator swaps in a memworld the same way.
func (m *Manager) SetWorld(w world.World) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.world = w
}

func (m *Manager) getWorld() (world.World, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.world == nil {
		return nil, ErrWorldUnavailable
	}
	return m.world, nil
}

// DBWriteDurationProvider is an optional interface that backends can implement
// to expose their last DB write duration for monitoring.
type DBWriteDurationProvider interface {
	GetLastDBWriteDuration() time.Duration
}

// GetLastDBWriteDuration returns the duration of the last DB write cycle.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	if p, ok := m.backend.(DBWriteDurationProvider); ok {
		return p.GetLastDBWriteDuration()
	}
	return 0
}
