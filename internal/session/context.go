package session

import (
	"sync"

	"github.com/motorpool/extension/v2/pkg/core"
)

// Context holds the current session and world state
type Context struct {
	mu      sync.RWMutex
	Session *core.Session
	World   *core.World
}

// NewContext creates a new Context with default values
func NewContext() *Context {
	return &Context{
		Session: &core.Session{ServerName: "No session started"},
		World:   &core.World{WorldName: "No world loaded"},
	}
}

// GetSession returns the current session
func (sc *Context) GetSession() *core.Session {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.Session
}

// GetWorld returns the current world
func (sc *Context) GetWorld() *core.World {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.World
}

// SetSession sets the current session and world
func (sc *Context) SetSession(session *core.Session, world *core.World) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.Session = session
	sc.World = world
}

// Active reports whether a started session is loaded. A session is started
// once the backend assigned it an id.
func (sc *Context) Active() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.Session != nil && sc.Session.ID != 0
}
