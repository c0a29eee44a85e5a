package cache

import (
	"sync"
	"time"
)

// Provenance links a live instance back to the vault entry it was
// restored from.
type Provenance struct {
	EntryID    uint
	RestoredAt time.Time
}

// InstanceCache tracks which live instances were spawned from the vault to
// avoid subsequent db reads. A save against a tracked instance updates its
// originating entry in place instead of duplicating it.
// Latency in these calls is critical to quickly process incoming commands.
type InstanceCache struct {
	m         sync.Mutex
	Instances map[uint32]Provenance
}

func NewInstanceCache() *InstanceCache {
	return &InstanceCache{
		m:         sync.Mutex{},
		Instances: make(map[uint32]Provenance),
	}
}

func (c *InstanceCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.Instances = make(map[uint32]Provenance)
}

func (c *InstanceCache) Get(instanceID uint32) (Provenance, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	if p, ok := c.Instances[instanceID]; ok {
		return p, true
	}
	return Provenance{}, false
}

func (c *InstanceCache) Add(instanceID uint32, entryID uint) {
	c.m.Lock()
	defer c.m.Unlock()
	c.Instances[instanceID] = Provenance{
		EntryID:    entryID,
		RestoredAt: time.Now(),
	}
}

// Remove drops an instance, typically after the live object was destroyed
// or its entry deleted.
func (c *InstanceCache) Remove(instanceID uint32) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.Instances, instanceID)
}

// RemoveEntry drops every instance whose provenance points at the given
// vault entry. Used when an entry is deleted so later saves of those
// instances create fresh entries instead of updating a dead one.
func (c *InstanceCache) RemoveEntry(entryID uint) {
	c.m.Lock()
	defer c.m.Unlock()
	for id, p := range c.Instances {
		if p.EntryID == entryID {
			delete(c.Instances, id)
		}
	}
}

func (c *InstanceCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.Instances)
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
