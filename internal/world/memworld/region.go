package memworld

import (
	"github.com/google/uuid"

	"github.com/motorpool/extension/v2/internal/world"
	"github.com/motorpool/extension/v2/pkg/core"
)

// Region holds the children mounted against one anchoring frame.
type Region struct {
	barricades []*Barricade
	structures []*Structure
}

// Barricades lists non-destroyed barricades in placement order.
func (r *Region) Barricades() []world.Barricade {
	out := make([]world.Barricade, 0, len(r.barricades))
	for _, b := range r.barricades {
		if b.destroyed {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Structures lists non-destroyed structures in placement order.
func (r *Region) Structures() []world.Structure {
	out := make([]world.Structure, 0, len(r.structures))
	for _, s := range r.structures {
		if s.destroyed {
			continue
		}
		out = append(out, s)
	}
	return out
}

var _ world.Region = (*Region)(nil)

// Barricade is a live in-memory frame-mounted barricade.
type Barricade struct {
	id             uint32
	definitionID   uint16
	definitionGUID uuid.UUID
	ownerIdentity  uint64
	groupIdentity  uint64
	integrity      uint16
	state          []byte
	offset         core.Position3D
	rotation       core.Rotation
	destroyed      bool
}

func (b *Barricade) InstanceID() uint32        { return b.id }
func (b *Barricade) DefinitionID() uint16      { return b.definitionID }
func (b *Barricade) DefinitionGUID() uuid.UUID { return b.definitionGUID }
func (b *Barricade) OwnerIdentity() uint64     { return b.ownerIdentity }
func (b *Barricade) GroupIdentity() uint64     { return b.groupIdentity }
func (b *Barricade) Integrity() uint16         { return b.integrity }
func (b *Barricade) StateBlob() []byte         { return b.state }
func (b *Barricade) Offset() core.Position3D   { return b.offset }
func (b *Barricade) Rotation() core.Rotation   { return b.rotation }

// Destroy flags the barricade; destroyed children drop out of listings.
func (b *Barricade) Destroy() { b.destroyed = true }

var _ world.Barricade = (*Barricade)(nil)

// Structure is a live in-memory frame-mounted structure.
type Structure struct {
	id             uint32
	definitionID   uint16
	definitionGUID uuid.UUID
	ownerIdentity  uint64
	groupIdentity  uint64
	integrity      uint16
	offset         core.Position3D
	rotation       core.Rotation
	destroyed      bool
}

func (s *Structure) InstanceID() uint32        { return s.id }
func (s *Structure) DefinitionID() uint16      { return s.definitionID }
func (s *Structure) DefinitionGUID() uuid.UUID { return s.definitionGUID }
func (s *Structure) OwnerIdentity() uint64     { return s.ownerIdentity }
func (s *Structure) GroupIdentity() uint64     { return s.groupIdentity }
func (s *Structure) Integrity() uint16         { return s.integrity }
func (s *Structure) Offset() core.Position3D   { return s.offset }
func (s *Structure) Rotation() core.Rotation   { return s.rotation }

// Destroy flags the structure; destroyed children drop out of listings.
func (s *Structure) Destroy() { s.destroyed = true }

var _ world.Structure = (*Structure)(nil)
