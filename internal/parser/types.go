package parser

import (
	"github.com/motorpool/extension/v2/pkg/core"
)

// SaveRequest holds a parsed vault save command. The worker layer resolves
// the instance against the live world and captures it.
type SaveRequest struct {
	InstanceID    uint32
	ActorIdentity uint64
	Position      core.Position3D
	Label         string

	// ReplacesEntry is non-zero when the host knows the vehicle was spawned
	// from an existing vault entry; the save then updates that entry in place.
	ReplacesEntry uint
}

// RestoreRequest holds a parsed vault restore command.
type RestoreRequest struct {
	EntryID       uint
	ActorIdentity uint64
	Position      core.Position3D

	// Claimant is nil when the restore keeps the stored ownership.
	Claimant *core.Identity
	Rebind   bool
}

// ListRequest holds a parsed vault listing command.
type ListRequest struct {
	OwnerIdentity uint64
}

// DeleteRequest holds a parsed vault delete command.
type DeleteRequest struct {
	EntryID       uint
	ActorIdentity uint64
}

// MetricPoint is a host-pushed metric decoded from the wire, kept neutral of
// the telemetry client so the parser stays dependency-free. Field values are
// string, int or float64 according to the declared wire type.
type MetricPoint struct {
	Bucket      string
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
}
