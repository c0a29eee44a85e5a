// pkg/core/types.go
package core

// Position3D represents a 3D world coordinate without GIS dependencies
type Position3D struct {
	X float64 `json:"x"` // easting
	Y float64 `json:"y"` // northing
	Z float64 `json:"z"` // elevation ASL
}

// Rotation represents an orientation in world space, degrees
type Rotation struct {
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
	Roll  float32 `json:"roll"`
}

// Frame is a placement frame: where an object sits and how it faces.
// Children mounted on a composite are anchored relative to its frame.
type Frame struct {
	Position Position3D `json:"position"`
	Rotation Rotation   `json:"rotation"`
}

// Identity is an access-control identity pair. Zero owner means unowned.
type Identity struct {
	Owner uint64 `json:"owner"`
	Group uint64 `json:"group"`
}
