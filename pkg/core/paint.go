// pkg/core/paint.go
package core

import (
	"encoding/json"
	"fmt"
)

// PaintColor is a tagged RGBA paint override. Valid=false means the vehicle
// carries no override and the environment applies its own default color.
// The serialized form is exactly 4 bytes, with {0,0,0,0} reserved as the
// no-override sentinel; a legitimate opaque black is {0,0,0,255}.
type PaintColor struct {
	R, G, B, A uint8
	Valid      bool
}

// NewPaintColor returns a set override with the given channels.
// An alpha of zero is the transparent sentinel and yields no override.
func NewPaintColor(r, g, b, a uint8) PaintColor {
	if a == 0 {
		return PaintColor{}
	}
	return PaintColor{R: r, G: g, B: b, A: a, Valid: true}
}

// PaintFromBytes decodes the 4-byte wire form. The all-zero sentinel and any
// zero-alpha value decode as no override.
func PaintFromBytes(b [4]byte) PaintColor {
	return NewPaintColor(b[0], b[1], b[2], b[3])
}

// Bytes encodes the 4-byte wire form, {0,0,0,0} when no override is set.
func (p PaintColor) Bytes() [4]byte {
	if !p.Valid {
		return [4]byte{}
	}
	return [4]byte{p.R, p.G, p.B, p.A}
}

// MarshalJSON emits the wire form as a 4-element array so the sentinel
// distinction survives every serialization.
func (p PaintColor) MarshalJSON() ([]byte, error) {
	b := p.Bytes()
	return json.Marshal([4]uint8{b[0], b[1], b[2], b[3]})
}

// UnmarshalJSON accepts the 4-element array wire form.
func (p *PaintColor) UnmarshalJSON(data []byte) error {
	var arr [4]uint8
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("error decoding paint color: %w", err)
	}
	*p = PaintFromBytes(arr)
	return nil
}
