package model

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// All stored geometry is web mercator (EPSG:3857).
const sridWebMercator = 3857

// PostGIS EWKB flag bits in the geometry type word.
const (
	ewkbZ    = 0x80000000
	ewkbM    = 0x40000000
	ewkbSRID = 0x20000000
)

// Point is a geometry column. Postgres stores it as PostGIS geometry in
// EPSG:3857; SQLite stores hex-encoded WKB text, which Postgres also accepts
// on insert, so dump files migrate without a spatial layer on the SQLite side.
type Point struct {
	geom.Point
}

// NewPoint wraps a geometry point for storage.
func NewPoint(p geom.Point) Point {
	return Point{Point: p}
}

// Scan implements sql.Scanner. Accepts PostGIS hex EWKB (string or []byte)
// and the raw/hex WKB blobs SQLite hands back.
func (p *Point) Scan(input interface{}) error {
	if input == nil {
		*p = Point{}
		return nil
	}
	var raw []byte
	switch v := input.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Point", input)
	}
	if len(raw) == 0 {
		*p = Point{}
		return nil
	}
	// A WKB stream always opens with a byte-order marker of 0x00 or 0x01.
	// Anything else is the hex text form.
	if raw[0] != 0x00 && raw[0] != 0x01 {
		decoded, err := hex.DecodeString(string(raw))
		if err != nil {
			return fmt.Errorf("error decoding geometry hex: %w", err)
		}
		raw = decoded
	}
	wkb, err := wkbFromEWKB(raw)
	if err != nil {
		return err
	}
	g, err := geom.UnmarshalWKB(wkb)
	if err != nil {
		return fmt.Errorf("error unmarshalling geometry: %w", err)
	}
	if !g.IsPoint() {
		return fmt.Errorf("expected point geometry, got %s", g.Type())
	}
	p.Point = g.MustAsPoint()
	return nil
}

// GormDataType implements schema.GormDataTypeInterface.
func (p Point) GormDataType() string {
	return "geometry"
}

// GormValue implements gorm.Valuer, building the dialect-specific insert
// expression.
func (p Point) GormValue(ctx context.Context, db *gorm.DB) clause.Expr {
	wkb := p.AsBinary()
	if db.Dialector.Name() == "postgres" {
		return clause.Expr{
			SQL:  "ST_GeomFromWKB(?, ?)",
			Vars: []interface{}{wkb, sridWebMercator},
		}
	}
	return clause.Expr{
		SQL:  "?",
		Vars: []interface{}{hex.EncodeToString(wkb)},
	}
}

// wkbFromEWKB rewrites a PostGIS EWKB header into ISO WKB so the geometry
// package can parse it. Plain ISO input passes through unchanged.
func wkbFromEWKB(b []byte) ([]byte, error) {
	if len(b) < 5 {
		return nil, fmt.Errorf("geometry blob too short: %d bytes", len(b))
	}
	var order binary.ByteOrder = binary.LittleEndian
	if b[0] == 0x00 {
		order = binary.BigEndian
	}
	typ := order.Uint32(b[1:5])
	if typ&(ewkbZ|ewkbM|ewkbSRID) == 0 {
		return b, nil
	}
	iso := typ &^ uint32(ewkbZ|ewkbM|ewkbSRID)
	if typ&ewkbZ != 0 {
		iso += 1000
	}
	if typ&ewkbM != 0 {
		iso += 2000
	}
	body := b[5:]
	if typ&ewkbSRID != 0 {
		if len(body) < 4 {
			return nil, fmt.Errorf("geometry blob too short for srid: %d bytes", len(b))
		}
		body = body[4:]
	}
	out := make([]byte, 5, 5+len(body))
	out[0] = b[0]
	order.PutUint32(out[1:5], iso)
	return append(out, body...), nil
}
