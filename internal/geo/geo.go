package geo

import (
	"errors"
	"strconv"
	"strings"

	"github.com/motorpool/extension/v2/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GEO POINTS
// We always store as 3857, including for world locations, because SQLite has no spatial awareness and we need to be able to interpret point data from strings during migrations using inherent Scan function.
// Geometry data is stored in the WKB format, which is a binary representation of the geometry data.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Coord3857FromString parses a string in the format "east,north" or "east,north,elev" into a point, and returns the point and elevation
func Coord3857FromString(
	coords string,
) (
	point geom.Point,
	elev float64,
	err error,
) {
	// split the string into its components
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return geom.NewEmptyPoint(geom.DimXYZ), 0, ErrInvalidCoordinates
	}
	// parse the easting
	east, err := strconv.ParseFloat(coordsSplit[0], 64)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ), 0, ErrInvalidCoordinates
	}
	// parse the northing
	north, err := strconv.ParseFloat(coordsSplit[1], 64)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ), 0, ErrInvalidCoordinates
	}
	// parse the elevation
	if len(coordsSplit) > 2 {
		elev, err = strconv.ParseFloat(coordsSplit[2], 64)
		if err != nil {
			return geom.NewEmptyPoint(geom.DimXYZ), 0, ErrInvalidCoordinates
		}
	}
	// create the point
	point = geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: east, Y: north},
			Z:    elev,
			Type: geom.CoordinatesType(geom.DimXYZ),
		},
	)
	return point, elev, nil
}

// Position3DFromString parses an "east,north" or "east,north,elev" string into a core.Position3D.
func Position3DFromString(coords string) (core.Position3D, error) {
	point, _, err := Coord3857FromString(coords)
	if err != nil {
		return core.Position3D{}, err
	}
	return PositionFromPoint(point), nil
}

// PointFromPosition builds a 3857 point from an in-memory position.
func PointFromPosition(pos core.Position3D) geom.Point {
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: pos.X, Y: pos.Y},
			Z:    pos.Z,
			Type: geom.CoordinatesType(geom.DimXYZ),
		},
	)
}

// PositionFromPoint is the inverse of PointFromPosition, used when loading
// vault rows back into snapshots. An empty point yields the zero position.
func PositionFromPoint(point geom.Point) core.Position3D {
	coords, ok := point.Coordinates()
	if !ok {
		return core.Position3D{}
	}
	return core.Position3D{X: coords.X, Y: coords.Y, Z: coords.Z}
}

// Coords3857From4326 creates a point from a longitude and latitude
func Coords3857From4326(
	longitude float64,
	latitude float64,
) (
	point geom.Point,
	err error,
) {
	var x, y float64
	// if provided SRID was 4326, convert to 3857
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ = f(longitude, latitude, 0)
	point = geom.NewPoint(
		geom.Coordinates{
			XY: geom.XY{X: x, Y: y},
			Z:  0,
		},
	)
	return point, nil
}

// Coords4326From3857 converts a stored web-mercator point back to longitude
// and latitude, the inverse of Coords3857From4326.
func Coords4326From3857(
	x float64,
	y float64,
) (
	longitude float64,
	latitude float64,
) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(3857, 4326)
	longitude, latitude, _ = f(x, y, 0)
	return longitude, latitude
}
