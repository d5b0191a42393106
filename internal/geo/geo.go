package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
)

// SECTOR COORDINATES
// Sector positions are stored as plain planar points; SQLite has no spatial
// awareness, so points are kept in a form the geometry type can Scan back
// from strings during migrations.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// SectorCoordFromString parses a string in the format "x,y" into a planar
// sector position.
func SectorCoordFromString(coords string) (geom.Point, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	return SectorCoord(x, y), nil
}

// SectorCoord builds a sector position from planar components. Non-finite
// components yield an empty point.
func SectorCoord(x, y float64) geom.Point {
	p, err := geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Type: geom.DimXY,
		},
	)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY)
	}
	return p
}

// CoordString formats a sector position back into its "x,y" form.
func CoordString(p geom.Point) string {
	xy, ok := p.XY()
	if !ok {
		return ""
	}
	return fmt.Sprintf("%g,%g", xy.X, xy.Y)
}

// Distance returns the planar distance between two sector positions. Empty
// points are treated as the origin.
func Distance(a, b geom.Point) float64 {
	axy, _ := a.XY()
	bxy, _ := b.XY()
	dx := axy.X - bxy.X
	dy := axy.Y - bxy.Y
	return math.Sqrt(dx*dx + dy*dy)
}
