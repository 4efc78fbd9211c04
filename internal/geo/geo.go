package geo

import (
	"math"

	"github.com/mmcloughlin/geohash"
)

const (
	earthRadiusKm = 6371.0
	kmPerDegree   = earthRadiusKm * math.Pi / 180

	// StoredPrecision is the geohash length persisted with every trip origin.
	StoredPrecision = 7
)

type Point struct {
	Lat float64
	Lng float64
}

// Box is a lat/lng aligned bounding box.
type Box struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

func (b Box) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// HaversineKm calculates the great-circle distance between two points on Earth
func HaversineKm(a, b Point) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// BoundingBox returns a box that contains every point within radiusKm of center.
func BoundingBox(center Point, radiusKm float64) Box {
	latDelta := radiusKm / kmPerDegree
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lngDelta := radiusKm / (kmPerDegree * cosLat)
	if lngDelta > 180 {
		lngDelta = 180
	}

	return Box{
		MinLat: math.Max(center.Lat-latDelta, -90),
		MaxLat: math.Min(center.Lat+latDelta, 90),
		MinLng: center.Lng - lngDelta,
		MaxLng: center.Lng + lngDelta,
	}
}

// Encode returns the stored-precision geohash of p.
func Encode(p Point) string {
	return geohash.EncodeWithPrecision(p.Lat, p.Lng, StoredPrecision)
}

// CoverCells returns geohash prefixes whose cells together contain box, and their length.
// The cells are the box center's cell plus its eight neighbours, at the finest precision
// whose cell is at least as large as the box half-extent. It returns nil when the box is
// too large for a 3x3 block of cells to cover it.
func CoverCells(box Box) ([]string, int) {
	center := Point{Lat: (box.MinLat + box.MaxLat) / 2, Lng: (box.MinLng + box.MaxLng) / 2}
	halfLat := (box.MaxLat - box.MinLat) / 2
	halfLng := (box.MaxLng - box.MinLng) / 2

	for precision := StoredPrecision; precision >= 1; precision-- {
		hash := geohash.EncodeWithPrecision(center.Lat, center.Lng, uint(precision))
		cell := geohash.BoundingBox(hash)
		if halfLat > cell.MaxLat-cell.MinLat || halfLng > cell.MaxLng-cell.MinLng {
			continue
		}
		cells := append([]string{hash}, geohash.Neighbors(hash)...)
		return dedupe(cells), precision
	}
	return nil, 0
}

func dedupe(cells []string) []string {
	seen := make(map[string]struct{}, len(cells))
	out := cells[:0]
	for _, c := range cells {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
