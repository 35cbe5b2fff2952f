package location

import "math"

// EarthRadiusKm is the Earth radius in kilometers for Haversine.
const EarthRadiusKm = 6371.0

// KmPerDegreeLat is the approximate length of one degree of latitude.
const KmPerDegreeLat = 111.0

// HaversineKm returns distance in km between two points (lat/lng in degrees).
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	φ1, φ2 := rad(lat1), rad(lat2)
	Δφ := rad(lat2 - lat1)
	Δλ := rad(lng2 - lng1)
	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// HaversineMeters is HaversineKm in meters.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	return HaversineKm(lat1, lng1, lat2, lng2) * 1000
}

// Box is a lat/lng rectangle that contains every point within a radius of its center.
// LngMin may fall below -180 and LngMax above 180 when the box crosses the antimeridian;
// LngRanges gives the normalized spans.
type Box struct {
	LatMin, LatMax float64
	LngMin, LngMax float64
}

// BoundingBox returns a prefilter rectangle for radiusKm around (lat, lng).
// The longitude span widens with latitude, and is the whole circle near the poles.
func BoundingBox(lat, lng, radiusKm float64) Box {
	dLat := radiusKm / KmPerDegreeLat
	b := Box{LatMin: lat - dLat, LatMax: lat + dLat, LngMin: -180, LngMax: 180}
	cos := math.Cos(lat * math.Pi / 180)
	if cos > 0.01 {
		dLng := radiusKm / (KmPerDegreeLat * cos)
		if dLng < 180 {
			b.LngMin, b.LngMax = lng-dLng, lng+dLng
		}
	}
	return b
}

// LngRanges returns one or two [min, max] longitude spans inside [-180, 180].
// A box crossing the antimeridian splits into a western and an eastern span.
func (b Box) LngRanges() [][2]float64 {
	switch {
	case b.LngMax-b.LngMin >= 360:
		return [][2]float64{{-180, 180}}
	case b.LngMin < -180:
		return [][2]float64{{b.LngMin + 360, 180}, {-180, b.LngMax}}
	case b.LngMax > 180:
		return [][2]float64{{b.LngMin, 180}, {-180, b.LngMax - 360}}
	}
	return [][2]float64{{b.LngMin, b.LngMax}}
}

// ValidCoordinate reports whether lat/lng are in range.
func ValidCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
