package geo

import (
	"math"
	"time"
)

// EarthRadiusM is the mean Earth radius used for every great-circle estimate.
const EarthRadiusM = 6371000.0

// Point is one location fix. Timestamp is epoch milliseconds.
type Point struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp int64   `json:"timestamp"`
}

// Time returns the fix timestamp as a time.Time.
func (p Point) Time() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// Finite reports whether both coordinates are usable numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lng) && !math.IsInf(p.Lng, 0)
}

// Distance returns the great-circle surface distance between a and b in metres.
// Timestamps are ignored.
func Distance(a, b Point) float64 {
	return haversine(a.Lat, a.Lng, b.Lat, b.Lng) * EarthRadiusM
}

// haversine returns the central angle in radians.
func haversine(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lng2 - lng1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
