package opt

import (
	"math"

	"github.com/golang/geo/s2"

	"tourroute/internal/model"
)

// EarthRadiusMeters is the mean Earth radius used by Distance.
const EarthRadiusMeters = 6371000.0

// Walking speeds in meters per second.
var paceSpeed = map[model.Pace]float64{
	model.PaceSlow:     0.8,
	model.PaceModerate: 1.2,
	model.PaceFast:     1.5,
}

// Distance returns the great-circle distance between a and b in meters.
// s2.LatLng.Distance evaluates the haversine formula.
func Distance(a, b model.GeoPoint) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lng)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// Speed returns the walking speed for pace in m/s; unknown paces walk at moderate speed.
func Speed(pace model.Pace) float64 {
	if v, ok := paceSpeed[pace]; ok {
		return v
	}
	return paceSpeed[model.PaceModerate]
}

// TravelTime returns the walking time from a to b in minutes.
func TravelTime(a, b model.GeoPoint, pace model.Pace) float64 {
	return Distance(a, b) / Speed(pace) / 60
}

// Bearing returns the initial bearing from a to b in degrees, 0 = north.
func Bearing(a, b model.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

var compassPoints = []string{"north", "northeast", "east", "southeast", "south", "southwest", "west", "northwest"}

// Compass names the 8-point heading for a bearing.
func Compass(bearing float64) string {
	i := int(math.Floor(math.Mod(bearing+22.5, 360) / 45))
	return compassPoints[i%8]
}

// turnAngle is the absolute heading change between two bearings, 0..180.
func turnAngle(b1, b2 float64) float64 {
	d := math.Abs(b2 - b1)
	if d > 180 {
		d = 360 - d
	}
	return d
}
