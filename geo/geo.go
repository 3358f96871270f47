// Package geo holds the coordinate math used by the extractor and the KMZ
// emitter. Everything here is a pure function of its inputs.
package geo

import (
	"math"
	"strings"
)

// EarthRadius is the spherical radius used for destination projection, in meters.
const EarthRadius = 6378137.0

// DecimalDegrees converts a degrees/minutes/seconds triplet into signed decimal
// degrees. South and West hemispheres are negative.
func DecimalDegrees(deg, min, sec float64, ref string) float64 {
	decimal := deg + min/60.0 + sec/3600.0
	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		return -decimal
	}
	return decimal
}

// NormalizeBearing folds any angle into [0, 360).
func NormalizeBearing(b float64) float64 {
	b = math.Mod(b, 360)
	if b < 0 {
		b += 360
	}
	if b >= 360 {
		b = 0
	}
	return b
}

// DestinationPoint returns the point reached from (lat, lon) after travelling
// distance meters along bearing degrees on a sphere of radius EarthRadius.
func DestinationPoint(lat, lon, distance, bearing float64) (float64, float64) {
	theta := toRad(bearing)
	lat1 := toRad(lat)
	lon1 := toRad(lon)
	delta := distance / EarthRadius

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lon2 := lon1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2),
	)
	return toDeg(lat2), toDeg(lon2)
}

// Point is a (lat, lon) pair in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Arrow describes the bearing arrow drawn from a camera position.
type Arrow struct {
	Length     float64 // shaft, meters
	WingLength float64 // each wing, meters
	WingAngle  float64 // degrees off the shaft bearing
}

// DefaultArrow matches the arrow drawn by the reports when nothing is configured.
var DefaultArrow = Arrow{Length: 30, WingLength: 8, WingAngle: 150}

// ArrowPolyline builds origin -> shaft end -> wing1 -> shaft end -> wing2.
// Revisiting the shaft end lets a single line string draw both wings.
func ArrowPolyline(lat, lon, bearing float64, a Arrow) []Point {
	endLat, endLon := DestinationPoint(lat, lon, a.Length, bearing)
	w1Lat, w1Lon := DestinationPoint(endLat, endLon, a.WingLength, bearing+a.WingAngle)
	w2Lat, w2Lon := DestinationPoint(endLat, endLon, a.WingLength, bearing-a.WingAngle)

	end := Point{Lat: endLat, Lon: endLon}
	return []Point{
		{Lat: lat, Lon: lon},
		end,
		{Lat: w1Lat, Lon: w1Lon},
		end,
		{Lat: w2Lat, Lon: w2Lon},
	}
}

func toRad(d float64) float64 { return d * math.Pi / 180 }
func toDeg(r float64) float64 { return r * 180 / math.Pi }
