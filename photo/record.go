package photo

import (
	"math"
	"time"
)

// GeoCoordinates is a resolved camera position.
type GeoCoordinates struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
	// Bearing is degrees clockwise from north, nil when the camera did not record one.
	Bearing *float64
	// BearingMagnetic is set when Bearing is still relative to magnetic north
	// because no declination correction could be applied.
	BearingMagnetic bool
	// Placeholder marks the (0,0,0) stand-in given to photos without a fix
	// when they are kept on request. Reports render it as "no position".
	Placeholder bool
}

// NoPosition returns the explicit marker for a kept photo without a GPS fix.
func NoPosition() *GeoCoordinates {
	return &GeoCoordinates{Placeholder: true}
}

// RoundedAltitude returns the altitude rounded to centimetres.
func (c *GeoCoordinates) RoundedAltitude() float64 {
	if c == nil {
		return 0
	}
	return math.Round(c.Altitude*100) / 100
}

// PhotoRecord is one photo as seen by the reports, whether it came from the
// image itself or from a spreadsheet row.
type PhotoRecord struct {
	Filename     string
	ResolvedPath string
	Timestamp    *time.Time
	Coordinates  *GeoCoordinates
	Description  string
	SequenceID   *string
}

// HasGPS reports whether the record carries a real position.
func (r PhotoRecord) HasGPS() bool {
	return r.Coordinates != nil && !r.Coordinates.Placeholder
}
