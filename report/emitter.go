// Package report turns ordered photo records into output files.
package report

import (
	"fmt"
	"strconv"
	"time"

	"geosnap/photo"
)

// Entry is one record handed to an emitter.
type Entry struct {
	// Ordinal is the 1-based position in the final output order.
	Ordinal int
	Record  photo.PhotoRecord
	// Altitude is the value printed in reports, already rounded.
	Altitude float64
}

// DisplayID is the user's sequence id when present, the ordinal otherwise.
func (e Entry) DisplayID() string {
	if e.Record.SequenceID != nil && *e.Record.SequenceID != "" {
		return *e.Record.SequenceID
	}
	return strconv.Itoa(e.Ordinal)
}

// Emitter accumulates entries in order and writes one file on Save.
// Close releases any staging resources and is safe to call more than once.
type Emitter interface {
	Add(Entry) error
	Save(path string) error
	Close() error
}

const timestampLayout = "2006-01-02 15:04:05"

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timestampLayout)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBearing(c *photo.GeoCoordinates) string {
	if c == nil || c.Bearing == nil {
		return ""
	}
	s := formatFloat(*c.Bearing)
	if c.BearingMagnetic {
		s += " (M)"
	}
	return s
}

// coordinateCells returns latitude, longitude and altitude as printed in the
// tabular outputs. Records without a real fix print blanks.
func coordinateCells(e Entry) (lat, lon, alt string) {
	if !e.Record.HasGPS() {
		return "", "", ""
	}
	c := e.Record.Coordinates
	return formatFloat(c.Latitude), formatFloat(c.Longitude), formatFloat(e.Altitude)
}

func wrapSave(kind, path string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to save %s report %s: %w", kind, path, err)
}
