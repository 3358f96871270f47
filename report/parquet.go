package report

import (
	"github.com/parquet-go/parquet-go"
)

// PhotoRow is the parquet schema of one listed photo.
type PhotoRow struct {
	ID          string   `parquet:"id"`
	Ordinal     int64    `parquet:"ordinal"`
	Filename    string   `parquet:"filename"`
	Description string   `parquet:"description"`
	Timestamp   string   `parquet:"timestamp,optional"`
	Latitude    *float64 `parquet:"latitude,optional"`
	Longitude   *float64 `parquet:"longitude,optional"`
	Altitude    *float64 `parquet:"altitude,optional"`
	Bearing     *float64 `parquet:"bearing,optional"`
	Magnetic    bool     `parquet:"bearing_magnetic"`
}

// Parquet collects the listing as a columnar table for downstream analysis.
type Parquet struct {
	rows []PhotoRow
}

func NewParquet() *Parquet {
	return &Parquet{}
}

func (p *Parquet) Add(e Entry) error {
	rec := e.Record
	row := PhotoRow{
		ID:          e.DisplayID(),
		Ordinal:     int64(e.Ordinal),
		Filename:    rec.Filename,
		Description: rec.Description,
		Timestamp:   formatTime(rec.Timestamp),
	}
	if rec.HasGPS() {
		c := rec.Coordinates
		lat, lon, alt := c.Latitude, c.Longitude, e.Altitude
		row.Latitude, row.Longitude, row.Altitude = &lat, &lon, &alt
	}
	if c := rec.Coordinates; c != nil && c.Bearing != nil {
		b := *c.Bearing
		row.Bearing = &b
		row.Magnetic = c.BearingMagnetic
	}
	p.rows = append(p.rows, row)
	return nil
}

func (p *Parquet) Save(path string) error {
	return wrapSave("parquet", path, parquet.WriteFile(path, p.rows))
}

func (p *Parquet) Close() error {
	return nil
}
