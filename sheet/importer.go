// Package sheet reads a user-edited photo spreadsheet back into records.
package sheet

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"geosnap/photo"
)

// Importer parses spreadsheets previously exported (and possibly edited) by
// the user.
type Importer struct {
	log logrus.FieldLogger
}

func NewImporter(log logrus.FieldLogger) *Importer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Importer{log: log}
}

// Parse reads the active sheet and returns one record per usable row, in row
// order. ResolvedPath is left empty.
func (im *Importer) Parse(path string) ([]photo.PhotoRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet %s: %w", path, err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(f.GetActiveSheetIndex())
	formatted, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}
	raw, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}
	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	if len(formatted) == 0 {
		return nil, &MissingColumnsError{Fields: requiredFields}
	}
	headers, err := DetectHeaders(formatted[0])
	if err != nil {
		return nil, err
	}
	im.log.WithField("path", path).Infof("Detected header map: %v", headers)

	var out []photo.PhotoRecord
	for i := 1; i < len(formatted); i++ {
		r := row{
			num:      i + 1,
			text:     formatted[i],
			headers:  headers,
			date1904: date1904,
			log:      im.log.WithField("row", i+1),
		}
		if i < len(raw) {
			r.raw = raw[i]
		}
		if rec, ok := r.record(); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

type row struct {
	num      int
	text     []string
	raw      []string
	headers  HeaderMap
	date1904 bool
	log      logrus.FieldLogger
}

func cell(values []string, col int) string {
	if col < 1 || col > len(values) {
		return ""
	}
	return values[col-1]
}

// textValue returns the displayed value of a text column, sanitised.
func (r row) textValue(f Field) string {
	col, ok := r.headers[f]
	if !ok {
		return ""
	}
	v, changed := Sanitize(cell(r.text, col))
	if changed {
		r.log.Warnf("sanitized potentially dangerous cell value in column %s", f)
	}
	return v
}

// rawValue returns the stored value of a numeric column without sanitising,
// so negative numbers stay intact.
func (r row) rawValue(f Field) string {
	col, ok := r.headers[f]
	if !ok {
		return ""
	}
	return strings.TrimSpace(cell(r.raw, col))
}

func (r row) record() (photo.PhotoRecord, bool) {
	filename := strings.TrimSpace(r.textValue(FieldFile))
	if filename == "" {
		return photo.PhotoRecord{}, false
	}

	latRaw, lonRaw := r.rawValue(FieldLat), r.rawValue(FieldLon)
	if latRaw == "" || lonRaw == "" {
		r.log.Warn("missing coordinates, skipping row")
		return photo.PhotoRecord{}, false
	}
	lat, err := ParseNumber(latRaw)
	if err != nil {
		r.log.WithError(err).Warn("invalid latitude, skipping row")
		return photo.PhotoRecord{}, false
	}
	lon, err := ParseNumber(lonRaw)
	if err != nil {
		r.log.WithError(err).Warn("invalid longitude, skipping row")
		return photo.PhotoRecord{}, false
	}

	coords := &photo.GeoCoordinates{Latitude: lat, Longitude: lon}
	if lat == 0 && lon == 0 {
		coords.Placeholder = true
	}
	if v := r.rawValue(FieldAlt); v != "" {
		if alt, err := ParseNumber(v); err == nil {
			coords.Altitude = alt
		}
	}
	if v := r.rawValue(FieldBearing); v != "" {
		b, magnetic, err := ParseBearing(v)
		if err != nil {
			r.log.WithError(err).Warn("invalid bearing, ignoring it")
		} else {
			coords.Bearing = &b
			coords.BearingMagnetic = magnetic
		}
	}

	rec := photo.PhotoRecord{
		Filename:    filename,
		Coordinates: coords,
		Description: strings.TrimSpace(r.textValue(FieldDescription)),
		Timestamp:   ParseDate(r.textValue(FieldDate), r.rawValue(FieldDate), r.date1904),
	}
	if seq := r.rawValue(FieldNum); seq != "" {
		rec.SequenceID = &seq
	}
	return rec, true
}
