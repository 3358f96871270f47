package sheet

import (
	"fmt"
	"strings"
)

// Field is a canonical spreadsheet column.
type Field string

const (
	FieldNum         Field = "num"
	FieldFile        Field = "file"
	FieldDescription Field = "description"
	FieldDate        Field = "date"
	FieldLat         Field = "lat"
	FieldLon         Field = "lon"
	FieldAlt         Field = "alt"
	FieldBearing     Field = "bearing"
)

type alias struct {
	field    Field
	variants []string
}

// aliases is checked in order; a header cell belongs to the first field with
// a matching variant. "no" and "n" are left out on purpose since they would
// match "longitud" and "filename".
var aliases = []alias{
	{FieldNum, []string{"nº", "numero", "n°", "id_foto"}},
	{FieldFile, []string{"archivo", "file", "nombre", "filename"}},
	{FieldDescription, []string{"descripción", "descripcion", "description", "notas"}},
	{FieldDate, []string{"fecha", "date", "datetime", "timestamp"}},
	{FieldLat, []string{"latitud", "lat", "latitude"}},
	{FieldLon, []string{"longitud", "lon", "long", "lng", "longitude"}},
	{FieldAlt, []string{"altitud", "alt", "altitude", "elevacion"}},
	{FieldBearing, []string{"rumbo", "azimut", "azimuth", "bearing", "direccion"}},
}

var requiredFields = []Field{FieldFile, FieldLat, FieldLon}

// HeaderMap maps a field to its 1-based column.
type HeaderMap map[Field]int

// MatchField returns the field a header cell belongs to.
func MatchField(header string) (Field, bool) {
	text := strings.ToLower(strings.TrimSpace(header))
	if text == "" {
		return "", false
	}
	for _, a := range aliases {
		for _, v := range a.variants {
			if strings.Contains(text, v) {
				return a.field, true
			}
		}
	}
	return "", false
}

// DetectHeaders builds the header map from the first row. When a field
// matches several columns the leftmost one is used.
func DetectHeaders(row []string) (HeaderMap, error) {
	m := HeaderMap{}
	for i, cell := range row {
		f, ok := MatchField(cell)
		if !ok {
			continue
		}
		if _, taken := m[f]; !taken {
			m[f] = i + 1
		}
	}

	var missing []Field
	for _, f := range requiredFields {
		if _, ok := m[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Fields: missing}
	}
	return m, nil
}

// MissingColumnsError reports required columns that no header matched.
type MissingColumnsError struct {
	Fields []Field
}

func (e *MissingColumnsError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf("missing critical columns in spreadsheet: %s; include columns for file, latitude and longitude", strings.Join(names, ", "))
}
