package sheet

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"geosnap/photo"
	"geosnap/utils"
)

func writeSheet(t *testing.T, rows ...[]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := r
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	path := filepath.Join(t.TempDir(), "fotos.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func parse(t *testing.T, path string) ([]photo.PhotoRecord, error) {
	t.Helper()
	return NewImporter(utils.Discard()).Parse(path)
}

func TestParseSpanishExport(t *testing.T) {
	path := writeSheet(t,
		[]interface{}{"", "Nº", "Archivo", "DESCRIPCIÓN", "Fecha", "Latitud", "Longitud", "Altitud [m]", "Rumbo [°]"},
		[]interface{}{nil, 3, "IMG_3.jpg", "Fachada norte", "31/01/2024 12:34:56", 40.4168, -3.7038, 655.25, 270},
		[]interface{}{nil, 1, "IMG_1.jpg", "", "2024-02-01", "40,5", "-3,25", "", ""},
	)

	recs, err := parse(t, path)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, "IMG_3.jpg", first.Filename)
	assert.Empty(t, first.ResolvedPath)
	assert.Equal(t, "Fachada norte", first.Description)
	require.NotNil(t, first.SequenceID)
	assert.Equal(t, "3", *first.SequenceID)
	require.NotNil(t, first.Timestamp)
	assert.Equal(t, time.Date(2024, 1, 31, 12, 34, 56, 0, time.Local), *first.Timestamp)
	assert.InDelta(t, 40.4168, first.Coordinates.Latitude, 1e-9)
	assert.InDelta(t, -3.7038, first.Coordinates.Longitude, 1e-9)
	assert.InDelta(t, 655.25, first.Coordinates.Altitude, 1e-9)
	require.NotNil(t, first.Coordinates.Bearing)
	assert.Equal(t, 270.0, *first.Coordinates.Bearing)

	second := recs[1]
	assert.InDelta(t, 40.5, second.Coordinates.Latitude, 1e-9)
	assert.InDelta(t, -3.25, second.Coordinates.Longitude, 1e-9)
	assert.Equal(t, 0.0, second.Coordinates.Altitude)
	assert.Nil(t, second.Coordinates.Bearing)
	require.NotNil(t, second.Timestamp)
	assert.Equal(t, 1, second.Timestamp.Day())
}

func TestParseMissingLongitude(t *testing.T) {
	path := writeSheet(t,
		[]interface{}{"File", "Latitude", "Altitude"},
		[]interface{}{"a.jpg", 1.0, 2.0},
	)

	_, err := parse(t, path)
	require.Error(t, err)

	var missing *MissingColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []Field{FieldLon}, missing.Fields)
	assert.Contains(t, err.Error(), "lon")
}

func TestParseEmptySheet(t *testing.T) {
	f := excelize.NewFile()
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	_, err := parse(t, path)
	var missing *MissingColumnsError
	assert.True(t, errors.As(err, &missing))
}

func TestParseSkipsBadRows(t *testing.T) {
	path := writeSheet(t,
		[]interface{}{"Filename", "Lat", "Lng"},
		[]interface{}{"ok1.jpg", 10.0, 20.0},
		[]interface{}{"badlat.jpg", "north", 20.0},
		[]interface{}{"", 11.0, 21.0},
		[]interface{}{"nolon.jpg", 12.0, ""},
		[]interface{}{"ok2.jpg", "-12.5", "22"},
	)

	recs, err := parse(t, path)
	require.NoError(t, err)

	var names []string
	for _, r := range recs {
		names = append(names, r.Filename)
	}
	assert.Equal(t, []string{"ok1.jpg", "ok2.jpg"}, names)
	assert.Nil(t, recs[0].SequenceID)
	assert.InDelta(t, -12.5, recs[1].Coordinates.Latitude, 1e-9)
}

func TestParseSanitizesTextOnly(t *testing.T) {
	path := writeSheet(t,
		[]interface{}{"Archivo", "Descripcion", "Latitud", "Longitud"},
		[]interface{}{"a.jpg", "=HYPERLINK(\"http://evil\")", "-1.5", "-2.5"},
		[]interface{}{"b.jpg", "@SUM(A1)", 1.0, 2.0},
		[]interface{}{"c.jpg", "-just a dash", 1.0, 2.0},
	)

	recs, err := parse(t, path)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "'=HYPERLINK(\"http://evil\")", recs[0].Description)
	assert.Equal(t, "'@SUM(A1)", recs[1].Description)
	assert.Equal(t, "-just a dash", recs[2].Description)
	assert.Equal(t, -1.5, recs[0].Coordinates.Latitude)
	assert.Equal(t, -2.5, recs[0].Coordinates.Longitude)
}

func TestParseFirstColumnWins(t *testing.T) {
	path := writeSheet(t,
		[]interface{}{"Nº", "Latitud", "ID_foto", "Latitude (old)", "Longitud", "Archivo"},
		[]interface{}{"7", 1.0, "99", 50.0, 2.0, "x.jpg"},
	)

	recs, err := parse(t, path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "7", *recs[0].SequenceID)
	assert.Equal(t, 1.0, recs[0].Coordinates.Latitude)
}

func TestParseDateCellAndZeroPosition(t *testing.T) {
	when := time.Date(2023, 6, 9, 15, 0, 0, 0, time.UTC)
	path := writeSheet(t,
		[]interface{}{"Archivo", "Fecha", "Latitud", "Longitud"},
		[]interface{}{"a.jpg", when, 0.0, 0.0},
		[]interface{}{"b.jpg", "not a date", 1.0, 1.0},
	)

	recs, err := parse(t, path)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	require.NotNil(t, recs[0].Timestamp)
	assert.Equal(t, 2023, recs[0].Timestamp.Year())
	assert.Equal(t, time.June, recs[0].Timestamp.Month())
	assert.Equal(t, 9, recs[0].Timestamp.Day())
	assert.True(t, recs[0].Coordinates.Placeholder)
	assert.False(t, recs[0].HasGPS())

	assert.Nil(t, recs[1].Timestamp)
	assert.True(t, recs[1].HasGPS())
}
