package report

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"geosnap/photo"
	"geosnap/photo/phototest"
	"geosnap/sheet"
	"geosnap/utils"
)

func ptr[T any](v T) *T { return &v }

func sampleEntries(t *testing.T) []Entry {
	t.Helper()
	dir := t.TempDir()
	when := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	return []Entry{
		{
			Ordinal: 1,
			Record: photo.PhotoRecord{
				Filename:     "a.jpg",
				ResolvedPath: phototest.JPEG(t, dir, "a.jpg", nil),
				Timestamp:    &when,
				Coordinates:  &photo.GeoCoordinates{Latitude: 40.5, Longitude: -3.25, Altitude: 655.257, Bearing: ptr(90.0)},
				Description:  "Fachada <norte>",
			},
			Altitude: 655.26,
		},
		{
			Ordinal: 2,
			Record: photo.PhotoRecord{
				Filename:     "b.jpg",
				ResolvedPath: phototest.JPEG(t, dir, "b.jpg", nil),
				Coordinates:  photo.NoPosition(),
				SequenceID:   ptr("17"),
			},
		},
		{
			Ordinal: 3,
			Record: photo.PhotoRecord{
				Filename:    "c.jpg",
				Coordinates: &photo.GeoCoordinates{Latitude: 1, Longitude: 2, Bearing: ptr(10.0), BearingMagnetic: true},
			},
		},
	}
}

func emit(t *testing.T, em Emitter, entries []Entry, path string) {
	t.Helper()
	defer func() { assert.NoError(t, em.Close()) }()
	for _, e := range entries {
		require.NoError(t, em.Add(e))
	}
	require.NoError(t, em.Save(path))
}

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = string(data)
	}
	return out
}

func TestEntryDisplayID(t *testing.T) {
	assert.Equal(t, "4", Entry{Ordinal: 4}.DisplayID())
	assert.Equal(t, "4", Entry{Ordinal: 4, Record: photo.PhotoRecord{SequenceID: ptr("")}}.DisplayID())
	assert.Equal(t, "A-1", Entry{Ordinal: 4, Record: photo.PhotoRecord{SequenceID: ptr("A-1")}}.DisplayID())
}

func TestKMZ(t *testing.T) {
	k, err := NewKMZ(KMZOptions{Name: "obra"}, utils.Discard())
	require.NoError(t, err)
	stageDir := k.stage.dir

	path := filepath.Join(t.TempDir(), "obra.kmz")
	emit(t, k, sampleEntries(t), path)

	files := readZip(t, path)
	require.Contains(t, files, "doc.kml")
	assert.Contains(t, files, "files/thumb_a.jpg")
	assert.Contains(t, files, "files/thumb_b.jpg")
	assert.Len(t, files, 3)

	doc := files["doc.kml"]
	assert.Contains(t, doc, "Foto Nº 1")
	assert.Contains(t, doc, "Foto Nº 17")
	assert.Contains(t, doc, "Foto Nº 3")
	assert.Equal(t, 2, strings.Count(doc, "<LineString>"), "arrows for both bearings")
	assert.Equal(t, 2, strings.Count(doc, "<MultiGeometry>"))
	assert.Equal(t, 2, strings.Count(doc, "<Point>"), "the placeholder has no geometry")
	assert.Contains(t, doc, "icon46.png")
	assert.Contains(t, doc, "files/thumb_a.jpg")
	assert.Contains(t, doc, "Fachada")
	assert.NotContains(t, doc, "<norte>")
	assert.Contains(t, doc, "10 (M)")

	_, err = os.Stat(stageDir)
	assert.True(t, os.IsNotExist(err), "staging directory removed on Close")
}

func TestPlacemarkHTMLBlanksPlaceholder(t *testing.T) {
	out := placemarkHTML(Entry{Ordinal: 2, Record: photo.PhotoRecord{Filename: "x.jpg", Coordinates: photo.NoPosition()}}, "")
	assert.NotContains(t, out, "<img")
	assert.Contains(t, out, "<td><b>Latitud</b></td><td></td>")
	assert.Contains(t, out, "<td><b>Altitud [m]</b></td><td></td>")
}

func TestXLSX(t *testing.T) {
	x, err := NewXLSX()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "obra.xlsx")
	emit(t, x, sampleEntries(t), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{listingSheet}, f.GetSheetList())
	rows, err := f.GetRows(listingSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"", "Nº", "Archivo", "DESCRIPCIÓN", "Fecha", "Latitud", "Longitud", "Altitud [m]", "Rumbo [°]"}, rows[0])
	assert.Equal(t, []string{"", "1", "a.jpg", "Fachada <norte>", "2024-05-01 10:30:00", "40.5", "-3.25", "655.26", "90"}, rows[1])
	require.GreaterOrEqual(t, len(rows[2]), 3)
	assert.Equal(t, []string{"", "17", "b.jpg"}, rows[2][:3])
	for _, v := range rows[2][3:] {
		assert.Empty(t, v, "placeholder row prints no position")
	}
	assert.Equal(t, "10 (M)", rows[3][8])

	width, err := f.GetColWidth(listingSheet, "D")
	require.NoError(t, err)
	assert.Equal(t, 50.0, width)

	styleID, err := f.GetCellStyle(listingSheet, "C1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
	assert.Len(t, style.Border, 4)
}

func TestXLSXReadsBackAsListing(t *testing.T) {
	x, err := NewXLSX()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "obra.xlsx")
	emit(t, x, sampleEntries(t), path)

	records, err := sheet.NewImporter(utils.Discard()).Parse(path)
	require.NoError(t, err)
	// The placeholder row has no position and is dropped on import.
	require.Len(t, records, 2)

	a := records[0]
	assert.Equal(t, "a.jpg", a.Filename)
	assert.Equal(t, "Fachada <norte>", a.Description)
	require.NotNil(t, a.Coordinates.Bearing)
	assert.InDelta(t, 90.0, *a.Coordinates.Bearing, 1e-9)
	assert.False(t, a.Coordinates.BearingMagnetic)
	assert.InDelta(t, 655.26, a.Coordinates.Altitude, 1e-9)

	c := records[1]
	assert.Equal(t, "c.jpg", c.Filename)
	require.NotNil(t, c.Coordinates.Bearing)
	assert.InDelta(t, 10.0, *c.Coordinates.Bearing, 1e-9)
	assert.True(t, c.Coordinates.BearingMagnetic)
}

func TestDocument(t *testing.T) {
	d, err := NewDocument(ThumbnailOptions{MaxSize: 200, Quality: 60}, utils.Discard())
	require.NoError(t, err)

	entries := sampleEntries(t)
	for i := 0; i < 5; i++ {
		e := entries[0]
		e.Ordinal = len(entries) + i + 1
		entries = append(entries, e)
	}

	path := filepath.Join(t.TempDir(), "obra.pdf")
	emit(t, d, entries, path)
	assert.Equal(t, 8, d.count)
	assert.Equal(t, 2, d.pdf.PageCount())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}

func TestDocumentCaptionStaysInColumn(t *testing.T) {
	d, err := NewDocument(DefaultThumbnails, utils.Discard())
	require.NoError(t, err)
	defer d.Close()

	long := strings.Repeat("Grieta en el encuentro del forjado con la fachada ", 8)
	require.NoError(t, d.Add(Entry{Ordinal: 1, Record: photo.PhotoRecord{Filename: "a.jpg", Description: "Portal"}}))
	require.NoError(t, d.Add(Entry{Ordinal: 2, Record: photo.PhotoRecord{Filename: "b.jpg", Description: long}}))

	cellW, cellH := d.cellSize()
	left, _, right, _ := d.pdf.GetMargins()
	assert.Equal(t, pageMargin, left)
	assert.Equal(t, pageMargin, right)
	// The cursor ends inside the right column, above the next row.
	assert.GreaterOrEqual(t, d.pdf.GetX(), pageMargin+cellW+cellPadding)
	assert.LessOrEqual(t, d.pdf.GetY()+captionLine, pageMargin+cellH-cellPadding+1e-6)
}

func TestDocumentFitCaption(t *testing.T) {
	d, err := NewDocument(DefaultThumbnails, utils.Discard())
	require.NoError(t, err)
	defer d.Close()
	d.pdf.AddPage()
	d.pdf.SetFont("Helvetica", "B", captionFont)

	assert.Equal(t, "Portal", d.fitCaption("Figura 1.- ", "Portal", 80, 3))

	long := strings.Repeat("palabra ", 100)
	got := d.fitCaption("Figura 1.- ", long, 80, 3)
	assert.True(t, strings.HasSuffix(got, ellipsis))
	assert.Less(t, len(got), len(long))
	assert.LessOrEqual(t, d.lineCount("Figura 1.- "+got, 80), 3)

	assert.Equal(t, 1, d.lineCount("corto", 80))
	assert.Equal(t, 3, d.lineCount(strings.Repeat("x", 100), 80))
}

// Captions read "Figura <id>.- <description>" (Figure <id>.- ...) and an
// empty description prints "[SIN DESCRIPCIÓN]" in red.
func TestDocumentCaptionText(t *testing.T) {
	d, err := NewDocument(DefaultThumbnails, utils.Discard())
	require.NoError(t, err)
	d.pdf.SetCompression(false)

	path := filepath.Join(t.TempDir(), "captions.pdf")
	emit(t, d, []Entry{
		{Ordinal: 1, Record: photo.PhotoRecord{Filename: "a.jpg", SequenceID: ptr("17"), Description: "Portal"}},
		{Ordinal: 2, Record: photo.PhotoRecord{Filename: "b.jpg"}},
	}, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "(Figura 17.- )")
	assert.Contains(t, text, "(Portal)")
	assert.Contains(t, text, "(Figura 2.- )")
	assert.Contains(t, text, "[SIN DESCRIPCI")
	assert.Contains(t, text, "0.784 0.000 0.000 rg")
}

func TestDocumentEmpty(t *testing.T) {
	d, err := NewDocument(DefaultThumbnails, utils.Discard())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "empty.pdf")
	emit(t, d, nil, path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obra.parquet")
	emit(t, NewParquet(), sampleEntries(t), path)

	rows, err := parquet.ReadFile[PhotoRow](path)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "1", rows[0].ID)
	require.NotNil(t, rows[0].Altitude)
	assert.Equal(t, 655.26, *rows[0].Altitude)
	assert.Equal(t, "2024-05-01 10:30:00", rows[0].Timestamp)

	assert.Equal(t, "17", rows[1].ID)
	assert.Nil(t, rows[1].Latitude)
	assert.Nil(t, rows[1].Bearing)

	require.NotNil(t, rows[2].Bearing)
	assert.True(t, rows[2].Magnetic)
}

func TestThumbStageUniqueNames(t *testing.T) {
	dir := t.TempDir()
	src := phototest.JPEG(t, dir, "IMG.jpg", nil)
	other := phototest.PNG(t, filepath.Join(dir, "sub"), "IMG.png", nil)

	s, err := newThumbStage(ThumbnailOptions{})
	require.NoError(t, err)
	defer s.cleanup()

	_, first, err := s.add(src)
	require.NoError(t, err)
	_, second, err := s.add(other)
	require.NoError(t, err)
	assert.Equal(t, "thumb_IMG.jpg", first)
	assert.Equal(t, "thumb_IMG_1.jpg", second)

	_, _, err = s.add(filepath.Join(dir, "missing.jpg"))
	assert.Error(t, err)
}
