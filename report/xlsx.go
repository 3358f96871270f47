package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const listingSheet = "Listado de Fotos"

var (
	listingHeaders = []interface{}{"Nº", "Archivo", "DESCRIPCIÓN", "Fecha", "Latitud", "Longitud", "Altitud [m]", "Rumbo [°]"}
	listingWidths  = []struct {
		col   string
		width float64
	}{
		{"A", 3}, {"B", 8}, {"C", 30}, {"D", 50}, {"E", 22},
		{"F", 15}, {"G", 15}, {"H", 12}, {"I", 10},
	}
)

// XLSX writes the photo listing workbook. Data starts in column B so that
// column A stays as a narrow margin.
type XLSX struct {
	f      *excelize.File
	sheet  string
	header int
	cell   int
}

func NewXLSX() (*XLSX, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), listingSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, Border: border})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	cell, err := f.NewStyle(&excelize.Style{Border: border})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create cell style: %w", err)
	}

	x := &XLSX{f: f, sheet: listingSheet, header: header, cell: cell}
	if err := x.writeHeader(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return x, nil
}

func (x *XLSX) writeHeader() error {
	row := listingHeaders
	if err := x.f.SetSheetRow(x.sheet, "B1", &row); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	if err := x.f.SetCellStyle(x.sheet, "B1", "I1", x.header); err != nil {
		return fmt.Errorf("failed to style headers: %w", err)
	}
	for _, w := range listingWidths {
		if err := x.f.SetColWidth(x.sheet, w.col, w.col, w.width); err != nil {
			return fmt.Errorf("failed to set width of column %s: %w", w.col, err)
		}
	}
	return nil
}

// Add writes e on row Ordinal+1, below the header.
func (x *XLSX) Add(e Entry) error {
	rowNum := e.Ordinal + 1
	rec := e.Record

	var id interface{} = e.Ordinal
	if rec.SequenceID != nil && *rec.SequenceID != "" {
		id = *rec.SequenceID
	}
	var lat, lon, alt, bearing interface{} = "", "", "", ""
	if rec.HasGPS() {
		lat, lon, alt = rec.Coordinates.Latitude, rec.Coordinates.Longitude, e.Altitude
	}
	if b := formatBearing(rec.Coordinates); b != "" {
		if rec.Coordinates.BearingMagnetic {
			bearing = b
		} else {
			bearing = *rec.Coordinates.Bearing
		}
	}

	row := []interface{}{id, rec.Filename, rec.Description, formatTime(rec.Timestamp), lat, lon, alt, bearing}
	first, err := excelize.CoordinatesToCellName(2, rowNum)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(2+len(row)-1, rowNum)
	if err != nil {
		return err
	}
	if err := x.f.SetSheetRow(x.sheet, first, &row); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}
	return x.f.SetCellStyle(x.sheet, first, last, x.cell)
}

func (x *XLSX) Save(path string) error {
	return wrapSave("xlsx", path, x.f.SaveAs(path))
}

func (x *XLSX) Close() error {
	return x.f.Close()
}
