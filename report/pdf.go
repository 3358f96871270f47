package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/sirupsen/logrus"
)

const (
	pageMargin    = 15.0
	gridColumns   = 2
	gridRows      = 3
	cellPadding   = 4.0
	captionHeight = 12.0
	captionFont   = 9.0
	captionLine   = 4.0

	missingDescription = "[SIN DESCRIPCIÓN]"
	ellipsis           = "..."
)

// Document lays photos out on A4 pages, two columns by three rows, each with
// a "Figura <id>.- <description>" caption under the picture.
type Document struct {
	pdf   *fpdf.Fpdf
	tr    func(string) string
	log   logrus.FieldLogger
	stage *thumbStage
	count int
}

func NewDocument(thumbs ThumbnailOptions, log logrus.FieldLogger) (*Document, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	stage, err := newThumbStage(thumbs)
	if err != nil {
		return nil, err
	}
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)
	return &Document{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		log:   log,
		stage: stage,
	}, nil
}

func (d *Document) cellSize() (float64, float64) {
	pageW, pageH := d.pdf.GetPageSize()
	return (pageW - 2*pageMargin) / gridColumns, (pageH - 2*pageMargin) / gridRows
}

func (d *Document) Add(e Entry) error {
	slot := d.count % (gridColumns * gridRows)
	if slot == 0 {
		d.pdf.AddPage()
	}
	d.count++

	cellW, cellH := d.cellSize()
	x := pageMargin + float64(slot%gridColumns)*cellW
	y := pageMargin + float64(slot/gridColumns)*cellH

	boxW := cellW - 2*cellPadding
	boxH := cellH - 2*cellPadding - captionHeight
	if e.Record.ResolvedPath != "" {
		if err := d.placeImage(e.Record.ResolvedPath, x+cellPadding, y+cellPadding, boxW, boxH); err != nil {
			d.log.WithField("file", e.Record.Filename).WithError(err).Warn("figure without picture")
		}
	}

	d.caption(e, x+cellPadding, y+cellH-cellPadding-captionHeight, boxW)
	return d.pdf.Error()
}

// caption writes the figure label and description inside the column box at
// (x, y), wrapping at the box edges and cutting the description to the lines
// that fit in captionHeight.
func (d *Document) caption(e Entry, x, y, w float64) {
	pageW, _ := d.pdf.GetPageSize()
	d.pdf.SetLeftMargin(x)
	d.pdf.SetRightMargin(pageW - x - w)
	defer d.pdf.SetMargins(pageMargin, pageMargin, pageMargin)

	label := fmt.Sprintf("Figura %s.- ", e.DisplayID())
	desc := e.Record.Description
	missing := desc == ""
	if missing {
		desc = missingDescription
	}
	d.pdf.SetFont("Helvetica", "B", captionFont)
	// Write keeps a cell margin on both sides of every line.
	textW := w - 2*d.pdf.GetCellMargin()
	desc = d.fitCaption(label, desc, textW, int(captionHeight/captionLine))

	d.pdf.SetXY(x, y)
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.Write(captionLine, d.tr(label))

	d.pdf.SetFont("Helvetica", "", captionFont)
	if missing {
		d.pdf.SetTextColor(200, 0, 0)
	}
	d.pdf.Write(captionLine, d.tr(desc))
	d.pdf.SetTextColor(0, 0, 0)
}

// fitCaption shortens desc until label+desc wraps to at most maxLines lines
// of width w in the current font.
func (d *Document) fitCaption(label, desc string, w float64, maxLines int) string {
	if d.lineCount(label+desc, w) <= maxLines {
		return desc
	}
	runes := []rune(desc)
	for n := len(runes) - 1; n > 0; n-- {
		cut := strings.TrimRight(string(runes[:n]), " ") + ellipsis
		if d.lineCount(label+cut, w) <= maxLines {
			return cut
		}
	}
	return ellipsis
}

// lineCount estimates how many lines Write needs for text in a box of
// width w, breaking at spaces and splitting words wider than the box.
func (d *Document) lineCount(text string, w float64) int {
	space := d.pdf.GetStringWidth(" ")
	lines, used := 1, 0.0
	for _, word := range strings.Fields(text) {
		ww := d.pdf.GetStringWidth(d.tr(word))
		if ww > w {
			if used > 0 {
				lines++
			}
			lines += int(math.Ceil(ww/w)) - 1
			used = math.Mod(ww, w)
			continue
		}
		switch {
		case used == 0:
			used = ww
		case used+space+ww <= w:
			used += space + ww
		default:
			lines++
			used = ww
		}
	}
	return lines
}

// placeImage draws the thumbnail of src centered in the given box, keeping
// its aspect ratio.
func (d *Document) placeImage(src string, x, y, w, h float64) error {
	staged, name, err := d.stage.add(src)
	if err != nil {
		return err
	}
	opts := fpdf.ImageOptions{ImageType: "JPG"}
	info := d.pdf.RegisterImageOptions(staged, opts)
	if err := d.pdf.Error(); err != nil {
		d.pdf.ClearError()
		return fmt.Errorf("failed to register %s: %w", name, err)
	}

	iw, ih := info.Width(), info.Height()
	if iw <= 0 || ih <= 0 {
		return fmt.Errorf("image %s has no size", name)
	}
	scale := w / iw
	if ih*scale > h {
		scale = h / ih
	}
	dw, dh := iw*scale, ih*scale
	d.pdf.ImageOptions(staged, x+(w-dw)/2, y+(h-dh)/2, dw, dh, false, opts, 0, "")
	return nil
}

func (d *Document) Save(path string) error {
	if d.count == 0 {
		d.pdf.AddPage()
	}
	return wrapSave("pdf", path, d.pdf.OutputFileAndClose(path))
}

func (d *Document) Close() error {
	return d.stage.cleanup()
}
