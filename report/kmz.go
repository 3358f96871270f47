package report

import (
	"archive/zip"
	"fmt"
	"html"
	"image/color"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/twpayne/go-kml/v3"

	"geosnap/geo"
)

const cameraIcon = "http://maps.google.com/mapfiles/kml/pal4/icon46.png"

var (
	arrowColor  = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	cameraColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// KMZOptions configures the overlay.
type KMZOptions struct {
	Name       string
	Thumbnails ThumbnailOptions
	Arrow      geo.Arrow
	ArrowWidth float64
}

type sharedStyle interface {
	kml.Element
	URL() string
}

type stagedFile struct {
	path    string
	archive string
}

// KMZ writes a zipped KML overlay: one placemark per entry with an embedded
// thumbnail, and a bearing arrow when the record has a bearing.
type KMZ struct {
	opts       KMZOptions
	log        logrus.FieldLogger
	stage      *thumbStage
	camera     sharedStyle
	arrow      sharedStyle
	placemarks []kml.Element
	files      []stagedFile
}

func NewKMZ(opts KMZOptions, log logrus.FieldLogger) (*KMZ, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.Arrow == (geo.Arrow{}) {
		opts.Arrow = geo.DefaultArrow
	}
	if opts.ArrowWidth <= 0 {
		opts.ArrowWidth = 4
	}
	stage, err := newThumbStage(opts.Thumbnails)
	if err != nil {
		return nil, err
	}

	iconStyle := func() kml.Element {
		return kml.IconStyle(
			kml.Color(cameraColor),
			kml.Icon(kml.Href(cameraIcon)),
		)
	}
	return &KMZ{
		opts:   opts,
		log:    log,
		stage:  stage,
		camera: kml.SharedStyle("camera", iconStyle()),
		arrow: kml.SharedStyle("cameraWithBearing",
			iconStyle(),
			kml.LineStyle(kml.Color(arrowColor), kml.Width(opts.ArrowWidth)),
		),
	}, nil
}

func (k *KMZ) Add(e Entry) error {
	rec := e.Record
	var thumb string
	if rec.ResolvedPath != "" {
		staged, name, err := k.stage.add(rec.ResolvedPath)
		if err != nil {
			k.log.WithField("file", rec.Filename).WithError(err).Warn("placemark without thumbnail")
		} else {
			thumb = "files/" + name
			k.files = append(k.files, stagedFile{path: staged, archive: thumb})
		}
	}

	children := []kml.Element{
		kml.Name("Foto Nº " + e.DisplayID()),
		kml.Description(placemarkHTML(e, thumb)),
	}

	c := rec.Coordinates
	switch {
	case !rec.HasGPS():
		// No geometry: the placemark is listed but not drawn.
		children = append(children, kml.StyleURL(k.camera.URL()))
	case c.Bearing != nil:
		pts := geo.ArrowPolyline(c.Latitude, c.Longitude, *c.Bearing, k.opts.Arrow)
		line := make([]kml.Coordinate, len(pts))
		for i, p := range pts {
			line[i] = kml.Coordinate{Lon: p.Lon, Lat: p.Lat}
		}
		children = append(children,
			kml.StyleURL(k.arrow.URL()),
			kml.MultiGeometry(
				kml.Point(kml.Coordinates(kml.Coordinate{Lon: c.Longitude, Lat: c.Latitude})),
				kml.LineString(kml.Coordinates(line...)),
			),
		)
	default:
		children = append(children,
			kml.StyleURL(k.camera.URL()),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: c.Longitude, Lat: c.Latitude})),
		)
	}

	k.placemarks = append(k.placemarks, kml.Placemark(children...))
	return nil
}

func (k *KMZ) Save(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return wrapSave("kmz", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = wrapSave("kmz", path, cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	zw := zip.NewWriter(f)
	w, err := zw.Create("doc.kml")
	if err != nil {
		return wrapSave("kmz", path, err)
	}
	if err := kml.KML(k.document()).WriteIndent(w, "", "  "); err != nil {
		return wrapSave("kmz", path, err)
	}
	for _, sf := range k.files {
		if err := copyInto(zw, sf); err != nil {
			return wrapSave("kmz", path, err)
		}
	}
	return wrapSave("kmz", path, zw.Close())
}

func (k *KMZ) Close() error {
	return k.stage.cleanup()
}

func (k *KMZ) document() kml.Element {
	children := []kml.Element{k.camera, k.arrow}
	if k.opts.Name != "" {
		children = append([]kml.Element{kml.Name(k.opts.Name)}, children...)
	}
	children = append(children, k.placemarks...)
	return kml.Document(children...)
}

func copyInto(zw *zip.Writer, sf stagedFile) error {
	src, err := os.Open(sf.path)
	if err != nil {
		return err
	}
	defer src.Close()
	w, err := zw.Create(sf.archive)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

// placemarkHTML renders the balloon: the thumbnail, then the attribute table.
func placemarkHTML(e Entry, thumb string) string {
	lat, lon, alt := coordinateCells(e)
	rows := [][2]string{
		{"Nº", e.DisplayID()},
		{"Archivo", e.Record.Filename},
		{"DESCRIPCIÓN", e.Record.Description},
		{"Fecha", formatTime(e.Record.Timestamp)},
		{"Latitud", lat},
		{"Longitud", lon},
		{"Altitud [m]", alt},
		{"Rumbo [°]", formatBearing(e.Record.Coordinates)},
	}

	var b strings.Builder
	if thumb != "" {
		fmt.Fprintf(&b, `<img src="%s" style="max-width:400px; display:block; margin-bottom:10px;"/>`, html.EscapeString(thumb))
	}
	b.WriteString(`<table border="1" style="border-collapse: collapse; width: 100%;">`)
	for _, r := range rows {
		fmt.Fprintf(&b, "<tr><td><b>%s</b></td><td>%s</td></tr>", html.EscapeString(r[0]), html.EscapeString(r[1]))
	}
	b.WriteString("</table>")
	return b.String()
}
