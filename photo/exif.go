package photo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
	"github.com/sirupsen/logrus"

	"geosnap/geo"
)

// ErrUnreadableImage is returned by Extract when the file cannot be opened or
// is not an image at all. Images that merely lack metadata are not errors.
var ErrUnreadableImage = errors.New("unreadable image")

const exifTimeLayout = "2006:01:02 15:04:05"

func init() {
	// Register manufacturer-specific note parsers so some vendor fields decode correctly.
	exif.RegisterParsers(mknote.All...)
}

// Extractor reads capture time, position and camera bearing from image
// headers. It holds no mutable state and may be shared between goroutines.
type Extractor struct {
	declinator geo.Declinator
	log        logrus.FieldLogger
}

// NewExtractor returns an Extractor. declinator may be nil, in which case
// magnetic bearings are reported uncorrected.
func NewExtractor(declinator geo.Declinator, log logrus.FieldLogger) *Extractor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Extractor{declinator: declinator, log: log}
}

// Extract returns the record for the image at path. A well-formed image
// without metadata yields a record with no coordinates and no timestamp.
func (e *Extractor) Extract(path string) (PhotoRecord, error) {
	rec := PhotoRecord{Filename: filepath.Base(path), ResolvedPath: path}
	log := e.log.WithField("file", rec.Filename)

	f, err := os.Open(path)
	if err != nil {
		return rec, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	defer f.Close()

	head := make([]byte, 16)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return rec, fmt.Errorf("%w: %s: %v", ErrUnreadableImage, rec.Filename, err)
	}
	kind := sniffContainer(head[:n])
	if kind == containerUnknown {
		return rec, fmt.Errorf("%w: %s is not a jpeg, png or heif file", ErrUnreadableImage, rec.Filename)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return rec, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}

	x, err := readExif(kind, f)
	if err != nil {
		log.WithError(err).Debug("no exif data")
		return rec, nil
	}

	rec.Timestamp = exifTime(x)

	coords, err := gpsPosition(x)
	if err != nil {
		log.WithError(err).Debug("no usable gps block")
		return rec, nil
	}
	e.applyBearing(x, coords, rec.Timestamp, log)
	rec.Coordinates = coords
	return rec, nil
}

// readExif decodes the tag dictionary. Malformed headers can make the decoder
// panic, which is reported as an ordinary error.
func readExif(kind container, r io.Reader) (x *exif.Exif, err error) {
	defer func() {
		if p := recover(); p != nil {
			x, err = nil, fmt.Errorf("exif decoder panic: %v", p)
		}
	}()

	if kind == containerJPEG {
		return exif.Decode(r)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	block := embeddedTIFF(kind, data)
	if block == nil {
		return nil, fmt.Errorf("no exif block in %s container", kind)
	}
	return exif.Decode(bytes.NewReader(block))
}

func exifTime(x *exif.Exif) *time.Time {
	for _, name := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		tag, err := x.Get(name)
		if err != nil {
			continue
		}
		s, err := tag.StringVal()
		if err != nil {
			return nil
		}
		s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
		if s == "" {
			continue
		}
		t, err := time.ParseInLocation(exifTimeLayout, s, time.Local)
		if err != nil {
			return nil
		}
		return &t
	}
	return nil
}

var errNullIsland = errors.New("gps position is exactly (0, 0)")

func gpsPosition(x *exif.Exif) (*GeoCoordinates, error) {
	lat, err := dms(x, exif.GPSLatitude, exif.GPSLatitudeRef)
	if err != nil {
		return nil, err
	}
	lon, err := dms(x, exif.GPSLongitude, exif.GPSLongitudeRef)
	if err != nil {
		return nil, err
	}
	// A zero pair is what many receivers write without a fix.
	if lat == 0 && lon == 0 {
		return nil, errNullIsland
	}
	return &GeoCoordinates{Latitude: lat, Longitude: lon, Altitude: altitude(x)}, nil
}

func dms(x *exif.Exif, value, ref exif.FieldName) (float64, error) {
	tag, err := x.Get(value)
	if err != nil {
		return 0, err
	}
	if tag.Count < 3 {
		return 0, fmt.Errorf("%s has %d components, want 3", value, tag.Count)
	}
	var parts [3]float64
	for i := range parts {
		num, den, err := tag.Rat2(i)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", value, err)
		}
		if den == 0 {
			return 0, fmt.Errorf("%s: zero denominator", value)
		}
		parts[i] = float64(num) / float64(den)
	}

	refTag, err := x.Get(ref)
	if err != nil {
		return 0, err
	}
	hemisphere, err := refTag.StringVal()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", ref, err)
	}
	hemisphere = strings.TrimSpace(strings.TrimRight(hemisphere, "\x00"))
	if hemisphere == "" {
		return 0, fmt.Errorf("%s is empty", ref)
	}
	return geo.DecimalDegrees(parts[0], parts[1], parts[2], hemisphere), nil
}

func altitude(x *exif.Exif) float64 {
	tag, err := x.Get(exif.GPSAltitude)
	if err != nil {
		return 0
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return 0
	}
	alt := float64(num) / float64(den)
	if ref, err := x.Get(exif.GPSAltitudeRef); err == nil {
		if v, err := ref.Int(0); err == nil && v == 1 {
			alt = -alt
		}
	}
	return alt
}

func (e *Extractor) applyBearing(x *exif.Exif, c *GeoCoordinates, at *time.Time, log logrus.FieldLogger) {
	tag, err := x.Get(exif.GPSImgDirection)
	if err != nil {
		return
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		log.Debug("ignoring malformed image direction")
		return
	}
	bearing := geo.NormalizeBearing(float64(num) / float64(den))

	ref := "T"
	if t, err := x.Get(exif.GPSImgDirectionRef); err == nil {
		if s, err := t.StringVal(); err == nil {
			ref = strings.ToUpper(strings.TrimSpace(strings.TrimRight(s, "\x00")))
		}
	}

	if ref == "M" {
		corrected, ok, err := geo.TrueBearing(e.declinator, bearing, c.Latitude, c.Longitude, at)
		if err != nil {
			log.WithError(err).Warn("declination lookup failed, keeping magnetic bearing")
		}
		bearing = corrected
		c.BearingMagnetic = !ok
	}
	c.Bearing = &bearing
}
