// Package phototest writes small image fixtures with hand-built EXIF blocks.
package phototest

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// Rational is a TIFF RATIONAL, numerator over denominator.
type Rational [2]uint32

// GPS describes the GPS IFD written into a fixture.
type GPS struct {
	LatRef       string
	Lat          [3]Rational
	LonRef       string
	Lon          [3]Rational
	Alt          *Rational
	AltRef       byte
	Direction    *Rational
	DirectionRef string
}

// EXIF describes the tags written into a fixture. Empty fields are omitted.
type EXIF struct {
	DateTimeOriginal string
	DateTime         string
	GPS              *GPS
}

// DMS splits an unsigned decimal angle into degree, minute and
// milli-second rationals.
func DMS(decimal float64) [3]Rational {
	decimal = math.Abs(decimal)
	d := math.Floor(decimal)
	m := math.Floor((decimal - d) * 60)
	s := (decimal - d - m/60) * 3600
	return [3]Rational{
		{uint32(d), 1},
		{uint32(m), 1},
		{uint32(math.Round(s * 1000)), 1000},
	}
}

// Position builds a GPS block for a signed decimal position.
func Position(lat, lon float64) *GPS {
	g := &GPS{LatRef: "N", LonRef: "E", Lat: DMS(lat), Lon: DMS(lon)}
	if lat < 0 {
		g.LatRef = "S"
	}
	if lon < 0 {
		g.LonRef = "W"
	}
	return g
}

const (
	typeByte     = 1
	typeASCII    = 2
	typeLong     = 4
	typeRational = 5
)

type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

var order = binary.BigEndian

func asciiEntry(tag uint16, s string) entry {
	b := append([]byte(s), 0)
	return entry{tag: tag, typ: typeASCII, count: uint32(len(b)), data: b}
}

func rationalEntry(tag uint16, rs ...Rational) entry {
	b := make([]byte, 0, 8*len(rs))
	for _, r := range rs {
		b = order.AppendUint32(b, r[0])
		b = order.AppendUint32(b, r[1])
	}
	return entry{tag: tag, typ: typeRational, count: uint32(len(rs)), data: b}
}

func longEntry(tag uint16, v uint32) entry {
	return entry{tag: tag, typ: typeLong, count: 1, data: order.AppendUint32(nil, v)}
}

// encodeIFD lays out one IFD at offset start, followed by its out-of-line values.
func encodeIFD(start uint32, entries []entry) []byte {
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })
	size := uint32(2 + 12*len(entries) + 4)
	var ifd, area []byte
	ifd = order.AppendUint16(ifd, uint16(len(entries)))
	for _, e := range entries {
		ifd = order.AppendUint16(ifd, e.tag)
		ifd = order.AppendUint16(ifd, e.typ)
		ifd = order.AppendUint32(ifd, e.count)
		if len(e.data) <= 4 {
			v := make([]byte, 4)
			copy(v, e.data)
			ifd = append(ifd, v...)
			continue
		}
		ifd = order.AppendUint32(ifd, start+size+uint32(len(area)))
		area = append(area, e.data...)
		if len(area)%2 == 1 {
			area = append(area, 0)
		}
	}
	ifd = order.AppendUint32(ifd, 0)
	return append(ifd, area...)
}

// TIFF returns a big-endian TIFF structure holding the requested tags.
func TIFF(x EXIF) []byte {
	var ifd0, exifIFD, gpsIFD []entry
	if x.DateTime != "" {
		ifd0 = append(ifd0, asciiEntry(0x0132, x.DateTime))
	}
	if x.DateTimeOriginal != "" {
		exifIFD = append(exifIFD, asciiEntry(0x9003, x.DateTimeOriginal))
	}
	if g := x.GPS; g != nil {
		gpsIFD = append(gpsIFD,
			asciiEntry(0x0001, g.LatRef),
			rationalEntry(0x0002, g.Lat[:]...),
			asciiEntry(0x0003, g.LonRef),
			rationalEntry(0x0004, g.Lon[:]...),
		)
		if g.Alt != nil {
			gpsIFD = append(gpsIFD,
				entry{tag: 0x0005, typ: typeByte, count: 1, data: []byte{g.AltRef}},
				rationalEntry(0x0006, *g.Alt),
			)
		}
		if g.Direction != nil {
			if g.DirectionRef != "" {
				gpsIFD = append(gpsIFD, asciiEntry(0x0010, g.DirectionRef))
			}
			gpsIFD = append(gpsIFD, rationalEntry(0x0011, *g.Direction))
		}
	}

	// Pointer values are inline LONGs, so the IFD0 size is known before
	// the sub-IFD offsets are.
	withPointers := func(exifAt, gpsAt uint32) []entry {
		out := append([]entry(nil), ifd0...)
		if len(exifIFD) > 0 {
			out = append(out, longEntry(0x8769, exifAt))
		}
		if len(gpsIFD) > 0 {
			out = append(out, longEntry(0x8825, gpsAt))
		}
		return out
	}
	const headerLen = 8
	first := encodeIFD(headerLen, withPointers(0, 0))
	exifAt := uint32(headerLen + len(first))
	var exifBytes []byte
	if len(exifIFD) > 0 {
		exifBytes = encodeIFD(exifAt, exifIFD)
	}
	gpsAt := exifAt + uint32(len(exifBytes))
	var gpsBytes []byte
	if len(gpsIFD) > 0 {
		gpsBytes = encodeIFD(gpsAt, gpsIFD)
	}

	out := []byte("MM\x00\x2a")
	out = order.AppendUint32(out, headerLen)
	out = append(out, encodeIFD(headerLen, withPointers(exifAt, gpsAt))...)
	out = append(out, exifBytes...)
	return append(out, gpsBytes...)
}

func sample() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 20), B: 128, A: 255})
		}
	}
	return img
}

// JPEG writes a small decodable JPEG to dir/name. When x is non-nil an APP1
// EXIF segment is inserted right after the SOI marker.
func JPEG(t testing.TB, dir, name string, x *EXIF) string {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, sample(), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	data := buf.Bytes()
	if x != nil {
		payload := append([]byte("Exif\x00\x00"), TIFF(*x)...)
		seg := []byte{0xFF, 0xE1}
		seg = order.AppendUint16(seg, uint16(len(payload)+2))
		seg = append(seg, payload...)
		out := append([]byte{0xFF, 0xD8}, seg...)
		data = append(out, data[2:]...)
	}
	return write(t, dir, name, data)
}

// PNG writes a small PNG to dir/name, with an eXIf chunk when x is non-nil.
func PNG(t testing.TB, dir, name string, x *EXIF) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, sample()); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	data := buf.Bytes()
	if x != nil {
		// signature (8) + IHDR chunk (4 length + 4 type + 13 data + 4 crc)
		const afterIHDR = 33
		body := TIFF(*x)
		chunk := order.AppendUint32(nil, uint32(len(body)))
		typed := append([]byte("eXIf"), body...)
		chunk = append(chunk, typed...)
		chunk = order.AppendUint32(chunk, crc32.ChecksumIEEE(typed))
		out := append([]byte(nil), data[:afterIHDR]...)
		out = append(out, chunk...)
		data = append(out, data[afterIHDR:]...)
	}
	return write(t, dir, name, data)
}

// MinimalJPEG writes SOI, an empty APP0 and EOI: a valid JPEG header with
// no metadata and no decodable pixels.
func MinimalJPEG(t testing.TB, dir, name string) string {
	t.Helper()
	return write(t, dir, name, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0xFF, 0xD9})
}

func write(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
