package photo

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"strings"
)

// Extensions lists the file extensions picked up by scans, lower case.
var Extensions = []string{".jpg", ".jpeg", ".png", ".heic", ".heif"}

// IsImageExt reports whether name has one of the supported extensions,
// ignoring case.
func IsImageExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

type container int

const (
	containerUnknown container = iota
	containerJPEG
	containerPNG
	containerHEIF
)

func (c container) String() string {
	switch c {
	case containerJPEG:
		return "jpeg"
	case containerPNG:
		return "png"
	case containerHEIF:
		return "heif"
	}
	return "unknown"
}

var (
	pngMagic    = []byte("\x89PNG\r\n\x1a\n")
	tiffLE      = []byte("II*\x00")
	tiffBE      = []byte("MM\x00*")
	exifMarker  = []byte("Exif\x00\x00")
	pngExifType = []byte("eXIf")
	heifBrands  = []string{"heic", "heix", "hevc", "hevx", "heim", "heis", "mif1", "msf1", "avif"}
)

// sniffContainer identifies the image container from its leading bytes.
func sniffContainer(head []byte) container {
	switch {
	case len(head) >= 3 && head[0] == 0xFF && head[1] == 0xD8 && head[2] == 0xFF:
		return containerJPEG
	case bytes.HasPrefix(head, pngMagic):
		return containerPNG
	case len(head) >= 12 && string(head[4:8]) == "ftyp":
		brand := string(head[8:12])
		for _, b := range heifBrands {
			if brand == b {
				return containerHEIF
			}
		}
	}
	return containerUnknown
}

// embeddedTIFF finds the TIFF-structured EXIF block inside a PNG or HEIF
// file. JPEG is handled by the EXIF decoder directly.
func embeddedTIFF(c container, data []byte) []byte {
	switch c {
	case containerPNG:
		i := bytes.Index(data, pngExifType)
		if i < 4 {
			return nil
		}
		n := int(binary.BigEndian.Uint32(data[i-4 : i]))
		start := i + len(pngExifType)
		if n <= 0 || start+n > len(data) {
			return nil
		}
		payload := bytes.TrimPrefix(data[start:start+n], exifMarker)
		if isTIFF(payload) {
			return payload
		}
	case containerHEIF:
		for off := 0; off < len(data); {
			i := bytes.Index(data[off:], exifMarker)
			if i < 0 {
				return nil
			}
			start := off + i + len(exifMarker)
			if isTIFF(data[start:]) {
				return data[start:]
			}
			off = start
		}
	}
	return nil
}

func isTIFF(b []byte) bool {
	return bytes.HasPrefix(b, tiffLE) || bytes.HasPrefix(b, tiffBE)
}
