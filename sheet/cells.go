package sheet

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var formulaPrefixes = []string{"=", "@", "\t", "\r"}

// Sanitize neutralises text that a spreadsheet application would evaluate
// as a formula by prefixing a quote. The second result reports whether the
// value was changed. "+" and "-" are allowed so negative numbers stored as
// text survive.
func Sanitize(value string) (string, bool) {
	trimmed := strings.TrimLeft(value, " ")
	for _, p := range formulaPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return "'" + value, true
		}
	}
	return value, false
}

// ParseNumber reads a number that may use a comma as decimal separator.
func ParseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	return strconv.ParseFloat(s, 64)
}

// magneticSuffix marks a bearing the listing could not refer to true north.
const magneticSuffix = "(M)"

// ParseBearing reads a bearing cell. A trailing "(M)" marks the value as
// magnetic and is reported through the second result.
func ParseBearing(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	magnetic := false
	if strings.HasSuffix(s, magneticSuffix) || strings.HasSuffix(s, strings.ToLower(magneticSuffix)) {
		magnetic = true
		s = s[:len(s)-len(magneticSuffix)]
	}
	v, err := ParseNumber(s)
	if err != nil {
		return 0, false, err
	}
	return v, magnetic, nil
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// ParseDate tries the supported text layouts in order and then, when raw is
// a number, reads it as an Excel serial date. Unparsable input yields nil.
func ParseDate(text, raw string, date1904 bool) *time.Time {
	text = strings.TrimSpace(text)
	if text == "" && strings.TrimSpace(raw) == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, text, time.Local); err == nil {
			return &t
		}
	}
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || serial <= 0 {
		return nil
	}
	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return nil
	}
	// Serial dates carry no zone; keep the wall clock in local time.
	local := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.Local)
	return &local
}
