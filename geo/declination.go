package geo

import (
	"fmt"
	"math"
	"time"
)

// Declinator returns the magnetic declination, in degrees east of true north,
// at a position and date. Implementations must be safe for concurrent use.
type Declinator interface {
	Declination(lat, lon float64, at time.Time) (float64, error)
}

// FixedDeclination applies one configured declination everywhere. It suits
// surveys confined to a small area, where the value is read off a chart once.
type FixedDeclination float64

func (f FixedDeclination) Declination(lat, lon float64, _ time.Time) (float64, error) {
	if math.Abs(lat) > 90 || math.Abs(lon) > 180 {
		return 0, fmt.Errorf("position out of range: %f, %f", lat, lon)
	}
	return float64(f), nil
}

// TrueBearing corrects a magnetic bearing. ok is false when no correction
// was applied, in which case the raw bearing is returned unchanged.
func TrueBearing(d Declinator, magnetic, lat, lon float64, at *time.Time) (bearing float64, ok bool, err error) {
	if d == nil || at == nil {
		return magnetic, false, nil
	}
	decl, err := d.Declination(lat, lon, *at)
	if err != nil {
		return magnetic, false, err
	}
	return NormalizeBearing(magnetic + decl), true, nil
}
