// Package geotag converts decimal-degree coordinates into the rational
// degree/minute/second form used by EXIF GPS tags.
package geotag

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EXIF tag keys set on the capture device before each capture.
const (
	TagLatitude     = "GPS.GPSLatitude"
	TagLatitudeRef  = "GPS.GPSLatitudeRef"
	TagLongitude    = "GPS.GPSLongitude"
	TagLongitudeRef = "GPS.GPSLongitudeRef"
)

// Point is a latitude/longitude pair in signed decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate reports whether the point lies in the valid coordinate ranges.
func (p Point) Validate() error {
	if math.IsNaN(p.Latitude) || p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", p.Latitude)
	}
	if math.IsNaN(p.Longitude) || p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", p.Longitude)
	}
	return nil
}

// GeoTag holds the EXIF representation of a Point.
type GeoTag struct {
	Latitude     string
	LatitudeRef  string
	Longitude    string
	LongitudeRef string
}

// New converts both axes of p.
func New(p Point) GeoTag {
	south, lat := ToExifAngle(p.Latitude)
	west, lon := ToExifAngle(p.Longitude)

	tag := GeoTag{Latitude: lat, Longitude: lon, LatitudeRef: "N", LongitudeRef: "E"}
	if south {
		tag.LatitudeRef = "S"
	}
	if west {
		tag.LongitudeRef = "W"
	}
	return tag
}

// Tags returns the tag key/value pairs in the order they are applied.
func (g GeoTag) Tags() [][2]string {
	return [][2]string{
		{TagLatitude, g.Latitude},
		{TagLatitudeRef, g.LatitudeRef},
		{TagLongitude, g.Longitude},
		{TagLongitudeRef, g.LongitudeRef},
	}
}

// ToExifAngle splits a signed angle into its hemisphere flag and a
// "deg/1,min/1,sec*10/10" rational string, e.g. 98.58297 becomes
// "98/1,34/1,587/10".
//
// The angle is rounded once to a whole number of tenths of an arcsecond
// and then split, so seconds never render as 600/10: a carry rolls into
// minutes and degrees.
func ToExifAngle(angle float64) (negative bool, rational string) {
	negative = angle < 0
	tenths := int64(math.Round(math.Abs(angle) * 36000))

	degrees := tenths / 36000
	minutes := (tenths % 36000) / 600
	seconds := tenths % 600

	return negative, fmt.Sprintf("%d/1,%d/1,%d/10", degrees, minutes, seconds)
}

// Rational is an unsigned numerator/denominator pair.
type Rational struct {
	Numerator   uint32
	Denominator uint32
}

// ParseRationals parses a comma-separated "n/d" list as produced by
// ToExifAngle.
func ParseRationals(s string) ([]Rational, error) {
	parts := strings.Split(s, ",")
	out := make([]Rational, 0, len(parts))
	for _, part := range parts {
		num, den, ok := strings.Cut(strings.TrimSpace(part), "/")
		if !ok {
			return nil, fmt.Errorf("invalid rational %q", part)
		}
		n, err := strconv.ParseUint(num, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid numerator in %q: %w", part, err)
		}
		d, err := strconv.ParseUint(den, 10, 32)
		if err != nil || d == 0 {
			return nil, fmt.Errorf("invalid denominator in %q", part)
		}
		out = append(out, Rational{Numerator: uint32(n), Denominator: uint32(d)})
	}
	return out, nil
}

// Degrees converts a degree/minute/second rational triple back to an
// unsigned decimal angle.
func Degrees(r []Rational) (float64, error) {
	if len(r) != 3 {
		return 0, fmt.Errorf("expected 3 rationals, got %d", len(r))
	}
	value := func(x Rational) float64 { return float64(x.Numerator) / float64(x.Denominator) }
	return value(r[0]) + value(r[1])/60 + value(r[2])/3600, nil
}
