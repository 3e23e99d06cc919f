// Package geocode resolves coordinates to the nearest known place using an
// offline city index.
package geocode

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// Sentinel location used when a lookup cannot be answered.
const (
	UnknownCountry = "ZZ"
	UnknownPlace   = "Unknown"
)

// ErrResolve wraps per-call lookup failures.
var ErrResolve = errors.New("resolve failure")

// LocationInfo is the resolved administrative location of a point.
type LocationInfo struct {
	CountryCode string `json:"country_code"`
	Name        string `json:"name"`
	Admin1      string `json:"admin1,omitempty"`
}

// Unknown returns the sentinel location.
func Unknown() LocationInfo {
	return LocationInfo{CountryCode: UnknownCountry, Name: UnknownPlace}
}

type place struct {
	point s2.Point
	info  LocationInfo
}

// Index is an in-memory set of places searched for the nearest match.
type Index struct {
	places []place
}

// Load reads a city index in the GeoNames-derived CSV layout
// "lat,lon,name,admin1,admin2,cc" with a header row. Columns are located
// by header name, so extra columns are tolerated.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geographic index: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Read parses an index from r.
func Read(r io.Reader) (*Index, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read index header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range []string{"lat", "lon", "name", "cc"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("index header is missing column %q", required)
		}
	}
	admin1, hasAdmin1 := cols["admin1"]

	idx := &Index{}
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("index line %d: %w", line, err)
		}
		if len(row) < len(header) {
			return nil, fmt.Errorf("index line %d: expected %d columns, got %d", line, len(header), len(row))
		}

		lat, err := strconv.ParseFloat(row[cols["lat"]], 64)
		if err != nil {
			return nil, fmt.Errorf("index line %d: invalid latitude: %w", line, err)
		}
		lon, err := strconv.ParseFloat(row[cols["lon"]], 64)
		if err != nil {
			return nil, fmt.Errorf("index line %d: invalid longitude: %w", line, err)
		}
		ll := s2.LatLngFromDegrees(lat, lon)
		if !ll.IsValid() {
			return nil, fmt.Errorf("index line %d: coordinate out of range", line)
		}

		p := place{
			point: s2.PointFromLatLng(ll),
			info:  LocationInfo{CountryCode: row[cols["cc"]], Name: row[cols["name"]]},
		}
		if hasAdmin1 {
			p.info.Admin1 = row[admin1]
		}
		idx.places = append(idx.places, p)
	}

	if len(idx.places) == 0 {
		return nil, errors.New("geographic index is empty")
	}
	return idx, nil
}

// Len returns the number of places in the index.
func (idx *Index) Len() int {
	return len(idx.places)
}

// Resolve returns the place closest to (lat, lon) by great-circle
// distance. Every valid coordinate resolves to some place.
func (idx *Index) Resolve(lat, lon float64) (LocationInfo, error) {
	ll := s2.LatLngFromDegrees(lat, lon)
	if !ll.IsValid() {
		return LocationInfo{}, fmt.Errorf("%w: coordinate (%v, %v) out of range", ErrResolve, lat, lon)
	}
	if len(idx.places) == 0 {
		return LocationInfo{}, fmt.Errorf("%w: index is empty", ErrResolve)
	}

	target := s2.PointFromLatLng(ll)
	best := 0
	bestDist := s1.InfChordAngle()
	for i := range idx.places {
		d := s2.ChordAngleBetweenPoints(target, idx.places[i].point)
		if d < bestDist {
			best, bestDist = i, d
		}
	}

	return idx.places[best].info, nil
}
