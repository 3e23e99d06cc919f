package location

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"orbitcam/internal/geotag"
)

// OrbitSource computes the sub-satellite point by propagating a two-line
// element set with SGP4 at the current time.
type OrbitSource struct {
	name string
	sat  satellite.Satellite
	now  func() time.Time
}

// LoadTLE reads a TLE file. An optional name line may precede the two
// element lines; only the first element set in the file is used.
func LoadTLE(path string) (*OrbitSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open TLE file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), " \r"); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read TLE file: %w", err)
	}

	name := ""
	if len(lines) > 0 && !strings.HasPrefix(lines[0], "1 ") {
		name = strings.TrimSpace(lines[0])
		lines = lines[1:]
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("TLE file %s does not contain an element set", path)
	}
	return NewOrbitSource(name, lines[0], lines[1])
}

// NewOrbitSource builds a source from two TLE element lines.
func NewOrbitSource(name, line1, line2 string) (*OrbitSource, error) {
	if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") || len(line1) < 69 || len(line2) < 69 {
		return nil, fmt.Errorf("malformed TLE element lines for %q", name)
	}

	return &OrbitSource{
		name: name,
		sat:  satellite.TLEToSat(line1, line2, satellite.GravityWGS84),
		now:  time.Now,
	}, nil
}

// Name returns the satellite name from the TLE file, if any.
func (s *OrbitSource) Name() string {
	return s.name
}

// CurrentCoordinates propagates the orbit to now.
func (s *OrbitSource) CurrentCoordinates() (geotag.Point, error) {
	return s.At(s.now())
}

// At returns the sub-satellite point at t.
func (s *OrbitSource) At(t time.Time) (geotag.Point, error) {
	t = t.UTC()
	y, mo, d := t.Date()
	h, mi, sec := t.Clock()

	position, _ := satellite.Propagate(s.sat, y, int(mo), d, h, mi, sec)
	gmst := satellite.GSTimeFromDate(y, int(mo), d, h, mi, sec)
	_, _, ll := satellite.ECIToLLA(position, gmst)
	deg := satellite.LatLongDeg(ll)

	p := geotag.Point{Latitude: deg.Latitude, Longitude: normalizeLongitude(deg.Longitude)}
	if err := p.Validate(); err != nil {
		return geotag.Point{}, fmt.Errorf("orbit propagation for %q failed: %w", s.name, err)
	}
	return p, nil
}

func normalizeLongitude(lon float64) float64 {
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
