// Package location provides the geolocation sources that tag captures.
package location

import (
	"orbitcam/internal/geotag"
)

// Source reports the platform's current position.
type Source interface {
	CurrentCoordinates() (geotag.Point, error)
}

// StaticSource always reports the same point. It is used for ground and
// bench runs where no orbit is being tracked.
type StaticSource struct {
	point geotag.Point
}

// NewStaticSource validates p and returns a source fixed at it.
func NewStaticSource(p geotag.Point) (*StaticSource, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &StaticSource{point: p}, nil
}

// CurrentCoordinates returns the fixed point.
func (s *StaticSource) CurrentCoordinates() (geotag.Point, error) {
	return s.point, nil
}
