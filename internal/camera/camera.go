// Package camera captures geotagged images.
package camera

import (
	"errors"
	"fmt"
	"os"

	"orbitcam/internal/geotag"
	"orbitcam/internal/location"
)

// ErrCapture wraps every failure to produce a capture.
var ErrCapture = errors.New("capture failure")

// Device is a camera that embeds pending metadata tags into the next
// image it writes.
type Device interface {
	SetMetadataTag(key, value string)
	Capture(path string) error
}

// CapturedImage is a file-backed capture with the position it was taken at.
type CapturedImage struct {
	Path   string
	Point  geotag.Point
	GeoTag geotag.GeoTag
}

// Adapter reads the current position, tags the device and captures.
type Adapter struct {
	device Device
	source location.Source
}

// NewAdapter creates a capture adapter.
func NewAdapter(device Device, source location.Source) *Adapter {
	return &Adapter{device: device, source: source}
}

// Capture takes one image at path. On failure no file is left at path.
func (a *Adapter) Capture(path string) (*CapturedImage, error) {
	point, err := a.source.CurrentCoordinates()
	if err != nil {
		return nil, fmt.Errorf("%w: geolocation unavailable: %v", ErrCapture, err)
	}
	if err := point.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapture, err)
	}

	tag := geotag.New(point)
	for _, kv := range tag.Tags() {
		a.device.SetMetadataTag(kv[0], kv[1])
	}

	if err := a.device.Capture(path); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: device reported success but %s is missing", ErrCapture, path)
	}

	return &CapturedImage{Path: path, Point: point, GeoTag: tag}, nil
}
