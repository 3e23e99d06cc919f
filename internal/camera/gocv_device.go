package camera

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"
)

// GocvDevice captures still frames from a V4L2/USB camera through OpenCV.
// The device is opened once and reused for every capture.
type GocvDevice struct {
	capture *gocv.VideoCapture
	tags    map[string]string
	mu      sync.Mutex
}

// OpenGocvDevice opens the camera identified by device (index or path)
// and optionally sets the frame size.
func OpenGocvDevice(device string, width, height int) (*GocvDevice, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %s: %w", device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera %s is not available", device)
	}
	if width > 0 && height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}

	return &GocvDevice{capture: vc, tags: make(map[string]string)}, nil
}

// SetMetadataTag stages a tag for the next capture.
func (d *GocvDevice) SetMetadataTag(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tags[key] = value
}

// Capture grabs a frame, encodes it as JPEG with the staged tags and
// writes it to path. The file appears atomically via rename.
func (d *GocvDevice) Capture(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	frame := gocv.NewMat()
	defer frame.Close()

	if ok := d.capture.Read(&frame); !ok || frame.Empty() {
		return fmt.Errorf("failed to read frame from camera")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	encoded := make([]byte, len(buf.GetBytes()))
	copy(encoded, buf.GetBytes())
	buf.Close()

	tagged, err := EmbedTags(encoded, d.tags)
	if err != nil {
		return fmt.Errorf("failed to embed metadata: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".capture-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(tagged); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close image: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move image into place: %w", err)
	}

	return nil
}

// Close releases the camera.
func (d *GocvDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capture.Close()
}
