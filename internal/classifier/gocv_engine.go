package classifier

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// Preprocessing applied before the forward pass. The defaults match
// MobileNet-style models trained on RGB input scaled to [-1, 1].
const (
	DefaultScale = 1.0 / 127.5
	DefaultMean  = 127.5
)

// GocvEngine runs an OpenCV DNN model (ONNX, TFLite, Caffe or TensorFlow).
// The network is loaded once and reused for every inference.
type GocvEngine struct {
	net       gocv.Net
	inputSize image.Point
	scale     float64
	mean      float64
	mu        sync.Mutex
}

// LoadGocvEngine loads the model at modelPath. configPath may be empty for
// single-file formats.
func LoadGocvEngine(modelPath, configPath string, inputSize image.Point) (*GocvEngine, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("model config file not found: %s", configPath)
		}
	}
	if inputSize.X <= 0 || inputSize.Y <= 0 {
		return nil, fmt.Errorf("invalid model input size %v", inputSize)
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	return &GocvEngine{net: net, inputSize: inputSize, scale: DefaultScale, mean: DefaultMean}, nil
}

// InputSize returns the model's expected width and height.
func (e *GocvEngine) InputSize() image.Point {
	return e.inputSize
}

// Infer decodes the image, converts it to RGB, resizes it to the input
// size with area interpolation and runs one forward pass.
func (e *GocvEngine) Infer(imagePath string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	mat := gocv.IMRead(imagePath, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("failed to decode image %s", imagePath)
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	if err := gocv.CvtColor(mat, &rgb, gocv.ColorBGRToRGB); err != nil {
		return nil, fmt.Errorf("failed to convert image to RGB: %v", err)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(rgb, &resized, e.inputSize, 0, 0, gocv.InterpolationArea)
	if resized.Empty() {
		return nil, fmt.Errorf("failed to resize image to %v", e.inputSize)
	}

	blob := gocv.BlobFromImage(resized, e.scale, e.inputSize, gocv.NewScalar(e.mean, e.mean, e.mean, 0), false, false)
	defer blob.Close()

	e.net.SetInput(blob, "")
	output := e.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return nil, fmt.Errorf("model produced no output")
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read model output: %v", err)
	}
	scores := make([]float32, len(data))
	copy(scores, data)

	return scores, nil
}

// Close releases the network.
func (e *GocvEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.Close()
}
