package ai

import (
	"errors"
	"fmt"

	"breastscan/internal/config"
	"breastscan/internal/logger"
)

// ErrModelInvocation is returned when the model call fails or its output is malformed.
var ErrModelInvocation = errors.New("model invocation error")

// Tensor is a single NHWC image batch (batch size 1) of RGB bytes.
type Tensor struct {
	Height   int
	Width    int
	Channels int
	Data     []uint8
}

// Output is the raw result of one model call. Boxes are normalized
// (y_min, x_min, y_max, x_max); Boxes, Classes and Scores run parallel and
// only the first NumDetections entries are meaningful.
type Output struct {
	NumDetections int
	Boxes         [][4]float32
	Classes       []int
	Scores        []float32
}

// Model is the boundary to the pre-trained object detector.
type Model interface {
	Detect(input Tensor) (*Output, error)
	Close() error
}

// Validate checks that the parallel arrays cover NumDetections and trims them to it.
func (o *Output) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: empty output", ErrModelInvocation)
	}
	if o.NumDetections < 0 {
		return fmt.Errorf("%w: negative detection count %d", ErrModelInvocation, o.NumDetections)
	}
	if len(o.Boxes) < o.NumDetections || len(o.Classes) < o.NumDetections || len(o.Scores) < o.NumDetections {
		return fmt.Errorf("%w: %d detections but %d boxes, %d classes, %d scores",
			ErrModelInvocation, o.NumDetections, len(o.Boxes), len(o.Classes), len(o.Scores))
	}

	o.Boxes = o.Boxes[:o.NumDetections]
	o.Classes = o.Classes[:o.NumDetections]
	o.Scores = o.Scores[:o.NumDetections]
	return nil
}

// LoadModel opens the backend named in the config. It is meant to run once
// at startup; the returned handle is shared by every request.
func LoadModel(cfg *config.Config, logger *logger.Logger) (Model, error) {
	switch cfg.ModelBackend {
	case "gocv", "":
		model, err := NewNetModel(cfg.ModelPath, cfg.ModelConfigPath)
		if err != nil {
			return nil, err
		}
		logger.Info("OpenCV detection network loaded from %s", cfg.ModelPath)
		return model, nil
	case "onnx":
		model, err := NewONNXModel(cfg.ModelPath, cfg.OnnxLibraryPath)
		if err != nil {
			return nil, err
		}
		logger.Info("ONNX detection session loaded from %s", cfg.ModelPath)
		return model, nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.ModelBackend)
	}
}
