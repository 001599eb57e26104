package ai

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// NetModel runs a TensorFlow object detection graph through OpenCV DNN.
// The net is not safe for concurrent Forward calls, so Detect is serialized.
type NetModel struct {
	net        gocv.Net
	modelPath  string
	configPath string
	mu         sync.Mutex
}

func NewNetModel(modelPath, configPath string) (*NetModel, error) {
	m := &NetModel{
		modelPath:  modelPath,
		configPath: configPath,
	}

	if err := m.initializeNet(); err != nil {
		return nil, err
	}
	return m, nil
}

// initializeNet loads the network from the model and graph config files.
func (m *NetModel) initializeNet() error {
	if _, err := os.Stat(m.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", m.modelPath)
	}

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", m.configPath)
	}

	net := gocv.ReadNet(m.modelPath, m.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	m.net = net
	return nil
}

// Detect feeds the tensor to the net. OpenCV returns SSD rows of
// [image_id, class_id, score, x_min, y_min, x_max, y_max]; they are
// reordered to (y_min, x_min, y_max, x_max).
func (m *NetModel) Detect(input Tensor) (*Output, error) {
	if input.Channels != 3 || len(input.Data) != input.Height*input.Width*input.Channels {
		return nil, fmt.Errorf("%w: tensor shape %dx%dx%d does not match %d bytes",
			ErrModelInvocation, input.Height, input.Width, input.Channels, len(input.Data))
	}

	mat, err := gocv.NewMatFromBytes(input.Height, input.Width, gocv.MatTypeCV8UC3, input.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: building input mat: %v", ErrModelInvocation, err)
	}
	defer mat.Close()

	// Tensor data is already RGB, no channel swap.
	blob := gocv.BlobFromImage(mat, 1.0, image.Pt(input.Width, input.Height), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	m.mu.Lock()
	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	m.mu.Unlock()
	defer output.Close()

	if output.Empty() || output.Total()%7 != 0 {
		return nil, fmt.Errorf("%w: unexpected network output of %d values", ErrModelInvocation, output.Total())
	}

	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	out := &Output{NumDetections: rows.Rows()}
	for i := 0; i < rows.Rows(); i++ {
		out.Classes = append(out.Classes, int(rows.GetFloatAt(i, 1)))
		out.Scores = append(out.Scores, rows.GetFloatAt(i, 2))
		out.Boxes = append(out.Boxes, [4]float32{
			rows.GetFloatAt(i, 4),
			rows.GetFloatAt(i, 3),
			rows.GetFloatAt(i, 6),
			rows.GetFloatAt(i, 5),
		})
	}

	return out, nil
}

func (m *NetModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}
