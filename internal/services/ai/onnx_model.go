package ai

import (
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Tensor names of a TF object detection model exported with tf2onnx.
const onnxInputName = "input_tensor"

var onnxOutputNames = []string{
	"num_detections",
	"detection_boxes",
	"detection_classes",
	"detection_scores",
}

var (
	onnxEnvOnce sync.Once
	onnxEnvErr  error
)

// initONNXEnvironment initializes the onnxruntime library once per process.
func initONNXEnvironment(libraryPath string) error {
	onnxEnvOnce.Do(func() {
		ort.SetSharedLibraryPath(libraryPath)
		onnxEnvErr = ort.InitializeEnvironment()
	})
	return onnxEnvErr
}

// ONNXModel runs the detector through onnxruntime. Output sizes depend on
// the model, so the session allocates output tensors on every run.
type ONNXModel struct {
	session *ort.DynamicAdvancedSession
	mu      sync.Mutex
}

func NewONNXModel(modelPath, libraryPath string) (*ONNXModel, error) {
	if err := initONNXEnvironment(libraryPath); err != nil {
		return nil, fmt.Errorf("error initializing onnxruntime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(runtime.NumCPU())
	options.SetInterOpNumThreads(runtime.NumCPU())

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{onnxInputName}, onnxOutputNames, options)
	if err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return &ONNXModel{session: session}, nil
}

func (m *ONNXModel) Detect(input Tensor) (*Output, error) {
	shape := ort.NewShape(1, int64(input.Height), int64(input.Width), int64(input.Channels))
	inputTensor, err := ort.NewTensor(shape, input.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: creating input tensor: %v", ErrModelInvocation, err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.ArbitraryTensor, len(onnxOutputNames))
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	m.mu.Lock()
	err = m.session.Run([]ort.ArbitraryTensor{inputTensor}, outputs)
	m.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelInvocation, err)
	}

	data := make([][]float32, len(outputs))
	for i, o := range outputs {
		t, ok := o.(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("%w: output %s is not float32", ErrModelInvocation, onnxOutputNames[i])
		}
		data[i] = t.GetData()
	}

	return decodeONNXOutput(data[0], data[1], data[2], data[3])
}

// decodeONNXOutput turns the flat batch-1 output arrays into an Output.
func decodeONNXOutput(num, boxes, classes, scores []float32) (*Output, error) {
	if len(num) != 1 {
		return nil, fmt.Errorf("%w: num_detections has %d values", ErrModelInvocation, len(num))
	}
	if len(boxes)%4 != 0 {
		return nil, fmt.Errorf("%w: detection_boxes has %d values", ErrModelInvocation, len(boxes))
	}

	out := &Output{
		NumDetections: int(num[0]),
		Scores:        append([]float32(nil), scores...),
	}
	for i := 0; i+3 < len(boxes); i += 4 {
		out.Boxes = append(out.Boxes, [4]float32{boxes[i], boxes[i+1], boxes[i+2], boxes[i+3]})
	}
	for _, c := range classes {
		out.Classes = append(out.Classes, int(c))
	}
	return out, nil
}

func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Destroy()
}
