package services

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"

	"breastscan/internal/dto"
	"breastscan/internal/labelmap"
	"breastscan/internal/logger"
	"breastscan/internal/model"
	"breastscan/internal/repository"
	"breastscan/internal/services/ai"
	"breastscan/internal/services/storage"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	uploadedPrefix = "uploaded"
	outputPrefix   = "output"

	// BenignClass is the only class name that yields a benign verdict.
	BenignClass = "benign"
)

var (
	// ErrNoImage is returned when detection is requested without an image.
	ErrNoImage = errors.New("no image supplied")
	// ErrDecode is returned when the upload is not a readable image.
	ErrDecode = errors.New("image decode error")
)

// State is a step of one detection request.
type State int

const (
	Idle State = iota
	ImageReceived
	Preprocessed
	ModelInvoked
	Filtered
	NoDetections
	Annotated
	Persisted
	Displayed
)

var stateNames = [...]string{
	"Idle", "ImageReceived", "Preprocessed", "ModelInvoked", "Filtered",
	"NoDetections", "Annotated", "Persisted", "Displayed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Outcome is the user-facing result of a finished request.
type Outcome string

const (
	OutcomeNoDetections Outcome = "no_detections"
	OutcomeBenign       Outcome = "benign"
	OutcomeMalignant    Outcome = "malignant"
)

// Notice levels as rendered on the page.
const (
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Result is what a request produced. On error it holds the state reached
// before the failure and whatever side effects already happened.
type Result struct {
	State             State                 `json:"-"`
	StateName         string                `json:"state"`
	Outcome           Outcome               `json:"outcome,omitempty"`
	Notice            string                `json:"notice,omitempty"`
	Level             string                `json:"level,omitempty"`
	UploadedImagePath string                `json:"uploaded_image_path,omitempty"`
	OutputImagePath   string                `json:"output_image_path,omitempty"`
	Detections        []dto.DetectionResult `json:"detections,omitempty"`
	Prediction        *model.Prediction     `json:"prediction,omitempty"`
}

// PredictionPublisher is told about every recorded prediction.
type PredictionPublisher interface {
	PublishPrediction(p *model.Prediction)
}

// Orchestrator runs one upload through decode, inference, rendering,
// storage and persistence. It holds no per-request state and can serve
// concurrent requests.
type Orchestrator struct {
	model       ai.Model
	renderer    *ai.Renderer
	labels      labelmap.LabelMap
	store       *storage.ImageStore
	predictions repository.PredictionRepository
	publisher   PredictionPublisher
	logger      *logger.Logger

	threshold   float64
	inputWidth  int
	inputHeight int
}

// Options configures an Orchestrator. Zero values fall back to
// ai.DefaultThreshold and a 640x640 model input.
type Options struct {
	Threshold   float64
	InputWidth  int
	InputHeight int
}

func NewOrchestrator(
	detector ai.Model,
	renderer *ai.Renderer,
	labels labelmap.LabelMap,
	store *storage.ImageStore,
	predictions repository.PredictionRepository,
	publisher PredictionPublisher,
	opts Options,
	logger *logger.Logger,
) *Orchestrator {
	if opts.Threshold <= 0 {
		opts.Threshold = ai.DefaultThreshold
	}
	if opts.InputWidth <= 0 {
		opts.InputWidth = 640
	}
	if opts.InputHeight <= 0 {
		opts.InputHeight = 640
	}

	return &Orchestrator{
		model:       detector,
		renderer:    renderer,
		labels:      labels,
		store:       store,
		predictions: predictions,
		publisher:   publisher,
		logger:      logger,
		threshold:   opts.Threshold,
		inputWidth:  opts.InputWidth,
		inputHeight: opts.InputHeight,
	}
}

func (o *Orchestrator) transition(result *Result, next State) {
	o.logger.Info("Detection request: %s -> %s", result.State, next)
	result.State = next
	result.StateName = next.String()
}

// Process runs the whole detection flow for one uploaded image.
func (o *Orchestrator) Process(upload []byte) (*Result, error) {
	result := &Result{State: Idle, StateName: Idle.String()}
	if len(upload) == 0 {
		return result, ErrNoImage
	}
	o.transition(result, ImageReceived)

	decoded, format, err := image.Decode(bytes.NewReader(upload))
	if err != nil {
		return o.fail(result, fmt.Errorf("%w: %v", ErrDecode, err))
	}

	original := ai.ToNRGBA(decoded)
	shape := ai.ShapeOf(original)
	resized := ai.Resize(original, o.inputWidth, o.inputHeight)
	o.logger.Info("Decoded %s upload %dx%d", format, shape.Width, shape.Height)

	result.UploadedImagePath, err = o.store.Save(original, uploadedPrefix)
	if err != nil {
		return o.fail(result, err)
	}
	o.transition(result, Preprocessed)

	output, err := o.model.Detect(ai.NewTensor(resized))
	if err != nil {
		if !errors.Is(err, ai.ErrModelInvocation) {
			err = fmt.Errorf("%w: %v", ai.ErrModelInvocation, err)
		}
		return o.fail(result, err)
	}
	if err := output.Validate(); err != nil {
		return o.fail(result, err)
	}
	o.transition(result, ModelInvoked)

	detections := ai.Filter(output, o.threshold)
	o.transition(result, Filtered)
	o.logger.Info("%d of %d detections above threshold %.2f", len(detections), output.NumDetections, o.threshold)

	if len(detections) == 0 {
		o.transition(result, NoDetections)
		result.Outcome = OutcomeNoDetections
		result.Notice = "No boxes predicted"
		result.Level = LevelError
		return result, nil
	}

	// Boxes are drawn on the model-resolution image scaled back to the upload size.
	base := ai.Resize(resized, shape.Width, shape.Height)
	annotated, err := o.renderer.Render(detections, base, shape)
	if err != nil {
		return o.fail(result, err)
	}

	result.OutputImagePath, err = o.store.Save(annotated, outputPrefix)
	if err != nil {
		return o.fail(result, err)
	}

	for _, d := range detections {
		name, err := o.labels.Name(d.ClassID)
		if err != nil {
			return o.fail(result, fmt.Errorf("%w: %v", ai.ErrRender, err))
		}
		result.Detections = append(result.Detections, dto.DetectionResult{
			ClassID: d.ClassID,
			Class:   name,
			Score:   scoreValue(d.Score),
			Box:     d.Box,
		})
	}
	o.transition(result, Annotated)

	// The first filtered detection decides, not the highest scoring one.
	first := result.Detections[0]
	result.Prediction, err = o.predictions.Record(result.UploadedImagePath, result.OutputImagePath, first.Class, first.Score)
	if err != nil {
		return o.fail(result, err)
	}
	o.transition(result, Persisted)

	if o.publisher != nil {
		o.publisher.PublishPrediction(result.Prediction)
	}

	if first.Class == BenignClass {
		result.Outcome = OutcomeBenign
		result.Notice = "Image contains a benign tumor which is not cancerous."
		result.Level = LevelSuccess
	} else {
		result.Outcome = OutcomeMalignant
		result.Notice = "Image contains a malignant tumor which is cancerous."
		result.Level = LevelWarning
	}
	o.transition(result, Displayed)

	return result, nil
}

func (o *Orchestrator) fail(result *Result, err error) (*Result, error) {
	o.logger.Error("Detection request failed in state %s: %v", result.State, err)
	result.Notice = Notice(err)
	result.Level = LevelError
	return result, err
}

// scoreValue widens a model score without float32 noise (0.93, not 0.9300000071525574).
func scoreValue(score float32) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(float64(score), 'g', -1, 32), 64)
	if err != nil {
		return float64(score)
	}
	return v
}

// Notice turns a request error into the message shown to the user.
func Notice(err error) string {
	switch {
	case err == nil, errors.Is(err, ErrNoImage):
		return ""
	case errors.Is(err, ErrDecode):
		return "The uploaded file is not a supported image."
	case errors.Is(err, ai.ErrModelInvocation):
		return fmt.Sprintf("Model inference failed: %v", err)
	case errors.Is(err, ai.ErrRender):
		return fmt.Sprintf("Could not draw the predicted boxes: %v", err)
	case errors.Is(err, storage.ErrIO):
		return fmt.Sprintf("Could not save the image: %v", err)
	case errors.Is(err, repository.ErrStorage):
		return fmt.Sprintf("Could not record the prediction: %v", err)
	default:
		return fmt.Sprintf("Detection failed: %v", err)
	}
}
