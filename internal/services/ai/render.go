package ai

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"

	"breastscan/internal/labelmap"

	"gocv.io/x/gocv"
)

const (
	outlineThickness = 2
	labelHeight      = 15
	labelTextOffset  = 10
	labelFontScale   = 0.3
)

// ErrRender is returned for detections that cannot be drawn.
var ErrRender = errors.New("render error")

var labelTextColor = color.RGBA{R: 0, G: 0, B: 0, A: 255}

// Renderer draws detection boxes and labels.
type Renderer struct {
	colors ColorMap
	labels labelmap.LabelMap
}

func NewRenderer(colors ColorMap, labels labelmap.LabelMap) *Renderer {
	return &Renderer{colors: colors, labels: labels}
}

// BoxRect maps a normalized (y_min, x_min, y_max, x_max) box to pixels of
// an image with the given shape. Indices 1 and 3 scale by width, 0 and 2
// by height. Min is the (x_min, y_min) corner and Max the (x_max, y_max)
// corner even if the model returned them swapped.
func BoxRect(box [4]float32, shape Shape) image.Rectangle {
	return image.Rectangle{
		Min: image.Pt(
			int(float64(box[1])*float64(shape.Width)),
			int(float64(box[0])*float64(shape.Height)),
		),
		Max: image.Pt(
			int(float64(box[3])*float64(shape.Width)),
			int(float64(box[2])*float64(shape.Height)),
		),
	}
}

// LabelText formats the caption drawn under a box. The score is rounded to
// two decimals half to even, in float32 arithmetic.
func LabelText(name string, score float32) string {
	scaled := score * 100
	rounded := float32(math.RoundToEven(float64(scaled))) / 100
	return fmt.Sprintf("Class: %s, Score: %s", name, strconv.FormatFloat(float64(rounded), 'f', -1, 32))
}

// Render draws every detection, in order, on a copy of base. Box
// coordinates are scaled by shape, which is the size of the original upload.
func (r *Renderer) Render(detections []Detection, base image.Image, shape Shape) (image.Image, error) {
	mat, err := gocv.ImageToMatRGB(base)
	if err != nil {
		return nil, fmt.Errorf("%w: converting image: %v", ErrRender, err)
	}
	defer mat.Close()

	for _, detection := range detections {
		boxColor, ok := r.colors[detection.ClassID]
		if !ok {
			return nil, fmt.Errorf("%w: no color for class %d", ErrRender, detection.ClassID)
		}
		name, err := r.labels.Name(detection.ClassID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRender, err)
		}

		rect := BoxRect(detection.Box, shape)
		if err := gocv.Rectangle(&mat, rect, boxColor, outlineThickness); err != nil {
			return nil, fmt.Errorf("%w: failed to draw rectangle: %v", ErrRender, err)
		}

		label := image.Rectangle{
			Min: image.Pt(rect.Min.X, rect.Max.Y),
			Max: image.Pt(rect.Max.X, rect.Max.Y+labelHeight),
		}
		if err := gocv.Rectangle(&mat, label, boxColor, -1); err != nil {
			return nil, fmt.Errorf("%w: failed to draw label background: %v", ErrRender, err)
		}

		pt := image.Pt(rect.Min.X, rect.Max.Y+labelTextOffset)
		err = gocv.PutTextWithParams(&mat, LabelText(name, detection.Score), pt,
			gocv.FontHersheySimplex, labelFontScale, labelTextColor, 1, gocv.LineAA, false)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to draw text: %v", ErrRender, err)
		}
	}

	annotated, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: converting result: %v", ErrRender, err)
	}
	return annotated, nil
}
