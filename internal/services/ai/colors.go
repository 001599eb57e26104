package ai

import (
	"fmt"
	"image/color"
	"os"

	"breastscan/internal/labelmap"

	"gopkg.in/yaml.v2"
)

// ColorMap assigns an outline color to each class id.
type ColorMap map[int]color.RGBA

// DefaultColorMap covers the two ultrasound classes: 1 red, 2 green.
func DefaultColorMap() ColorMap {
	return ColorMap{
		1: {R: 255, G: 0, B: 0, A: 255},
		2: {R: 0, G: 255, B: 0, A: 255},
	}
}

type colorFile struct {
	Colors map[int][]uint8 `yaml:"colors"`
}

// LoadColorMap reads a YAML color table of the form
//
//	colors:
//	  1: [255, 0, 0]
//	  2: [0, 255, 0]
func LoadColorMap(path string) (ColorMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read color map: %w", err)
	}

	var file colorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse color map: %w", err)
	}

	colors := make(ColorMap, len(file.Colors))
	for id, rgb := range file.Colors {
		if len(rgb) != 3 {
			return nil, fmt.Errorf("color for class %d must have 3 components, got %d", id, len(rgb))
		}
		colors[id] = color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
	}
	return colors, nil
}

// Validate returns the label map ids that have no color. Rendering a
// detection of such a class fails.
func (c ColorMap) Validate(labels labelmap.LabelMap) []int {
	var missing []int
	for _, id := range labels.IDs() {
		if _, ok := c[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
