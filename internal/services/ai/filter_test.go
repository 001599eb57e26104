package ai

import (
	"errors"
	"testing"
)

func sampleOutput() *Output {
	return &Output{
		NumDetections: 5,
		Boxes: [][4]float32{
			{0.1, 0.1, 0.2, 0.2},
			{0.2, 0.2, 0.3, 0.3},
			{0.3, 0.3, 0.4, 0.4},
			{0.4, 0.4, 0.5, 0.5},
			{0.5, 0.5, 0.6, 0.6},
		},
		Classes: []int{2, 1, 1, 2, 1},
		Scores:  []float32{0.15, 0.93, 0.2, 0.55, 0.21},
	}
}

func TestFilter_StrictlyAboveThreshold(t *testing.T) {
	kept := Filter(sampleOutput(), DefaultThreshold)

	if len(kept) != 3 {
		t.Fatalf("Expected 3 detections above 0.2, got %d", len(kept))
	}

	// Model order is preserved.
	expectedScores := []float32{0.93, 0.55, 0.21}
	for i, score := range expectedScores {
		if kept[i].Score != score {
			t.Errorf("Detection %d score = %v, expected %v", i, kept[i].Score, score)
		}
	}
	if kept[0].ClassID != 1 || kept[0].Box != [4]float32{0.2, 0.2, 0.3, 0.3} {
		t.Errorf("First detection carries wrong class or box: %+v", kept[0])
	}
}

func TestFilter_MonotonicInThreshold(t *testing.T) {
	out := sampleOutput()
	previous := len(Filter(out, -1))

	for threshold := 0.0; threshold <= 1.0; threshold += 0.05 {
		count := len(Filter(out, threshold))
		if count > previous {
			t.Fatalf("Count rose from %d to %d at threshold %.2f", previous, count, threshold)
		}
		previous = count
	}

	if previous != 0 {
		t.Errorf("Expected no detections at threshold 1.0, got %d", previous)
	}
}

func TestFilter_OnlyFirstNumDetections(t *testing.T) {
	out := sampleOutput()
	out.NumDetections = 1

	if kept := Filter(out, DefaultThreshold); len(kept) != 0 {
		t.Errorf("Expected entries past NumDetections to be ignored, got %d", len(kept))
	}
}

func TestOutputValidate(t *testing.T) {
	out := sampleOutput()
	out.NumDetections = 2
	if err := out.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(out.Boxes) != 2 || len(out.Classes) != 2 || len(out.Scores) != 2 {
		t.Errorf("Validate should trim arrays to NumDetections")
	}

	malformed := []*Output{
		nil,
		{NumDetections: -1},
		{NumDetections: 2, Boxes: make([][4]float32, 2), Classes: []int{1}, Scores: []float32{0.5, 0.5}},
	}
	for i, o := range malformed {
		if err := o.Validate(); !errors.Is(err, ErrModelInvocation) {
			t.Errorf("Case %d: expected ErrModelInvocation, got %v", i, err)
		}
	}
}

func TestDecodeONNXOutput(t *testing.T) {
	out, err := decodeONNXOutput(
		[]float32{2},
		[]float32{0.1, 0.2, 0.5, 0.8, 0, 0, 1, 1},
		[]float32{2, 1},
		[]float32{0.93, 0.4},
	)
	if err != nil {
		t.Fatalf("decodeONNXOutput failed: %v", err)
	}

	if out.NumDetections != 2 {
		t.Errorf("Expected 2 detections, got %d", out.NumDetections)
	}
	if out.Boxes[0] != [4]float32{0.1, 0.2, 0.5, 0.8} {
		t.Errorf("Unexpected first box %v", out.Boxes[0])
	}
	if out.Classes[0] != 2 || out.Classes[1] != 1 {
		t.Errorf("Unexpected classes %v", out.Classes)
	}

	if _, err := decodeONNXOutput(nil, nil, nil, nil); !errors.Is(err, ErrModelInvocation) {
		t.Errorf("Expected ErrModelInvocation for missing count, got %v", err)
	}
	if _, err := decodeONNXOutput([]float32{1}, []float32{0.1, 0.2, 0.3}, []float32{1}, []float32{1}); !errors.Is(err, ErrModelInvocation) {
		t.Errorf("Expected ErrModelInvocation for ragged boxes, got %v", err)
	}
}
