package ai

// DefaultThreshold is the minimum score a detection must exceed to be kept.
const DefaultThreshold = 0.2

// Detection is one box the model found, with normalized
// (y_min, x_min, y_max, x_max) coordinates.
type Detection struct {
	Box     [4]float32 `json:"box"`
	ClassID int        `json:"class_id"`
	Score   float32    `json:"score"`
}

// Filter keeps, in model order, the detections whose score is strictly
// greater than threshold. The comparison is done at score precision, so a
// float32 score of 0.2 is not above a threshold of 0.2.
func Filter(out *Output, threshold float64) []Detection {
	limit := float32(threshold)

	var kept []Detection
	for i := 0; i < out.NumDetections; i++ {
		if out.Scores[i] > limit {
			kept = append(kept, Detection{
				Box:     out.Boxes[i],
				ClassID: out.Classes[i],
				Score:   out.Scores[i],
			})
		}
	}
	return kept
}
