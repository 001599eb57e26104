package dto

// DetectionResult is one filtered detection as shown to the user.
type DetectionResult struct {
	ClassID int        `json:"class_id"`
	Class   string     `json:"class"`
	Score   float64    `json:"score"`
	Box     [4]float32 `json:"box"`
}
