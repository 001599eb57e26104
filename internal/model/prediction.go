package model

import "time"

// Prediction is one persisted detection outcome.
type Prediction struct {
	ID                int64     `json:"id"`
	UploadedImagePath string    `json:"uploaded_image_path"`
	OutputImagePath   string    `json:"output_image_path"`
	ClassDetected     string    `json:"class_detected"`
	Score             float64   `json:"score"`
	CreatedAt         time.Time `json:"created_at"`
}

// PredictionFilter contains filtering options for querying predictions.
type PredictionFilter struct {
	Class  string
	Limit  int
	Offset int
}

// ClassStats summarizes the predictions recorded for one class.
type ClassStats struct {
	Class     string  `json:"class"`
	Count     int     `json:"count"`
	MeanScore float64 `json:"mean_score"`
}

// PredictionStats contains statistics about stored predictions.
type PredictionStats struct {
	TotalPredictions int          `json:"total_predictions"`
	PerClass         []ClassStats `json:"per_class"`
}
