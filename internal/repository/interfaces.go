package repository

import (
	"errors"

	"breastscan/internal/model"
)

// ErrStorage wraps every failure of the persistent store.
var ErrStorage = errors.New("storage error")

// PredictionRepository defines the interface for prediction data operations.
// Predictions are append-only: there are no update or delete operations.
type PredictionRepository interface {
	// Create operations
	Record(uploadedPath, outputPath, classDetected string, score float64) (*model.Prediction, error)

	// Read operations
	GetByID(id int64) (*model.Prediction, error)
	GetAll(filter *model.PredictionFilter) ([]model.Prediction, error)
	GetTotalCount(filter *model.PredictionFilter) (int, error)
	GetStats() (*model.PredictionStats, error)
}
