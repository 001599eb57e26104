package handlers

import (
	"net/http"
	"strconv"

	"breastscan/internal/logger"
	"breastscan/internal/model"
	"breastscan/internal/repository"

	"github.com/gorilla/mux"
)

// PredictionsPage is a paginated response payload for the prediction history.
type PredictionsPage struct {
	Predictions []model.Prediction `json:"predictions"`
	Length      int                `json:"length"`
	TotalPages  int                `json:"totalPages"`
	CurrentPage int                `json:"currentPage"`
	Limit       int                `json:"pageSize"`
}

// ListPredictionsHandler returns recorded predictions, newest first, with an
// optional class filter and pagination.
func ListPredictionsHandler(predictions repository.PredictionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &model.PredictionFilter{
			Class:  q.Get("class"),
			Limit:  limit,
			Offset: (page - 1) * limit,
		}

		items, err := predictions.GetAll(filter)
		if err != nil {
			logger.Error("Error querying predictions: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := predictions.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting predictions: %v", err)
			totalCount = len(items)
		}

		if items == nil {
			items = []model.Prediction{}
		}

		writeJSON(w, http.StatusOK, PredictionsPage{
			Predictions: items,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}, logger)
	}
}

// GetPredictionHandler returns the prediction named by the {id} path variable.
func GetPredictionHandler(predictions repository.PredictionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "Invalid prediction id", http.StatusBadRequest)
			return
		}

		prediction, err := predictions.GetByID(id)
		if err != nil {
			logger.Error("Error loading prediction %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if prediction == nil {
			http.Error(w, "Prediction not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, prediction, logger)
	}
}

// PredictionStatsHandler returns per-class counts and mean scores.
func PredictionStatsHandler(predictions repository.PredictionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := predictions.GetStats()
		if err != nil {
			logger.Error("Failed to get stats: %v", err)
			http.Error(w, "Failed to retrieve stats", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, stats, logger)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
