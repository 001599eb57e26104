package routes

import (
	"html/template"
	"net/http"

	"breastscan/internal/config"
	"breastscan/internal/handlers"
	"breastscan/internal/logger"
	"breastscan/internal/middleware"
	"breastscan/internal/repository"

	"github.com/gorilla/mux"
)

// Dependencies are the services the HTTP layer is built on.
type Dependencies struct {
	Config      *config.Config
	Logger      *logger.Logger
	Templates   *template.Template
	Detector    handlers.Detector
	Predictions repository.PredictionRepository
	Live        handlers.LiveRegistry
	Version     string
}

// SetupRoutes registers the upload page, API endpoints, stored image and log
// serving, and wraps the router with request id and access log middleware.
func SetupRoutes(deps Dependencies) http.Handler {
	cfg, logger := deps.Config, deps.Logger
	r := mux.NewRouter()

	// Upload page
	r.HandleFunc("/", handlers.IndexHandler(deps.Templates, logger)).Methods(http.MethodGet)
	r.HandleFunc("/detect", handlers.DetectPageHandler(deps.Templates, deps.Detector, cfg, logger)).Methods(http.MethodPost)

	// Stored images
	r.PathPrefix("/images/").Handler(http.StripPrefix("/images/", http.FileServer(http.Dir(cfg.ImageDirectory)))).Methods(http.MethodGet)

	// API endpoints
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/detect", handlers.DetectAPIHandler(deps.Detector, cfg, logger)).Methods(http.MethodPost)
	api.HandleFunc("/predictions", handlers.ListPredictionsHandler(deps.Predictions, logger)).Methods(http.MethodGet)
	api.HandleFunc("/predictions/stats", handlers.PredictionStatsHandler(deps.Predictions, logger)).Methods(http.MethodGet)
	api.HandleFunc("/predictions/live", handlers.LivePredictionsHandler(deps.Live, logger)).Methods(http.MethodGet)
	api.HandleFunc("/predictions/{id:[0-9]+}", handlers.GetPredictionHandler(deps.Predictions, logger)).Methods(http.MethodGet)

	// Log endpoints
	r.HandleFunc("/logs/{level}", handlers.ShowLogsHandler(cfg)).Methods(http.MethodGet)
	r.HandleFunc("/logs/{level}/clear", handlers.ClearLogsHandler(logger)).Methods(http.MethodPost)

	r.HandleFunc("/version", handlers.VersionHandler(deps.Version, logger)).Methods(http.MethodGet)

	r.Use(middleware.RequestID, middleware.AccessLog(logger))
	return r
}
