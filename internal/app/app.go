package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"breastscan/internal/config"
	"breastscan/internal/handlers"
	"breastscan/internal/labelmap"
	"breastscan/internal/logger"
	"breastscan/internal/repository/sqlite"
	"breastscan/internal/routes"
	"breastscan/internal/services"
	"breastscan/internal/services/ai"
	"breastscan/internal/services/storage"
	"breastscan/internal/services/websocket"
)

// Version is reported by /version. Overridden at build time with -ldflags.
var Version = "v0.1.0"

type App struct {
	config       *config.Config
	logger       *logger.Logger
	model        ai.Model
	db           *sqlite.DB
	hubService   *websocket.HubService
	orchestrator *services.Orchestrator
	handler      http.Handler
}

// NewApp loads the label map, colors, model and database once and wires them
// into the orchestrator and the router.
func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	labels, err := labelmap.Load(cfg.LabelMapPath)
	if err != nil {
		log.Close()
		return nil, err
	}
	log.Info("Loaded %d classes from %s", len(labels), cfg.LabelMapPath)

	colors := ai.DefaultColorMap()
	if cfg.ColorMapPath != "" {
		if colors, err = ai.LoadColorMap(cfg.ColorMapPath); err != nil {
			log.Close()
			return nil, err
		}
	}
	if missing := colors.Validate(labels); len(missing) > 0 {
		log.Warning("No box color for class ids %v; detections of these classes will fail to render", missing)
	}

	model, err := ai.LoadModel(cfg, log)
	if err != nil {
		log.Close()
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		model.Close()
		log.Close()
		return nil, err
	}

	hub := websocket.NewHubService(log)
	predictions := sqlite.NewPredictionRepository(db)

	orchestrator := services.NewOrchestrator(
		model,
		ai.NewRenderer(colors, labels),
		labels,
		storage.NewImageStore(cfg.ImageDirectory),
		predictions,
		hub,
		services.Options{
			Threshold:   cfg.DetectionThreshold,
			InputWidth:  cfg.InputWidth,
			InputHeight: cfg.InputHeight,
		},
		log,
	)

	tmpl, err := handlers.ParseTemplates()
	if err != nil {
		db.Close()
		model.Close()
		log.Close()
		return nil, err
	}

	router := routes.SetupRoutes(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Templates:   tmpl,
		Detector:    orchestrator,
		Predictions: predictions,
		Live:        hub,
		Version:     Version,
	})

	return &App{
		config:       cfg,
		logger:       log,
		model:        model,
		db:           db,
		hubService:   hub,
		orchestrator: orchestrator,
		handler:      router,
	}, nil
}

// Run serves HTTP until SIGINT or SIGTERM, then shuts down and releases the
// model and the database.
func (a *App) Run() error {
	defer a.close()

	go a.hubService.Run()
	defer a.hubService.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	a.logger.Info("Breast ultrasound detection server listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Images: %s, database: %s, model backend: %s", a.config.ImageDirectory, a.config.DatabasePath, a.config.ModelBackend)

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	a.logger.Info("Server exiting")
	return nil
}

func (a *App) close() {
	if err := a.model.Close(); err != nil {
		a.logger.Error("Failed to release model: %v", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database: %v", err)
	}
	a.logger.Close()
}
