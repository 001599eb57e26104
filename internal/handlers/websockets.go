package handlers

import (
	"net/http"
	"time"

	"breastscan/internal/logger"

	"github.com/gorilla/websocket"
)

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveRegistry tracks websocket viewers of new predictions.
type LiveRegistry interface {
	Register(client *websocket.Conn)
	Unregister(client *websocket.Conn)
}

// LivePredictionsHandler upgrades a viewer connection and keeps it registered
// until the viewer goes away. Anything a viewer sends is discarded.
func LivePredictionsHandler(registry LiveRegistry, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warning("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		defer connection.Close()

		registry.Register(connection)
		defer registry.Unregister(connection)

		logger.Info("Viewer connected from %s", r.RemoteAddr)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				logger.Info("Viewer disconnected: %v", err)
				break
			}
			// Any message from the viewer counts as a keepalive.
			connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		}
	}
}
