package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"breastscan/internal/config"
	"breastscan/internal/logger"
	"breastscan/internal/model"

	"github.com/gorilla/websocket"
)

func newTestHub(t *testing.T) *HubService {
	t.Helper()

	log := logger.NewLogger(&config.Config{LogDirectory: t.TempDir()})
	t.Cleanup(log.Close)

	hub := NewHubService(log)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func TestHub_PublishPrediction(t *testing.T) {
	hub := newTestHub(t)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Viewer was never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.PublishPrediction(&model.Prediction{ID: 7, ClassDetected: "benign", Score: 0.93})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	var event PredictionEvent
	if err := json.Unmarshal(message, &event); err != nil {
		t.Fatalf("Invalid event JSON: %v", err)
	}
	if event.Type != "prediction" || event.Prediction.ID != 7 || event.Prediction.ClassDetected != "benign" {
		t.Errorf("Unexpected event: %+v", event)
	}
}

func TestHub_BroadcastDoesNotBlockWithoutRun(t *testing.T) {
	log := logger.NewLogger(&config.Config{LogDirectory: t.TempDir()})
	defer log.Close()
	hub := NewHubService(log)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Broadcast([]byte("x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked with a full queue")
	}
}
