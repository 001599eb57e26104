package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"breastscan/internal/config"
	"breastscan/internal/logger"
	"breastscan/internal/model"
	"breastscan/internal/repository/sqlite"
	"breastscan/internal/services"

	"github.com/gorilla/mux"
)

type fakeDetector struct {
	result *services.Result
	err    error
	got    []byte
}

func (d *fakeDetector) Process(upload []byte) (*services.Result, error) {
	d.got = upload
	if len(upload) == 0 {
		return &services.Result{State: services.Idle, StateName: "Idle"}, services.ErrNoImage
	}
	return d.result, d.err
}

func setupTest(t *testing.T) (*config.Config, *logger.Logger) {
	t.Helper()

	cfg := &config.Config{
		LogDirectory:   filepath.Join(t.TempDir(), "logs"),
		ImageDirectory: t.TempDir(),
		MaxUploadSize:  1,
	}
	log := logger.NewLogger(cfg)
	t.Cleanup(log.Close)
	return cfg, log
}

func multipartRequest(t *testing.T, target string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if content != nil {
		part, err := writer.CreateFormFile("file", "scan.png")
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		part.Write(content)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func benignResult() *services.Result {
	return &services.Result{
		State:             services.Displayed,
		StateName:         "Displayed",
		Outcome:           services.OutcomeBenign,
		Notice:            "Image contains a benign tumor which is not cancerous.",
		Level:             services.LevelSuccess,
		UploadedImagePath: filepath.Join("images", "uploaded_20240101_120000.png"),
		OutputImagePath:   filepath.Join("images", "output_20240101_120000.png"),
	}
}

func TestDetectAPIHandler_Success(t *testing.T) {
	cfg, log := setupTest(t)
	detector := &fakeDetector{result: benignResult()}

	rr := httptest.NewRecorder()
	DetectAPIHandler(detector, cfg, log)(rr, multipartRequest(t, "/api/detect", []byte("png bytes")))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if string(detector.got) != "png bytes" {
		t.Errorf("Detector received %q", detector.got)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body["outcome"] != "benign" || body["state"] != "Displayed" {
		t.Errorf("Unexpected body %v", body)
	}
	if body["output_image_url"] != "/images/output_20240101_120000.png" {
		t.Errorf("Unexpected image url %v", body["output_image_url"])
	}
	if _, ok := body["error"]; ok {
		t.Error("No error expected")
	}
}

func TestDetectAPIHandler_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		err     error
		status  int
	}{
		{"no file", nil, nil, http.StatusBadRequest},
		{"undecodable", []byte("x"), fmt.Errorf("%w: bad header", services.ErrDecode), http.StatusBadRequest},
		{"model failure", []byte("x"), errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, log := setupTest(t)
			detector := &fakeDetector{result: &services.Result{StateName: "Preprocessed"}, err: tt.err}

			rr := httptest.NewRecorder()
			DetectAPIHandler(detector, cfg, log)(rr, multipartRequest(t, "/api/detect", tt.content))

			if rr.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, rr.Code)
			}
			var body map[string]interface{}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("Invalid JSON: %v", err)
			}
			if body["error"] == nil || body["error"] == "" {
				t.Errorf("Expected an error message, got %v", body)
			}
		})
	}
}

func TestDetectAPIHandler_TooLarge(t *testing.T) {
	cfg, log := setupTest(t)
	detector := &fakeDetector{result: benignResult()}

	rr := httptest.NewRecorder()
	DetectAPIHandler(detector, cfg, log)(rr, multipartRequest(t, "/api/detect", bytes.Repeat([]byte("a"), 2<<20)))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rr.Code)
	}
	if detector.got != nil {
		t.Error("Detector should not run for an oversized upload")
	}
}

func TestDetectPageHandler(t *testing.T) {
	tmpl, err := ParseTemplates()
	if err != nil {
		t.Fatalf("ParseTemplates failed: %v", err)
	}

	t.Run("verdict", func(t *testing.T) {
		cfg, log := setupTest(t)
		rr := httptest.NewRecorder()
		DetectPageHandler(tmpl, &fakeDetector{result: benignResult()}, cfg, log)(rr, multipartRequest(t, "/detect", []byte("x")))

		body := rr.Body.String()
		if rr.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rr.Code)
		}
		if !strings.Contains(body, "benign tumor which is not cancerous") || !strings.Contains(body, `class="notice success"`) {
			t.Error("Page should show the benign notice")
		}
		if !strings.Contains(body, `src="/images/output_20240101_120000.png"`) {
			t.Error("Page should show the annotated image")
		}
	})

	t.Run("no detections", func(t *testing.T) {
		cfg, log := setupTest(t)
		result := &services.Result{State: services.NoDetections, Notice: "No boxes predicted", Level: services.LevelError}
		rr := httptest.NewRecorder()
		DetectPageHandler(tmpl, &fakeDetector{result: result}, cfg, log)(rr, multipartRequest(t, "/detect", []byte("x")))

		body := rr.Body.String()
		if !strings.Contains(body, "No boxes predicted") || strings.Contains(body, `class="result"`) {
			t.Error("Page should show the notice without an image")
		}
	})

	t.Run("empty form stays idle", func(t *testing.T) {
		cfg, log := setupTest(t)
		rr := httptest.NewRecorder()
		DetectPageHandler(tmpl, &fakeDetector{}, cfg, log)(rr, multipartRequest(t, "/detect", nil))

		if rr.Code != http.StatusOK || strings.Contains(rr.Body.String(), `class="notice`) {
			t.Errorf("Expected an idle page, got %d", rr.Code)
		}
	})
}

func TestIndexHandler(t *testing.T) {
	_, log := setupTest(t)
	tmpl, err := ParseTemplates()
	if err != nil {
		t.Fatalf("ParseTemplates failed: %v", err)
	}

	rr := httptest.NewRecorder()
	IndexHandler(tmpl, log)(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `name="file"`) {
		t.Error("Index should render the upload form")
	}
}

func setupPredictions(t *testing.T) *sqlite.PredictionRepository {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.sqlite3"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewPredictionRepository(db)
	for i, class := range []string{"benign", "malignant", "benign"} {
		if _, err := repo.Record(fmt.Sprintf("up_%d.png", i), fmt.Sprintf("out_%d.png", i), class, 0.5+float64(i)/10); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	return repo
}

func TestListPredictionsHandler(t *testing.T) {
	_, log := setupTest(t)
	repo := setupPredictions(t)

	rr := httptest.NewRecorder()
	ListPredictionsHandler(repo, log)(rr, httptest.NewRequest(http.MethodGet, "/api/predictions?class=benign&limit=1&page=2", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	var page PredictionsPage
	if err := json.NewDecoder(rr.Body).Decode(&page); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if page.Length != 2 || page.TotalPages != 2 || page.CurrentPage != 2 {
		t.Errorf("Unexpected pagination %+v", page)
	}
	if len(page.Predictions) != 1 || page.Predictions[0].UploadedImagePath != "up_0.png" {
		t.Errorf("Expected the oldest benign prediction on page 2, got %+v", page.Predictions)
	}
}

func TestGetPredictionHandler(t *testing.T) {
	_, log := setupTest(t)
	repo := setupPredictions(t)
	handler := GetPredictionHandler(repo, log)

	tests := []struct {
		id     string
		status int
	}{
		{"2", http.StatusOK},
		{"99", http.StatusNotFound},
		{"abc", http.StatusBadRequest},
	}

	for _, tt := range tests {
		req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/predictions/"+tt.id, nil), map[string]string{"id": tt.id})
		rr := httptest.NewRecorder()
		handler(rr, req)

		if rr.Code != tt.status {
			t.Errorf("id %s: expected %d, got %d", tt.id, tt.status, rr.Code)
		}
	}

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/predictions/2", nil), map[string]string{"id": "2"})
	rr := httptest.NewRecorder()
	handler(rr, req)

	var p model.Prediction
	if err := json.NewDecoder(rr.Body).Decode(&p); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if p.ID != 2 || p.ClassDetected != "malignant" {
		t.Errorf("Unexpected prediction %+v", p)
	}
}

func TestPredictionStatsHandler(t *testing.T) {
	_, log := setupTest(t)
	repo := setupPredictions(t)

	rr := httptest.NewRecorder()
	PredictionStatsHandler(repo, log)(rr, httptest.NewRequest(http.MethodGet, "/api/predictions/stats", nil))

	var stats model.PredictionStats
	if err := json.NewDecoder(rr.Body).Decode(&stats); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if stats.TotalPredictions != 3 || len(stats.PerClass) != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestLogsHandlers(t *testing.T) {
	cfg, log := setupTest(t)
	log.Info("hello from test")

	show := ShowLogsHandler(cfg)
	clearLogs := ClearLogsHandler(log)

	rr := httptest.NewRecorder()
	show(rr, mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/logs/info", nil), map[string]string{"level": "info"}))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "hello from test") {
		t.Errorf("Expected info log contents, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	show(rr, mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/logs/debug", nil), map[string]string{"level": "debug"}))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown level, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	clearLogs(rr, mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/logs/error/clear", nil), map[string]string{"level": "error"}))
	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200 on clear, got %d", rr.Code)
	}
}

func TestImageURL(t *testing.T) {
	if imageURL("") != "" {
		t.Error("Empty path should give no url")
	}
	if got := imageURL(filepath.Join("data", "images", "output_1.png")); got != "/images/output_1.png" {
		t.Errorf("Unexpected url %s", got)
	}
}

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"1", 0, 1},
		{"", 5, 5},
		{"abc", 10, 10},
		{"-1", 5, 5},
		{"0", 5, 5},
		{"12.5", 5, 5},
	}

	for _, tt := range tests {
		result := atoiDefault(tt.input, tt.def)
		if result != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, result, tt.expected)
		}
	}
}
