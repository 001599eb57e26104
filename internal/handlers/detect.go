package handlers

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"path/filepath"

	"breastscan/internal/config"
	"breastscan/internal/logger"
	"breastscan/internal/middleware"
	"breastscan/internal/services"
)

//go:embed templates/*.html
var templateFS embed.FS

// Detector runs one uploaded image through the detection flow.
type Detector interface {
	Process(upload []byte) (*services.Result, error)
}

// PageData is what the upload page is rendered with.
type PageData struct {
	Result         *services.Result
	OutputImageURL string
}

// detectResponse is the JSON body of the detection API.
type detectResponse struct {
	*services.Result
	OutputImageURL string `json:"output_image_url,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ParseTemplates loads the embedded page templates.
func ParseTemplates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

// IndexHandler renders the empty upload page.
func IndexHandler(tmpl *template.Template, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(w, tmpl, http.StatusOK, PageData{}, logger)
	}
}

// DetectPageHandler handles the upload form and renders the page with the
// verdict notice and the annotated image.
func DetectPageHandler(tmpl *template.Template, detector Detector, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upload, err := readUpload(w, r, cfg.MaxUploadSize)
		if err != nil {
			logger.Warning("Rejected upload: %v", err)
			renderPage(w, tmpl, http.StatusBadRequest, PageData{Result: &services.Result{
				Notice: "The upload could not be read.",
				Level:  services.LevelError,
			}}, logger)
			return
		}

		result, err := detector.Process(upload)
		if errors.Is(err, services.ErrNoImage) {
			renderPage(w, tmpl, http.StatusOK, PageData{}, logger)
			return
		}

		data := PageData{Result: result}
		if err == nil {
			data.OutputImageURL = imageURL(result.OutputImagePath)
		}
		middleware.Entry(r, logger).Infof("Detection finished in state %s", result.StateName)
		renderPage(w, tmpl, statusFor(err), data, logger)
	}
}

// DetectAPIHandler handles a multipart upload and answers with the result as JSON.
func DetectAPIHandler(detector Detector, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upload, err := readUpload(w, r, cfg.MaxUploadSize)
		if err != nil {
			logger.Warning("Rejected upload: %v", err)
			writeJSON(w, http.StatusBadRequest, detectResponse{Error: "The upload could not be read."}, logger)
			return
		}

		result, err := detector.Process(upload)
		response := detectResponse{Result: result}
		if err != nil {
			response.Error = services.Notice(err)
			if response.Error == "" {
				response.Error = err.Error()
			}
		} else {
			response.OutputImageURL = imageURL(result.OutputImagePath)
		}

		middleware.Entry(r, logger).Infof("Detection API finished in state %s", result.StateName)
		writeJSON(w, statusFor(err), response, logger)
	}
}

// readUpload returns the bytes of the "file" form field, or nil when no file was sent.
func readUpload(w http.ResponseWriter, r *http.Request, maxUploadMB int64) ([]byte, error) {
	limit := maxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}

	file, _, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, services.ErrNoImage), errors.Is(err, services.ErrDecode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func renderPage(w http.ResponseWriter, tmpl *template.Template, status int, data PageData, logger *logger.Logger) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		logger.Error("Error rendering page: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// imageURL maps a stored image path to its URL under /images/.
func imageURL(path string) string {
	if path == "" {
		return ""
	}
	return "/images/" + filepath.Base(path)
}
