package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               int
	ModelBackend       string // "gocv" or "onnx"
	ModelPath          string
	ModelConfigPath    string // pbtxt graph config, gocv backend only
	OnnxLibraryPath    string
	LabelMapPath       string
	ColorMapPath       string // optional YAML class color table
	ImageDirectory     string
	DatabasePath       string
	DetectionThreshold float64
	InputWidth         int
	InputHeight        int
	MaxUploadSize      int64 // in MB
	LogDirectory       string
}

// Load reads the configuration from the environment. A .env file in the
// working directory, when present, is loaded first and never overrides
// variables that are already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:               getEnvAsInt("PORT", 8080),
		ModelBackend:       getEnv("MODEL_BACKEND", "gocv"),
		ModelPath:          getEnv("MODEL_PATH", filepath.Join(".", "saved_model", "frozen_inference_graph.pb")),
		ModelConfigPath:    getEnv("MODEL_CONFIG_PATH", filepath.Join(".", "saved_model", "graph.pbtxt")),
		OnnxLibraryPath:    getEnv("ONNX_LIBRARY_PATH", "onnxruntime.so"),
		LabelMapPath:       getEnv("LABEL_MAP_PATH", filepath.Join(".", "label_map.pbtxt")),
		ColorMapPath:       getEnv("COLOR_MAP_PATH", ""),
		ImageDirectory:     getEnv("IMAGE_DIR", filepath.Join(".", "images")),
		DatabasePath:       getEnv("DB_PATH", filepath.Join(".", "database.sqlite3")),
		DetectionThreshold: getEnvAsFloat("DETECTION_THRESHOLD", 0.2),
		InputWidth:         getEnvAsInt("INPUT_WIDTH", 640),
		InputHeight:        getEnvAsInt("INPUT_HEIGHT", 640),
		MaxUploadSize:      getEnvAsInt64("MAX_UPLOAD_MB", 10),
		LogDirectory:       getEnv("LOG_DIR", filepath.Join(".", "logs")),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
