package handlers

import (
	"net/http"

	"breastscan/internal/logger"
)

func VersionHandler(version string, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": version}, logger)
	}
}
