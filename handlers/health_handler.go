package handlers

import (
	"net/http"

	"beijjati-server/middleware"
)

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "Beijjati Tracker API is running",
	})
}
