package server

import (
	"encoding/json"
	"net/http"
	"time"

	vderrors "github.com/stubborncoder/vdocs/internal/errors"
)

// ErrorResponse is the JSON body for failed requests.
type ErrorResponse struct {
	Status    string    `json:"status"`
	Error     string    `json:"error"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
}

// statusFor maps error categories onto HTTP status codes.
func statusFor(err error) int {
	switch vderrors.GetCategory(err) {
	case vderrors.CategoryNotFound:
		return http.StatusNotFound
	case vderrors.CategoryConflict:
		return http.StatusConflict
	case vderrors.CategoryValidation, vderrors.CategoryProtocol:
		return http.StatusBadRequest
	case vderrors.CategoryDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), ErrorResponse{
		Status:    "error",
		Error:     err.Error(),
		Category:  string(vderrors.GetCategory(err)),
		Timestamp: time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
