package errors

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

func logf(r *http.Request, level, format string, args ...any) {
	requestID := middleware.GetReqID(r.Context())
	if requestID != "" {
		log.Printf("["+level+"] RequestID="+requestID+": "+format, args...)
		return
	}
	log.Printf("["+level+"] "+format, args...)
}

// InternalError logs err with the request ID and sends a generic 500. The
// real error never reaches the client.
func InternalError(w http.ResponseWriter, r *http.Request, err error, message string) {
	logf(r, "ERROR", "%s: %v", message, err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func BadRequestError(w http.ResponseWriter, r *http.Request, err error, clientMessage string) {
	logf(r, "WARN", "bad request: %v", err)
	http.Error(w, clientMessage, http.StatusBadRequest)
}

// JSONError writes an application/json error body with the given status.
func JSONError(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func LogError(r *http.Request, message string, err error) {
	logf(r, "ERROR", "%s: %v", message, err)
}

func LogWarn(r *http.Request, message string, err error) {
	logf(r, "WARN", "%s: %v", message, err)
}

func LogInfo(r *http.Request, message string) {
	logf(r, "INFO", "%s", message)
}
