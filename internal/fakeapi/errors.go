package fakeapi

// errors.go renders handler failures the way the API does: a JSON body
// with an error code and message, and the status the client maps from.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/tulipapi/internal/logging"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

func statusFor(err error) (int, string) {
	var inv *invalidError
	switch {
	case errors.As(err, &inv):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, errTableNotFound), errors.Is(err, errRecordNotFound), errors.Is(err, errLinkNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// respondError logs err with the request id and writes the error body.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)

	logger := logging.WithFields(r.Context(), "path", r.URL.Path, "method", r.Method)
	if status >= http.StatusInternalServerError {
		logger.Error("request error", "status", status, "error", err)
	} else {
		logger.Debug("request rejected", "status", status, "error", err)
	}

	respondJSON(w, status, ErrorResponse{ErrorCode: code, Message: err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
