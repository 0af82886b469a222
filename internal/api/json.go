package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/starford/promptvault/internal/apperr"
)

const codeUnauthorized = "unauthorized"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errDetail struct {
	Code    string `json:"code" example:"not_found" validate:"required"`
	Message string `json:"message" example:"Prompt not found" validate:"required"`
}

type errResponse struct {
	Error errDetail `json:"error" validate:"required"`
}

func errorBody(code, msg string) errResponse {
	return errResponse{Error: errDetail{Code: code, Message: msg}}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidPayload:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindRemoteUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// writeError renders err with the status of its kind. The message is passed
// through unchanged so clients see the remote's own wording.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	writeJSON(w, statusFor(kind), errorBody(string(kind), err.Error()))
}
