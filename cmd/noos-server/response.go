package main

import (
	"encoding/json"
	"net/http"

	"github.com/retaildata/noosengine/pkg/tasks"
)

// APIResponse is the envelope every JSON endpoint in this package
// responds with.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

// errorBody is the {errorCode, message, details?} shape every error
// response carries.
type errorBody struct {
	ErrorCode string      `json:"errorCode"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// writeError maps a classified *tasks.Error (or a plain error) onto an
// HTTP status and the {errorCode, message} response body.
func writeError(w http.ResponseWriter, err error) {
	kind := tasks.KindOf(err)
	status := statusForKind(kind)
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   &errorBody{ErrorCode: string(kind), Message: err.Error()},
	})
}

func statusForKind(kind tasks.Kind) int {
	switch kind {
	case tasks.KindValidation, tasks.KindDependency:
		return http.StatusBadRequest
	case tasks.KindConflict:
		return http.StatusConflict
	case tasks.KindBusy:
		return http.StatusTooManyRequests
	case tasks.KindNotFound:
		return http.StatusNotFound
	case tasks.KindTimeout:
		return http.StatusGatewayTimeout
	case tasks.KindCancelled:
		return http.StatusConflict
	case tasks.KindInterrupted, tasks.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
