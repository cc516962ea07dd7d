package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zhinian/blogstore/internal/common"
)

// errBadRequest marks caller mistakes detected at the HTTP boundary, such
// as an unreadable or malformed JSON body.
var errBadRequest = errors.New("bad request")

// envelope is the wire format for every response: a success flag plus
// either the payload or an error string.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *handler) respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func (h *handler) respondMessage(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Message: message, Data: data})
}

func (h *handler) respondErr(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrUnknownCollection):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrForbidden):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrAlreadyInitialized):
		status = http.StatusConflict
	case errors.Is(err, common.ErrBackendUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.Error(ctx, "request failed", "error", err.Error())
	} else {
		h.logger.Warn(ctx, "request rejected", "status", status, "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: err.Error()})
}
