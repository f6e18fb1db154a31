// Package http contains the HTTP transport layer: handlers, request and
// response shapes, and the error-to-status mapping.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"horizon/internal/shared/apperrors"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// respondError maps the error taxonomy onto HTTP statuses. Unclassified errors
// and integrity or compensation failures stay opaque to the client.
func respondError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"

	var appErr *apperrors.Error
	errors.As(err, &appErr)
	clientMsg := func() string {
		if appErr != nil && appErr.Msg != "" {
			return appErr.Msg
		}
		return err.Error()
	}

	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		status = http.StatusBadRequest
		msg = clientMsg()
	case apperrors.KindNotFound:
		status = http.StatusNotFound
		msg = clientMsg()
	case apperrors.KindConflict:
		status = http.StatusConflict
		msg = clientMsg()
	case apperrors.KindExternal:
		status = http.StatusBadGateway
		msg = "upstream provider error"
	}

	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	}
	respondJSON(w, status, errorResponse{Error: msg})
}
