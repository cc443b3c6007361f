package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/diewo77/invoicing/internal/apperr"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		// nothing we can do at this point
		_ = err
	}
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// StatusFor maps an apperr kind onto an HTTP status code.
func StatusFor(err error) int {
	var (
		ve *apperr.ValidationError
		nf *apperr.NotFoundError
		ce *apperr.ConflictError
		se *apperr.SequenceExhaustedError
		te *apperr.TransportError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &ce):
		return http.StatusConflict
	case errors.As(err, &se):
		return http.StatusServiceUnavailable
	case errors.As(err, &te):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as a JSON error body. Internal errors are not echoed to the client.
func Error(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		JSONError(w, status, "validation_failed", ve.Violations)
	case status == http.StatusNotFound:
		JSONError(w, status, "not_found", err.Error())
	case status == http.StatusConflict:
		JSONError(w, status, "conflict", err.Error())
	case status == http.StatusServiceUnavailable:
		JSONError(w, status, "sequence_exhausted", err.Error())
	case status == http.StatusBadGateway:
		JSONError(w, status, "transport_error", err.Error())
	default:
		JSONError(w, status, "internal_error", nil)
	}
}
