package web

import (
	"encoding/json"
	"net/http"

	apperrors "species-checker/internal/common/errors"
)

// envelope is the body of every JSON API response.
type envelope struct {
	Data  any       `json:"data"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func success(data any) envelope {
	return envelope{Data: data}
}

func fail(code, message, details string) envelope {
	return envelope{Error: &apiError{Code: code, Message: message, Details: details}}
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps an error code onto an HTTP status.
func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeEmptyInput, apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeInputTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperrors.ErrCodeRunNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeRunStoreError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	stdErr, ok := apperrors.AsStandardError(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, fail("INTERNAL_ERROR", "Internal server error", "An unexpected error occurred"))
		return
	}
	writeJSON(w, statusFor(stdErr.Code), fail(string(stdErr.Code), stdErr.Message, stdErr.Details))
}
