package api

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "seva-portal/internal/common/errors"
)

// statusForCode maps the portal error taxonomy onto HTTP statuses. The
// distinctions matter to clients: a lost claim race (409) asks for a
// pool refresh, a 502 asks for a retry later.
func statusForCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case apperrors.ErrCodeAuthenticationFailed:
		return http.StatusUnauthorized
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeAlreadyClaimed,
		apperrors.ErrCodePriceLocked,
		apperrors.ErrCodeInvalidTransition,
		apperrors.ErrCodeResultDocMissing:
		return http.StatusConflict
	case apperrors.ErrCodeStoreUnavailable, apperrors.ErrCodeBlobUnavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(w http.ResponseWriter, err error) {
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		respondJSON(w, statusForCode(stdErr.Code), map[string]interface{}{
			"code":      stdErr.Code,
			"message":   stdErr.Message,
			"details":   stdErr.Details,
			"retryable": stdErr.Retryable,
		})
		return
	}
	respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"code":    "INTERNAL_ERROR",
		"message": "unexpected error",
	})
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.NewValidationError("request body is not valid JSON: " + err.Error())
	}
	return nil
}
