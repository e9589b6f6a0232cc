package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Dan9191/microloan/internal/apperrors"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message, errCode string) {
	respondWithJSON(w, code, errorResponse{Error: message, Code: errCode})
}

// statusFor maps an application error to its HTTP status
func statusFor(err error) int {
	switch {
	case apperrors.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrNotABorrower):
		return http.StatusForbidden
	case apperrors.IsState(err):
		return http.StatusConflict
	case apperrors.IsAmount(err), apperrors.IsFunds(err), errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case apperrors.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondWithAppError renders err; internal failures are logged and hidden from the client
func (h *Handler) respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	var verr apperrors.ValidationError
	if errors.As(err, &verr) {
		message = verr.Message
	}
	if status == http.StatusInternalServerError {
		h.log.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).WithError(err).Error("Request failed")
		message = "internal server error"
	}
	respondWithError(w, status, message, apperrors.Code(err))
}
