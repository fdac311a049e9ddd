package response

import (
	"encoding/json"
	"net/http"

	"bailian-gateway/internal/logger"
	"bailian-gateway/internal/pkg/errors"

	"github.com/sirupsen/logrus"
)

// Envelope is the body of every API response.
type Envelope struct {
	Code          int         `json:"code"`
	Message       string      `json:"message"`
	Data          interface{} `json:"data,omitempty"`
	Usage         interface{} `json:"usage,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

func JSON(w http.ResponseWriter, r *http.Request, code int, data interface{}) {
	write(w, code, Envelope{
		Code:          code,
		Message:       "success",
		Data:          data,
		CorrelationID: logger.CorrelationIDFromContext(r.Context()),
	})
}

// WithUsage is JSON plus the usage block of a gateway call.
func WithUsage(w http.ResponseWriter, r *http.Request, data, usage interface{}) {
	write(w, http.StatusOK, Envelope{
		Code:          http.StatusOK,
		Message:       "success",
		Data:          data,
		Usage:         usage,
		CorrelationID: logger.CorrelationIDFromContext(r.Context()),
	})
}

// Error renders err with the status of its kind. Internal errors are logged
// with their detail and answered with a generic message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		logger.WithContext(r.Context()).WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("Request failed")
	}
	ErrorMessage(w, r, status, errors.PublicMessage(err))
}

func ErrorMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	write(w, status, Envelope{
		Code:          status,
		Message:       message,
		CorrelationID: logger.CorrelationIDFromContext(r.Context()),
	})
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Logger.WithError(err).Warn("Failed to encode response")
	}
}
