// Package intake accepts new application records pushed by the
// external form integration. The core never pulls from the form; rows
// simply arrive here, are validated against a schema and created in
// the submitted state.
package intake

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/xeipuuv/gojsonschema"

	apperrors "seva-portal/internal/common/errors"
	"seva-portal/internal/common/logger"
	"seva-portal/internal/services/application"
)

const payloadSchema = `{
	"type": "object",
	"properties": {
		"applicant_name": {"type": "string", "minLength": 1},
		"mobile": {"type": "string", "minLength": 1},
		"service_name": {"type": "string", "minLength": 1},
		"price": {"type": "number", "minimum": 0}
	},
	"required": ["applicant_name", "mobile", "service_name"],
	"additionalProperties": true
}`

type payload struct {
	ApplicantName string   `json:"applicant_name"`
	Mobile        string   `json:"mobile"`
	ServiceName   string   `json:"service_name"`
	Price         *float64 `json:"price,omitempty"`
}

type Handler struct {
	schema *gojsonschema.Schema
	apps   *application.Service
	logger logger.Logger
}

func NewHandler(apps *application.Service, log logger.Logger) (*Handler, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(payloadSchema))
	if err != nil {
		return nil, err
	}
	return &Handler{
		schema: schema,
		apps:   apps,
		logger: log.WithFields(logger.Fields{"component": "intake"}),
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	result, err := h.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "payload is not valid JSON")
		return
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		h.logger.Warn("intake payload rejected", logger.Fields{"errors": details})
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   "payload validation failed",
			"details": details,
		})
		return
	}

	var in payload
	if err := json.Unmarshal(body, &in); err != nil {
		writeError(w, http.StatusBadRequest, "payload is not valid JSON")
		return
	}

	app, err := h.apps.Create(r.Context(), application.CreateInput{
		ApplicantName: in.ApplicantName,
		Mobile:        in.Mobile,
		ServiceName:   in.ServiceName,
		Price:         in.Price,
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeValidationFailed) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.Error("intake create failed", logger.Fields{"error": err})
		writeError(w, http.StatusBadGateway, "application could not be stored")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"applicationNo": app.ApplicationNo,
		"status":        app.Status,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
