package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/agent-platform/internal/api/response"
	"github.com/Rrens/agent-platform/internal/domain"
)

var validate = validator.New()

// decodeOptionalJSON decodes r's body into dst; an empty body leaves dst untouched
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// validateInput runs struct validation and renders per-field errors
func validateInput(w http.ResponseWriter, input any) bool {
	err := validate.Struct(input)
	if err == nil {
		return true
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		response.BadRequest(w, err.Error())
		return false
	}

	fields := make(map[string]string)
	for _, e := range validationErrors {
		field := e.Field()
		switch e.Tag() {
		case "required":
			fields[field] = "field is required"
		case "oneof":
			fields[field] = "must be one of: " + e.Param()
		case "min":
			fields[field] = "must be at least " + e.Param()
		case "max":
			fields[field] = "must be at most " + e.Param()
		default:
			fields[field] = "validation failed on " + e.Tag()
		}
	}
	response.BadRequest(w, fields)
	return false
}

// writeServiceError maps domain errors onto HTTP statuses
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrAlreadyExists):
		response.BadRequest(w, err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg(action)
		response.InternalError(w, action)
	}
}
