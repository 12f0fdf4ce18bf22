package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON and writeError, so every error
// response has the same shape:
//
//	{"error": "quota_exceeded", "message": "you can only track 3 products; ..."}
//
// Validation failures add the offending field, or a map of fields when the
// request body itself failed validation.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/dealwatch/internal/apperror"
	"github.com/sakif/dealwatch/internal/extractor"
)

// maxBodyBytes bounds request bodies; the largest legitimate body is a URL.
const maxBodyBytes = 16 << 10

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string            `json:"error"`   // machine-readable, e.g. "not_found"
	Message string            `json:"message"` // human-readable
	Field   string            `json:"field,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// writeJSON sends data as JSON with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body; once Encode writes, later
// header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// headers are already sent; all we can do is log
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps an error from the service layer to an HTTP response.
//
// ERROR MAPPING:
//
//	apperror.ErrValidation      → 400 validation_error
//	apperror.ErrNotFound        → 404 not_found
//	apperror.ErrForbidden       → 403 forbidden
//	apperror.ErrConflict        → 409 conflict
//	apperror.ErrQuotaExceeded   → 409 quota_exceeded
//	apperror.ErrUnsupported     → 422 unsupported_retailer
//	*extractor.FetchError       → 502 fetch_failed
//	*extractor.ExtractionError  → 422 extraction_failed
//	anything else               → 500 internal_error
//
// Extractor errors are checked first: they never carry an AppError, and their
// text is safe to show because it names only the retailer or the URL the
// caller sent.
func writeError(w http.ResponseWriter, err error) {
	var fetchErr *extractor.FetchError
	if errors.As(err, &fetchErr) {
		msg := "could not fetch the product page; try again later"
		if fetchErr.Timeout() {
			msg = "the product page took too long to load; try again later"
		}
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "fetch_failed", Message: msg})
		return
	}

	var extractErr *extractor.ExtractionError
	if errors.As(err, &extractErr) {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "extraction_failed",
			Message: fmt.Sprintf("could not read the product %s from the page", extractErr.Kind),
		})
		return
	}

	if errors.Is(err, extractor.ErrUnknownRetailer) {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "unsupported_retailer",
			Message: "this website is not supported",
		})
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrQuotaExceeded):
			status = http.StatusConflict
			errorType = "quota_exceeded"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrUnsupported):
			status = http.StatusUnprocessableEntity
			errorType = "unsupported_retailer"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	// Never expose internal error text: it may contain SQL or file paths.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// newValidator returns a validator that reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a JSON request body into dst and validates it. A missing
// body decodes as {}, so validation reports any required field.
func decodeJSON(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) *ErrorResponse {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &ErrorResponse{Error: "invalid_json", Message: "request body is not valid JSON: " + err.Error()}
	}

	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &ErrorResponse{Error: "validation_error", Message: err.Error()}
		}
		fields := make(map[string]string, len(verrs))
		for _, e := range verrs {
			fields[e.Field()] = validationMessage(e)
		}
		return &ErrorResponse{Error: "validation_error", Message: "request validation failed", Fields: fields}
	}
	return nil
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + e.Param() + " characters"
	case "url", "http_url":
		return "must be a URL"
	default:
		return fmt.Sprintf("failed on the '%s' rule", e.Tag())
	}
}
