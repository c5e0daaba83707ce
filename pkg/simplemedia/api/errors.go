package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// statusFor maps service errors onto HTTP status codes and error codes.
func statusFor(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, simplemedia.ErrRecordNotFound),
		errors.Is(err, simplemedia.ErrAssetAbsent),
		errors.Is(err, simplemedia.ErrBlobNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, simplemedia.ErrSlugTaken):
		return http.StatusConflict, "slug_taken"
	case errors.Is(err, simplemedia.ErrAssetInUse):
		return http.StatusConflict, "asset_in_use"
	case errors.Is(err, simplemedia.ErrInvalidStatus):
		return http.StatusBadRequest, "invalid_status"
	case errors.Is(err, simplemedia.ErrCategoryInUse):
		return http.StatusBadRequest, "category_in_use"
	case errors.Is(err, simplemedia.ErrInvalidRecord):
		return http.StatusBadRequest, "invalid_record"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	body := ErrorBody{Code: code, Message: err.Error()}

	var validation *simplemedia.ValidationError
	if errors.As(err, &validation) {
		body.Field = validation.Field
	}
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		body.Message = "An internal server error occurred"
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: body})
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: "bad_request", Message: message}})
}
