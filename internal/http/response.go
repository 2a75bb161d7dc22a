// Package http exposes the transaction API and the embedded front-end.
//
// This file holds the JSON response builder and the mapping from domain
// errors to status codes.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// JSONResponse is a small fluent builder for JSON replies.
type JSONResponse struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a 200 response with a nil body.
func NewJSONResponse() *JSONResponse {
	return &JSONResponse{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponse) Status(code int) *JSONResponse {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponse) Header(name, value string) *JSONResponse {
	b.headers[name] = value
	return b
}

// Body sets the value to encode.
func (b *JSONResponse) Body(v any) *JSONResponse {
	b.body = v
	return b
}

// Write sends the response. Encoding errors are logged; the status line has
// already gone out by then.
func (b *JSONResponse) Write(ctx context.Context, w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		log.FromContext(ctx).Failure(ctx, "Failed to encode JSON response", err)
	}
}

// ErrorResponse builds {"error": message}.
func ErrorResponse(statusCode int, message string) *JSONResponse {
	return NewJSONResponse().
		Status(statusCode).
		Body(map[string]string{"error": message})
}

// NotFoundError creates a 404 response for a missing transaction.
func NotFoundError() *JSONResponse {
	return ErrorResponse(http.StatusNotFound, "Not found")
}

// RouteNotFoundError echoes the unknown API path.
func RouteNotFoundError(path string) *JSONResponse {
	return NewJSONResponse().
		Status(http.StatusNotFound).
		Body(map[string]string{"error": "Not found", "path": path})
}

// MethodNotAllowedError creates a 405 response listing the allowed methods.
func MethodNotAllowedError(allowed string) *JSONResponse {
	b := ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed")
	if allowed != "" {
		b.Header("Allow", allowed)
	}
	return b
}

// InternalServerError hides the cause from the client.
func InternalServerError() *JSONResponse {
	return NewJSONResponse().
		Status(http.StatusInternalServerError).
		Body(map[string]string{"error": "Server error", "message": "internal error"})
}

// errorFor maps a service error to its response. ok is false for errors that
// are not part of the domain taxonomy.
func errorFor(err error) (resp *JSONResponse, ok bool) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		return NewJSONResponse().
			Status(http.StatusUnprocessableEntity).
			Body(map[string]map[string]string{"errors": verr.Fields}), true
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError(), true
	case errors.Is(err, core.ErrNothingToUpdate):
		return ErrorResponse(http.StatusBadRequest, "Nothing to update"), true
	case errors.Is(err, core.ErrHeaderMismatch):
		return ErrorResponse(http.StatusUnprocessableEntity, headerMismatchMessage), true
	case errors.Is(err, core.ErrUpload):
		return ErrorResponse(http.StatusBadRequest, "File upload failed"), true
	}
	return nil, false
}

// writeError sends the mapped response, or a logged 500 for anything else.
func writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if resp, ok := errorFor(err); ok {
		resp.Write(ctx, w)
		return
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Request failed", err, op, nil)
	InternalServerError().Write(ctx, w)
}
