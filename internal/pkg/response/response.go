// Package response writes the JSON envelope shared by every endpoint.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

// ErrEmptyBody is returned by DecodeJSON for a request without a body.
var ErrEmptyBody = errors.New("request body is empty")

// DecodeJSON decodes at most 1 MiB of JSON from body into v and closes it.
// Trailing data after the first value is an error.
func DecodeJSON(body io.ReadCloser, v any) error {
	defer body.Close()
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON body")
	}
	return nil
}

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorInfo describes a failure. Retryable tells clients whether the same request may
// succeed later (provider outage, contention) or is terminal.
type ErrorInfo struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable"`
	Details   map[string]string `json:"details,omitempty"`
}

// Meta is pagination metadata for list endpoints.
type Meta struct {
	Total   int  `json:"total"`
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// NewMeta builds pagination metadata.
func NewMeta(total, page, limit, pages int) Meta {
	return Meta{
		Total:   total,
		Page:    page,
		Limit:   limit,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	}
}

func write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func fail(w http.ResponseWriter, status int, info ErrorInfo) {
	write(w, status, Response{Error: &info})
}

// OK sends a 200 OK response
func OK(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, Response{Success: true, Data: data})
}

// Created sends a 201 Created response
func Created(w http.ResponseWriter, data any) {
	write(w, http.StatusCreated, Response{Success: true, Data: data})
}

// WithMeta sends a page of results.
func WithMeta(w http.ResponseWriter, data any, meta Meta) {
	write(w, http.StatusOK, Response{Success: true, Data: data, Meta: &meta})
}

// Error sends a terminal error with a domain-specific code.
func Error(w http.ResponseWriter, status int, code, message string) {
	fail(w, status, ErrorInfo{Code: code, Message: message})
}

// Retry sends an error the client may retry later.
func Retry(w http.ResponseWriter, status int, code, message string) {
	fail(w, status, ErrorInfo{Code: code, Message: message, Retryable: true})
}

func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, "BAD_REQUEST", message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func Forbidden(w http.ResponseWriter, message string) {
	Error(w, http.StatusForbidden, "FORBIDDEN", message)
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, "NOT_FOUND", message)
}

func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, "CONFLICT", message)
}

// Unprocessable sends a 422 for requests that are well-formed but break a business rule.
func Unprocessable(w http.ResponseWriter, code, message string) {
	Error(w, http.StatusUnprocessableEntity, code, message)
}

// ValidationError sends a 422 with per-field messages.
func ValidationError(w http.ResponseWriter, details map[string]string) {
	fail(w, http.StatusUnprocessableEntity, ErrorInfo{
		Code:    "VALIDATION_ERROR",
		Message: "Validation failed",
		Details: details,
	})
}

// InternalError sends a 500 without details.
func InternalError(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
}

// BadGateway reports an upstream provider failure.
func BadGateway(w http.ResponseWriter, message string) {
	Retry(w, http.StatusBadGateway, "PROVIDER_UNAVAILABLE", message)
}

// ServiceUnavailable reports contention or a dependency outage.
func ServiceUnavailable(w http.ResponseWriter, message string) {
	Retry(w, http.StatusServiceUnavailable, "RETRY_LATER", message)
}
