package errorhandler

import (
	"context"
	"net/http"

	"github.com/quizbirr/quizbirr-api/internal/pkg/logger"
	"github.com/quizbirr/quizbirr-api/internal/pkg/response"
)

const maxLoggedBody = 1000

// Internal logs err and sends a generic 500 without leaking details.
func Internal(ctx context.Context, w http.ResponseWriter, err error) {
	logger.FromContext(ctx).Error().Err(err).Msg("Unhandled request error")
	response.InternalError(w)
}

// HandlePanicError logs a recovered panic and sends a 500.
func HandlePanicError(ctx context.Context, w http.ResponseWriter, panicErr any, stack []byte) {
	logger.FromContext(ctx).Error().
		Interface("panic", panicErr).
		Bytes("stack", stack).
		Msg("Request panicked")

	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
}

// LogExternalServiceError logs a failed provider call. statusCode is 0 when no response arrived.
func LogExternalServiceError(ctx context.Context, service, operation string, statusCode int, err error, body string) {
	if len(body) > maxLoggedBody {
		body = body[:maxLoggedBody] + "...<truncated>"
	}
	event := logger.FromContext(ctx).Error().
		Err(err).
		Str("provider", service).
		Str("operation", operation)
	if statusCode != 0 {
		event = event.Int("upstream_status", statusCode).Str("upstream_body", body)
	}
	event.Msg("Payment provider call failed")
}
