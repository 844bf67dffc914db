package middleware

import (
	"fmt"
	"runtime/debug"
	"time"

	"triage_server/pkg/apperr"
	"triage_server/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const LocalRequestID = "request_id"

// ErrorHandler renders handler errors in the response envelope.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID, _ := c.Locals(LocalRequestID).(string)

		if fe, ok := err.(*fiber.Error); ok {
			return response.Error(c, fe.Code, mapHTTPStatusToCode(fe.Code), fe.Message)
		}

		status := apperr.GetHTTPStatus(err)
		event := log.Warn()
		if status >= 500 {
			event = log.Error()
		}
		event.Err(err).Str("request_id", requestID).Str("path", c.Path()).Msg("request failed")

		return response.FromError(c, err)
	}
}

// RequestID propagates or assigns X-Request-ID.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Locals(LocalRequestID, requestID)
		c.Set("X-Request-ID", requestID)
		return c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		default:
			event = log.Debug()
		}

		requestID, _ := c.Locals(LocalRequestID).(string)
		event.
			Str("request_id", requestID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Float64("duration_ms", float64(time.Since(start).Microseconds())/1000.0).
			Msg("request")
		return err
	}
}

// Recover turns handler panics into 500 responses.
func Recover(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("panic", fmt.Sprintf("%v", r)).
					Str("path", c.Path()).
					Str("stack", string(debug.Stack())).
					Msg("panic recovered")
				err = response.FromError(c, apperr.Internal("an unexpected error occurred"))
			}
		}()
		return c.Next()
	}
}

// SecurityHeaders sets the usual API hardening headers.
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		return c.Next()
	}
}

func mapHTTPStatusToCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return apperr.CodeBadRequest
	case fiber.StatusUnauthorized:
		return apperr.CodeUnauthorized
	case fiber.StatusForbidden:
		return apperr.CodeForbidden
	case fiber.StatusNotFound:
		return apperr.CodeNotFound
	default:
		return apperr.CodeInternalError
	}
}
