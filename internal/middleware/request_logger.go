package middleware

import (
	"errors"
	"time"

	pkgerrors "myshop/pkg/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// RequestLogger attaches a request-scoped logger to the user context and writes
// one access line per request. It expects requestid to run before it.
func RequestLogger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := c.GetRespHeader(fiber.HeaderXRequestID)

		reqLog := log.With().Str("request_id", requestID).Logger()
		c.SetUserContext(reqLog.WithContext(c.UserContext()))

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = statusOf(err)
		}

		event := reqLog.Info()
		switch {
		case status >= fiber.StatusInternalServerError:
			event = reqLog.Error().Err(err)
		case status >= fiber.StatusBadRequest:
			event = reqLog.Warn()
		}
		if identity := IdentityFrom(c); identity != nil {
			event = event.Str("user_id", identity.UserID)
		}
		event.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.IP()).
			Msg("request handled")
		return err
	}
}

func statusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	if e := pkgerrors.As(err); e != nil {
		return pkgerrors.MetadataFor(e.Code()).HTTPStatus
	}
	return fiber.StatusInternalServerError
}
