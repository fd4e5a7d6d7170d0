package handlers

import (
	"errors"

	pkgerrors "myshop/pkg/errors"
	"myshop/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

type errorResponse struct {
	Message string         `json:"message"`
	Code    pkgerrors.Code `json:"code"`
	Errors  any            `json:"errors,omitempty"`
}

// ErrorHandler writes every error returned by a handler or middleware as
// {"message", "code", "errors"?}. Internal causes are logged, never returned.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, body := renderError(err)
		if status >= fiber.StatusInternalServerError {
			logger.FromContext(c.UserContext(), log).Error().Err(err).
				Str("method", c.Method()).
				Str("path", c.Path()).
				Msg("request failed")
		}
		return c.Status(status).JSON(body)
	}
}

func renderError(err error) (int, errorResponse) {
	if e := pkgerrors.As(err); e != nil {
		meta := pkgerrors.MetadataFor(e.Code())
		body := errorResponse{Message: e.Message(), Code: e.Code()}
		if e.Code() == pkgerrors.CodeInternal || body.Message == "" {
			body.Message = meta.PublicMessage
		}
		if meta.DetailsAllowed {
			body.Errors = e.Details()
		}
		return meta.HTTPStatus, body
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, errorResponse{Message: fe.Message, Code: codeForStatus(fe.Code)}
	}

	meta := pkgerrors.MetadataFor(pkgerrors.CodeInternal)
	return meta.HTTPStatus, errorResponse{Message: meta.PublicMessage, Code: pkgerrors.CodeInternal}
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity, fiber.StatusRequestEntityTooLarge:
		return pkgerrors.CodeValidation
	case fiber.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case fiber.StatusForbidden:
		return pkgerrors.CodeForbidden
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return pkgerrors.CodeNotFound
	case fiber.StatusConflict:
		return pkgerrors.CodeConflict
	case fiber.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	}
	return pkgerrors.CodeInternal
}
