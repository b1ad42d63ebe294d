package presenter

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"

	"github.com/totegamma/vidcatalog/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Trace string `json:"traceId,omitempty"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func Created(c echo.Context, payload any) error {
	return c.JSON(http.StatusCreated, payload)
}

func BadRequestMessage(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg, Kind: domain.KindInvalidArgument.String()})
}

func Unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: msg, Kind: domain.KindUnauthorized.String()})
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Error renders err by kind. Server side failures hide their cause.
func Error(c echo.Context, err error) error {
	kind := domain.KindOf(err)
	status := StatusOf(kind)

	if status == http.StatusInternalServerError {
		c.Logger().Error(err)
		msg := "internal server error"
		if kind == domain.KindUploadFailed {
			msg = "failed to upload video file"
		}
		resp := errorResponse{Error: msg, Kind: kind.String()}
		if sc := trace.SpanContextFromContext(c.Request().Context()); sc.HasTraceID() {
			resp.Trace = sc.TraceID().String()
		}
		return c.JSON(status, resp)
	}

	msg := err.Error()
	var de domain.Error
	if errors.As(err, &de) {
		msg = de.Error()
	}
	return c.JSON(status, errorResponse{Error: msg, Kind: kind.String()})
}
