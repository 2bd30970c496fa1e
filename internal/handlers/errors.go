package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"marginalia-backend/internal/rooms"

	"github.com/labstack/echo/v4"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, rooms.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rooms.ErrInvalidState), errors.Is(err, rooms.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, rooms.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, rooms.ErrConflict):
		return http.StatusConflict
	default:
		// ErrUpstream, ErrStorage and anything unexpected
		return http.StatusInternalServerError
	}
}

// roomError turns a lifecycle error into an HTTP error. failure is the
// message used unless the error kind has a fixed one.
func roomError(err error, failure string) *echo.HTTPError {
	resp := ErrorResponse{Message: failure, Error: err.Error()}

	switch {
	case errors.Is(err, rooms.ErrNotFound):
		resp.Message = "Room not found"
	case errors.Is(err, rooms.ErrForbidden):
		resp.Message = "Permission denied. Only superusers can perform this action."
	}

	return echo.NewHTTPError(statusFor(err), resp).SetInternal(err)
}

// ErrorHandler renders every error, including echo's own (unknown routes,
// malformed bodies), as an ErrorResponse.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		he = roomError(err, "Internal server error")
	}

	var body ErrorResponse
	switch m := he.Message.(type) {
	case ErrorResponse:
		body = m
	case string:
		body.Message = m
	case error:
		body.Message = m.Error()
	default:
		body.Message = fmt.Sprint(m)
	}
	if body.Error == "" && he.Internal != nil {
		body.Error = he.Internal.Error()
	}

	if he.Code >= http.StatusInternalServerError {
		cause := err
		if he.Internal != nil {
			cause = he.Internal
		}
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, cause)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(he.Code)
	} else {
		err = c.JSON(he.Code, body)
	}
	if err != nil {
		c.Logger().Warnf("Failed to write error response: %v", err)
	}
}
