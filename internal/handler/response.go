// Package handler holds the HTTP handlers.  Handlers return errors; the
// single HTTPErrorHandler installed on echo renders them in the response
// envelope.
package handler

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/content-platform/internal/apperr"
	"github.com/iliyamo/content-platform/internal/repository"
)

// Response is the envelope of every JSON body.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
	Errors     any    `json:"errors,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

func respond(c echo.Context, status int, data any, msg string) error {
	return c.JSON(status, Response{StatusCode: status, Data: data, Message: msg, Success: status < 400})
}

// toAppError maps the errors handlers can see onto the taxonomy.
func toAppError(err error) *apperr.Error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	var ve validation.Errors
	if errors.As(err, &ve) {
		return apperr.Wrap(apperr.InvalidArgument, ve.Error(), ve)
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return &apperr.Error{Kind: kindForStatus(he.Code), Message: msg, Err: err}
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.Wrap(apperr.NotFound, "resource not found", err)
	case errors.Is(err, repository.ErrConflict):
		return apperr.Wrap(apperr.Conflict, err.Error(), err)
	}
	return apperr.Wrap(apperr.Internal, "internal server error", err)
}

func kindForStatus(code int) apperr.Kind {
	switch code {
	case http.StatusUnauthorized:
		return apperr.Unauthenticated
	case http.StatusForbidden:
		return apperr.Forbidden
	case http.StatusNotFound:
		return apperr.NotFound
	case http.StatusConflict:
		return apperr.Conflict
	case http.StatusTooManyRequests:
		return apperr.TooManyRequests
	case http.StatusInternalServerError:
		return apperr.Internal
	}
	if code >= 400 && code < 500 {
		return apperr.InvalidArgument
	}
	return apperr.Internal
}

// HTTPErrorHandler renders err in the envelope.  Internal causes are logged
// and never sent to the client.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	ae := toAppError(err)
	status := ae.Kind.HTTPStatus()

	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code == http.StatusMethodNotAllowed {
		status = he.Code
	}

	body := Response{StatusCode: status, Message: ae.Message, Reason: ae.Reason}
	var ve validation.Errors
	if errors.As(err, &ve) {
		body.Errors = ve
	}
	if ae.Kind == apperr.Internal {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		c.Logger().Error(err)
	}
}
