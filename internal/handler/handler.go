package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"postbox/internal/auth"
	"postbox/internal/errors"
)

// IdentityContextKey is where the bearer middleware stores the caller's
// auth.Identity.
const IdentityContextKey = "identity"

// MessageResponse is a plain acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// fail converts a domain error into an echo error carrying ErrorResponse.
func fail(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

func badRequest(message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
		Error: message,
		Code:  "INVALID_INPUT",
	})
}

// bind decodes and validates the request body into req.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return badRequest("invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return badRequest(err.Error())
	}
	return nil
}

// identity returns the verified caller. The route is expected to sit behind
// the bearer middleware.
func identity(c echo.Context) (auth.Identity, error) {
	id, ok := c.Get(IdentityContextKey).(auth.Identity)
	if !ok || id.UserID == 0 {
		return auth.Identity{}, fail(errors.ErrUnauthorized)
	}
	return id, nil
}

func pathID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, badRequest("invalid id")
	}
	return uint(id), nil
}
