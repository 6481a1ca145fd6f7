package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness probe used by load balancers and monitoring.
func Health(c echo.Context) error {
	return respond(c, http.StatusOK, echo.Map{"status": "ok"}, "ok")
}
