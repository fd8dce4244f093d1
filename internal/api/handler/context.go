package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/modernapi/identity-system/internal/api/middleware"
)

// ctxSubject returns the authenticated caller injected by the Auth middleware.
// Its absence means the route was wired without authentication.
func ctxSubject(c echo.Context) (string, error) {
	subject, _ := c.Get(middleware.ContextSubject).(string)
	if subject == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return subject, nil
}
