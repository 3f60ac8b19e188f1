package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"mailsorter/internal/handler"
)

// AuthMiddleware rejects anonymous requests and caches the user on the context.
func AuthMiddleware(users handler.UserResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := users.GetCurrentUser(c)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "Unauthorized",
				})
			}
			c.Set(handler.UserContextKey, user)
			return next(c)
		}
	}
}
