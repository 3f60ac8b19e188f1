package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"mailsorter/internal/ai"
	"mailsorter/internal/model"
	"mailsorter/internal/repository"
	"mailsorter/internal/service"
)

// UserContextKey is where AuthMiddleware stores the authenticated user.
const UserContextKey = "user"

// UserResolver identifies the user behind a request.
type UserResolver interface {
	GetCurrentUser(c echo.Context) (*model.User, error)
}

// currentUser prefers the user cached by AuthMiddleware.
func currentUser(c echo.Context, users UserResolver) (*model.User, error) {
	if user, ok := c.Get(UserContextKey).(*model.User); ok && user != nil {
		return user, nil
	}
	return users.GetCurrentUser(c)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{
		"error": "Unauthorized",
	})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{
		"error": message,
	})
}

// serviceError maps service and repository errors to a JSON error response.
func serviceError(c echo.Context, err error, fallback string) error {
	status, message := http.StatusInternalServerError, fallback
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrForbidden):
		status, message = http.StatusNotFound, "Not found"
	case errors.Is(err, service.ErrInvalidCategory):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrNoEligibleEmails):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, service.ErrAlreadyInProgress):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, ai.ErrInvalidSuggestion):
		status, message = http.StatusBadGateway, "Could not generate a category suggestion"
	}
	return c.JSON(status, map[string]string{
		"error": message,
	})
}
