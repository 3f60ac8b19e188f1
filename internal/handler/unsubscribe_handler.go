package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"mailsorter/internal/logger"
	"mailsorter/internal/service"
)

type UnsubscribeHandler struct {
	unsubscribeService service.UnsubscribeService
	users              UserResolver
	logger             *logger.Logger
}

func NewUnsubscribeHandler(unsubscribeService service.UnsubscribeService, users UserResolver, logger *logger.Logger) *UnsubscribeHandler {
	return &UnsubscribeHandler{
		unsubscribeService: unsubscribeService,
		users:              users,
		logger:             logger,
	}
}

// UnsubscribeEmails dispatches unsubscribe agents for the selected emails.
// The outcome arrives later as an unsubscribe_finished event.
func (h *UnsubscribeHandler) UnsubscribeEmails(c echo.Context) error {
	user, err := currentUser(c, h.users)
	if err != nil {
		return unauthorized(c)
	}

	var req emailIDsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.EmailIDs) == 0 {
		return badRequest(c, "Email IDs are required")
	}

	return h.dispatch(c, user.ID, req.EmailIDs)
}

// UnsubscribeEmail dispatches an agent for the :id email.
func (h *UnsubscribeHandler) UnsubscribeEmail(c echo.Context) error {
	user, err := currentUser(c, h.users)
	if err != nil {
		return unauthorized(c)
	}
	return h.dispatch(c, user.ID, []string{c.Param("id")})
}

func (h *UnsubscribeHandler) dispatch(c echo.Context, userID string, emailIDs []string) error {
	accepted, err := h.unsubscribeService.UnsubscribeEmails(c.Request().Context(), userID, emailIDs)
	if err != nil {
		h.logger.Warn("Unsubscribe request rejected for user:", userID, err)
		return serviceError(c, err, "Failed to unsubscribe from emails")
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message":  "Unsubscribe started",
		"accepted": accepted,
	})
}
