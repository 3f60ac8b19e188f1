package handler

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"mailsorter/internal/gmail"
	"mailsorter/internal/logger"
	"mailsorter/internal/service"
)

const maxPushBody = 64 << 10

// WebhookHandler receives Gmail change notifications pushed by Pub/Sub.
type WebhookHandler struct {
	syncService service.SyncService
	token       string
	logger      *logger.Logger
}

// NewWebhookHandler checks the token query parameter against token when it is not empty.
func NewWebhookHandler(syncService service.SyncService, token string, logger *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		syncService: syncService,
		token:       token,
		logger:      logger,
	}
}

func (h *WebhookHandler) GmailPush(c echo.Context) error {
	if h.token != "" && subtle.ConstantTimeCompare([]byte(c.QueryParam("token")), []byte(h.token)) != 1 {
		return c.JSON(http.StatusForbidden, map[string]string{
			"error": "Invalid verification token",
		})
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPushBody))
	if err != nil {
		return badRequest(c, "Invalid request body")
	}

	notification, err := gmail.DecodePushNotification(body)
	if err != nil {
		h.logger.Warn("Rejected push notification:", err)
		return badRequest(c, "Invalid push notification")
	}

	userID, err := h.syncService.HandlePush(c.Request().Context(), notification.EmailAddress, notification.HistoryID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotLinked) {
			h.logger.Warn("Push for unknown mailbox:", notification.EmailAddress)
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "Unknown mailbox",
			})
		}
		h.logger.Error("Failed to handle push notification:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to handle notification",
		})
	}

	h.logger.Debug("Push notification scheduled sync for user:", userID)
	return c.NoContent(http.StatusAccepted)
}
