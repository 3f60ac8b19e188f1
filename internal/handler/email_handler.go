package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"mailsorter/internal/logger"
	"mailsorter/internal/service"
	"mailsorter/internal/sse"
)

const heartbeatInterval = 30 * time.Second

type EmailHandler struct {
	emailService service.EmailService
	syncService  service.SyncService
	users        UserResolver
	sseManager   *sse.SSEManager
	logger       *logger.Logger
}

func NewEmailHandler(emailService service.EmailService, syncService service.SyncService, users UserResolver, sseManager *sse.SSEManager, logger *logger.Logger) *EmailHandler {
	return &EmailHandler{
		emailService: emailService,
		syncService:  syncService,
		users:        users,
		sseManager:   sseManager,
		logger:       logger,
	}
}

type emailIDsRequest struct {
	EmailIDs []string `json:"email_ids"`
}

// SyncEmails schedules a mailbox sync and returns immediately. Progress arrives as sync_finished.
func (h *EmailHandler) SyncEmails(c echo.Context) error {
	user, err := currentUser(c, h.users)
	if err != nil {
		return unauthorized(c)
	}

	if !h.syncService.TriggerSync(user.ID) {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "Server is shutting down",
		})
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "Sync started",
	})
}

// GetEmails lists the user's emails, filtered by the category_id query parameter when present.
func (h *EmailHandler) GetEmails(c echo.Context) error {
	user, err := currentUser(c, h.users)
	if err != nil {
		return unauthorized(c)
	}

	emails, err := h.emailService.ListEmails(c.Request().Context(), user.ID, c.QueryParam("category_id"))
	if err != nil {
		h.logger.Error("Failed to get emails:", err)
		return serviceError(c, err, "Failed to get emails")
	}
	return c.JSON(http.StatusOK, emails)
}

// GetEmailsByCategory lists emails filed under the :id category.
func (h *EmailHandler) GetEmailsByCategory(c echo.Context) error {
	user, err := currentUser(c, h.users)
	if err != nil {
		return unauthorized(c)
	}

	emails, err := h.emailService.ListEmails(c.Request().Context(), user.ID, c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to get emails by category:", err)
		return serviceError(c, err, "Failed to get emails by category")
	}
	return c.JSON(http.StatusOK, emails)
}

func (h *EmailHandler) GetEmail(c echo.Context) error {
	user, err := currentUser(c, h.users)
	if err != nil {
		return unauthorized(c)
	}

	email, err := h.emailService.GetEmail(c.Request().Context(), user.ID, c.Param("id"))
	if err != nil {
		return serviceError(c, err, "Failed to get email")
	}
	return c.JSON(http.StatusOK, email)
}

// ClassifyEmail re-runs summarization and classification for one email.
func (h *EmailHandler) ClassifyEmail(c echo.Context) error {
	user, err := currentUser(c, h.users)
	if err != nil {
		return unauthorized(c)
	}

	ctx := c.Request().Context()
	email, err := h.emailService.GetEmail(ctx, user.ID, c.Param("id"))
	if err != nil {
		return serviceError(c, err, "Failed to get email")
	}
	if err := h.syncService.ClassifyEmail(ctx, email.ID); err != nil {
		h.logger.Error("Failed to classify email for user:", user.ID, err)
		return serviceError(c, err, "Failed to classify email")
	}

	updated, err := h.emailService.GetEmail(ctx, user.ID, email.ID)
	if err != nil {
		return serviceError(c, err, "Failed to get email")
	}
	return c.JSON(http.StatusOK, updated)
}

// PerformBulkAction archives or deletes several emails at once.
func (h *EmailHandler) PerformBulkAction(c echo.Context) error {
	user, err := currentUser(c, h.users)
	if err != nil {
		return unauthorized(c)
	}

	var req struct {
		Action   string   `json:"action"`
		EmailIDs []string `json:"email_ids"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.EmailIDs) == 0 {
		return badRequest(c, "Email IDs are required")
	}

	ctx := c.Request().Context()
	var affected int
	switch req.Action {
	case "archive":
		affected, err = h.emailService.ArchiveEmails(ctx, user.ID, req.EmailIDs)
	case "delete":
		affected, err = h.emailService.DeleteEmails(ctx, user.ID, req.EmailIDs)
	default:
		return badRequest(c, "Unknown action")
	}
	if err != nil {
		h.logger.Error("Bulk action failed:", req.Action, err)
		return serviceError(c, err, "Failed to perform bulk action")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"action":   req.Action,
		"affected": affected,
	})
}

// DeleteEmails removes the listed emails locally.
func (h *EmailHandler) DeleteEmails(c echo.Context) error {
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

	deleted, err := h.emailService.DeleteEmails(c.Request().Context(), user.ID, req.EmailIDs)
	if err != nil {
		return serviceError(c, err, "Failed to delete emails")
	}
	return c.JSON(http.StatusOK, map[string]int{
		"deleted": deleted,
	})
}

// DeleteEmail removes a single email locally.
func (h *EmailHandler) DeleteEmail(c echo.Context) error {
	user, err := currentUser(c, h.users)
	if err != nil {
		return unauthorized(c)
	}

	ctx := c.Request().Context()
	if _, err := h.emailService.GetEmail(ctx, user.ID, c.Param("id")); err != nil {
		return serviceError(c, err, "Failed to delete email")
	}
	if _, err := h.emailService.DeleteEmails(ctx, user.ID, []string{c.Param("id")}); err != nil {
		return serviceError(c, err, "Failed to delete email")
	}
	return c.NoContent(http.StatusNoContent)
}

// SSEEmailUpdates provides Server-Sent Events for real-time email updates
func (h *EmailHandler) SSEEmailUpdates(c echo.Context) error {
	user, err := currentUser(c, h.users)
	if err != nil {
		return unauthorized(c)
	}

	res := c.Response()
	res.Header().Set("Content-Type", "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	client := h.sseManager.AddClient(user.ID)
	defer h.sseManager.RemoveClient(user.ID, client)

	initJSON, _ := json.Marshal(map[string]interface{}{
		"type": "connection",
		"data": map[string]string{
			"message": "Connected to email updates",
			"userId":  user.ID,
		},
		"time": time.Now().Unix(),
	})
	if err := writeEvent(res, "connection", initJSON); err != nil {
		return nil
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case msg := <-client.Events():
			if err := writeEvent(res, msg.Event, msg.Data); err != nil {
				h.logger.Debug("SSE write failed for user:", user.ID, err)
				return nil
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case <-client.Done():
			return nil
		case <-c.Request().Context().Done():
			return nil
		}
	}
}

func writeEvent(res *echo.Response, event string, data []byte) error {
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	res.Flush()
	return nil
}
