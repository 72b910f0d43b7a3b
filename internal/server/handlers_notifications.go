package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/notifications"
	"github.com/gin-gonic/gin"
)

type notificationPayload struct {
	ID                   string             `json:"id"`
	UserID               string             `json:"user_id"`
	Type                 notifications.Type `json:"notification_type"`
	Title                string             `json:"title"`
	Message              string             `json:"message"`
	IsRead               bool               `json:"is_read"`
	ReadAt               *time.Time         `json:"read_at,omitempty"`
	RelatedApplicationID *string            `json:"related_application_id,omitempty"`
	RelatedProgramID     *string            `json:"related_program_id,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
}

func toNotificationPayload(notification *notifications.Notification) notificationPayload {
	return notificationPayload{
		ID:                   notification.ID,
		UserID:               notification.UserID,
		Type:                 notification.Type,
		Title:                notification.Title,
		Message:              notification.Message,
		IsRead:               notification.IsRead,
		ReadAt:               notification.ReadAt,
		RelatedApplicationID: notification.RelatedApplicationID,
		RelatedProgramID:     notification.RelatedProgramID,
		CreatedAt:            notification.CreatedAt,
	}
}

type notificationCreatePayload struct {
	UserID               string             `json:"user_id"`
	Type                 notifications.Type `json:"notification_type"`
	Title                string             `json:"title"`
	Message              string             `json:"message"`
	RelatedApplicationID string             `json:"related_application_id"`
	RelatedProgramID     string             `json:"related_program_id"`
}

func (h *httpHandler) handleCreateNotification(c *gin.Context) {
	var request notificationCreatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if request.UserID == "" {
		request.UserID = c.GetString(userIDContextKey)
	}

	notification, err := h.notifications.Create(c.Request.Context(), notifications.CreateInput{
		UserID:               request.UserID,
		Type:                 request.Type,
		Title:                request.Title,
		Message:              request.Message,
		RelatedApplicationID: request.RelatedApplicationID,
		RelatedProgramID:     request.RelatedProgramID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toNotificationPayload(notification))
}

func (h *httpHandler) handleListNotifications(c *gin.Context) {
	filter := notifications.ListFilter{
		UserID: c.GetString(userIDContextKey),
		Type:   notifications.Type(c.Query("notification_type")),
	}
	if raw := c.Query("unread_only"); raw != "" {
		unreadOnly, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "field": "unread_only"})
			return
		}
		filter.UnreadOnly = unreadOnly
	}

	result, err := h.notifications.List(c.Request.Context(), filter, pageParams(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]notificationPayload, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, toNotificationPayload(&result.Items[i]))
	}
	c.JSON(http.StatusOK, pageOf(result, items))
}

func (h *httpHandler) handleUnreadCount(c *gin.Context) {
	count, err := h.notifications.UnreadCount(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func (h *httpHandler) handleMarkRead(c *gin.Context) {
	notification, err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toNotificationPayload(notification))
}

func (h *httpHandler) handleMarkAllRead(c *gin.Context) {
	affected, err := h.notifications.MarkAllRead(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked_read": affected})
}

func (h *httpHandler) handleDeleteNotification(c *gin.Context) {
	if err := h.notifications.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
