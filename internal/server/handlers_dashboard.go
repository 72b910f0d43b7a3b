package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/activity"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/applications"
	"github.com/gin-gonic/gin"
)

type dashboardStatsPayload struct {
	TotalApplications   int64 `json:"total_applications"`
	Submitted           int64 `json:"submitted"`
	UnderReview         int64 `json:"under_review"`
	OffersReceived      int64 `json:"offers_received"`
	UnreadNotifications int64 `json:"unread_notifications"`
}

func (h *httpHandler) handleDashboardStats(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	counts, err := h.applications.CountByStatus(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	unread, err := h.notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dashboardStatsPayload{
		TotalApplications:   counts.Total,
		Submitted:           counts.ByStatus[applications.StatusSubmitted],
		UnderReview:         counts.ByStatus[applications.StatusUnderReview],
		OffersReceived:      counts.ByStatus[applications.StatusOfferReceived],
		UnreadNotifications: unread,
	})
}

type activityPayload struct {
	ID                   string        `json:"id"`
	Type                 activity.Type `json:"activity_type"`
	Title                string        `json:"title"`
	Description          string        `json:"description"`
	RelatedApplicationID *string       `json:"related_application_id,omitempty"`
	RelatedDocumentID    *string       `json:"related_document_id,omitempty"`
	RelatedProgramID     *string       `json:"related_program_id,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
}

func toActivityPayload(entry *activity.Activity) activityPayload {
	return activityPayload{
		ID:                   entry.ID,
		Type:                 entry.Type,
		Title:                entry.Title,
		Description:          entry.Description,
		RelatedApplicationID: entry.RelatedApplicationID,
		RelatedDocumentID:    entry.RelatedDocumentID,
		RelatedProgramID:     entry.RelatedProgramID,
		CreatedAt:            entry.CreatedAt,
	}
}

func (h *httpHandler) handleDashboardActivity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.activity.Recent(c.Request.Context(), c.GetString(userIDContextKey), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]activityPayload, 0, len(entries))
	for i := range entries {
		items = append(items, toActivityPayload(&entries[i]))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *httpHandler) handleDashboardDeadlines(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := h.applications.UpcomingDeadlines(c.Request.Context(), c.GetString(userIDContextKey), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]applicationPayload, 0, len(rows))
	for i := range rows {
		items = append(items, toApplicationPayload(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
