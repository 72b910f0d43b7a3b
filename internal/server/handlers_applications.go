package server

import (
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/applications"
	"github.com/gin-gonic/gin"
)

type applicationPayload struct {
	ID            string              `json:"id"`
	ApplicationID string              `json:"application_id"`
	UserID        string              `json:"user_id"`
	ProgramID     string              `json:"program_id"`
	Program       *programPayload     `json:"program,omitempty"`
	Status        applications.Status `json:"status"`
	Progress      int                 `json:"progress"`
	Notes         string              `json:"notes"`
	Deadline      *time.Time          `json:"deadline,omitempty"`
	SubmittedAt   *time.Time          `json:"submitted_at,omitempty"`
	DecisionDate  *time.Time          `json:"decision_date,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func toApplicationPayload(application *applications.Application) applicationPayload {
	payload := applicationPayload{
		ID:            application.ID,
		ApplicationID: application.ExternalID,
		UserID:        application.UserID,
		ProgramID:     application.ProgramID,
		Status:        application.Status,
		Progress:      application.Progress,
		Notes:         application.Notes,
		Deadline:      application.Deadline,
		SubmittedAt:   application.SubmittedAt,
		DecisionDate:  application.DecisionDate,
		CreatedAt:     application.CreatedAt,
		UpdatedAt:     application.UpdatedAt,
	}
	if application.Program.ID != "" {
		program := toProgramPayload(&application.Program)
		payload.Program = &program
	}
	return payload
}

type applicationCreatePayload struct {
	ProgramID string `json:"program_id"`
	Notes     string `json:"notes"`
}

type applicationPatchPayload struct {
	Status       *applications.Status `json:"status"`
	Progress     *int                 `json:"progress"`
	Notes        *string              `json:"notes"`
	Deadline     *time.Time           `json:"deadline"`
	DecisionDate *time.Time           `json:"decision_date"`
}

func (h *httpHandler) handleCreateApplication(c *gin.Context) {
	var request applicationCreatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	application, err := h.applications.Create(c.Request.Context(), applications.CreateInput{
		UserID:    c.GetString(userIDContextKey),
		ProgramID: request.ProgramID,
		Notes:     request.Notes,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toApplicationPayload(application))
}

func (h *httpHandler) handleListApplications(c *gin.Context) {
	filter := applications.ListFilter{
		UserID:    c.Query("user_id"),
		ProgramID: c.Query("program_id"),
		Status:    applications.Status(c.Query("status")),
	}
	if filter.UserID == "" {
		filter.UserID = c.GetString(userIDContextKey)
	}

	result, err := h.applications.List(c.Request.Context(), filter, pageParams(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]applicationPayload, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, toApplicationPayload(&result.Items[i]))
	}
	c.JSON(http.StatusOK, pageOf(result, items))
}

func (h *httpHandler) handleGetApplication(c *gin.Context) {
	view := applications.ViewWithProgram
	if c.Query("view") == "basic" {
		view = applications.ViewBasic
	}
	application, err := h.applications.GetByID(c.Request.Context(), c.Param("id"), view)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toApplicationPayload(application))
}

func (h *httpHandler) handleUpdateApplication(c *gin.Context) {
	var request applicationPatchPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	application, err := h.applications.Update(c.Request.Context(), c.Param("id"), applications.Patch{
		Status:       request.Status,
		Progress:     request.Progress,
		Notes:        request.Notes,
		Deadline:     request.Deadline,
		DecisionDate: request.DecisionDate,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toApplicationPayload(application))
}

func (h *httpHandler) handleSubmitApplication(c *gin.Context) {
	application, err := h.applications.Submit(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toApplicationPayload(application))
}

func (h *httpHandler) handleDeleteApplication(c *gin.Context) {
	if err := h.applications.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
