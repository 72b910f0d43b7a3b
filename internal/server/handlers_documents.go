package server

import (
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/documents"
	"github.com/gin-gonic/gin"
)

type documentPayload struct {
	ID            string           `json:"id"`
	UserID        string           `json:"user_id"`
	ApplicationID *string          `json:"application_id,omitempty"`
	Type          documents.Type   `json:"document_type"`
	Name          string           `json:"name"`
	Filename      string           `json:"filename"`
	FileSize      int64            `json:"file_size"`
	MimeType      string           `json:"mime_type"`
	Status        documents.Status `json:"status"`
	VerifiedAt    *time.Time       `json:"verified_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func toDocumentPayload(document *documents.Document) documentPayload {
	return documentPayload{
		ID:            document.ID,
		UserID:        document.UserID,
		ApplicationID: document.ApplicationID,
		Type:          document.Type,
		Name:          document.Name,
		Filename:      document.Filename,
		FileSize:      document.FileSize,
		MimeType:      document.MimeType,
		Status:        document.Status,
		VerifiedAt:    document.VerifiedAt,
		CreatedAt:     document.CreatedAt,
		UpdatedAt:     document.UpdatedAt,
	}
}

type documentCreatePayload struct {
	ApplicationID string         `json:"application_id"`
	Type          documents.Type `json:"document_type"`
	Name          string         `json:"name"`
	Filename      string         `json:"filename"`
	FileSize      int64          `json:"file_size"`
	MimeType      string         `json:"mime_type"`
}

type documentPatchPayload struct {
	Name   *string           `json:"name"`
	Status *documents.Status `json:"status"`
}

func (h *httpHandler) handleCreateDocument(c *gin.Context) {
	var request documentCreatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	document, err := h.documents.Create(c.Request.Context(), documents.CreateInput{
		UserID:        c.GetString(userIDContextKey),
		ApplicationID: request.ApplicationID,
		Type:          request.Type,
		Name:          request.Name,
		Filename:      request.Filename,
		FileSize:      request.FileSize,
		MimeType:      request.MimeType,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toDocumentPayload(document))
}

func (h *httpHandler) handleListDocuments(c *gin.Context) {
	filter := documents.ListFilter{
		UserID:        c.Query("user_id"),
		ApplicationID: c.Query("application_id"),
		Type:          documents.Type(c.Query("document_type")),
		Status:        documents.Status(c.Query("status")),
	}
	if filter.UserID == "" && filter.ApplicationID == "" {
		filter.UserID = c.GetString(userIDContextKey)
	}

	result, err := h.documents.List(c.Request.Context(), filter, pageParams(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]documentPayload, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, toDocumentPayload(&result.Items[i]))
	}
	c.JSON(http.StatusOK, pageOf(result, items))
}

func (h *httpHandler) handleGetDocument(c *gin.Context) {
	document, err := h.documents.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDocumentPayload(document))
}

func (h *httpHandler) handleUpdateDocument(c *gin.Context) {
	var request documentPatchPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	document, err := h.documents.Update(c.Request.Context(), c.Param("id"), documents.Patch{
		Name:   request.Name,
		Status: request.Status,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDocumentPayload(document))
}

func (h *httpHandler) handleDeleteDocument(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
