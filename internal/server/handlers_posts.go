package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/posts"
	"github.com/gin-gonic/gin"
)

type postPayload struct {
	ID        string       `json:"id"`
	AuthorID  string       `json:"author_id"`
	Author    *userPayload `json:"author,omitempty"`
	Title     string       `json:"title"`
	Content   string       `json:"content"`
	Published bool         `json:"published"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func toPostPayload(post *posts.Post) postPayload {
	payload := postPayload{
		ID:        post.ID,
		AuthorID:  post.AuthorID,
		Title:     post.Title,
		Content:   post.Content,
		Published: post.Published,
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}
	if post.Author.ID != "" {
		author := toUserPayload(&post.Author)
		payload.Author = &author
	}
	return payload
}

type postCreatePayload struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Published bool   `json:"published"`
}

type postPatchPayload struct {
	Title     *string `json:"title"`
	Content   *string `json:"content"`
	Published *bool   `json:"published"`
}

func (h *httpHandler) handleCreatePost(c *gin.Context) {
	var request postCreatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	post, err := h.posts.Create(c.Request.Context(), posts.CreateInput{
		AuthorID:  c.GetString(userIDContextKey),
		Title:     request.Title,
		Content:   request.Content,
		Published: request.Published,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPostPayload(post))
}

func (h *httpHandler) handleListPosts(c *gin.Context) {
	filter := posts.ListFilter{
		AuthorID: c.Query("author_id"),
		Search:   c.Query("search"),
	}
	if raw := c.Query("published"); raw != "" {
		published, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "field": "published"})
			return
		}
		filter.Published = &published
	}

	result, err := h.posts.List(c.Request.Context(), filter, pageParams(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]postPayload, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, toPostPayload(&result.Items[i]))
	}
	c.JSON(http.StatusOK, pageOf(result, items))
}

func (h *httpHandler) handleGetPost(c *gin.Context) {
	view := posts.ViewBasic
	if c.Query("view") == "with_author" {
		view = posts.ViewWithAuthor
	}
	post, err := h.posts.GetByID(c.Request.Context(), c.Param("id"), view)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPostPayload(post))
}

func (h *httpHandler) handleUpdatePost(c *gin.Context) {
	var request postPatchPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	post, err := h.posts.Update(c.Request.Context(), c.Param("id"), posts.Patch{
		Title:     request.Title,
		Content:   request.Content,
		Published: request.Published,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPostPayload(post))
}

func (h *httpHandler) handleDeletePost(c *gin.Context) {
	if err := h.posts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
