package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/users"
	"github.com/gin-gonic/gin"
)

type userPayload struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	Role        users.Role `json:"role"`
	IsActive    bool       `json:"is_active"`
	IsVerified  bool       `json:"is_verified"`
	Phone       string     `json:"phone"`
	Location    string     `json:"location"`
	Bio         string     `json:"bio"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func toUserPayload(user *users.User) userPayload {
	return userPayload{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		FullName:    user.FullName,
		Role:        user.Role,
		IsActive:    user.IsActive,
		IsVerified:  user.IsVerified,
		Phone:       user.Phone,
		Location:    user.Location,
		Bio:         user.Bio,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
		LastLoginAt: user.LastLoginAt,
	}
}

type userPatchPayload struct {
	Username   *string `json:"username"`
	Email      *string `json:"email"`
	Password   *string `json:"password"`
	FullName   *string `json:"full_name"`
	Phone      *string `json:"phone"`
	Location   *string `json:"location"`
	Bio        *string `json:"bio"`
	IsActive   *bool   `json:"is_active"`
	IsVerified *bool   `json:"is_verified"`
}

func (h *httpHandler) handleListUsers(c *gin.Context) {
	filter := users.ListFilter{
		Username: c.Query("username"),
		Email:    c.Query("email"),
	}
	if raw := c.Query("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "field": "is_active"})
			return
		}
		filter.IsActive = &active
	}

	result, err := h.users.List(c.Request.Context(), filter, pageParams(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]userPayload, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, toUserPayload(&result.Items[i]))
	}
	c.JSON(http.StatusOK, pageOf(result, items))
}

func (h *httpHandler) handleCurrentUser(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserPayload(user))
}

func (h *httpHandler) handleGetUser(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserPayload(user))
}

func (h *httpHandler) handleUpdateUser(c *gin.Context) {
	var request userPatchPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.Update(c.Request.Context(), c.Param("id"), users.Patch{
		Username:   request.Username,
		Email:      request.Email,
		Password:   request.Password,
		FullName:   request.FullName,
		Phone:      request.Phone,
		Location:   request.Location,
		Bio:        request.Bio,
		IsActive:   request.IsActive,
		IsVerified: request.IsVerified,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserPayload(user))
}

func (h *httpHandler) handleDeleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
