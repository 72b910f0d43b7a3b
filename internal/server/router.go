package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/activity"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/apperr"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/applications"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/documents"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/listing"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/notifications"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/posts"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/programs"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const userIDContextKey = "compass_user_id"

var (
	errMissingTokenManager        = errors.New("token manager dependency required")
	errMissingUsersService        = errors.New("users service dependency required")
	errMissingPostsService        = errors.New("posts service dependency required")
	errMissingProgramsService     = errors.New("programs service dependency required")
	errMissingApplicationsService = errors.New("applications service dependency required")
	errMissingDocumentsService    = errors.New("documents service dependency required")
	errMissingNotifService        = errors.New("notifications service dependency required")
	errMissingActivityRecorder    = errors.New("activity recorder dependency required")
	errInvalidAuthorization       = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates API access tokens.
type TokenManager interface {
	IssueToken(ctx context.Context, userID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies collects everything the HTTP surface needs.
type Dependencies struct {
	TokenManager  TokenManager
	Users         *users.Service
	Posts         *posts.Service
	Programs      *programs.Service
	Applications  *applications.Service
	Documents     *documents.Service
	Notifications *notifications.Service
	Activity      *activity.Recorder
	Logger        *zap.Logger
	CORSOrigins   []string
	Debug         bool
}

// NewHTTPHandler wires the gin router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Users == nil {
		return nil, errMissingUsersService
	}
	if deps.Posts == nil {
		return nil, errMissingPostsService
	}
	if deps.Programs == nil {
		return nil, errMissingProgramsService
	}
	if deps.Applications == nil {
		return nil, errMissingApplicationsService
	}
	if deps.Documents == nil {
		return nil, errMissingDocumentsService
	}
	if deps.Notifications == nil {
		return nil, errMissingNotifService
	}
	if deps.Activity == nil {
		return nil, errMissingActivityRecorder
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:        deps.TokenManager,
		users:         deps.Users,
		posts:         deps.Posts,
		programs:      deps.Programs,
		applications:  deps.Applications,
		documents:     deps.Documents,
		notifications: deps.Notifications,
		activity:      deps.Activity,
		logger:        logger,
		debug:         deps.Debug,
	}

	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/login", handler.handleLogin)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)

	protected.GET("/users", handler.handleListUsers)
	protected.GET("/users/me", handler.handleCurrentUser)
	protected.GET("/users/:id", handler.handleGetUser)
	protected.PATCH("/users/:id", handler.handleUpdateUser)
	protected.DELETE("/users/:id", handler.handleDeleteUser)

	protected.POST("/posts", handler.handleCreatePost)
	protected.GET("/posts", handler.handleListPosts)
	protected.GET("/posts/:id", handler.handleGetPost)
	protected.PATCH("/posts/:id", handler.handleUpdatePost)
	protected.DELETE("/posts/:id", handler.handleDeletePost)

	protected.POST("/programs", handler.handleCreateProgram)
	protected.GET("/programs", handler.handleListPrograms)
	protected.GET("/programs/:id", handler.handleGetProgram)
	protected.PATCH("/programs/:id", handler.handleUpdateProgram)
	protected.DELETE("/programs/:id", handler.handleDeleteProgram)

	protected.POST("/applications", handler.handleCreateApplication)
	protected.GET("/applications", handler.handleListApplications)
	protected.GET("/applications/:id", handler.handleGetApplication)
	protected.PATCH("/applications/:id", handler.handleUpdateApplication)
	protected.POST("/applications/:id/submit", handler.handleSubmitApplication)
	protected.DELETE("/applications/:id", handler.handleDeleteApplication)

	protected.POST("/documents", handler.handleCreateDocument)
	protected.GET("/documents", handler.handleListDocuments)
	protected.GET("/documents/:id", handler.handleGetDocument)
	protected.PATCH("/documents/:id", handler.handleUpdateDocument)
	protected.DELETE("/documents/:id", handler.handleDeleteDocument)

	protected.POST("/notifications", handler.handleCreateNotification)
	protected.GET("/notifications", handler.handleListNotifications)
	protected.GET("/notifications/unread-count", handler.handleUnreadCount)
	protected.POST("/notifications/read-all", handler.handleMarkAllRead)
	protected.POST("/notifications/:id/read", handler.handleMarkRead)
	protected.DELETE("/notifications/:id", handler.handleDeleteNotification)

	protected.GET("/dashboard/stats", handler.handleDashboardStats)
	protected.GET("/dashboard/activity", handler.handleDashboardActivity)
	protected.GET("/dashboard/deadlines", handler.handleDashboardDeadlines)

	return router, nil
}

type httpHandler struct {
	tokens        TokenManager
	users         *users.Service
	posts         *posts.Service
	programs      *programs.Service
	applications  *applications.Service
	documents     *documents.Service
	notifications *notifications.Service
	activity      *activity.Recorder
	logger        *zap.Logger
	debug         bool
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		// Expired tokens are routine client behavior, not an anomaly.
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

// respondError translates service errors into HTTP responses. Storage
// failures stay opaque unless debug mode is on.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "field": apperr.FieldOf(err), "detail": err.Error()})
	case apperr.KindDuplicate:
		c.JSON(http.StatusBadRequest, gin.H{"error": "duplicate_value", "field": apperr.FieldOf(err)})
	case apperr.KindInvalidTransition:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_transition", "detail": err.Error()})
	case apperr.KindRefNotFound:
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference_not_found", "detail": err.Error()})
	case apperr.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		h.logger.Error("request failed", zap.Error(err))
		if h.debug {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func pageParams(c *gin.Context) listing.Params {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	return listing.Params{Page: page, PageSize: pageSize}
}

type paginationPayload struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Pages    int   `json:"pages"`
}

type listPayload struct {
	Items      any               `json:"items"`
	Pagination paginationPayload `json:"pagination"`
}

func pageOf[T any](result listing.Result[T], items any) listPayload {
	return listPayload{
		Items: items,
		Pagination: paginationPayload{
			Total:    result.Total,
			Page:     result.Page,
			PageSize: result.PageSize,
			Pages:    result.Pages,
		},
	}
}
