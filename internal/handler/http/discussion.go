package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"roomhub/internal/repository"
	"roomhub/internal/service"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// DiscussionHandler exposes the room discussion endpoints.
type DiscussionHandler struct {
	discussionService *service.DiscussionService
	users             repository.UserRepository
}

// NewDiscussionHandler creates a DiscussionHandler.
func NewDiscussionHandler(discussionService *service.DiscussionService, users repository.UserRepository) *DiscussionHandler {
	return &DiscussionHandler{discussionService: discussionService, users: users}
}

// PostMessageRequest is the payload for POST /rooms/:token/discussion.
type PostMessageRequest struct {
	Message string `json:"message" binding:"required,min=1,max=2000"`
}

// PostMessage appends a message to the room's discussion.
func (h *DiscussionHandler) PostMessage(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: message required")
		return
	}
	userID := c.GetUint("user_id")

	user, err := h.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			ErrorResponse(c, http.StatusUnauthorized, "Unknown user")
			return
		}
		logrus.WithError(err).Error("Handler.PostMessage: user lookup failed")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	msg, err := h.discussionService.AppendMessage(c.Request.Context(), c.Param("token"), userID, user.Name, req.Message)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, gin.H{"message": msg})
}

// GetPage returns one page of the room's discussion, newest first.
func (h *DiscussionHandler) GetPage(c *gin.Context) {
	page, limit := pagination(c)

	result, err := h.discussionService.GetPage(c.Request.Context(), c.Param("token"), page, limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, result)
}

// pagination reads page and limit query parameters with sane bounds.
func pagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if err != nil || limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
