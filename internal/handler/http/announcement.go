package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"roomhub/internal/domain"
	"roomhub/internal/repository"
	"roomhub/internal/service"
)

// AnnouncementHandler exposes the announcement endpoints.
type AnnouncementHandler struct {
	announcementService *service.AnnouncementService
	users               repository.UserRepository
}

// NewAnnouncementHandler creates an AnnouncementHandler.
func NewAnnouncementHandler(announcementService *service.AnnouncementService, users repository.UserRepository) *AnnouncementHandler {
	return &AnnouncementHandler{announcementService: announcementService, users: users}
}

// CreateAnnouncementRequest is the payload for POST /rooms/:token/announcements.
// ScheduledAt, when set, defers publication to the scheduler.
type CreateAnnouncementRequest struct {
	Title       string     `json:"title" binding:"required,min=1,max=200"`
	Description string     `json:"description" binding:"required,min=1"`
	Attachment  string     `json:"attachment"`
	ScheduledAt *time.Time `json:"scheduledAt"`
}

// Create handles announcement creation.
func (h *AnnouncementHandler) Create(c *gin.Context) {
	var req CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input")
		return
	}
	userID := c.GetUint("user_id")

	user, err := h.lookupUser(c, userID)
	if err != nil {
		return
	}

	announcement, err := h.announcementService.Create(c.Request.Context(), c.Param("token"), service.CreateAnnouncementInput{
		Title:       req.Title,
		Description: req.Description,
		Attachment:  req.Attachment,
		AuthorID:    userID,
		AuthorName:  user.Name,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, gin.H{"announcement": announcement})
}

// GetPage returns one page of the room's posted announcements, newest first.
func (h *AnnouncementHandler) GetPage(c *gin.Context) {
	page, limit := pagination(c)

	result, err := h.announcementService.GetPage(c.Request.Context(), c.Param("token"), page, limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, result)
}

// CommentRequest is the payload for POST /announcements/:id/comments.
type CommentRequest struct {
	Comment string `json:"comment" binding:"required,min=1,max=2000"`
}

// AddComment appends a comment to an announcement.
func (h *AnnouncementHandler) AddComment(c *gin.Context) {
	announcementID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid announcement id")
		return
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: comment required")
		return
	}
	userID := c.GetUint("user_id")

	user, err := h.lookupUser(c, userID)
	if err != nil {
		return
	}

	comment, err := h.announcementService.AddComment(c.Request.Context(), uint(announcementID), userID, user.Name, req.Comment)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, gin.H{"comment": comment})
}

// lookupUser resolves the authenticated user, writing the error response on
// failure.
func (h *AnnouncementHandler) lookupUser(c *gin.Context, userID uint) (*domain.User, error) {
	user, err := h.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			ErrorResponse(c, http.StatusUnauthorized, "Unknown user")
			return nil, err
		}
		logrus.WithError(err).Error("Handler: user lookup failed")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
		return nil, err
	}
	return user, nil
}
