package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"roomhub/internal/service"
)

func HandleServiceError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrAuthenticationFailed) {
		ErrorResponse(c, http.StatusUnauthorized, err.Error())
	} else if errors.Is(err, service.ErrForbidden) {
		ErrorResponse(c, http.StatusForbidden, err.Error())
	} else if errors.Is(err, service.ErrRegistrationFailed) || errors.Is(err, service.ErrValidation) || errors.Is(err, service.ErrRoomLimitReached) {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	} else if errors.Is(err, service.ErrRoomNotFound) || errors.Is(err, service.ErrUserNotFound) ||
		errors.Is(err, service.ErrAnnouncementNotFound) || errors.Is(err, service.ErrInvitationNotFound) {
		ErrorResponse(c, http.StatusNotFound, err.Error())
	} else if errors.Is(err, service.ErrCacheUnavailable) {
		ErrorResponse(c, http.StatusServiceUnavailable, err.Error())
	} else {
		// Log the internal error for debugging
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
