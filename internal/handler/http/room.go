package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"roomhub/internal/service"
)

// RoomHandler exposes room lifecycle, membership and presence endpoints.
type RoomHandler struct {
	roomService     *service.RoomService
	presenceService *service.PresenceService
}

// NewRoomHandler creates a RoomHandler.
func NewRoomHandler(roomService *service.RoomService, presenceService *service.PresenceService) *RoomHandler {
	return &RoomHandler{roomService: roomService, presenceService: presenceService}
}

// CreateRoomRequest is the payload for POST /rooms.
type CreateRoomRequest struct {
	Name    string `json:"name" binding:"required,min=1,max=120"`
	Private bool   `json:"private"`
}

// CreateRoom handles room creation.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input")
		return
	}
	userID := c.GetUint("user_id")

	room, err := h.roomService.CreateRoom(c.Request.Context(), userID, req.Name, req.Private)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{"user_id": userID, "room_token": room.Token}).Info("Handler.CreateRoom: Room created")
	SuccessResponse(c, http.StatusCreated, gin.H{
		"message": "Room created successfully",
		"room":    room,
	})
}

// GetRoom returns a single room by token.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.GetRoomByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"room": room})
}

// ListRooms returns rooms owned by the authenticated user.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.roomService.GetUserRooms(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"rooms": rooms})
}

// ListEnrolledRooms returns rooms the authenticated user has joined.
func (h *RoomHandler) ListEnrolledRooms(c *gin.Context) {
	rooms, err := h.roomService.GetUserEnrolledRooms(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"rooms": rooms})
}

// ListInvitations returns the authenticated user's pending invitations.
func (h *RoomHandler) ListInvitations(c *gin.Context) {
	invitations, err := h.roomService.GetUserInvitations(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"invitations": invitations})
}

// InviteRequest is the payload for POST /rooms/:token/invite.
type InviteRequest struct {
	Emails []string `json:"emails" binding:"required,min=1"`
}

// Invite creates pending invitations for the listed emails.
func (h *RoomHandler) Invite(c *gin.Context) {
	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: emails required")
		return
	}

	invited, err := h.roomService.InviteParticipants(c.Request.Context(), c.GetUint("user_id"), c.Param("token"), req.Emails)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{
		"message": "Invitations sent",
		"invited": invited,
	})
}

// EnrollRequest is the payload for POST /invitations/:id.
type EnrollRequest struct {
	Accept bool `json:"accept"`
}

// Enroll resolves a pending invitation.
func (h *RoomHandler) Enroll(c *gin.Context) {
	invitationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid invitation id")
		return
	}
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input")
		return
	}

	room, err := h.roomService.Enroll(c.Request.Context(), c.GetUint("user_id"), uint(invitationID), req.Accept)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	if !req.Accept {
		SuccessResponse(c, http.StatusOK, gin.H{"message": "Invitation rejected"})
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{
		"message": "Enrolled successfully",
		"room":    room,
	})
}

// DeleteRoom removes a room and all of its data.
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	if err := h.roomService.DeleteRoom(c.Request.Context(), c.GetUint("user_id"), c.Param("token")); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Room deleted"})
}

// Presence returns the room's current joined users.
func (h *RoomHandler) Presence(c *gin.Context) {
	joined, err := h.presenceService.List(c.Request.Context(), c.Param("token"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"joinedUsers": joined})
}

// ConferencePresence returns the room's current conference participants.
func (h *RoomHandler) ConferencePresence(c *gin.Context) {
	joined, err := h.presenceService.ListConference(c.Request.Context(), c.Param("token"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"joinedUsers": joined})
}
