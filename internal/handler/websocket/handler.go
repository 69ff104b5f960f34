package websocket

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"roomhub/internal/hub"
	"roomhub/internal/repository"
	"roomhub/internal/service"
)

// WebSocketHandler upgrades room and conference connections, registers the
// client with the Hub and keeps the room's presence record in sync with the
// connection lifecycle.
type WebSocketHandler struct {
	upgrader        websocket.Upgrader
	hub             *hub.Hub
	roomService     *service.RoomService
	presenceService *service.PresenceService
	users           repository.UserRepository
}

// NewWebSocketHandler creates a WebSocketHandler.
func NewWebSocketHandler(h *hub.Hub, roomService *service.RoomService, presenceService *service.PresenceService, users repository.UserRepository) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if roomService == nil || presenceService == nil || users == nil {
		panic("services cannot be nil for WebSocketHandler")
	}

	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// TODO: restrict origins once the frontend host is fixed
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		hub:             h,
		roomService:     roomService,
		presenceService: presenceService,
		users:           users,
	}
}

// HandleRoom handles GET /ws/rooms/:token. The connection joins the room's
// presence set and carries the discussion stream.
func (h *WebSocketHandler) HandleRoom(c *gin.Context) {
	h.handle(c, false)
}

// HandleConference handles GET /ws/rooms/:token/conference. Conference
// presence tracks connections rather than users, so the same user can hold
// several seats.
func (h *WebSocketHandler) HandleConference(c *gin.Context) {
	h.handle(c, true)
}

func (h *WebSocketHandler) handle(c *gin.Context, conference bool) {
	userID := c.GetUint("user_id")
	roomToken := c.Param("token")
	logCtx := logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"room_token": roomToken,
		"conference": conference,
	})

	user, err := h.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		logCtx.WithError(err).Warn("WS Handler: user lookup failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	if _, err := h.roomService.GetRoomByToken(c.Request.Context(), roomToken); err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		} else {
			logCtx.WithError(err).Error("WS Handler: error validating room")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate room"})
		}
		return
	}

	connectionID := newConnectionID()
	logCtx = logCtx.WithField("connection_id", connectionID)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logCtx.WithError(err).Error("WS Handler: failed to upgrade connection")
		return
	}

	// Presence is updated before the client starts pumping so the join is
	// visible to the first presence read after the upgrade.
	if conference {
		_, err = h.presenceService.JoinConference(c.Request.Context(), roomToken, connectionID, user.Name)
	} else {
		_, err = h.presenceService.Join(c.Request.Context(), roomToken, userID, connectionID, user.Name)
	}
	if err != nil {
		logCtx.WithError(err).Error("WS Handler: presence join failed")
		conn.Close()
		return
	}

	onClose := func() {
		ctx := context.Background()
		var joined interface{}
		var present bool
		var leaveErr error
		if conference {
			joined, present, leaveErr = h.presenceService.LeaveConference(ctx, roomToken, connectionID)
		} else {
			joined, present, leaveErr = h.presenceService.Leave(ctx, roomToken, connectionID)
		}
		if leaveErr != nil {
			logCtx.WithError(leaveErr).Warn("WS Handler: presence leave failed")
			return
		}
		if present {
			event := "presenceUpdate"
			if conference {
				event = "conferenceUpdate"
			}
			h.hub.BroadcastToRoom(roomToken, event, gin.H{"joinedUsers": joined})
		}
	}

	client := hub.NewClient(h.hub, conn, roomToken, userID, user.Name, connectionID, onClose)
	if !h.hub.QueueMessage(hub.HubMessage{Type: "register", Client: client}) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		conn.Close()
		return
	}
	client.Run()

	event := "presenceUpdate"
	if conference {
		event = "conferenceUpdate"
	}
	joined, err := h.listPresence(c.Request.Context(), roomToken, conference)
	if err == nil {
		h.hub.BroadcastToRoom(roomToken, event, gin.H{"joinedUsers": joined})
	}
	logCtx.Info("WS Handler: client connected")
}

func (h *WebSocketHandler) listPresence(ctx context.Context, roomToken string, conference bool) (interface{}, error) {
	if conference {
		return h.presenceService.ListConference(ctx, roomToken)
	}
	return h.presenceService.List(ctx, roomToken)
}

func newConnectionID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "conn-fallback"
	}
	return hex.EncodeToString(buf)
}
