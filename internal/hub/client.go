package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client represents one WebSocket connection attached to a room.
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	roomToken    string
	userID       uint
	userName     string
	connectionID string
	send         chan []byte
	onClose      func() // presence cleanup, invoked once on unregister
}

// NewClient creates a Client. onClose may be nil.
func NewClient(hub *Hub, conn *websocket.Conn, roomToken string, userID uint, userName, connectionID string, onClose func()) *Client {
	return &Client{
		hub:          hub,
		conn:         conn,
		roomToken:    roomToken,
		userID:       userID,
		userName:     userName,
		connectionID: connectionID,
		send:         make(chan []byte, 256),
		onClose:      onClose,
	}
}

// Run starts the read and write pumps.
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// ReadPump pumps frames from the WebSocket connection to the Hub. It runs in
// its own goroutine and requests unregistration on exit.
func (c *Client) ReadPump() {
	defer func() {
		unregisterMsg := HubMessage{Type: "unregister", Client: c}
		select {
		case c.hub.messageChan <- unregisterMsg:
		case <-time.After(1 * time.Second):
			logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_token": c.roomToken}).Warn("Timeout sending unregister message to Hub channel")
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_token": c.roomToken})
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed")
			}
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}
		eventMsg := HubMessage{Type: "event", Client: c, RawData: message}
		select {
		case c.hub.messageChan <- eventMsg:
		default:
			logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_token": c.roomToken}).Warn("Hub message channel full, dropping client message")
		}
	}
}

// WritePump pumps frames from the send channel to the WebSocket connection
// and keeps the connection alive with pings. It runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_token": c.roomToken}).WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}

func (c *Client) RoomToken() string    { return c.roomToken }
func (c *Client) UserID() uint         { return c.userID }
func (c *Client) UserName() string     { return c.userName }
func (c *Client) ConnectionID() string { return c.connectionID }
