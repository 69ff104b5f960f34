package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"roomhub/internal/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Envelope is the wire format for every message crossing a room socket, in
// both directions.
type Envelope struct {
	Event string          `json:"event"`
	Room  string          `json:"room,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// HubMessage is the internal unit passed from clients to the Hub loop.
type HubMessage struct {
	Type    string // "register", "unregister", "event"
	Client  *Client
	RawData []byte // inbound frame for "event"
}

// Hub maintains the set of live clients grouped by room token, routes
// inbound frames to the discussion service and fans server events out to
// room members. It implements service.Notifier.
type Hub struct {
	messageChan chan HubMessage

	rooms   map[string]map[*Client]bool
	roomsMu sync.RWMutex

	discussions *service.DiscussionService
}

// NewHub creates a Hub.
func NewHub(discussions *service.DiscussionService) *Hub {
	if discussions == nil {
		panic("DiscussionService cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[string]map[*Client]bool),
		discussions: discussions,
	}
}

// Run starts the Hub event loop. It should run in its own goroutine.
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case "register":
			h.registerClient(msg.Client)
		case "unregister":
			h.unregisterClient(msg.Client)
		case "event":
			go h.handleClientEvent(msg)
		default:
			log.Warnf("Hub: received unknown message type: %s", msg.Type)
		}
	}
	log.Info("Hub is shutting down...")
}

func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: attempted to register a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_token": client.RoomToken(),
		"user_id":    client.UserID(),
	})

	h.roomsMu.Lock()
	if _, ok := h.rooms[client.RoomToken()]; !ok {
		h.rooms[client.RoomToken()] = make(map[*Client]bool)
	}
	h.rooms[client.RoomToken()][client] = true
	h.roomsMu.Unlock()
	logCtx.Info("Client registered to Hub")
}

func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: attempted to unregister a nil client")
		return
	}
	token := client.RoomToken()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_token": token,
		"user_id":    client.UserID(),
	})

	h.roomsMu.Lock()
	if roomClients, roomExists := h.rooms[token]; roomExists {
		if _, clientExists := roomClients[client]; clientExists {
			delete(roomClients, client)
			select {
			case <-client.send:
				logCtx.Warn("Client send channel already closed during unregister")
			default:
				close(client.send)
			}
			if len(roomClients) == 0 {
				delete(h.rooms, token)
				logCtx.Info("Room empty, removed from Hub")
			}
		}
	}
	h.roomsMu.Unlock()

	if client.onClose != nil {
		go client.onClose()
	}
	logCtx.Info("Client unregistered from Hub")
}

// handleClientEvent routes one inbound frame. Only discussion messages come
// in over the socket; everything else goes through the HTTP API.
func (h *Hub) handleClientEvent(msg HubMessage) {
	client := msg.Client
	logCtx := logrus.WithFields(logrus.Fields{
		"room_token": client.RoomToken(),
		"user_id":    client.UserID(),
	})

	var env Envelope
	if err := json.Unmarshal(msg.RawData, &env); err != nil {
		logCtx.WithError(err).Warn("Hub: malformed client frame")
		return
	}

	switch env.Event {
	case "discussionMessage":
		var body struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Data, &body); err != nil {
			logCtx.WithError(err).Warn("Hub: malformed discussion payload")
			return
		}
		_, err := h.discussions.AppendMessage(context.Background(), client.RoomToken(), client.UserID(), client.UserName(), body.Message)
		if err != nil {
			logCtx.WithError(err).Error("Hub: discussion append failed")
			h.sendTo(client, Envelope{Event: "error", Data: json.RawMessage(`{"message":"could not send message"}`)})
		}
	default:
		logCtx.Warnf("Hub: unknown client event: %s", env.Event)
	}
}

// BroadcastToRoom sends an event to every client in the room. It implements
// service.Notifier; services call it after state changes so connected peers
// see updates without polling.
func (h *Hub) BroadcastToRoom(roomToken, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Hub: broadcast payload marshal failed")
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Room: roomToken, Data: data})
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Hub: broadcast frame marshal failed")
		return
	}

	h.roomsMu.RLock()
	roomClients, ok := h.rooms[roomToken]
	clientsToSend := make([]*Client, 0, len(roomClients))
	if ok {
		for client := range roomClients {
			clientsToSend = append(clientsToSend, client)
		}
	}
	h.roomsMu.RUnlock()

	for _, client := range clientsToSend {
		h.sendFrame(client, frame)
	}
}

func (h *Hub) sendTo(client *Client, env Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		return
	}
	h.sendFrame(client, frame)
}

// sendFrame is non-blocking so one slow client never stalls a broadcast.
func (h *Hub) sendFrame(client *Client, frame []byte) {
	select {
	case client.send <- frame:
	default:
		logrus.WithFields(logrus.Fields{
			"room_token": client.RoomToken(),
			"user_id":    client.UserID(),
		}).Warn("Client send channel full, dropping message")
	}
}

// QueueMessage enqueues a message for the Hub loop without blocking. Returns
// false when the queue is full.
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithField("message_type", msg.Type).Warn("Hub message channel full, dropping message")
		return false
	}
}
