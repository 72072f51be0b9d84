package websocket

import (
	"context"
	"encoding/json"
	"time"

	"messenger/internal/app/notification"
	"messenger/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const transport = "websocket"

// ClientConn is the subset of *websocket.Conn the hub and pumps need.
type ClientConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Client struct {
	hub  *Hub
	conn ClientConn
	ID   string
	send chan []byte
	room string
}

func newClient(hub *Hub, conn ClientConn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		ID:   uuid.NewString(),
		send: make(chan []byte, hub.sendBuffer),
	}
}

type join struct {
	client *Client
	room   string
}

// Frame is what travels over a client connection in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Hub owns the connected clients and their rooms. All state is touched only from Run.
type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	join       chan join
	broadcast  chan *notification.Envelope
	done       chan struct{}
	sendBuffer int
	logger     *zap.SugaredLogger
}

func NewHub(logger *zap.Logger, sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 16
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan join),
		broadcast:  make(chan *notification.Envelope, 256),
		done:       make(chan struct{}),
		sendBuffer: sendBuffer,
		logger:     logger.Sugar(),
	}
}

// Dispatch queues an envelope for delivery. It drops the envelope when the hub is
// saturated.
func (h *Hub) Dispatch(env *notification.Envelope) bool {
	select {
	case h.broadcast <- env:
		return true
	default:
		metrics.GatewayDeliveries.WithLabelValues(transport, "hub_full").Inc()
		return false
	}
}

func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket Hub started")

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for client := range h.clients {
				h.remove(client)
			}
			h.logger.Info("WebSocket Hub stopped")
			return

		case client := <-h.register:
			h.clients[client] = true
			metrics.GatewayConnections.WithLabelValues(transport).Inc()
			h.logger.Infow("Client connected",
				"client_id", client.ID,
				"clients_count", len(h.clients),
			)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.remove(client)
				h.logger.Infow("Client disconnected",
					"client_id", client.ID,
					"clients_count", len(h.clients),
				)
			}

		case req := <-h.join:
			h.moveTo(req.client, req.room)

		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.leave(client)
	delete(h.clients, client)
	close(client.send)
	metrics.GatewayConnections.WithLabelValues(transport).Dec()
}

func (h *Hub) leave(client *Client) {
	if client.room == "" {
		return
	}
	if members, ok := h.rooms[client.room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, client.room)
		}
	}
	client.room = ""
}

func (h *Hub) moveTo(client *Client, room string) {
	if !h.clients[client] {
		return
	}
	h.leave(client)
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[client] = true
	client.room = room
	h.logger.Debugw("Client joined room", "client_id", client.ID, "room", room)
}

// deliver hands the envelope's message to every client, or to the room's clients for a
// directed envelope. A client whose buffer is full misses the event.
func (h *Hub) deliver(env *notification.Envelope) {
	frame, err := json.Marshal(Frame{Event: "notification", Data: env.Data.Message})
	if err != nil {
		h.logger.Errorw("Failed to encode notification frame", "error", err)
		return
	}

	targets := h.clients
	if !env.Data.ToAll {
		targets = h.rooms[env.Data.Room()]
	}
	for client := range targets {
		select {
		case client.send <- frame:
			metrics.GatewayDeliveries.WithLabelValues(transport, "sent").Inc()
		default:
			metrics.GatewayDeliveries.WithLabelValues(transport, "dropped").Inc()
			h.logger.Debugw("Client buffer full, notification dropped", "client_id", client.ID)
		}
	}
}
