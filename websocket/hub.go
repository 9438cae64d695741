package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
)

// Hub tracks connected clients and fans messages out by user or role
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mu         sync.RWMutex
}

type Client struct {
	Hub            *Hub
	Conn           *websocket.Conn
	Send           chan []byte
	ID             string
	UserID         string
	Role           string
	MessageHandler func(*Client, Message) // Function to handle incoming messages
}

// Message is what clients send. Type selects the handler; the other fields
// are used by the interview messages.
type Message struct {
	Type       string `json:"type"` // "ping", "interview_start", "interview_answer", "interview_end"
	Content    string `json:"content,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	SkillName  string `json:"skill_name,omitempty"`
	SkillLevel string `json:"skill_level,omitempty"`
}

// Envelope is what the server pushes
type Envelope struct {
	Type      string    `json:"type"` // "notification", "interview", "error", "pong"
	Event     string    `json:"event,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("Client registered", "user_id", client.UserID, "role", client.Role, "client_id", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			slog.Info("Client unregistered", "user_id", client.UserID, "client_id", client.ID)

		case message := <-h.broadcast:
			h.deliver(message, func(*Client) bool { return true })
		}
	}
}

// deliver queues message for every client matching the filter. Clients
// whose buffer is full are dropped.
func (h *Hub) deliver(message []byte, match func(*Client) bool) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for client := range h.clients {
		if !match(client) {
			continue
		}
		select {
		case client.Send <- message:
			sent++
		default:
			close(client.Send)
			delete(h.clients, client)
			slog.Warn("Dropped slow client", "user_id", client.UserID, "client_id", client.ID)
		}
	}
	return sent
}

func (h *Hub) RegisterClient(conn *websocket.Conn, userID, role string) *Client {
	client := &Client{
		Hub:    h,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		ID:     uuid.New().String(),
		UserID: userID,
		Role:   role,
	}

	h.register <- client
	return client
}

// SendToUser pushes to every connection of one user and returns how many received it
func (h *Hub) SendToUser(userID string, env Envelope) int {
	payload, err := encode(env)
	if err != nil {
		return 0
	}
	return h.deliver(payload, func(c *Client) bool { return c.UserID == userID })
}

// SendToRole pushes to every connected user with the role
func (h *Hub) SendToRole(role string, env Envelope) int {
	payload, err := encode(env)
	if err != nil {
		return 0
	}
	return h.deliver(payload, func(c *Client) bool { return c.Role == role })
}

// Broadcast pushes to everyone
func (h *Hub) Broadcast(env Envelope) {
	payload, err := encode(env)
	if err != nil {
		return
	}
	h.broadcast <- payload
}

// ConnectedUsers counts distinct connected users
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]struct{})
	for client := range h.clients {
		seen[client.UserID] = struct{}{}
	}
	return len(seen)
}

func encode(env Envelope) ([]byte, error) {
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now()
	}
	payload, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to marshal websocket envelope", "error", err, "type", env.Type)
	}
	return payload, err
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			slog.Error("Failed to unmarshal message", "error", err)
			continue
		}

		slog.Info("Message received", "type", msg.Type, "user_id", c.UserID, "content_length", len(msg.Content))

		if c.MessageHandler != nil {
			// Run message handler asynchronously to avoid blocking
			go c.MessageHandler(c, msg)
		} else if msg.Type == "ping" {
			c.Reply(Envelope{Type: "pong"})
		} else {
			slog.Warn("Unknown message type", "type", msg.Type)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Reply sends an envelope to this client only. A closed or full channel drops the message.
func (c *Client) Reply(env Envelope) {
	payload, err := encode(env)
	if err != nil {
		return
	}
	safeSend(c.Send, payload)
}

// safeSend tries to send a message to the client channel, recovers if closed
func safeSend(ch chan<- []byte, msg []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("Send on closed client channel")
		}
	}()
	select {
	case ch <- msg:
	default:
	}
}
