package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/krshsl/destiny/backend/models"
	ws "github.com/krshsl/destiny/backend/websocket"
)

// Notifier pushes realtime events to connected users
type Notifier interface {
	NotifyUser(userID, event string, payload any)
	NotifyRole(role, event string, payload any)
}

// HubNotifier delivers notifications through the websocket hub. Users
// without an open connection simply miss the push.
type HubNotifier struct {
	hub *ws.Hub
}

func NewHubNotifier(hub *ws.Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyUser(userID, event string, payload any) {
	delivered := n.hub.SendToUser(userID, ws.Envelope{Type: "notification", Event: event, Data: payload})
	slog.Debug("Notification sent", "user_id", userID, "event", event, "connections", delivered)
}

func (n *HubNotifier) NotifyRole(role, event string, payload any) {
	delivered := n.hub.SendToRole(role, ws.Envelope{Type: "notification", Event: event, Data: payload})
	slog.Debug("Role notification sent", "role", role, "event", event, "connections", delivered)
}

// WebSocketHandler runs interview turns for students connected over the socket
type WebSocketHandler struct {
	interviews *InterviewService
	timeout    time.Duration
}

func NewWebSocketHandler(interviews *InterviewService) *WebSocketHandler {
	return &WebSocketHandler{interviews: interviews, timeout: 2 * time.Minute}
}

// HandleWebSocketMessage routes an incoming message and replies on the same connection
func (h *WebSocketHandler) HandleWebSocketMessage(client *ws.Client, msg ws.Message) {
	switch msg.Type {
	case "ping":
		client.Reply(ws.Envelope{Type: "pong"})
		return
	case "interview_start", "interview_answer", "interview_end":
	default:
		slog.Warn("Unknown message type", "type", msg.Type, "user_id", client.UserID)
		client.Reply(ws.Envelope{Type: "error", Data: map[string]string{"error": "Unknown message type"}})
		return
	}

	if h.interviews == nil {
		client.Reply(ws.Envelope{Type: "error", Data: map[string]string{"error": "AI interviewer is not configured"}})
		return
	}
	if client.Role != models.RoleStudent {
		client.Reply(ws.Envelope{Type: "error", Data: map[string]string{"error": "Only students can take interviews"}})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var (
		turn *InterviewTurn
		err  error
	)
	switch msg.Type {
	case "interview_start":
		turn, err = h.interviews.Start(client.UserID, msg.SkillName, msg.SkillLevel)
	case "interview_answer":
		turn, err = h.interviews.Answer(ctx, client.UserID, msg.SessionID, msg.Content)
	case "interview_end":
		if !h.interviews.Owns(msg.SessionID, client.UserID) {
			client.Reply(ws.Envelope{Type: "error", Data: map[string]string{"error": "Interview session not found"}})
			return
		}
		h.interviews.End(msg.SessionID)
		client.Reply(ws.Envelope{Type: "interview", Event: "ended", Data: map[string]string{"session_id": msg.SessionID}})
		return
	}

	if err != nil {
		_, message := StatusFor(err)
		slog.Warn("Interview message failed", "error", err, "user_id", client.UserID, "session_id", msg.SessionID)
		client.Reply(ws.Envelope{Type: "error", Data: map[string]string{"error": message}})
		return
	}

	event := "question"
	if turn.IsComplete {
		event = "evaluation"
	}
	client.Reply(ws.Envelope{Type: "interview", Event: event, Data: turn})
}
