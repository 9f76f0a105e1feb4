package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"libchat/internal/auth"
	"libchat/internal/hub"
	"libchat/internal/model"
	"libchat/internal/store"
)

type WebSocketHandler struct {
	Hub         *hub.Hub
	Store       *store.Store
	TokenConfig auth.TokenConfig
}

// clientMessage is every frame a client may send. The token rides on each
// frame; the connection itself is authenticated only by the auth frame.
type clientMessage struct {
	Type         string `json:"type"`
	Token        string `json:"token,omitempty"`
	Message      string `json:"message,omitempty"`
	TargetUserID int    `json:"target_user_id,omitempty"`
}

type serverMessage struct {
	Type      string              `json:"type"`
	MessageID int64               `json:"message_id,omitempty"`
	UserID    int                 `json:"user_id,omitempty"`
	Message   string              `json:"message,omitempty"`
	Timestamp string              `json:"timestamp,omitempty"`
	Email     string              `json:"email,omitempty"`
	Role      string              `json:"role,omitempty"`
	Messages  []model.ChatMessage `json:"messages,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsWriter serializes writes; the hub and the read loop both send.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (w *wsWriter) send(msg serverMessage) error {
	out, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return w.Write(out)
}

func (h *WebSocketHandler) Serve(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	writer := &wsWriter{conn: ws}

	_ = writer.send(serverMessage{
		Type:    "connection_established",
		Message: "WebSocket connected. Authenticate to join the chat.",
	})

	var conn *hub.Connection
	defer func() {
		if conn != nil {
			h.Hub.Unregister(conn)
		}
		_ = ws.Close()
	}()

	ws.SetReadLimit(1024 * 1024)
	const pongWait = 60 * time.Second
	const writeWait = 10 * time.Second
	pingPeriod := (pongWait * 9) / 10

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	var closeOnce sync.Once
	defer closeOnce.Do(func() { close(done) })

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = writer.send(serverMessage{Type: "error", Message: "Invalid JSON"})
			continue
		}

		switch msg.Type {
		case "auth":
			conn = h.handleAuth(writer, conn, msg)
		case "message":
			h.handleUserMessage(writer, msg)
		case "admin_message":
			h.handleAdminMessage(writer, msg)
		case "get_history":
			h.handleGetHistory(writer, msg)
		case "typing_start", "typing_stop":
			h.relayTyping(msg)
		default:
			_ = writer.send(serverMessage{Type: "error", Message: "Unknown message type"})
		}
	}
}

func (h *WebSocketHandler) verify(token string) (*auth.Claims, bool) {
	claims, err := auth.VerifyToken(token, auth.TypeAccess, h.TokenConfig)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func (h *WebSocketHandler) handleAuth(writer *wsWriter, prev *hub.Connection, msg clientMessage) *hub.Connection {
	claims, ok := h.verify(msg.Token)
	if !ok {
		_ = writer.send(serverMessage{Type: "auth_error", Message: "Invalid token"})
		return prev
	}
	if prev != nil {
		h.Hub.Unregister(prev)
	}

	conn := &hub.Connection{
		ID:     uuid.NewString(),
		UserID: claims.UserID,
		Admin:  claims.Role == "admin",
		Writer: writer,
	}
	h.Hub.Register(conn)

	if conn.Admin {
		_ = writer.send(serverMessage{Type: "auth_success", Role: claims.Role, Message: "Connected as administrator"})
	} else {
		_ = writer.send(serverMessage{Type: "auth_success", Role: claims.Role, Message: "Connected to support chat"})
		h.broadcastAdmins(serverMessage{
			Type:    "user_connected",
			UserID:  claims.UserID,
			Message: "User connected to the chat",
		})
	}
	return conn
}

func (h *WebSocketHandler) handleUserMessage(writer *wsWriter, msg clientMessage) {
	claims, ok := h.verify(msg.Token)
	if !ok {
		_ = writer.send(serverMessage{Type: "error", Message: "Authentication required"})
		return
	}
	if msg.Message == "" {
		_ = writer.send(serverMessage{Type: "error", Message: "Message cannot be empty"})
		return
	}

	stored := h.Store.AppendMessage(claims.UserID, msg.Message, 0)
	h.broadcastAdmins(serverMessage{
		Type:      "user_message",
		MessageID: stored.ID,
		UserID:    stored.UserID,
		Message:   stored.Message,
		Timestamp: stored.CreatedAt.Format(time.RFC3339),
		Email:     stored.Email,
	})
	_ = writer.send(serverMessage{
		Type:      "message_sent",
		MessageID: stored.ID,
		Timestamp: stored.CreatedAt.Format(time.RFC3339),
	})
}

func (h *WebSocketHandler) handleAdminMessage(writer *wsWriter, msg clientMessage) {
	claims, ok := h.verify(msg.Token)
	if !ok || claims.Role != "admin" {
		_ = writer.send(serverMessage{Type: "error", Message: "Administrator rights required"})
		return
	}
	if msg.TargetUserID == 0 || msg.Message == "" {
		_ = writer.send(serverMessage{Type: "error", Message: "Missing target user or message"})
		return
	}

	stored := h.Store.AppendMessage(msg.TargetUserID, msg.Message, 1)
	out, _ := json.Marshal(serverMessage{
		Type:      "admin_message",
		MessageID: stored.ID,
		UserID:    stored.UserID,
		Message:   stored.Message,
		Timestamp: stored.CreatedAt.Format(time.RFC3339),
	})
	h.Hub.SendToUser(msg.TargetUserID, out)

	_ = writer.send(serverMessage{
		Type:      "message_sent",
		MessageID: stored.ID,
		Timestamp: stored.CreatedAt.Format(time.RFC3339),
	})
}

func (h *WebSocketHandler) handleGetHistory(writer *wsWriter, msg clientMessage) {
	claims, ok := h.verify(msg.Token)
	if !ok {
		_ = writer.send(serverMessage{Type: "error", Message: "Authentication required"})
		return
	}

	msgs := h.Store.ListMessages(claims.UserID, claims.Role == "admin", 50)
	_ = writer.send(serverMessage{Type: "chat_history", Messages: msgs})
}

// relayTyping forwards presence signals to the counterpart side: user typing
// goes to the admins; admin typing is delivered only when a target is known.
func (h *WebSocketHandler) relayTyping(msg clientMessage) {
	claims, ok := h.verify(msg.Token)
	if !ok {
		return
	}

	out, _ := json.Marshal(serverMessage{Type: msg.Type})
	if claims.Role == "admin" {
		if msg.TargetUserID != 0 {
			h.Hub.SendToUser(msg.TargetUserID, out)
		}
		return
	}
	h.broadcastAdmins(serverMessage{Type: msg.Type})
}

func (h *WebSocketHandler) broadcastAdmins(msg serverMessage) {
	out, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.Hub.BroadcastAdmins(out)
}
