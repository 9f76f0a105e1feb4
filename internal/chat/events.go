package chat

import "libchat/internal/model"

// Frame types spoken over the live channel.
const (
	TypeAuth         = "auth"
	TypeGetHistory   = "get_history"
	TypeMessage      = "message"
	TypeAdminMessage = "admin_message"
	TypeTypingStart  = "typing_start"
	TypeTypingStop   = "typing_stop"

	TypeUserMessage  = "user_message"
	TypeChatHistory  = "chat_history"
	TypeMessageSent  = "message_sent"
	TypeUserConnect  = "user_connected"
	TypeAuthError    = "auth_error"
	TypeAuthSuccess  = "auth_success"
	TypeConnEstab    = "connection_established"
	TypeServerError  = "error"
)

// clientFrame is every client-to-server frame; unused fields stay empty.
// The token rides on each frame because the channel itself is unauthenticated
// transport: the server re-verifies per frame.
type clientFrame struct {
	Type         string `json:"type"`
	Token        string `json:"token,omitempty"`
	Message      string `json:"message,omitempty"`
	TargetUserID *int   `json:"target_user_id,omitempty"`
}

// serverFrame is every server-to-client frame.
type serverFrame struct {
	Type      string              `json:"type"`
	MessageID int64               `json:"message_id,omitempty"`
	UserID    int                 `json:"user_id,omitempty"`
	Message   string              `json:"message,omitempty"`
	Timestamp string              `json:"timestamp,omitempty"`
	Email     string              `json:"email,omitempty"`
	Role      string              `json:"role,omitempty"`
	Messages  []model.ChatMessage `json:"messages,omitempty"`
}
