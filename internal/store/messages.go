package store

import (
	"time"

	"libchat/internal/model"
)

// AppendMessage stores one chat message. For admin messages userID is the
// addressed user's id, mirroring how the conversation threads by user.
func (s *Store) AppendMessage(userID int, text string, isAdmin int) model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMessageID++
	msg := model.ChatMessage{
		ID:        s.nextMessageID,
		UserID:    userID,
		Message:   text,
		IsAdmin:   isAdmin,
		CreatedAt: time.Now(),
	}
	if user, ok := s.usersByID[userID]; ok && isAdmin == 0 {
		msg.Email = user.Email
	}
	s.messages = append(s.messages, msg)
	return msg
}

// ListMessages returns the backlog in chronological order. Admins see every
// thread; a user sees only their own conversation.
func (s *Store) ListMessages(userID int, admin bool, limit int) []model.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.ChatMessage, 0, limit)
	for _, msg := range s.messages {
		if !admin && msg.UserID != userID {
			continue
		}
		result = append(result, msg)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}
