package store

import (
	"errors"
	"sync"
	"time"

	"libchat/internal/model"
)

var (
	ErrEmailTaken   = errors.New("email already registered")
	ErrUserNotFound = errors.New("user not found")
)

// Store is the development server's in-memory state: users, the single
// support-chat message log, and per-user book catalogs.
type Store struct {
	mu sync.RWMutex

	usersByID    map[int]model.User
	usersByEmail map[string]int
	nextUserID   int

	messages      []model.ChatMessage
	nextMessageID int64

	booksByID  map[int]model.Book
	nextBookID int

	usedRefreshIDs map[string]struct{}
}

func New() *Store {
	return &Store{
		usersByID:      make(map[int]model.User),
		usersByEmail:   make(map[string]int),
		booksByID:      make(map[int]model.Book),
		usedRefreshIDs: make(map[string]struct{}),
	}
}

func (s *Store) CreateUser(email, passwordHash, role string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByEmail[email]; exists {
		return model.User{}, ErrEmailTaken
	}

	s.nextUserID++
	user := model.User{
		ID:           s.nextUserID,
		Email:        email,
		Role:         role,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	s.usersByID[user.ID] = user
	s.usersByEmail[email] = user.ID
	return user, nil
}

func (s *Store) GetUserByEmail(email string) (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByEmail[email]
	if !ok {
		return model.User{}, false
	}
	return s.usersByID[id], true
}

func (s *Store) GetUserByID(id int) (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.usersByID[id]
	return user, ok
}

// MarkRefreshUsed records a refresh token id and reports whether it was
// fresh. Refresh tokens are single use: a second presentation fails.
func (s *Store) MarkRefreshUsed(jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, used := s.usedRefreshIDs[jti]; used {
		return false
	}
	s.usedRefreshIDs[jti] = struct{}{}
	return true
}
