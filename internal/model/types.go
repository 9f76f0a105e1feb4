package model

import "time"

type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// ChatMessage is the REST and chat_history representation of one message.
// IsAdmin is the 0/1 integer the backend stores, not a bool.
type ChatMessage struct {
	ID        int64     `json:"id"`
	UserID    int       `json:"user_id"`
	Message   string    `json:"message"`
	IsAdmin   int       `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	Email     string    `json:"email,omitempty"`
}

type BookStatus string

const (
	StatusReading BookStatus = "READING"
	StatusPlanned BookStatus = "PLANNED"
	StatusRead    BookStatus = "READ"
)

type Book struct {
	ID             int        `json:"id"`
	UserID         int        `json:"-"`
	Title          string     `json:"title"`
	Author         string     `json:"author"`
	Genre          string     `json:"genre"`
	Description    string     `json:"description,omitempty"`
	Rating         int        `json:"rating,omitempty"`
	FavoriteQuotes string     `json:"favorite_quotes,omitempty"`
	StartDate      string     `json:"start_date,omitempty"`
	EndDate        string     `json:"end_date,omitempty"`
	Status         BookStatus `json:"status"`
}

// TokenPair is the access/refresh credential pair issued by the auth endpoints.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
