package store

import (
	"errors"
	"sort"

	"libchat/internal/model"
)

var ErrBookNotFound = errors.New("book not found")

func (s *Store) CreateBook(userID int, book model.Book) model.Book {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextBookID++
	book.ID = s.nextBookID
	book.UserID = userID
	if book.Status == "" {
		book.Status = model.StatusPlanned
	}
	s.booksByID[book.ID] = book
	return book
}

func (s *Store) GetBook(userID, id int) (model.Book, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	book, ok := s.booksByID[id]
	if !ok || book.UserID != userID {
		return model.Book{}, false
	}
	return book, true
}

func (s *Store) ListBooks(userID int) []model.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()

	books := make([]model.Book, 0)
	for _, book := range s.booksByID {
		if book.UserID == userID {
			books = append(books, book)
		}
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books
}

func (s *Store) UpdateBook(userID, id int, update model.Book) (model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.booksByID[id]
	if !ok || book.UserID != userID {
		return model.Book{}, ErrBookNotFound
	}
	update.ID = id
	update.UserID = userID
	if update.Status == "" {
		update.Status = book.Status
	}
	s.booksByID[id] = update
	return update, nil
}

func (s *Store) DeleteBook(userID, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.booksByID[id]
	if !ok || book.UserID != userID {
		return ErrBookNotFound
	}
	delete(s.booksByID, id)
	return nil
}
