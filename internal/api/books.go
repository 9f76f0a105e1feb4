package api

import (
	"context"
	"fmt"
	"net/http"

	"libchat/internal/model"
)

// Book CRUD pass-throughs. Plain data plumbing over Do; the resource model
// lives server-side.

func (c *Client) ListBooks(ctx context.Context) ([]model.Book, error) {
	var books []model.Book
	if err := c.doJSON(ctx, http.MethodGet, "/books/", nil, &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (c *Client) GetBook(ctx context.Context, id int) (model.Book, error) {
	var book model.Book
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/books/%d", id), nil, &book)
	return book, err
}

func (c *Client) CreateBook(ctx context.Context, book model.Book) (model.Book, error) {
	var created model.Book
	err := c.doJSON(ctx, http.MethodPost, "/books/", book, &created)
	return created, err
}

func (c *Client) UpdateBook(ctx context.Context, id int, book model.Book) (model.Book, error) {
	var updated model.Book
	err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/books/%d", id), book, &updated)
	return updated, err
}

func (c *Client) DeleteBook(ctx context.Context, id int) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/books/%d", id), nil, nil)
}
