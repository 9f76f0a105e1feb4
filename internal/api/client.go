package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"libchat/internal/model"
	"libchat/internal/token"
)

// ErrAuthRequired means no usable credential remains; the caller should send
// the user back to login. The store has already been cleared when this is
// returned.
var ErrAuthRequired = errors.New("authentication required")

// Client wraps the REST collaborator with bearer-token injection and a single
// refresh-and-retry on authorization failure.
type Client struct {
	baseURL   string
	client    *http.Client
	store     token.Store
	refresher *token.Refresher
}

func New(baseURL string, client *http.Client, store token.Store, refresher *token.Refresher) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{baseURL: baseURL, client: client, store: store, refresher: refresher}
}

// Do sends an authenticated request. The body is buffered once so the single
// post-refresh retry replays identical bytes; there is no second retry.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	pair, ok := c.store.Load()
	if !ok || pair.Access == "" {
		return nil, ErrAuthRequired
	}
	access := pair.Access

	// Expired tokens are refreshed up front rather than waiting for the 401.
	if token.Expired(access) {
		fresh, err := c.refresher.Refresh(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuthRequired, err)
		}
		access = fresh
	}

	resp, err := c.send(ctx, method, path, payload, access)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	fresh, err := c.refresher.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}

	resp, err = c.send(ctx, method, path, payload, fresh)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		_ = c.store.Clear()
		return nil, ErrAuthRequired
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, access string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+access)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.client.Do(req)
}

// doJSON runs Do and decodes a 2xx response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// AuthResponse is the login/register/refresh payload.
type AuthResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	TokenType    string     `json:"token_type"`
	User         model.User `json:"user"`
}

// Login authenticates with email/password and persists the returned pair and
// profile. Login itself carries no bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (model.User, error) {
	return c.authenticate(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

// Register creates an account and persists the returned pair and profile.
func (c *Client) Register(ctx context.Context, email, password string) (model.User, error) {
	return c.authenticate(ctx, "/auth/register", map[string]string{
		"email":            email,
		"password":         password,
		"password_confirm": password,
	})
}

func (c *Client) authenticate(ctx context.Context, path string, body map[string]string) (model.User, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return model.User{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return model.User{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return model.User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.User{}, fmt.Errorf("POST %s: status %d", path, resp.StatusCode)
	}

	var auth AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return model.User{}, err
	}
	if err := c.store.Save(auth.AccessToken, auth.RefreshToken); err != nil {
		return model.User{}, err
	}
	profile, err := json.Marshal(auth.User)
	if err == nil {
		_ = c.store.SaveUser(string(profile))
	}
	return auth.User, nil
}

// ChatHistory fetches the message backlog, newest limit entries in
// chronological order.
func (c *Client) ChatHistory(ctx context.Context, limit int) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	path := fmt.Sprintf("/chat/messages?limit=%d", limit)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendChatMessage persists one outgoing message over REST so it survives the
// live channel, which itself stores nothing for the sender.
func (c *Client) SendChatMessage(ctx context.Context, text string) (model.ChatMessage, error) {
	var msg model.ChatMessage
	err := c.doJSON(ctx, http.MethodPost, "/chat/messages", map[string]string{"message": text}, &msg)
	return msg, err
}
