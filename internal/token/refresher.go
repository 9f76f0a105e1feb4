package token

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrNoRefreshToken means there is no stored refresh credential at all.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrRefreshRejected means the auth endpoint refused the refresh token.
	ErrRefreshRejected = errors.New("refresh token rejected")
)

// Refresher exchanges the stored refresh token for a new pair against
// POST /auth/refresh. Concurrent callers are collapsed into one in-flight
// refresh; a refresh token is single use, so a duplicate exchange would burn
// it and strand every other caller.
//
// Any failure clears the store entirely (access, refresh and profile): a
// failed refresh never leaves a partial credential behind.
type Refresher struct {
	baseURL string
	client  *http.Client
	store   Store
	group   singleflight.Group
}

func NewRefresher(baseURL string, client *http.Client, store Store) *Refresher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Refresher{baseURL: baseURL, client: client, store: store}
}

// Refresh returns a fresh access token, replacing the stored pair on success.
func (r *Refresher) Refresh(ctx context.Context) (string, error) {
	v, err, _ := r.group.Do("refresh", func() (interface{}, error) {
		return r.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Refresher) refresh(ctx context.Context) (string, error) {
	pair, ok := r.store.Load()
	if !ok || pair.Refresh == "" {
		_ = r.store.Clear()
		return "", ErrNoRefreshToken
	}

	body, err := json.Marshal(map[string]string{"refresh_token": pair.Refresh})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		_ = r.store.Clear()
		return "", fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_ = r.store.Clear()
		return "", ErrRefreshRejected
	}

	var pairResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pairResp); err != nil {
		_ = r.store.Clear()
		return "", fmt.Errorf("decoding refresh response: %w", err)
	}
	if pairResp.AccessToken == "" {
		_ = r.store.Clear()
		return "", ErrRefreshRejected
	}

	if err := r.store.Save(pairResp.AccessToken, pairResp.RefreshToken); err != nil {
		return "", err
	}
	return pairResp.AccessToken, nil
}
