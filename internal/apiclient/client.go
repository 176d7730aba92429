// Package apiclient is the typed HTTP/websocket client for the smartmark
// API, used by the terminal client and by the dashboard controller.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/smartmark/smartmark/internal/auth"
	"github.com/smartmark/smartmark/internal/domain"
	"github.com/smartmark/smartmark/internal/utils"
)

var ErrUnauthorized = errors.New("unauthorized")

// APIError carries the server's structured error payload.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client talks to one smartmark server on behalf of one session token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type bookmarkListResponse struct {
	Bookmarks []domain.Bookmark `json:"bookmarks"`
}

type bookmarkResponse struct {
	Bookmark domain.Bookmark `json:"bookmark"`
}

// ListBookmarks fetches the caller's bookmarks, newest-first.
func (c *Client) ListBookmarks(ctx context.Context) ([]domain.Bookmark, error) {
	var resp bookmarkListResponse
	if err := c.do(ctx, http.MethodGet, "/api/bookmarks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Bookmarks, nil
}

// CreateBookmark persists a bookmark under the caller's account.
func (c *Client) CreateBookmark(ctx context.Context, title, url string) (domain.Bookmark, error) {
	body := map[string]string{"title": title, "url": url}
	var resp bookmarkResponse
	if err := c.do(ctx, http.MethodPost, "/api/bookmarks", body, &resp); err != nil {
		return domain.Bookmark{}, err
	}
	return resp.Bookmark, nil
}

// DeleteBookmark removes one of the caller's bookmarks by id.
func (c *Client) DeleteBookmark(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/bookmarks/"+id, nil, nil)
}

// Session returns the identity the server derived from the token.
func (c *Client) Session(ctx context.Context) (auth.Identity, error) {
	var ident auth.Identity
	if err := c.do(ctx, http.MethodGet, "/api/session", nil, &ident); err != nil {
		return auth.Identity{}, err
	}
	return ident, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}

	var payload struct {
		Error string `json:"error"`
	}
	message := http.StatusText(resp.StatusCode)
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		message = payload.Error
	}
	return &APIError{Status: resp.StatusCode, Message: message}
}
