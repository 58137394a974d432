// Package apiclient talks to the board HTTP API. It keeps the current token
// pair, refreshes it once when a request comes back 401 and maps error
// statuses back onto the apperr classes.
package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"kanban/internal/apperr"
	"kanban/internal/models"
)

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu     sync.Mutex
	tokens models.TokenPair

	// refreshMu lets a single token rotation run at a time.
	refreshMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTokens starts the client with an existing token pair.
func WithTokens(tokens models.TokenPair) Option {
	return func(c *Client) { c.tokens = tokens }
}

// New creates a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tokens returns the current token pair.
func (c *Client) Tokens() models.TokenPair {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens
}

func (c *Client) setTokens(tokens models.TokenPair) {
	c.mu.Lock()
	c.tokens = tokens
	c.mu.Unlock()
}

// Health checks that the server and its database respond.
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/api/healthz", nil, nil, false)
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, email, name, password string) (models.UserView, error) {
	var out struct {
		User models.UserView `json:"user"`
	}
	body := map[string]string{"email": email, "name": name, "password": password}
	if err := c.call(ctx, http.MethodPost, "/api/auth/register", body, &out, false); err != nil {
		return models.UserView{}, err
	}
	return out.User, nil
}

// Login authenticates and keeps the returned tokens for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (models.TokenPair, error) {
	var tokens models.TokenPair
	body := map[string]string{"email": email, "password": password}
	if err := c.call(ctx, http.MethodPost, "/api/auth/login", body, &tokens, false); err != nil {
		return models.TokenPair{}, err
	}
	c.setTokens(tokens)
	return tokens, nil
}

// Refresh rotates the token pair using the stored refresh token.
func (c *Client) Refresh(ctx context.Context) (models.TokenPair, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.refresh(ctx)
}

func (c *Client) refresh(ctx context.Context) (models.TokenPair, error) {
	refresh := c.Tokens().RefreshToken
	if refresh == "" {
		return models.TokenPair{}, apperr.Authf("no refresh token")
	}

	var tokens models.TokenPair
	body := map[string]string{"refreshToken": refresh}
	if err := c.call(ctx, http.MethodPost, "/api/auth/refresh-token", body, &tokens, false); err != nil {
		return models.TokenPair{}, err
	}
	c.setTokens(tokens)
	return tokens, nil
}

// GetBoard returns the caller's board, creating it on first use.
func (c *Client) GetBoard(ctx context.Context) (models.BoardView, error) {
	var view models.BoardView
	err := c.call(ctx, http.MethodGet, "/api/board/GetUserBoard", nil, &view, true)
	return view, err
}

// AddColumn creates a column on the board.
func (c *Client) AddColumn(ctx context.Context, boardID int64, name string) (models.Column, error) {
	var col models.Column
	body := map[string]any{"name": name, "boardId": boardID}
	err := c.call(ctx, http.MethodPost, "/api/board/AddColumn", body, &col, true)
	return col, err
}

// RenameColumn renames a column.
func (c *Client) RenameColumn(ctx context.Context, columnID int64, name string) (models.Column, error) {
	var col models.Column
	path := "/api/board/UpdateNameColumn?" + url.Values{"columnId": {strconv.FormatInt(columnID, 10)}}.Encode()
	err := c.call(ctx, http.MethodPut, path, map[string]string{"name": name}, &col, true)
	return col, err
}

// DeleteColumn removes a column with its tasks.
func (c *Client) DeleteColumn(ctx context.Context, columnID int64) error {
	return c.call(ctx, http.MethodDelete, "/api/board/DeleteColumn/"+strconv.FormatInt(columnID, 10), nil, nil, true)
}

// AddTask creates a card at the end of a column.
func (c *Client) AddTask(ctx context.Context, columnID int64, description string) (models.Task, error) {
	var task models.Task
	body := map[string]any{"description": description, "columnId": columnID}
	err := c.call(ctx, http.MethodPost, "/api/board/AddTask", body, &task, true)
	return task, err
}

type updateTaskBody struct {
	Description *string `json:"description,omitempty"`
	ColumnID    *int64  `json:"columnId,omitempty"`
	Version     *int64  `json:"version,omitempty"`
}

// UpdateTask sends a partial update. Set upd.Version to fail with
// apperr.ErrStale when the task changed since it was read.
func (c *Client) UpdateTask(ctx context.Context, taskID int64, upd models.TaskUpdate) (models.Task, error) {
	var task models.Task
	body := updateTaskBody{Description: upd.Description, ColumnID: upd.ColumnID, Version: upd.Version}
	err := c.call(ctx, http.MethodPut, "/api/board/UpdateTask/"+strconv.FormatInt(taskID, 10), body, &task, true)
	return task, err
}

// MoveTask changes the column of a task.
func (c *Client) MoveTask(ctx context.Context, taskID, columnID int64) (models.Task, error) {
	return c.UpdateTask(ctx, taskID, models.TaskUpdate{ColumnID: &columnID})
}

// UpdateTaskDescription changes the text of a task.
func (c *Client) UpdateTaskDescription(ctx context.Context, taskID int64, description string) (models.Task, error) {
	return c.UpdateTask(ctx, taskID, models.TaskUpdate{Description: &description})
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, taskID int64) error {
	return c.call(ctx, http.MethodDelete, "/api/board/DeleteTask/"+strconv.FormatInt(taskID, 10), nil, nil, true)
}

// call performs one request. Authenticated calls that fail with 401 are
// retried once with a fresh access token.
func (c *Client) call(ctx context.Context, method, path string, in, out any, authed bool) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	var token string
	if authed {
		token = c.Tokens().AccessToken
	}
	err := c.do(ctx, method, path, payload, out, token)
	if !authed || !errors.Is(err, apperr.ErrAuth) {
		return err
	}
	fresh, rerr := c.renewAfter(ctx, token)
	if rerr != nil {
		return err
	}
	return c.do(ctx, method, path, payload, out, fresh)
}

// renewAfter returns an access token newer than stale. Concurrent callers
// that failed with the same token share one rotation: whoever gets the lock
// first refreshes, the rest pick up the result.
func (c *Client) renewAfter(ctx context.Context, stale string) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	current := c.Tokens()
	if current.AccessToken != stale {
		return current.AccessToken, nil
	}
	if current.RefreshToken == "" {
		return "", apperr.Authf("no refresh token")
	}
	tokens, err := c.refresh(ctx)
	if err != nil {
		return "", err
	}
	return tokens.AccessToken, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any, token string) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// decodeError turns an error response into the matching apperr class.
func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return apperr.Validationf("%s", body.Error)
	case http.StatusUnauthorized:
		return apperr.Authf("%s", body.Error)
	case http.StatusNotFound:
		return apperr.NotFoundf("%s", body.Error)
	case http.StatusConflict:
		return apperr.Stalef("%s", body.Error)
	default:
		return fmt.Errorf("server responded %d: %s", resp.StatusCode, body.Error)
	}
}
