/*
Package client talks to the Echo chat server: REST calls for accounts, the directory and
messages, and a Socket for presence and live pushes.

Client satisfies conversation.Backend and Socket satisfies conversation.Subscriber, so the
two plug straight into a conversation.State.
*/
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"echochat/internal/app/message"
	"echochat/internal/app/user"
	"echochat/internal/pkg/errs"
)

const defaultTimeout = 15 * time.Second

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client is a REST client bound to one server and, after Register or Login, one user.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
	self  user.User
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken starts the client already signed in.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New returns a Client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the bearer token of the signed-in user.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Self returns the signed-in user.
func (c *Client) Self() user.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Register creates an account and signs in as it.
func (c *Client) Register(ctx context.Context, username, email, password string) (AuthResult, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	return c.authenticate(ctx, "/api/auth/register", body)
}

// Login signs in with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, "/api/auth/login", body)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return AuthResult{}, err
	}

	c.mu.Lock()
	c.token = out.Token
	c.self = out.User
	c.mu.Unlock()

	return out, nil
}

// ListPeers returns every other user with their presence.
func (c *Client) ListPeers(ctx context.Context) ([]user.Peer, error) {
	var peers []user.Peer
	err := c.do(ctx, http.MethodGet, "/api/users", nil, &peers)
	return peers, err
}

// History returns the conversation with peerID, oldest first.
func (c *Client) History(ctx context.Context, peerID string) ([]message.Message, error) {
	var history []message.Message
	err := c.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(peerID), nil, &history)
	return history, err
}

// CreateMessage relays content to receiverID: the server persists it, then pushes it live.
func (c *Client) CreateMessage(ctx context.Context, receiverID, content string) (message.Message, error) {
	var msg message.Message
	body := map[string]string{"receiverId": receiverID, "content": content}
	err := c.do(ctx, http.MethodPost, "/api/messages", body, &msg)
	return msg, err
}

// Send is CreateMessage.
func (c *Client) Send(ctx context.Context, receiverID, content string) (message.Message, error) {
	return c.CreateMessage(ctx, receiverID, content)
}

// do performs one API call. Error envelopes come back as *errs.CustomError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	r, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	r.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.httpClient.Do(r)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: decode response (HTTP %d): %w", method, path, res.StatusCode, err)
	}

	if env.Code != 0 {
		return errs.FromCode(env.Code, env.Message, res.StatusCode)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: decode data: %w", method, path, err)
	}
	return nil
}
