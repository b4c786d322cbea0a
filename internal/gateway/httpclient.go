package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/employd-dev/employd/internal/session"
)

// Client is an HTTP implementation of Gateway against the employd
// identity provider API. The access token is kept in the token store so
// GetSession survives process restarts.
//
// State-change notifications are emitted locally: the client notifies
// its listeners when its own SignIn/SignOut/refresh calls change the
// session, mirroring how hosted auth SDKs behave.
type Client struct {
	baseURL    string
	host       string
	httpClient *http.Client
	tokens     TokenStore
	logger     zerolog.Logger

	mu        sync.Mutex
	listeners map[int]func(*session.User)
	nextSubID int
}

// NewClient creates a gateway client for the given base URL, e.g.
// "https://auth.internal.example.com".
func NewClient(baseURL string, tokens TokenStore, log zerolog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid gateway URL %q", baseURL)
	}

	return &Client{
		baseURL: baseURL,
		host:    u.Host,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokens:    tokens,
		logger:    log,
		listeners: make(map[int]func(*session.User)),
	}, nil
}

// SetHTTPClient sets a custom HTTP client.
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// LoginRequest is the sign-in request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the sign-in response.
type LoginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *session.User `json:"user"`
}

// SessionResponse is the current-session response.
type SessionResponse struct {
	Session *Session `json:"session"`
}

// SignIn authenticates with email and password, stores the issued token
// and notifies state-change listeners with the resolved profile.
func (c *Client) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	reqBody := LoginRequest{Email: email, Password: password}

	var loginResp LoginResponse
	status, err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", "", reqBody, &loginResp)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusUnauthorized:
		return nil, &Error{Kind: KindInvalidCredentials, Message: "invalid login credentials"}
	case status != http.StatusOK:
		return nil, statusError(status, "login failed")
	}

	if err := c.tokens.SaveToken(c.host, loginResp.Token); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to save access token")
	}

	sess := &Session{
		UserID:    loginResp.User.ID,
		Email:     loginResp.User.Email,
		ExpiresAt: loginResp.ExpiresAt,
	}
	c.notify(loginResp.User)

	return &SignInResult{Session: sess, User: loginResp.User}, nil
}

// SignOut revokes the current session at the provider. The stored token
// is deleted and listeners are notified even when the remote call fails.
func (c *Client) SignOut(ctx context.Context) error {
	token, err := c.tokens.LoadToken(c.host)
	defer func() {
		if delErr := c.tokens.DeleteToken(c.host); delErr != nil {
			c.logger.Warn().Err(delErr).Msg("Failed to delete access token")
		}
		c.notify(nil)
	}()
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return nil // Nothing to revoke
		}
		return err
	}

	status, err := c.doJSON(ctx, http.MethodPost, "/api/auth/logout", token, nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusUnauthorized {
		return statusError(status, "logout failed")
	}
	return nil
}

// GetSession returns the current provider session, or nil when no token
// is stored or the token is no longer accepted.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	token, err := c.tokens.LoadToken(c.host)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return nil, nil
		}
		return nil, err
	}

	var resp SessionResponse
	status, err := c.doJSON(ctx, http.MethodGet, "/api/auth/session", token, nil, &resp)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		return resp.Session, nil
	case http.StatusUnauthorized:
		// Token revoked or expired; forget it
		if delErr := c.tokens.DeleteToken(c.host); delErr != nil {
			c.logger.Warn().Err(delErr).Msg("Failed to delete stale access token")
		}
		return nil, nil
	default:
		return nil, statusError(status, "session lookup failed")
	}
}

// GetUserProfile fetches a user record by id. Returns nil when no record
// exists.
func (c *Client) GetUserProfile(ctx context.Context, userID string) (*session.User, error) {
	token, err := c.tokens.LoadToken(c.host)
	if err != nil && !errors.Is(err, ErrNoToken) {
		return nil, err
	}

	var user session.User
	status, err := c.doJSON(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID), token, nil, &user)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		return &user, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, statusError(status, "profile lookup failed")
	}
}

// OnAuthStateChange registers a listener for session changes.
func (c *Client) OnAuthStateChange(fn func(user *session.User)) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSubID
	c.nextSubID++
	c.listeners[id] = fn
	return &subscription{client: c, id: id}
}

type subscription struct {
	client *Client
	id     int
	once   sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.client.mu.Lock()
		defer s.client.mu.Unlock()
		delete(s.client.listeners, s.id)
	})
}

func (c *Client) notify(user *session.User) {
	c.mu.Lock()
	fns := make([]func(*session.User), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(user)
	}
}

// doJSON performs a request with optional JSON body and decodes a JSON
// response into out when out is non-nil and the response carries a body.
// Transport failures come back as typed gateway errors.
func (c *Client) doJSON(ctx context.Context, method, path, token string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, transportError(err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < http.StatusBadRequest {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func transportError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "request timeout", Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "request timeout", Err: err}
	}
	return &Error{Kind: KindNetwork, Message: "network error", Err: err}
}

func statusError(status int, message string) error {
	kind := KindUnknown
	if status >= http.StatusInternalServerError {
		kind = KindUnavailable
	}
	return &Error{Kind: kind, Message: fmt.Sprintf("%s (status %d)", message, status)}
}
