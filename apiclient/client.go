// Package apiclient is the single point of outbound communication with the
// Lost and Found backend. It owns bearer-token attachment and the one-shot
// refresh-and-replay behavior on authorization failures.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/greenwood-edu/lostfound-auth/tokenstore"
	"github.com/greenwood-edu/lostfound-auth/users"
)

const defaultTimeout = 15 * time.Second

// Credentials is the backend's response to a successful login or
// registration.
type Credentials struct {
	Token string     `json:"token"`
	User  users.User `json:"user"`
}

// Registration is the profile submitted when creating a new account.
type Registration struct {
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Password    string     `json:"password"`
	DisplayName string     `json:"display_name,omitempty"`
	Role        users.Role `json:"role,omitempty"`
}

type loginRequest struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Role     users.Role `json:"role,omitempty"`
}

type refreshResponse struct {
	Token string `json:"token"`
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client issues typed requests against the auth backend. Authenticated
// traffic flows through a Transport; credential submission and the refresh
// call use a bare client, so a rejected login can never trigger a refresh
// cycle against a stored session and the refresh itself can never recurse
// into the interceptor.
type Client struct {
	baseURL   string
	http      *http.Client
	bare      *http.Client
	transport *Transport
}

// Option defines a function type to modify the Client instance.
type Option func(*options)

type options struct {
	timeout time.Duration
	base    http.RoundTripper
}

// WithTimeout bounds every outbound call. The zero value keeps the default
// of 15 seconds.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithBaseTransport replaces the underlying round tripper (primarily for
// testing).
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

func New(baseURL string, store tokenstore.Store, opts ...Option) *Client {
	o := options{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		bare:    &http.Client{Timeout: o.timeout, Transport: o.base},
	}
	c.transport = NewTransport(o.base, store, c.Refresh)
	c.http = &http.Client{Timeout: o.timeout, Transport: c.transport}
	return c
}

// OnSessionExpired registers the terminal session-loss callback.
func (c *Client) OnSessionExpired(fn func()) {
	c.transport.OnSessionExpired(fn)
}

// Login exchanges credentials for a token and profile. It bypasses the
// interceptor: the 401 for a wrong password is an answer, not a refresh
// trigger, and must never rotate or clear a session that is already stored.
func (c *Client) Login(ctx context.Context, username, password string, role users.Role) (*Credentials, error) {
	var creds Credentials
	err := c.do(ctx, c.bare, http.MethodPost, "/auth/login",
		loginRequest{Username: username, Password: password, Role: role},
		&creds, InvalidCredentialsErr)
	if err != nil {
		return nil, err
	}
	return &creds, nil
}

// Register creates a new principal. The backend auto-authenticates it, so a
// token comes back alongside the created profile. Like Login it bypasses the
// interceptor.
func (c *Client) Register(ctx context.Context, reg Registration) (*Credentials, error) {
	var creds Credentials
	err := c.do(ctx, c.bare, http.MethodPost, "/auth/register", reg, &creds, InvalidCredentialsErr)
	if err != nil {
		return nil, err
	}
	return &creds, nil
}

// Refresh performs the one-shot token exchange. It deliberately bypasses the
// interceptor.
func (c *Client) Refresh(ctx context.Context, current string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/refresh", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+current)

	resp, err := c.bare.Do(req)
	if err != nil {
		return "", c.mapTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp, SessionExpiredErr)
	}
	var rr refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return "", errors.Wrap(NetworkErr, "malformed refresh response")
	}
	return rr.Token, nil
}

// CurrentProfile validates the stored token against the backend and returns
// the authoritative profile.
func (c *Client) CurrentProfile(ctx context.Context) (*users.User, error) {
	var user users.User
	if err := c.do(ctx, c.http, http.MethodGet, "/auth/me", nil, &user, SessionExpiredErr); err != nil {
		return nil, err
	}
	return &user, nil
}

// InvalidateSession tells the backend to revoke the current token.
func (c *Client) InvalidateSession(ctx context.Context) error {
	return c.do(ctx, c.http, http.MethodPost, "/auth/logout", nil, nil, SessionExpiredErr)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "[Client.newRequest] marshal")
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.newRequest] build")
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body, out any, on401 error) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := hc.Do(req)
	if err != nil {
		return c.mapTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp, on401)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(NetworkErr, "malformed response body")
	}
	return nil
}

// mapTransportErr folds low-level failures into the error taxonomy. The
// interceptor's terminal signal passes through unchanged.
func (c *Client) mapTransportErr(err error) error {
	switch {
	case errors.Is(err, SessionExpiredErr):
		return SessionExpiredErr
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		return errors.Wrap(TimeoutErr, err.Error())
	default:
		return errors.Wrap(NetworkErr, err.Error())
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func decodeError(resp *http.Response, on401 error) error {
	var body apiError
	_ = json.NewDecoder(resp.Body).Decode(&body)

	var base error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		base = ValidationErr
	case http.StatusUnauthorized:
		base = on401
	case http.StatusConflict:
		base = AlreadyExistsErr
	default:
		base = NetworkErr
	}

	if body.Message == "" {
		if base == NetworkErr {
			return errors.Wrap(base, fmt.Sprintf("unexpected status %d", resp.StatusCode))
		}
		return base
	}
	return errors.Wrap(base, body.Message)
}
