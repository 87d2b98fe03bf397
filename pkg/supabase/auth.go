// Package supabase proxies the token exchange endpoints of Supabase Auth
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrInvalidCredentials is returned when the password or refresh grant is rejected
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// APIError carries the provider's own error text
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase auth: %d %s", e.Status, e.Message)
}

// User is the identity record returned by Supabase Auth
type User struct {
	ID         string            `json:"id"`
	Email      string            `json:"email"`
	Identities []json.RawMessage `json:"identities"`
}

// Session is an issued token pair
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         User   `json:"user"`
}

// SignUpResult describes the outcome of a signup
type SignUpResult struct {
	User              User
	AlreadyRegistered bool
}

// AuthClient is the identity provider surface used by the auth handlers
type AuthClient interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*SignUpResult, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	Logout(ctx context.Context, accessToken string) error
}

// Client implements AuthClient over the Supabase Auth REST API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new Supabase Auth client
func NewClient(baseURL, serviceKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  serviceKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SignUp registers a new user. A repeated signup for a known email is reported
// through AlreadyRegistered rather than an error.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*SignUpResult, error) {
	body := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		body["data"] = metadata
	}

	var raw struct {
		User
		Nested *User `json:"user"`
	}
	err := c.do(ctx, "/auth/v1/signup", "", body, &raw)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && isAlreadyRegistered(apiErr) {
			return &SignUpResult{User: User{Email: email}, AlreadyRegistered: true}, nil
		}
		return nil, err
	}

	// Autoconfirm projects answer with a session, the others with the bare user
	user := raw.User
	if raw.Nested != nil && raw.Nested.ID != "" {
		user = *raw.Nested
	}

	return &SignUpResult{
		User: user,
		// An obfuscated user with no identities means the email already exists
		AlreadyRegistered: user.Identities != nil && len(user.Identities) == 0,
	}, nil
}

// SignInWithPassword exchanges email and password for a session
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	err := c.do(ctx, "/auth/v1/token?grant_type=password", "", map[string]string{
		"email":    email,
		"password": password,
	}, &s)
	if err != nil {
		return nil, asCredentialsError(err)
	}
	return &s, nil
}

// Refresh exchanges a refresh token for a new session
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var s Session
	err := c.do(ctx, "/auth/v1/token?grant_type=refresh_token", "", map[string]string{
		"refresh_token": refreshToken,
	}, &s)
	if err != nil {
		return nil, asCredentialsError(err)
	}
	return &s, nil
}

// Logout revokes the refresh tokens of the session owning accessToken
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, "/auth/v1/logout", accessToken, nil, nil)
}

func (c *Client) do(ctx context.Context, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supabase auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorCode        string `json:"error_code"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	msg := body.ErrorDescription
	if msg == "" {
		msg = body.Msg
	}
	if msg == "" {
		msg = body.Message
	}
	return &APIError{Status: resp.StatusCode, Code: body.ErrorCode, Message: msg}
}

func isAlreadyRegistered(e *APIError) bool {
	return e.Code == "user_already_exists" ||
		strings.Contains(strings.ToLower(e.Message), "already registered")
}

func asCredentialsError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Message)
	}
	return err
}
