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
	"time"
)

// DefaultBaseURL is used when no API address is configured.
const DefaultBaseURL = "http://localhost:4741"

// Client provides typed access to the gemstones API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
	Field   string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := extractError(resp.Body)
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) APIError {
	if body == nil {
		return APIError{}
	}
	var payload struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return APIError{}
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return APIError{Message: strings.TrimSpace(string(data))}
	}
	return APIError{Message: strings.TrimSpace(payload.Error), Field: payload.Field}
}

// User reflects API user payloads. Token is only set by SignIn.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Token string `json:"token,omitempty"`
}

type credentials struct {
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation,omitempty"`
}

type userEnvelope struct {
	User User `json:"user"`
}

// SignUp registers a new account.
func (c *Client) SignUp(ctx context.Context, email, password, confirmation string) (User, error) {
	body := map[string]credentials{"credentials": {Email: email, Password: password, PasswordConfirmation: confirmation}}
	var resp userEnvelope
	if err := c.do(ctx, http.MethodPost, "/sign-up", body, "", &resp); err != nil {
		return User{}, err
	}
	return resp.User, nil
}

// SignIn exchanges credentials for a token.
func (c *Client) SignIn(ctx context.Context, email, password string) (User, error) {
	body := map[string]credentials{"credentials": {Email: email, Password: password}}
	var resp userEnvelope
	if err := c.do(ctx, http.MethodPost, "/sign-in", body, "", &resp); err != nil {
		return User{}, err
	}
	return resp.User, nil
}

// SignOut revokes token.
func (c *Client) SignOut(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodDelete, "/sign-out", nil, token, nil)
}

// ChangePassword replaces the signed-in user's password.
func (c *Client) ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error {
	body := map[string]map[string]string{"passwords": {"old": oldPassword, "new": newPassword}}
	return c.do(ctx, http.MethodPatch, "/change-password", body, token, nil)
}

// Gemstone is a stored gemstone record.
type Gemstone struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GemstoneInput carries create and update fields. Empty fields are left
// unchanged by UpdateGemstone.
type GemstoneInput struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
}

// ListGemstones returns every gemstone.
func (c *Client) ListGemstones(ctx context.Context, token string) ([]Gemstone, error) {
	var resp struct {
		Gemstones []Gemstone `json:"gemstones"`
	}
	if err := c.do(ctx, http.MethodGet, "/gemstones", nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Gemstones, nil
}

// GetGemstone fetches one gemstone.
func (c *Client) GetGemstone(ctx context.Context, token, id string) (Gemstone, error) {
	var resp struct {
		Gemstone Gemstone `json:"gemstone"`
	}
	if err := c.do(ctx, http.MethodGet, "/gemstones/"+url.PathEscape(id), nil, token, &resp); err != nil {
		return Gemstone{}, err
	}
	return resp.Gemstone, nil
}

// CreateGemstone creates a gemstone owned by the token's user.
func (c *Client) CreateGemstone(ctx context.Context, token string, input GemstoneInput) (Gemstone, error) {
	body := map[string]GemstoneInput{"gemstone": input}
	var resp struct {
		Gemstone Gemstone `json:"gemstone"`
	}
	if err := c.do(ctx, http.MethodPost, "/gemstones", body, token, &resp); err != nil {
		return Gemstone{}, err
	}
	return resp.Gemstone, nil
}

// UpdateGemstone patches the non-empty fields of input.
func (c *Client) UpdateGemstone(ctx context.Context, token, id string, input GemstoneInput) error {
	body := map[string]GemstoneInput{"gemstone": input}
	return c.do(ctx, http.MethodPatch, "/gemstones/"+url.PathEscape(id), body, token, nil)
}

// DeleteGemstone removes a gemstone owned by the token's user.
func (c *Client) DeleteGemstone(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/gemstones/"+url.PathEscape(id), nil, token, nil)
}
