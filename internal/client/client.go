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

	"github.com/qninhdt/c3/server/internal/events"
	"github.com/qninhdt/c3/server/internal/models"
)

// Client talks to the entity persistence service over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken starts the client with an existing session token
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the service at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current session token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// envelope mirrors the service response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// do sends body as JSON and decodes the response data into out
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return statusError(resp.StatusCode, env.Error)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

// serviceError keeps the service's message while matching a sentinel
type serviceError struct {
	msg  string
	kind error
}

func (e *serviceError) Error() string { return e.msg }
func (e *serviceError) Unwrap() error { return e.kind }

// statusError maps a service status back onto the error taxonomy
func statusError(status int, msg string) error {
	switch status {
	case http.StatusBadRequest:
		return models.Invalid("", msg)
	case http.StatusUnauthorized:
		return models.ErrUnauthorized
	case http.StatusNotFound:
		return &serviceError{msg: msg, kind: models.ErrNotFound}
	case http.StatusConflict:
		return &serviceError{msg: msg, kind: models.ErrConflict}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("service returned status %d: %s", status, msg)
}

// Signup creates an account and keeps its session
func (c *Client) Signup(ctx context.Context, req models.SignupRequest) (*models.Session, error) {
	var out models.Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", req, &out); err != nil {
		return nil, err
	}
	c.setToken(out.Token)
	return &out, nil
}

// Login exchanges credentials for a session and keeps it
func (c *Client) Login(ctx context.Context, email, password string) (*models.Session, error) {
	var out models.Session
	err := c.do(ctx, http.MethodPost, "/api/auth/login", models.LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	c.setToken(out.Token)
	return &out, nil
}

// Logout drops the session
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.setToken("")
	return err
}

// Session returns the signed-in profile, or nil when signed out
func (c *Client) Session(ctx context.Context) (*models.UserProfile, error) {
	var out *models.UserProfile
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.UserProfile, error) {
	var out models.UserProfile
	if err := c.do(ctx, http.MethodPatch, "/api/profile", patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAgents returns every agent; see ListAgentsFiltered for expressions
func (c *Client) ListAgents(ctx context.Context) ([]models.Agent, error) {
	return c.ListAgentsFiltered(ctx, "")
}

func (c *Client) ListAgentsFiltered(ctx context.Context, filter string) ([]models.Agent, error) {
	path := "/api/agents"
	if filter != "" {
		path += "?filter=" + url.QueryEscape(filter)
	}
	var out []models.Agent
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateAgent(ctx context.Context, req models.CreateAgentRequest) (*models.Agent, error) {
	var out models.Agent
	if err := c.do(ctx, http.MethodPost, "/api/agents", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListMissions(ctx context.Context) ([]models.Mission, error) {
	var out []models.Mission
	if err := c.do(ctx, http.MethodGet, "/api/missions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateMission(ctx context.Context, req models.CreateMissionRequest) (*models.Mission, error) {
	var out models.Mission
	if err := c.do(ctx, http.MethodPost, "/api/missions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateMission(ctx context.Context, id string, patch models.MissionPatch) (*models.Mission, error) {
	var out models.Mission
	if err := c.do(ctx, http.MethodPatch, "/api/missions/"+url.PathEscape(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteMission(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/missions/"+url.PathEscape(id), nil, nil)
}

func (c *Client) AssignAgents(ctx context.Context, missionID string, agentIDs []string) (*models.Mission, error) {
	var out models.Mission
	path := "/api/missions/" + url.PathEscape(missionID) + "/agents"
	if err := c.do(ctx, http.MethodPost, path, models.AssignAgentsRequest{AgentIDs: agentIDs}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListZones(ctx context.Context) ([]models.Zone, error) {
	var out []models.Zone
	if err := c.do(ctx, http.MethodGet, "/api/zones", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateZone(ctx context.Context, req models.CreateZoneRequest) (*models.Zone, error) {
	var out models.Zone
	if err := c.do(ctx, http.MethodPost, "/api/zones", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListAPIKeys(ctx context.Context) ([]models.APIKey, error) {
	var out []models.APIKey
	if err := c.do(ctx, http.MethodGet, "/api/keys", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpsertAPIKey(ctx context.Context, req models.UpsertAPIKeyRequest) (*models.APIKey, error) {
	var out models.APIKey
	if err := c.do(ctx, http.MethodPost, "/api/keys", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAPIKey(ctx context.Context, provider models.APIProvider) error {
	return c.do(ctx, http.MethodDelete, "/api/keys?provider="+url.QueryEscape(string(provider)), nil, nil)
}

// Events opens the websocket event stream for the current session
func (c *Client) Events(ctx context.Context) (*events.Stream, error) {
	wsURL := c.baseURL + "/api/events"
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	return events.Dial(ctx, wsURL, c.Token())
}
