package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the HTTP API of a running iniguard daemon.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger // Optional logger for client operations
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8787/api",
		Timeout: 10 * time.Second,
	}
}

// APIError is a non-200 response. Message is the server's error text.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// New creates a new API client.
func New(config Config) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: config.BaseURL,
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable checks if the daemon is running and reachable
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		c.logger.Debug("Failed to create request for reachability check", "error", err)
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("Daemon unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	ok := resp.StatusCode != http.StatusNotFound
	c.logger.Debug("Daemon reachability check", "reachable", ok, "status", resp.StatusCode)
	return ok
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.do(ctx, http.MethodGet, "/status", nil, &st)
	return st, err
}

func (c *Client) Settings(ctx context.Context) (Settings, error) {
	var s Settings
	err := c.do(ctx, http.MethodGet, "/settings", nil, &s)
	return s, err
}

// SetRestoreDelay updates the restore delay and returns the stored settings.
func (c *Client) SetRestoreDelay(ctx context.Context, seconds int) (Settings, error) {
	var s Settings
	err := c.do(ctx, http.MethodPut, "/settings", map[string]int{"restore_delay_seconds": seconds}, &s)
	return s, err
}

func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	var res SearchResult
	err := c.do(ctx, http.MethodPost, "/search", req, &res)
	return res, err
}

func (c *Client) Select(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodPost, "/select", map[string]string{"path": path}, nil)
}

// Backup backs up configPath, or the selected config when empty, and
// returns the backup file path.
func (c *Client) Backup(ctx context.Context, configPath string) (string, error) {
	var out struct {
		Backup string `json:"backup"`
	}
	err := c.do(ctx, http.MethodPost, "/backup", map[string]string{"config_path": configPath}, &out)
	return out.Backup, err
}

func (c *Client) Restore(ctx context.Context) (RestoreResult, error) {
	var res RestoreResult
	err := c.do(ctx, http.MethodPost, "/restore", nil, &res)
	return res, err
}

func (c *Client) Presets(ctx context.Context) ([]Preset, error) {
	var list []Preset
	err := c.do(ctx, http.MethodGet, "/presets", nil, &list)
	return list, err
}

func (c *Client) ApplyPreset(ctx context.Context, name string) (Preset, error) {
	var p Preset
	err := c.do(ctx, http.MethodPost, "/presets/"+url.PathEscape(name)+"/apply", nil, &p)
	return p, err
}

// Patch runs the anti-aliasing patch action: apply, remove or status.
func (c *Client) Patch(ctx context.Context, action string) (PatchResult, error) {
	var res PatchResult
	if action == "status" {
		err := c.do(ctx, http.MethodGet, "/patch/aa", nil, &res)
		return res, err
	}
	err := c.do(ctx, http.MethodPost, "/patch/aa/"+url.PathEscape(action), nil, &res)
	return res, err
}

// StartMonitor starts monitoring exePath, or the server's default target
// when empty, and returns the monitored executable.
func (c *Client) StartMonitor(ctx context.Context, exePath string) (string, error) {
	var out struct {
		Target string `json:"target"`
	}
	err := c.do(ctx, http.MethodPost, "/monitor/start", map[string]string{"exe_path": exePath}, &out)
	return out.Target, err
}

func (c *Client) StopMonitor(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/monitor/stop", nil, nil)
}

// do performs an HTTP request, encoding in as JSON and decoding a 200
// response into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("HTTP request failed", "error", err, "path", path)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// handleErrorResponse handles HTTP error responses
func (c *Client) handleErrorResponse(resp *http.Response) error {
	var er ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		c.logger.Error("Failed to decode error response", "status", resp.StatusCode)
		return &APIError{StatusCode: resp.StatusCode}
	}
	c.logger.Debug("API request failed", "error", er.Error, "status", resp.StatusCode)
	return &APIError{StatusCode: resp.StatusCode, Message: er.Error}
}
