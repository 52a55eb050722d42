// Package client implements an HTTP client for the control surface
// exposed by internal/httpserver, grounded in the teacher's pkg/client
// (same Config/New/doRequest/handleErrorResponse shape), dropped to plain
// HTTP since authenticated transport is out of scope here.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
)

// Client talks to a running clientserverrunner HTTP control surface.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{BaseURL: "http://localhost:8080/api", Timeout: 10 * time.Second}
}

// New creates a client for the control surface at config.BaseURL.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080/api"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
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

// IsReachable reports whether the daemon responds at all.
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/configurations", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("daemon unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return true
}

func (c *Client) ListConfigurations(ctx context.Context) ([]appmodel.Configuration, error) {
	var out []appmodel.Configuration
	err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/configurations", nil, &out)
	return out, err
}

func (c *Client) CreateConfiguration(ctx context.Context, cfg appmodel.Configuration) (string, error) {
	var out struct {
		ConfigID string `json:"config_id"`
	}
	err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/configurations", cfg, &out)
	return out.ConfigID, err
}

func (c *Client) GetConfiguration(ctx context.Context, id string) (appmodel.Configuration, error) {
	var out appmodel.Configuration
	err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/configurations/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) DeleteConfiguration(ctx context.Context, id string, force bool) error {
	rawURL := c.baseURL + "/configurations/" + url.PathEscape(id)
	if force {
		rawURL += "?force=true"
	}
	return c.doJSON(ctx, http.MethodDelete, rawURL, nil, nil)
}

func (c *Client) StartConfiguration(ctx context.Context, id string, appIDs []string) (map[string]appmodel.ApplicationStatus, error) {
	var out map[string]appmodel.ApplicationStatus
	err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/configurations/"+url.PathEscape(id)+"/start"+appIDQuery(appIDs), nil, &out)
	return out, err
}

func (c *Client) StopConfiguration(ctx context.Context, id string, appIDs []string, graceful bool) (map[string]appmodel.ApplicationStatus, error) {
	q := appIDQuery(appIDs)
	sep := "?"
	if q != "" {
		sep = "&"
	}
	var out map[string]appmodel.ApplicationStatus
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("%s/configurations/%s/stop%s%sgraceful=%t", c.baseURL, url.PathEscape(id), q, sep, graceful), nil, &out)
	return out, err
}

func (c *Client) RestartConfiguration(ctx context.Context, id string, appIDs []string) (map[string]appmodel.ApplicationStatus, error) {
	var out map[string]appmodel.ApplicationStatus
	err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/configurations/"+url.PathEscape(id)+"/restart"+appIDQuery(appIDs), nil, &out)
	return out, err
}

func (c *Client) Status(ctx context.Context, id string, appIDs []string) (map[string]appmodel.ApplicationStatus, error) {
	var out map[string]appmodel.ApplicationStatus
	err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/configurations/"+url.PathEscape(id)+"/status"+appIDQuery(appIDs), nil, &out)
	return out, err
}

func (c *Client) GetLogs(ctx context.Context, configID, appID string, n int, runID string) ([]appmodel.LogEntry, error) {
	q := url.Values{}
	if n > 0 {
		q.Set("n", strconv.Itoa(n))
	}
	if runID != "" {
		q.Set("run_id", runID)
	}
	var out []appmodel.LogEntry
	err := c.doJSON(ctx, http.MethodGet, c.appURL(configID, appID, "logs")+"?"+q.Encode(), nil, &out)
	return out, err
}

func (c *Client) SearchLogs(ctx context.Context, configID, appID, pattern string, maxResults int) ([]appmodel.SearchMatch, error) {
	q := url.Values{"pattern": {pattern}}
	if maxResults > 0 {
		q.Set("max_results", strconv.Itoa(maxResults))
	}
	var out []appmodel.SearchMatch
	err := c.doJSON(ctx, http.MethodGet, c.appURL(configID, appID, "logs/search")+"?"+q.Encode(), nil, &out)
	return out, err
}

func (c *Client) ListLogRuns(ctx context.Context, configID, appID string) ([]appmodel.LogRunInfo, error) {
	var out []appmodel.LogRunInfo
	err := c.doJSON(ctx, http.MethodGet, c.appURL(configID, appID, "logs/runs"), nil, &out)
	return out, err
}

func (c *Client) RunCommand(ctx context.Context, configID, appID, command string, args []string) (appmodel.CommandResult, error) {
	var out appmodel.CommandResult
	body := struct {
		Command string   `json:"command"`
		Args    []string `json:"args,omitempty"`
	}{command, args}
	err := c.doJSON(ctx, http.MethodPost, c.appURL(configID, appID, "command"), body, &out)
	return out, err
}

func (c *Client) TriggerReload(ctx context.Context, configID, appID string) (bool, string, error) {
	var out struct {
		Reloaded bool   `json:"reloaded"`
		Reason   string `json:"reason"`
	}
	err := c.doJSON(ctx, http.MethodPost, c.appURL(configID, appID, "reload"), nil, &out)
	return out.Reloaded, out.Reason, err
}

func (c *Client) appURL(configID, appID, tail string) string {
	return fmt.Sprintf("%s/configurations/%s/applications/%s/%s", c.baseURL, url.PathEscape(configID), url.PathEscape(appID), tail)
}

func appIDQuery(appIDs []string) string {
	if len(appIDs) == 0 {
		return ""
	}
	q := url.Values{}
	for _, id := range appIDs {
		q.Add("app_id", id)
	}
	return "?" + q.Encode()
}

// doJSON performs an HTTP request, marshaling body (if non-nil) as the
// request JSON and unmarshaling the response into out (if non-nil).
func (c *Client) doJSON(ctx context.Context, method, rawURL string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("http request failed", "error", err, "url", rawURL)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			return fmt.Errorf("http %d", resp.StatusCode)
		}
		return fmt.Errorf("api error (%s): %s", errResp.Kind, errResp.Error)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
