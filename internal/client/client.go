// Package client is a thin HTTP client for the profile service API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zhouzirui/profile-service/backend/internal/model/profile"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Unwrap maps well-known statuses onto the model's sentinel errors.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return profile.ErrNotFound
	case http.StatusConflict:
		return profile.ErrAlreadyExists
	case http.StatusBadRequest:
		if strings.Contains(e.Message, profile.ErrInvalidValue.Error()) {
			return profile.ErrInvalidValue
		}
	}
	return nil
}

// Client talks to a running profile service.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}
	return &Client{baseURL: u.String(), http: &http.Client{Timeout: timeout}}, nil
}

// CheckResult mirrors the permission check response.
type CheckResult struct {
	ProfileName string `json:"profileName"`
	Permission  string `json:"permission"`
	Result      string `json:"result"`
}

func (c *Client) List(ctx context.Context) (map[string]profile.Profile, error) {
	var out map[string]profile.Profile
	err := c.do(ctx, http.MethodGet, "/api/profiles", nil, &out)
	return out, err
}

func (c *Client) Get(ctx context.Context, name string) (profile.Profile, error) {
	var out profile.Profile
	err := c.do(ctx, http.MethodGet, "/api/profiles/"+url.PathEscape(name), nil, &out)
	return out, err
}

func (c *Client) Create(ctx context.Context, name string, params map[string]string) (profile.Profile, error) {
	var out profile.Profile
	body := map[string]any{"profileName": name, "parameters": params}
	err := c.do(ctx, http.MethodPost, "/api/profiles", body, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, name string, params map[string]string) (profile.Profile, error) {
	var out profile.Profile
	body := map[string]any{"parameters": params}
	err := c.do(ctx, http.MethodPut, "/api/profiles/"+url.PathEscape(name), body, &out)
	return out, err
}

func (c *Client) Delete(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/profiles/"+url.PathEscape(name), nil, nil)
}

func (c *Client) Check(ctx context.Context, name, permission string) (CheckResult, error) {
	var out CheckResult
	path := "/api/profiles/" + url.PathEscape(name) + "/permissions/" + url.PathEscape(permission)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
			payload.Error = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: payload.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
