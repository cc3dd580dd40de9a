// Package dida is the authenticated pass-through client for the Dida365
// open API. Requests carry tokens from an oauth2.TokenSource; responses
// are decoded into thin wire types for the MCP tool layer to re-serialize.
package dida

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// APIError is a non-2xx response from the Dida365 API. Code and Message
// carry the structured error fields when the body provides them; Body
// always holds the raw payload for diagnostics.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("dida365 API error: HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("dida365 API error: HTTP %d: %s", e.StatusCode, e.Body)
}

// Client calls the Dida365 open API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client, primarily for tests.
// The caller is responsible for wiring authentication into it.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client whose requests are authenticated by ts.
func New(baseURL string, ts oauth2.TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &oauth2.Transport{Source: ts},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListProjects returns all projects.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.do(ctx, http.MethodGet, "/project", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProjectData returns a project with its undone tasks.
func (c *Client) GetProjectData(ctx context.Context, projectID string) (*ProjectData, error) {
	var data ProjectData
	if err := c.do(ctx, http.MethodGet, "/project/"+url.PathEscape(projectID)+"/data", nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// CreateProject creates a project and returns the stored resource.
func (c *Client) CreateProject(ctx context.Context, project Project) (*Project, error) {
	var created Project
	if err := c.do(ctx, http.MethodPost, "/project", project, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteProject deletes a project.
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.do(ctx, http.MethodDelete, "/project/"+url.PathEscape(projectID), nil, nil)
}

// GetTask returns a single task.
func (c *Client) GetTask(ctx context.Context, projectID, taskID string) (*Task, error) {
	var task Task
	path := "/project/" + url.PathEscape(projectID) + "/task/" + url.PathEscape(taskID)
	if err := c.do(ctx, http.MethodGet, path, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask creates a task and returns the stored resource.
func (c *Client) CreateTask(ctx context.Context, task Task) (*Task, error) {
	var created Task
	if err := c.do(ctx, http.MethodPost, "/task", task, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateTask updates a task in place. The task must carry both its ID and
// project ID.
func (c *Client) UpdateTask(ctx context.Context, task Task) (*Task, error) {
	var updated Task
	if err := c.do(ctx, http.MethodPost, "/task/"+url.PathEscape(task.ID), task, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// CompleteTask marks a task as done.
func (c *Client) CompleteTask(ctx context.Context, projectID, taskID string) error {
	path := "/project/" + url.PathEscape(projectID) + "/task/" + url.PathEscape(taskID) + "/complete"
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, projectID, taskID string) error {
	path := "/project/" + url.PathEscape(projectID) + "/task/" + url.PathEscape(taskID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// do runs one API round trip: marshal the optional body, send, classify
// non-2xx responses as *APIError, and decode the optional result.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dida365 API request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       gjson.GetBytes(data, "errorCode").String(),
			Message:    gjson.GetBytes(data, "errorMessage").String(),
			Body:       data,
		}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
