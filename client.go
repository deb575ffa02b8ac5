package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// APIClient calls the inventory HTTP API. The demo and maintenance commands
// go through it rather than touching the data files.
type APIClient struct {
	baseURL string
	http    *http.Client
}

// NewAPIClient creates an APIClient for the service at baseURL.
func NewAPIClient(baseURL string, hc *http.Client) *APIClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// APIError is a non-success response from the API.
type APIError struct {
	Method string
	Path   string
	Status int
	Kind   string
	Msg    string
}

func (e *APIError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Msg)
}

// List fetches one page of items.
func (c *APIClient) List(ctx context.Context, q ListQuery) (ListResult, error) {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("offset", strconv.Itoa(q.Offset))
	if q.Type != "" {
		v.Set("type", q.Type)
	}
	if q.Q != "" {
		v.Set("q", q.Q)
	}
	var res ListResult
	err := c.do(ctx, http.MethodGet, "/items?"+v.Encode(), nil, http.StatusOK, &res)
	return res, err
}

// Get fetches one item.
func (c *APIClient) Get(ctx context.Context, id string) (Item, error) {
	var it Item
	err := c.do(ctx, http.MethodGet, "/items/"+url.PathEscape(id), nil, http.StatusOK, &it)
	return it, err
}

// Create posts a new item. body is any JSON-encodable payload.
func (c *APIClient) Create(ctx context.Context, body any) (Item, error) {
	var it Item
	err := c.do(ctx, http.MethodPost, "/items", body, http.StatusCreated, &it)
	return it, err
}

// Replace puts a full payload onto an item.
func (c *APIClient) Replace(ctx context.Context, id string, body any) (Item, error) {
	var it Item
	err := c.do(ctx, http.MethodPut, "/items/"+url.PathEscape(id), body, http.StatusOK, &it)
	return it, err
}

// Patch sends a partial payload.
func (c *APIClient) Patch(ctx context.Context, id string, fields map[string]any) (Item, error) {
	var it Item
	err := c.do(ctx, http.MethodPatch, "/items/"+url.PathEscape(id), fields, http.StatusOK, &it)
	return it, err
}

// Delete removes an item.
func (c *APIClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/items/"+url.PathEscape(id), nil, http.StatusNoContent, nil)
}

// Reset restores the service's seed data.
func (c *APIClient) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/reset", nil, http.StatusNoContent, nil)
}

func (c *APIClient) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); json.Unmarshal(data, &e) == nil {
			apiErr.Kind, apiErr.Msg = e.Kind, e.Error
		} else {
			apiErr.Msg = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
