package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/crucial707/irrigation/internal/models"
)

var errNotFound = errors.New("irrigation record not found")

// apiError is a non-2xx response from the irrigation API.
type apiError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}

// apiClient talks to the irrigation JSON API.
type apiClient struct {
	base string
	http *http.Client
}

func (c *apiClient) list(ctx context.Context) (map[string]models.Irrigation, error) {
	var out map[string]models.Irrigation
	if err := c.do(ctx, "GET", "/irrigation", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *apiClient) get(ctx context.Context, id string) (*models.Irrigation, error) {
	var out models.Irrigation
	if err := c.do(ctx, "GET", "/irrigation/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) create(ctx context.Context, in models.IrrigationInput) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, "POST", "/irrigation", in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *apiClient) update(ctx context.Context, id string, in models.IrrigationInput) error {
	return c.do(ctx, "PUT", "/irrigation/"+url.PathEscape(id), in, nil)
}

func (c *apiClient) delete(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", "/irrigation/"+url.PathEscape(id), nil, nil)
}

func (c *apiClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call API: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read API response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		e := &apiError{Status: resp.StatusCode}
		var body struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			e.Message, e.Fields = body.Error, body.Fields
		} else {
			e.Message = string(data)
		}
		return e
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode API response: %w", err)
	}
	return nil
}
