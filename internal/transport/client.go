// Package transport provides the HTTP client shared by the REST-backed
// providers: authentication, JSON encoding and decoding, and retries on
// transient failures.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/meTasking/sync/pkg/errors"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response body is kept for the
// error message.
const maxErrorBody = 2048

// Client provides HTTP client functionality with authentication and
// automatic retries on connection errors and 5xx responses.
type Client struct {
	http     *http.Client
	auth     Authenticator
	provider string
}

// New creates a transport client for the named provider.
func New(provider string, auth Authenticator) *Client {
	retry := retryablehttp.NewClient()
	retry.RetryMax = 3
	retry.HTTPClient.Timeout = DefaultHTTPTimeout
	retry.Logger = nil

	if auth == nil {
		auth = &NoAuth{}
	}
	return &Client{
		http:     retry.StandardClient(),
		auth:     auth,
		provider: provider,
	}
}

// Do performs an HTTP request with authentication and common headers
// applied. Non-2xx responses are returned as APIError with the status
// code and a bounded slice of the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.auth.Apply(req)

	req.Header.Set("Accept", "application/json")
	if req.Method == http.MethodPost || req.Method == http.MethodPut || req.Method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &errors.APIError{
			Provider: c.provider,
			Endpoint: req.URL.String(),
			Message:  "request failed",
			Err:      err,
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		return nil, &errors.APIError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Endpoint:   req.URL.String(),
			Message:    string(body),
		}
	}
	return resp, nil
}

// GetJSON performs a GET request and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

// PostJSON performs a POST request with a JSON body and decodes the
// response into out when out is non-nil.
func (c *Client) PostJSON(ctx context.Context, url string, body, out any) error {
	return c.sendJSON(ctx, http.MethodPost, url, body, out)
}

// PutJSON performs a PUT request with a JSON body and decodes the
// response into out when out is non-nil.
func (c *Client) PutJSON(ctx context.Context, url string, body, out any) error {
	return c.sendJSON(ctx, http.MethodPut, url, body, out)
}

// Delete performs a DELETE request and discards the response body.
func (c *Client) Delete(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	return drain(resp)
}

func (c *Client) sendJSON(ctx context.Context, method, url string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return drain(resp)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &errors.APIError{
			Provider: c.provider,
			Endpoint: req.URL.String(),
			Message:  "failed to decode response",
			Err:      err,
		}
	}
	return nil
}

func drain(resp *http.Response) error {
	defer resp.Body.Close()
	_, err := io.Copy(io.Discard, resp.Body)
	return err
}
