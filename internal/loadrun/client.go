package loadrun

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aanand-mishra/users-api/internal/types"
)

// Request tags. Metrics for each endpoint are partitioned by these.
const (
	TagList   = "list"
	TagGet    = "get"
	TagCreate = "create"
	TagUpdate = "update"
	TagDelete = "delete"
	TagSetup  = "setup"
)

// Response is the outcome of one request.
type Response struct {
	Status   int
	Body     []byte
	Duration time.Duration
	Err      error
}

// OK reports whether the request completed with the wanted status.
func (r Response) OK(status int) bool {
	return r.Err == nil && r.Status == status
}

// Client issues /users requests and records each one in a Sink.
type Client struct {
	baseURL string
	http    *http.Client
	sink    *Sink
}

// NewClient returns a client sharing one pooled transport across VUs.
func NewClient(baseURL string, timeout time.Duration, sink *Sink) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 1000,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: transport, Timeout: timeout},
		sink:    sink,
	}
}

// ListUsers issues GET /users.
func (c *Client) ListUsers(ctx context.Context, tag string) ([]types.User, Response) {
	var users []types.User
	resp := c.do(ctx, http.MethodGet, "/users", tag, nil)
	decodeInto(&resp, http.StatusOK, &users)
	return users, resp
}

// GetUser issues GET /users/{id}.
func (c *Client) GetUser(ctx context.Context, tag string, id int64) (types.User, Response) {
	var u types.User
	resp := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d", id), tag, nil)
	decodeInto(&resp, http.StatusOK, &u)
	return u, resp
}

// CreateUser issues POST /users.
func (c *Client) CreateUser(ctx context.Context, tag, name, email string) (types.User, Response) {
	var u types.User
	resp := c.do(ctx, http.MethodPost, "/users", tag, types.User{Name: name, Email: email})
	decodeInto(&resp, http.StatusCreated, &u)
	return u, resp
}

// UpdateUser issues PUT /users/{id} with a partial body.
func (c *Client) UpdateUser(ctx context.Context, tag string, id int64, patch types.UserPatch) (types.User, Response) {
	var u types.User
	resp := c.do(ctx, http.MethodPut, fmt.Sprintf("/users/%d", id), tag, patch)
	decodeInto(&resp, http.StatusOK, &u)
	return u, resp
}

// DeleteUser issues DELETE /users/{id}.
func (c *Client) DeleteUser(ctx context.Context, tag string, id int64) Response {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", id), tag, nil)
}

func (c *Client) do(ctx context.Context, method, path, tag string, body any) Response {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return Response{Err: fmt.Errorf("marshal body: %w", err)}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return Response{Err: fmt.Errorf("build request: %w", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		out := Response{Duration: time.Since(start), Err: err}
		c.record(tag, out)
		return out
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	out := Response{
		Status:   resp.StatusCode,
		Body:     respBody,
		Duration: time.Since(start),
		Err:      err,
	}
	c.record(tag, out)
	return out
}

// record treats transport errors and 4xx/5xx statuses as failed requests.
// Requests cut short by cancellation are not recorded.
func (c *Client) record(tag string, r Response) {
	if c.sink == nil {
		return
	}
	if errors.Is(r.Err, context.Canceled) {
		return
	}
	c.sink.AddRequest(tag, r.Duration, r.Err != nil || r.Status >= http.StatusBadRequest)
}

func decodeInto(resp *Response, want int, v any) {
	if resp.Err != nil || resp.Status != want {
		return
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		resp.Err = fmt.Errorf("decode response: %w", err)
	}
}
