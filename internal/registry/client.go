package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"templstack/internal/transport"
)

// Client speaks to one remote registry through the resilient transport.
// The payload shapes here are this tool's own; the registry wire format is
// abstracted behind the transport primitive.
type Client struct {
	config    Config
	transport *transport.Transport
}

// NewClient creates a client bound to a registry config.
func NewClient(config Config, tr *transport.Transport) *Client {
	config.URL = strings.TrimRight(config.URL, "/")
	return &Client{config: config, transport: tr}
}

// indexPayload is the full index snapshot response.
type indexPayload struct {
	Entries []TemplateMetadata `json:"entries"`
	Cursor  uint64             `json:"cursor"`
}

// RemoteState is the divergence probe result for one template.
type RemoteState struct {
	Exists   bool   `json:"exists"`
	Version  string `json:"version,omitempty"`
	Revision uint64 `json:"revision"`
}

func (c *Client) policy() transport.Policy {
	policy := transport.DefaultPolicy()
	if c.config.RetryCount > 0 {
		policy.RetryCount = c.config.RetryCount
	}
	if c.config.Timeout > 0 {
		policy.Timeout = c.config.Timeout
	}
	return policy
}

func (c *Client) execute(ctx context.Context, method, path string, body any, policy transport.Policy) (*transport.Response, error) {
	headers, err := authHeaders(ctx, c.config.Auth)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		if headers == nil {
			headers = make(map[string]string)
		}
		headers["Content-Type"] = "application/json"
	}

	return c.transport.Execute(ctx, c.config.ID, transport.Request{
		Method:  method,
		URL:     c.config.URL + path,
		Headers: headers,
		Body:    payload,
	}, policy)
}

// FetchIndex downloads the registry's full index snapshot.
func (c *Client) FetchIndex(ctx context.Context) ([]TemplateMetadata, uint64, error) {
	resp, err := c.execute(ctx, "GET", "/v1/index", nil, c.policy())
	if err != nil {
		return nil, 0, err
	}

	var payload indexPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, 0, fmt.Errorf("failed to decode index: %w", err)
	}
	return payload.Entries, payload.Cursor, nil
}

// FetchDelta downloads the change set since the given cursor.
func (c *Client) FetchDelta(ctx context.Context, since uint64) (*SyncDelta, error) {
	path := "/v1/index/delta?since=" + strconv.FormatUint(since, 10)
	resp, err := c.execute(ctx, "GET", path, nil, c.policy())
	if err != nil {
		return nil, err
	}

	var delta SyncDelta
	if err := json.Unmarshal(resp.Body, &delta); err != nil {
		return nil, fmt.Errorf("failed to decode delta: %w", err)
	}
	return &delta, nil
}

// TemplateState probes the current remote state of one template, used to
// detect divergence before replaying queued operations.
func (c *Client) TemplateState(ctx context.Context, name string) (*RemoteState, error) {
	resp, err := c.execute(ctx, "GET", "/v1/templates/"+url.PathEscape(name), nil, c.policy())

	var httpErr *transport.HTTPError
	if errors.As(err, &httpErr) && httpErr.Status == 404 {
		return &RemoteState{Exists: false}, nil
	}
	if err != nil {
		return nil, err
	}

	var state RemoteState
	if err := json.Unmarshal(resp.Body, &state); err != nil {
		return nil, fmt.Errorf("failed to decode template state: %w", err)
	}
	state.Exists = true
	return &state, nil
}

// Publish uploads template metadata to the registry.
func (c *Client) Publish(ctx context.Context, entry TemplateMetadata) error {
	_, err := c.execute(ctx, "POST", "/v1/templates", entry, c.policy())
	return err
}

// Install reports an installation to the registry (download accounting).
func (c *Client) Install(ctx context.Context, name, version string) error {
	path := fmt.Sprintf("/v1/templates/%s/versions/%s/install", url.PathEscape(name), url.PathEscape(version))
	_, err := c.execute(ctx, "POST", path, nil, c.policy())
	return err
}

// Unpublish removes a template version from the registry.
func (c *Client) Unpublish(ctx context.Context, name, version string) error {
	path := fmt.Sprintf("/v1/templates/%s/versions/%s", url.PathEscape(name), url.PathEscape(version))
	_, err := c.execute(ctx, "DELETE", path, nil, c.policy())
	return err
}

// Health performs a single cheap reachability probe, bypassing retries so
// the health checker never stacks delays behind a dead endpoint. Returns
// the probe latency on success.
func (c *Client) Health(ctx context.Context) (time.Duration, error) {
	policy := c.policy()
	policy.RetryCount = 0

	resp, err := c.execute(ctx, "GET", "/v1/health", nil, policy)
	if err != nil {
		return 0, err
	}
	return resp.Duration, nil
}
