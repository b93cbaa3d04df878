package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"noot/internal/logging"
)

const maxResponseBody = 10 << 20

// Client is the HTTP client for the remote workspace API. Calls are not
// retried: a failed call surfaces as a per-entity error and the caller moves
// on to the next item.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *logging.Logger
}

// NewClient creates a workspace API client.
func NewClient(baseURL, token string, logger *logging.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid workspace URL: %w", err)
	}
	u.Path = path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "noot-workspace-client/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseErrorResponse(resp.StatusCode, data)
	}
	return data, nil
}

func parseErrorResponse(statusCode int, body []byte) error {
	var resp struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != nil {
		return &RemoteError{StatusCode: statusCode, Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return &RemoteError{StatusCode: statusCode, Code: "unknown_error", Message: string(body)}
}

func decode[T any](body []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &v, nil
}

// SearchContainers finds containers matching a title query. An empty query
// lists everything the token can see.
func (c *Client) SearchContainers(ctx context.Context, query string) ([]Container, error) {
	body, err := c.do(ctx, http.MethodPost, "/v1/containers/search", map[string]string{"query": query})
	if err != nil {
		return nil, err
	}
	resp, err := decode[struct {
		Containers []Container `json:"containers"`
	}](body)
	if err != nil {
		return nil, err
	}
	return resp.Containers, nil
}

// GetContainer fetches a container with its declared property schema.
func (c *Client) GetContainer(ctx context.Context, id string) (*Container, error) {
	body, err := c.do(ctx, http.MethodGet, "/v1/containers/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	return decode[Container](body)
}

// UpdateContainerSchema adds or updates properties on a container.
func (c *Client) UpdateContainerSchema(ctx context.Context, id string, properties map[string]PropertySchema) (*Container, error) {
	body, err := c.do(ctx, http.MethodPatch, "/v1/containers/"+url.PathEscape(id),
		map[string]interface{}{"properties": properties})
	if err != nil {
		return nil, err
	}
	return decode[Container](body)
}

// CreatePage creates a page in a container with the given property values.
func (c *Client) CreatePage(ctx context.Context, containerID string, properties map[string]interface{}) (*Page, error) {
	body, err := c.do(ctx, http.MethodPost, "/v1/pages", map[string]interface{}{
		"containerId": containerID,
		"properties":  properties,
	})
	if err != nil {
		return nil, err
	}
	return decode[Page](body)
}

// UpdatePageProperties overwrites property values on an existing page.
func (c *Client) UpdatePageProperties(ctx context.Context, pageID string, properties map[string]interface{}) (*Page, error) {
	body, err := c.do(ctx, http.MethodPatch, "/v1/pages/"+url.PathEscape(pageID),
		map[string]interface{}{"properties": properties})
	if err != nil {
		return nil, err
	}
	return decode[Page](body)
}

// GetBlocks lists the blocks of a page.
func (c *Client) GetBlocks(ctx context.Context, pageID string) ([]Block, error) {
	body, err := c.do(ctx, http.MethodGet, "/v1/pages/"+url.PathEscape(pageID)+"/blocks", nil)
	if err != nil {
		return nil, err
	}
	resp, err := decode[struct {
		Blocks []Block `json:"blocks"`
	}](body)
	if err != nil {
		return nil, err
	}
	return resp.Blocks, nil
}

// AppendBlocks appends blocks to the end of a page.
func (c *Client) AppendBlocks(ctx context.Context, pageID string, blocks []Block) error {
	_, err := c.do(ctx, http.MethodPost, "/v1/pages/"+url.PathEscape(pageID)+"/blocks",
		map[string]interface{}{"blocks": blocks})
	return err
}

// DeleteBlock removes one block from its page.
func (c *Client) DeleteBlock(ctx context.Context, blockID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/v1/blocks/"+url.PathEscape(blockID), nil)
	return err
}
