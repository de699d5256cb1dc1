// Package platform is a thin client for the hosted agent service. Agents,
// threads, runs, files and vector stores live on the service; this package
// only moves JSON to and from its REST API.
//
// Transport is the official openai-go client: the service speaks the
// Assistants wire format, and the client's generic Get/Post/Delete methods
// let the platform-specific tool types (connected agents, OpenAPI, Bing
// grounding) travel verbatim.
package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/agent-protocol/contoso-agents/pkg/logging"
)

// DefaultAPIVersion is sent as the api-version query parameter.
const DefaultAPIVersion = "v1"

// ClientConfig configures the platform client.
type ClientConfig struct {
	// Endpoint is the project endpoint, e.g.
	// https://<resource>.services.ai.azure.com/api/projects/<project>.
	Endpoint string
	// APIKey is sent as a bearer token. Empty sends no Authorization header.
	APIKey         string
	APIVersion     string
	MaxRetries     int
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// Client talks to the hosted agent service.
type Client struct {
	oc     openai.Client
	logger *zap.Logger
}

// NewClient creates a client for the configured project endpoint.
func NewClient(cfg ClientConfig) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("project endpoint is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid project endpoint %q: %w", endpoint, err)
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}

	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}

	opts := []option.RequestOption{
		option.WithBaseURL(endpoint),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithQuery("api-version", version),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{
		oc:     openai.NewClient(opts...),
		logger: logging.OrNop(cfg.Logger),
	}, nil
}

func (c *Client) get(ctx context.Context, path string, res any, opts ...option.RequestOption) error {
	return wrapError("GET "+path, c.oc.Get(ctx, path, nil, res, opts...))
}

func (c *Client) post(ctx context.Context, path string, body any, res any, opts ...option.RequestOption) error {
	if body == nil {
		body = map[string]any{}
	}
	return wrapError("POST "+path, c.oc.Post(ctx, path, body, res, opts...))
}

func (c *Client) delete(ctx context.Context, path string) error {
	var status DeletionStatus
	if err := c.oc.Delete(ctx, path, nil, &status); err != nil {
		return wrapError("DELETE "+path, err)
	}
	if !status.Deleted {
		return fmt.Errorf("DELETE %s: service did not confirm deletion", path)
	}
	return nil
}

// join builds a request path from escaped segments.
func join(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return strings.Join(escaped, "/")
}
