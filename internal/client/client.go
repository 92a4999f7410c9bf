// Package client talks to the hosted backend: the auth API, the REST data
// API and the storage API.
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

	"github.com/rs/zerolog/log"

	"github.com/DammyCodes-all/framez-socials/internal/logger"
)

// DefaultBucket is the storage bucket holding post and avatar images.
const DefaultBucket = "posts"

var ErrMissingConfig = errors.New("missing backend URL or API key")

// Config holds common client configuration
type Config struct {
	URL      string
	AnonKey  string
	Bucket   string
	Timeout  time.Duration
	CacheDir string
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		Bucket:  DefaultBucket,
		Timeout: 30 * time.Second,
	}
}

// Client holds the transports shared by the API wrappers.
type Client struct {
	cfg  Config
	base *url.URL

	// plain transport for the auth API, never cached
	transport http.RoundTripper
	// cached transport for data and storage reads
	cached http.RoundTripper
}

// New validates cfg and builds a client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.AnonKey == "" {
		return nil, ErrMissingConfig
	}

	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse backend URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend URL %q must be absolute", cfg.URL)
	}

	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	logged := logger.NewHTTPRequests(log.Logger, http.DefaultTransport)

	return &Client{
		cfg:       cfg,
		base:      base,
		transport: &apiKeyTransport{key: cfg.AnonKey, next: logged},
		cached:    &apiKeyTransport{key: cfg.AnonKey, next: NewCachingTransport(cfg.CacheDir, logged)},
	}, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = u.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

type request struct {
	method  string
	path    string
	query   url.Values
	header  http.Header
	body    any
	rawBody io.Reader
}

// do sends req and decodes a 2xx JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, hc *http.Client, req request, out any) error {
	body := req.rawBody
	if body == nil && req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.endpoint(req.path, req.query), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range req.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	resp, err := hc.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.path, err)
	}

	return nil
}

// apiKeyTransport adds the project API key every backend endpoint expects.
type apiKeyTransport struct {
	key  string
	next http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("apikey", t.key)
	return t.next.RoundTrip(r)
}
